package modules

import (
	"github.com/meridianhq/meridian-sdk/modules/audit"
	"github.com/meridianhq/meridian-sdk/modules/core"
	"github.com/meridianhq/meridian-sdk/modules/crm"
	"github.com/meridianhq/meridian-sdk/pkg/application"
)

// BuiltInModules is the standard module set. Order matters: core registers
// the authenticator and tenant plumbing the other modules depend on.
var BuiltInModules = []application.Module{
	core.NewModule(),
	crm.NewModule(),
	audit.NewModule(),
}

func Load(app application.Application, mods ...application.Module) error {
	for _, module := range mods {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
