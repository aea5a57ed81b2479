package services

import (
	"context"

	"github.com/meridianhq/meridian-sdk/pkg/composables"
)

// runInTenantTx routes repository work through a tenant-pinned transaction.
// Package variable so tests backed by in-memory repositories can substitute
// a pass-through runner.
var runInTenantTx = composables.InTenantTx

func runInTenantTxResult[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := runInTenantTx(ctx, func(txCtx context.Context) error {
		var innerErr error
		out, innerErr = fn(txCtx)
		return innerErr
	})
	return out, err
}
