package services

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/authlog"
	"github.com/meridianhq/meridian-sdk/modules/audit/domain/entities/changelog"
)

// AuditService reads and appends the tenant's audit trail. Change logs
// come from record events, authentication logs from sign-in events; the
// list operations back the admin API.
type AuditService struct {
	changeRepo changelog.Repository
	authRepo   authlog.Repository
}

func NewAuditService(changeRepo changelog.Repository, authRepo authlog.Repository) *AuditService {
	return &AuditService{
		changeRepo: changeRepo,
		authRepo:   authRepo,
	}
}

func (s *AuditService) ListChangeLogs(
	ctx context.Context,
	params *changelog.FindParams,
) ([]*changelog.ChangeLog, int64, error) {
	if err := authorizeLogs(ctx, "view"); err != nil {
		return nil, 0, err
	}
	if params == nil {
		params = &changelog.FindParams{}
	}

	logs, err := s.changeRepo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.changeRepo.Count(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return logs, count, nil
}

func (s *AuditService) ListAuthenticationLogs(
	ctx context.Context,
	params *authlog.FindParams,
) ([]*authlog.AuthenticationLog, int64, error) {
	if err := authorizeLogs(ctx, "view"); err != nil {
		return nil, 0, err
	}
	if params == nil {
		params = &authlog.FindParams{}
	}

	logs, err := s.authRepo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.authRepo.Count(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return logs, count, nil
}

func (s *AuditService) CreateChangeLog(ctx context.Context, log *changelog.ChangeLog) error {
	if log == nil {
		return errors.New("change log payload is required")
	}
	return s.changeRepo.Create(ctx, log)
}

func (s *AuditService) CreateAuthenticationLog(ctx context.Context, log *authlog.AuthenticationLog) error {
	if log == nil {
		return errors.New("authentication log payload is required")
	}
	return s.authRepo.Create(ctx, log)
}
