package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/meridianhq/meridian-sdk/modules/core/domain/aggregates/user"
	"github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
	"github.com/meridianhq/meridian-sdk/pkg/eventbus"
	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

var (
	ErrInvalidCredentials = serrors.NewError("INVALID_CREDENTIALS", "invalid email or password")
	ErrInvalidToken       = serrors.NewError("INVALID_TOKEN", "invalid API token")
)

// AuthService resolves bearer tokens to users and handles password logins.
// It is registered on the application as the token authenticator.
type AuthService struct {
	repo      user.Repository
	publisher eventbus.EventBus
}

func NewAuthService(repo user.Repository, publisher eventbus.EventBus) *AuthService {
	return &AuthService{
		repo:      repo,
		publisher: publisher,
	}
}

// AuthenticateToken resolves an API token to its user. Runs on every API
// request, before any tenant is pinned, so lookups go through the pool.
func (s *AuthService) AuthenticateToken(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	u, err := s.repo.GetByAPIToken(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return u, nil
}

// Login validates the email and password pair and stamps the login time.
// Both the unknown-email and bad-password paths return the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (user.User, error) {
	logger := configuration.Use().Logger()
	ip, _ := composables.UseIP(ctx)
	ua, _ := composables.UseUserAgent(ctx)

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			logger.WithField("email", email).Warn("login attempt for unknown email")
			s.publisher.Publish(&user.SignInFailedEvent{Email: user.CanonicalEmail(email), IP: ip, UserAgent: ua})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !u.CheckPassword(password) {
		logger.WithField("email", email).Warn("login attempt with invalid password")
		s.publisher.Publish(&user.SignInFailedEvent{TenantID: u.TenantID(), Email: u.Email(), IP: ip, UserAgent: ua})
		return nil, ErrInvalidCredentials
	}

	next := u.SetLastLogin(time.Now())
	if next.APIToken() == "" {
		next, err = next.RotateAPIToken()
		if err != nil {
			return nil, err
		}
	}

	// Login runs unauthenticated, so pin the user's home tenant before the
	// write; row level security needs it.
	tenantCtx := composables.WithTenantID(ctx, u.TenantID())
	loggedIn, err := composables.InTxResult(tenantCtx, func(txCtx context.Context) (user.User, error) {
		return s.repo.Update(txCtx, next)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(&user.SignedInEvent{Result: loggedIn, IP: ip, UserAgent: ua})
	return loggedIn, nil
}
