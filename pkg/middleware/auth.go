package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/composables"
	"github.com/meridianhq/meridian-sdk/pkg/constants"
	"github.com/meridianhq/meridian-sdk/pkg/httpapi"
)

// Authorize resolves the bearer token to a user. Requests without valid
// credentials are rejected with a 401 envelope.
func Authorize() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app, ok := r.Context().Value(constants.AppKey).(application.Application)
			if !ok {
				_ = httpapi.Internal(w)
				return
			}

			token := bearerToken(r)
			if token == "" {
				_ = httpapi.Unauthorized(w, "missing credentials")
				return
			}

			u, err := app.Authenticator().AuthenticateToken(r.Context(), token)
			if err != nil {
				_ = httpapi.Unauthorized(w, "invalid credentials")
				return
			}

			ctx := composables.WithUser(r.Context(), u)
			if params, ok := composables.UseParams(ctx); ok {
				params.Authenticated = true
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProvideUser pins the effective tenant for the authenticated user.
// Elevated users may act on another tenant via the X-Tenant-ID header or
// tenant_id query parameter; everyone else stays on their own tenant.
func ProvideUser() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := composables.UseUser(r.Context())
			if err != nil {
				_ = httpapi.Unauthorized(w, "missing credentials")
				return
			}

			tenantID := u.TenantID()
			if u.Role().IsElevated() {
				if selected, ok := SelectedTenant(r); ok {
					tenantID = selected
				}
			}

			ctx := composables.WithTenantID(r.Context(), tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SelectedTenant reads the explicit tenant selection from the X-Tenant-ID
// header or the tenant_id query parameter. Whether the selection is honored
// is the caller's decision.
func SelectedTenant(r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-Tenant-ID")
	if raw == "" {
		raw = composables.GetLastQueryParam(r, "tenant_id")
	}
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
