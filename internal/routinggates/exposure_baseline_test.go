package routinggates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	internalserver "github.com/meridianhq/meridian-sdk/internal/server"
	"github.com/meridianhq/meridian-sdk/modules"
	corepersistence "github.com/meridianhq/meridian-sdk/modules/core/infrastructure/persistence"
	"github.com/meridianhq/meridian-sdk/pkg/application"
	"github.com/meridianhq/meridian-sdk/pkg/configuration"
	"github.com/meridianhq/meridian-sdk/pkg/eventbus"
	"github.com/meridianhq/meridian-sdk/pkg/metrics"
	"github.com/meridianhq/meridian-sdk/pkg/middleware"
	"github.com/meridianhq/meridian-sdk/pkg/routing"
	pkgserver "github.com/meridianhq/meridian-sdk/pkg/server"
)

func TestExposureBaseline_Production_DoesNotRegisterDevOrTestRoutes(t *testing.T) {
	srv := buildServerHTTPServer(t)
	router := srv.Router()

	paths := collectRoutePaths(t, router)

	var offending []string
	for _, p := range paths {
		switch {
		case routing.HasPathPrefixOnBoundary(p, "/_dev"),
			routing.HasPathPrefixOnBoundary(p, "/playground"),
			routing.HasPathPrefixOnBoundary(p, "/__test__"):
			offending = append(offending, p)
		}
	}

	if len(offending) > 0 {
		sort.Strings(offending)
		t.Fatalf("production must not register dev or test routes:\n%s", strings.Join(offending, "\n"))
	}
}

func TestExposureBaseline_Production_HidesOpsRoutesWithoutCredentials(t *testing.T) {
	srv := buildServerHTTPServer(t)
	router := srv.Router()

	for _, path := range []string{"/health", "/debug/prometheus"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "http://example.com"+path, nil)
		router.ServeHTTP(rr, req)

		require.Equalf(t, http.StatusNotFound, rr.Code, "ops route %s must be hidden without credentials", path)
	}
}

func TestExposureBaseline_OpsGuard_Production_AllowsWithToken(t *testing.T) {
	conf := &configuration.Configuration{
		GoAppEnvironment: configuration.Production,
		OpsGuardEnabled:  true,
		RealIPHeader:     "X-Real-IP",
		OpsGuardToken:    "secret",
	}

	r := mux.NewRouter()
	r.Use(middleware.OpsGuard(conf, "server"))
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/health", nil)
	req.Header.Set("X-Ops-Token", "secret")
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestExposureBaseline_OpsGuard_DisabledOutsideProduction(t *testing.T) {
	conf := &configuration.Configuration{
		GoAppEnvironment: "development",
		OpsGuardEnabled:  true,
		RealIPHeader:     "X-Real-IP",
	}

	r := mux.NewRouter()
	r.Use(middleware.OpsGuard(conf, "server"))
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/health", nil)
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func collectRoutePaths(t *testing.T, router *mux.Router) []string {
	t.Helper()

	var paths []string
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		p := routePath(route)
		if strings.TrimSpace(p) != "" {
			paths = append(paths, p)
		}
		return nil
	})
	require.NoError(t, err)

	sort.Strings(paths)
	return paths
}

func routePath(route *mux.Route) string {
	if route == nil {
		return ""
	}
	if tmpl, err := route.GetPathTemplate(); err == nil {
		return tmpl
	}
	regexp, err := route.GetPathRegexp()
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(regexp, "^")
}

func buildServerHTTPServer(t *testing.T) *pkgserver.HTTPServer {
	t.Helper()

	conf := configuration.Use()
	logger := conf.Logger()

	pool := newLazyPool(t, conf.Database.Opts)

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Huber: application.NewHub(&application.HuberOptions{
			Pool:           pool,
			Logger:         logger,
			UserRepository: corepersistence.NewUserRepository(),
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		}),
	})

	require.NoError(t, modules.Load(app, modules.BuiltInModules...))

	app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))

	srv, err := internalserver.Default(&internalserver.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	require.NoError(t, err)

	return srv
}

func newLazyPool(t *testing.T, opts string) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Close()
	})
	return pool
}
