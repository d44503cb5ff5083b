// Package http arma el edge del servicio: router, middlewares y server.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/schoolcore/internal/audit"
	"github.com/dropDatabas3/schoolcore/internal/authz"
	httperrors "github.com/dropDatabas3/schoolcore/internal/http/errors"
	"github.com/dropDatabas3/schoolcore/internal/http/handlers"
	mw "github.com/dropDatabas3/schoolcore/internal/http/middlewares"
	"github.com/dropDatabas3/schoolcore/internal/rate"
	"github.com/dropDatabas3/schoolcore/internal/registry"
	"github.com/dropDatabas3/schoolcore/internal/session"
)

// RouterDeps agrupa las dependencias del router. Todo se construye en el
// wiring del comando y entra por acá: nada se busca en estado global.
type RouterDeps struct {
	Resolver *registry.Resolver
	Sessions *session.Manager
	Engine   *authz.Engine
	Trail    *audit.Trail

	Auth   *handlers.AuthHandler
	Trusts *handlers.TrustHandler
	Users  *handlers.UserHandler
	Health *handlers.HealthHandler

	// LoginLimiter es opcional: nil desactiva el rate limit de login.
	LoginLimiter rate.Limiter

	CORSAllowedOrigins []string
}

// NewRouter arma el árbol de rutas completo.
//
// Orden del pipeline por request: request id → CORS → resolución de tenant
// (falla cerrado) → logging → [sesión → guards] → handler.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("método no permitido"))
	})

	r.Use(mw.WithRequestID())
	r.Use(mw.WithCORS(d.CORSAllowedOrigins))
	r.Use(mw.WithTenant(d.Resolver))
	r.Use(mw.WithLogging())

	// Infraestructura: sin tenant ni sesión.
	r.Get("/healthz", d.Health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Autenticación (pública; login rate-limited).
		r.Route("/auth", func(r chi.Router) {
			r.Method(http.MethodPost, "/login",
				mw.ChainFunc(d.Auth.Login, mw.WithLoginRateLimit(d.LoginLimiter)))
			r.Post("/logout", d.Auth.Logout)
			r.Get("/session", d.Auth.Session)
		})

		// Administración de sistema: solo dominio raíz, sesión de sistema.
		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireSystemScope())
			r.Use(mw.RequireSession(d.Sessions))
			r.Use(mw.RequireRoles(d.Engine, d.Trail,
				authz.RoleSystemAdmin, authz.RoleSystemOperator))

			r.Route("/trusts", func(r chi.Router) {
				r.With(mw.RequirePermission(d.Engine, d.Trail, "trusts", "read")).
					Get("/", d.Trusts.List)
				r.With(mw.RequirePermission(d.Engine, d.Trail, "trusts", "create")).
					Post("/", d.Trusts.Register)
				r.With(mw.RequirePermission(d.Engine, d.Trail, "trusts", "suspend")).
					Post("/{code}/suspend", d.Trusts.Suspend)
				r.With(mw.RequirePermission(d.Engine, d.Trail, "trusts", "activate")).
					Post("/{code}/activate", d.Trusts.Activate)
				r.With(mw.RequirePermission(d.Engine, d.Trail, "stores", "drop")).
					Delete("/{code}/store", d.Trusts.DropStore)
			})

			r.Route("/operators", func(r chi.Router) {
				r.With(mw.RequirePermission(d.Engine, d.Trail, "users", "read")).
					Get("/", d.Users.ListOperators)
				r.With(mw.RequirePermission(d.Engine, d.Trail, "operators", "create")).
					Post("/", d.Users.CreateOperator)
			})
		})

		// Usuarios tenant: requieren trust resuelto y sesión del mismo trust
		// (o de sistema).
		r.Route("/users", func(r chi.Router) {
			r.Use(mw.RequireTenant())
			r.Use(mw.RequireSession(d.Sessions))

			r.With(mw.RequirePermission(d.Engine, d.Trail, "users", "read")).
				Get("/", d.Users.ListUsers)
			r.With(mw.RequirePermission(d.Engine, d.Trail, "users", "create")).
				Post("/", d.Users.CreateUser)
		})
	})

	return r
}
