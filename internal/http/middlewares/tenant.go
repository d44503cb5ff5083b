package middlewares

import (
	"errors"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/schoolcore/internal/http/errors"
	"github.com/dropDatabas3/schoolcore/internal/registry"
)

// TrustCodeHeader permite forzar el trust por código explícito (clientes
// API que no pasan por el subdominio). El código explícito gana sobre el
// host.
const TrustCodeHeader = "X-Trust-Code"

// WithTenant resuelve el trust del request (subdominio o código explícito)
// y lo inyecta en el contexto. Requests por el dominio raíz siguen con
// scope de sistema (trust nil). Falla cerrado: tenant desconocido o
// inactivo corta acá, antes de cualquier handler.
func WithTenant(resolver *registry.Resolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			explicit := strings.TrimSpace(r.Header.Get(TrustCodeHeader))
			if explicit == "" {
				explicit = strings.TrimSpace(r.URL.Query().Get("trust"))
			}

			trust, err := resolver.Resolve(r.Context(), r.Host, explicit)
			if err != nil {
				switch {
				case errors.Is(err, registry.ErrUnknownTenant), errors.Is(err, registry.ErrNotFound):
					httperrors.WriteError(w, httperrors.ErrUnknownTenant)
				case errors.Is(err, registry.ErrInactiveTenant):
					httperrors.WriteError(w, httperrors.ErrInactiveTenant)
				default:
					httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
				}
				return
			}

			if trust != nil {
				r = r.WithContext(withTrust(r.Context(), trust))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenant corta los requests que llegaron sin trust resuelto (rutas
// que solo tienen sentido dentro de un tenant).
func RequireTenant() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetTrust(r.Context()) == nil {
				httperrors.WriteError(w, httperrors.ErrUnknownTenant)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSystemScope corta los requests que llegaron por un subdominio
// tenant a rutas administrativas de sistema.
func RequireSystemScope() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetTrust(r.Context()) != nil {
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
