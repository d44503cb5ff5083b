package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/schoolcore/internal/authz"
	httperrors "github.com/dropDatabas3/schoolcore/internal/http/errors"
	"github.com/dropDatabas3/schoolcore/internal/session"
)

// =================================================================================
// AUTHENTICATION MIDDLEWARE
// =================================================================================

// bearerToken extrae el token del header Authorization ("" si no hay).
func bearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}

// RequireSession valida el token de sesión, aplica el idle timeout del rol
// (Touch refresca la actividad) e inyecta la sesión en el contexto.
//
// También corrobora el scope: una sesión tenant solo sirve en el subdominio
// de su trust; en el dominio raíz o en otro trust se rechaza sin tocar nada
// más abajo.
func RequireSession(sessions *session.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}

			sess, err := sessions.Touch(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, session.ErrExpired):
					httperrors.WriteError(w, httperrors.ErrSessionExpired)
				case errors.Is(err, session.ErrUnauthenticated):
					httperrors.WriteError(w, httperrors.ErrUnauthorized)
				default:
					httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
				}
				return
			}

			trust := GetTrust(r.Context())
			if sess.Kind == authz.KindTenant {
				if trust == nil || trust.Code != sess.TrustCode {
					httperrors.WriteError(w, httperrors.ErrForbidden)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
		})
	}
}
