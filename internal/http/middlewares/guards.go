package middlewares

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/schoolcore/internal/audit"
	"github.com/dropDatabas3/schoolcore/internal/authz"
	httperrors "github.com/dropDatabas3/schoolcore/internal/http/errors"
)

// =================================================================================
// AUTHORIZATION GUARDS
// =================================================================================
//
// Dos shapes componibles: pertenencia a un set de roles (protección gruesa)
// y permiso resource:action (gating fino). Las denegaciones se auditan con
// el contexto completo; el cliente solo recibe el mensaje genérico.

// RequireRoles exige que la sesión tenga uno de los roles indicados.
// Corre después de RequireSession.
func RequireRoles(engine *authz.Engine, trail *audit.Trail, anyOf ...authz.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := GetSession(r.Context())
			if !ok {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if err := engine.RequireRoles(sess.PrincipalID, r.URL.Path, sess.Role, anyOf...); err != nil {
				auditDenial(trail, err)
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission exige que el rol de la sesión posea resource:action.
func RequirePermission(engine *authz.Engine, trail *audit.Trail, resource, action string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := GetSession(r.Context())
			if !ok {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if err := engine.RequirePermission(sess.PrincipalID, r.URL.Path, sess.Role, resource, action); err != nil {
				auditDenial(trail, err)
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func auditDenial(trail *audit.Trail, err error) {
	if trail == nil {
		return
	}
	var d *authz.Denial
	if errors.As(err, &d) {
		trail.Denied(d.PrincipalID, string(d.Role), d.Required, d.Path)
	}
}
