package authz

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDenied es el sentinel de toda denegación de autorización.
var ErrDenied = errors.New("authz: denied")

// Denial lleva lo necesario para auditar una denegación sin filtrar al
// cliente por qué se denegó (el mensaje externo es siempre genérico).
type Denial struct {
	PrincipalID string
	Role        Role
	Required    string // rol(es) o permiso requerido, legible para audit
	Path        string // ruta/operación intentada
}

func (d *Denial) Error() string {
	return fmt.Sprintf("%v: principal=%s role=%s required=%s path=%s",
		ErrDenied, d.PrincipalID, d.Role, d.Required, d.Path)
}

func (d *Denial) Unwrap() error { return ErrDenied }

// Engine evalúa autorizaciones contra una Hierarchy.
// Dos guards componibles: pertenencia a un set de roles (protección gruesa
// de rutas) y lookup resource:action (gating fino por feature).
type Engine struct {
	h *Hierarchy
}

func NewEngine(h *Hierarchy) *Engine {
	if h == nil {
		h = DefaultHierarchy()
	}
	return &Engine{h: h}
}

// Hierarchy expone la tabla subyacente (solo lectura).
func (e *Engine) Hierarchy() *Hierarchy { return e.h }

// RequireRoles exige que role sea uno de los indicados.
func (e *Engine) RequireRoles(principalID, path string, role Role, anyOf ...Role) error {
	for _, want := range anyOf {
		if role == want {
			return nil
		}
	}
	return &Denial{
		PrincipalID: principalID,
		Role:        role,
		Required:    "role in [" + joinRoles(anyOf) + "]",
		Path:        path,
	}
}

// RequirePermission exige que el rol posea resource:action.
func (e *Engine) RequirePermission(principalID, path string, role Role, resource, action string) error {
	if e.h.HasPermission(role, resource, action) {
		return nil
	}
	return &Denial{
		PrincipalID: principalID,
		Role:        role,
		Required:    Perm(resource, action),
		Path:        path,
	}
}

// RequireCanCreate es el chequeo de segundo orden para creación de usuarios:
// además del acceso a la ruta, el rol target tiene que estar en el set de
// creables del actor.
func (e *Engine) RequireCanCreate(principalID, path string, actor, target Role) error {
	if e.h.CanCreate(actor, target) {
		return nil
	}
	return &Denial{
		PrincipalID: principalID,
		Role:        actor,
		Required:    "can-create " + string(target),
		Path:        path,
	}
}

func joinRoles(roles []Role) string {
	ss := make([]string, len(roles))
	for i, r := range roles {
		ss[i] = string(r)
	}
	return strings.Join(ss, ", ")
}
