// Package authz define la jerarquía de roles y el engine de autorización.
//
// La jerarquía es una tabla declarativa única (rol → permisos, rol → roles
// creables) consultada por un solo engine; las rutas declaran intención
// ("requiere permiso X") en vez de re-derivar lógica sobre strings.
package authz

import (
	"fmt"
	"sort"
	"strings"
)

// Kind es la clase estructural del principal.
type Kind string

const (
	KindSystem Kind = "system"
	KindTenant Kind = "tenant"
)

// Role es un rol nominal de la jerarquía.
type Role string

const (
	// Roles globales (operadores del sistema).
	RoleSystemAdmin    Role = "SYSTEM_ADMIN"
	RoleSystemOperator Role = "SYSTEM_OPERATOR"

	// Roles tenant-scoped.
	RoleTrustAdmin  Role = "TRUST_ADMIN"
	RoleSchoolAdmin Role = "SCHOOL_ADMIN"
	RoleTeacher     Role = "TEACHER"
	RoleAccountant  Role = "ACCOUNTANT"
)

// Perm arma un permiso "resource:action".
func Perm(resource, action string) string {
	return resource + ":" + action
}

// roleDef es la fila declarativa de un rol.
type roleDef struct {
	kind Kind
	// inferiors: roles directamente subordinados (para el chequeo de
	// monotonicidad; la relación se cierra transitivamente en Validate).
	inferiors []Role
	perms     []string
	creatable []Role
}

// Hierarchy es la tabla rol → permisos / roles creables.
// Inmutable después de construcción; Validate corre en el constructor.
type Hierarchy struct {
	defs      map[Role]roleDef
	perms     map[Role]map[string]struct{}
	creatable map[Role]map[Role]struct{}
}

// DefaultHierarchy construye la jerarquía estándar del sistema.
// Panic si la tabla viola monotonicidad: es un error de programación, no de
// runtime, y debe frenar el arranque.
func DefaultHierarchy() *Hierarchy {
	h, err := newHierarchy(map[Role]roleDef{
		RoleTeacher: {
			kind: KindTenant,
			perms: []string{
				Perm("sections", "read"),
				Perm("students", "read"),
				Perm("attendance", "write"),
			},
		},
		RoleAccountant: {
			kind: KindTenant,
			perms: []string{
				Perm("students", "read"),
				Perm("fees", "manage"),
			},
		},
		RoleSchoolAdmin: {
			kind:      KindTenant,
			inferiors: []Role{RoleTeacher, RoleAccountant},
			perms: []string{
				Perm("sections", "read"),
				Perm("students", "read"),
				Perm("attendance", "write"),
				Perm("fees", "manage"),
				Perm("sections", "manage"),
				Perm("users", "read"),
				Perm("users", "create"),
			},
			creatable: []Role{RoleTeacher, RoleAccountant},
		},
		RoleTrustAdmin: {
			kind:      KindTenant,
			inferiors: []Role{RoleSchoolAdmin},
			perms: []string{
				Perm("sections", "read"),
				Perm("students", "read"),
				Perm("attendance", "write"),
				Perm("fees", "manage"),
				Perm("sections", "manage"),
				Perm("users", "read"),
				Perm("users", "create"),
				Perm("schools", "manage"),
				Perm("census", "submit"),
			},
			creatable: []Role{RoleSchoolAdmin, RoleTeacher, RoleAccountant},
		},
		RoleSystemOperator: {
			kind: KindSystem,
			perms: []string{
				Perm("trusts", "read"),
				Perm("users", "read"),
			},
		},
		RoleSystemAdmin: {
			kind:      KindSystem,
			inferiors: []Role{RoleSystemOperator},
			perms: []string{
				Perm("trusts", "read"),
				Perm("users", "read"),
				Perm("trusts", "create"),
				Perm("trusts", "suspend"),
				Perm("trusts", "activate"),
				Perm("stores", "drop"),
				Perm("operators", "create"),
				Perm("users", "create"),
			},
			creatable: []Role{
				RoleSystemAdmin, RoleSystemOperator,
				RoleTrustAdmin, RoleSchoolAdmin, RoleTeacher, RoleAccountant,
			},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("authz: jerarquía por defecto inválida: %v", err))
	}
	return h
}

func newHierarchy(defs map[Role]roleDef) (*Hierarchy, error) {
	h := &Hierarchy{
		defs:      defs,
		perms:     make(map[Role]map[string]struct{}, len(defs)),
		creatable: make(map[Role]map[Role]struct{}, len(defs)),
	}
	for role, def := range defs {
		ps := make(map[string]struct{}, len(def.perms))
		for _, p := range def.perms {
			ps[p] = struct{}{}
		}
		h.perms[role] = ps

		cs := make(map[Role]struct{}, len(def.creatable))
		for _, c := range def.creatable {
			cs[c] = struct{}{}
		}
		h.creatable[role] = cs
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate chequea las invariantes de la tabla:
//   - todo rol referenciado (inferior o creable) está definido;
//   - monotonicidad: permisos y creables de un inferior ⊆ los del superior,
//     cerrado transitivamente.
func (h *Hierarchy) Validate() error {
	for role, def := range h.defs {
		for _, inf := range def.inferiors {
			if _, ok := h.defs[inf]; !ok {
				return fmt.Errorf("rol %s: inferior %s no definido", role, inf)
			}
		}
		for _, c := range def.creatable {
			if _, ok := h.defs[c]; !ok {
				return fmt.Errorf("rol %s: creable %s no definido", role, c)
			}
		}
	}
	// Cierre transitivo de subordinación.
	for role := range h.defs {
		for _, inf := range h.transitiveInferiors(role) {
			for p := range h.perms[inf] {
				if _, ok := h.perms[role][p]; !ok {
					return fmt.Errorf("monotonicidad rota: %s tiene %q pero su superior %s no", inf, p, role)
				}
			}
			for c := range h.creatable[inf] {
				if _, ok := h.creatable[role][c]; !ok {
					return fmt.Errorf("monotonicidad rota: %s puede crear %s pero su superior %s no", inf, c, role)
				}
			}
		}
	}
	return nil
}

func (h *Hierarchy) transitiveInferiors(role Role) []Role {
	seen := map[Role]struct{}{}
	var walk func(r Role)
	walk = func(r Role) {
		for _, inf := range h.defs[r].inferiors {
			if _, ok := seen[inf]; ok {
				continue
			}
			seen[inf] = struct{}{}
			walk(inf)
		}
	}
	walk(role)
	out := make([]Role, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known indica si el rol existe en la tabla.
func (h *Hierarchy) Known(role Role) bool {
	_, ok := h.defs[role]
	return ok
}

// KindOf retorna la clase de principal del rol ("" si es desconocido).
func (h *Hierarchy) KindOf(role Role) Kind {
	return h.defs[role].kind
}

// Permissions retorna el set de permisos del rol. Total: un rol desconocido
// retorna el set vacío, nunca nil-panic ni un default permisivo.
func (h *Hierarchy) Permissions(role Role) map[string]struct{} {
	if ps, ok := h.perms[role]; ok {
		return ps
	}
	return map[string]struct{}{}
}

// HasPermission indica si el rol posee resource:action.
func (h *Hierarchy) HasPermission(role Role, resource, action string) bool {
	_, ok := h.perms[role][Perm(resource, action)]
	return ok
}

// CanCreate indica si actor puede provisionar principals con rol target.
func (h *Hierarchy) CanCreate(actor, target Role) bool {
	_, ok := h.creatable[actor][target]
	return ok
}

// Roles lista los roles definidos (orden estable).
func (h *Hierarchy) Roles() []Role {
	out := make([]Role, 0, len(h.defs))
	for r := range h.defs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseRole normaliza y valida un rol de entrada externa contra la tabla.
func (h *Hierarchy) ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, h.Known(r)
}
