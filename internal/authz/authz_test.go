package authz

import (
	"errors"
	"testing"
)

func TestDefaultHierarchyMonotonicity(t *testing.T) {
	h := DefaultHierarchy()

	// Todo permiso de un subordinado está en su superior, cerrado
	// transitivamente.
	pairs := []struct{ sup, inf Role }{
		{RoleSystemAdmin, RoleSystemOperator},
		{RoleTrustAdmin, RoleSchoolAdmin},
		{RoleTrustAdmin, RoleTeacher},
		{RoleTrustAdmin, RoleAccountant},
		{RoleSchoolAdmin, RoleTeacher},
		{RoleSchoolAdmin, RoleAccountant},
	}
	for _, pc := range pairs {
		for p := range h.Permissions(pc.inf) {
			if _, ok := h.Permissions(pc.sup)[p]; !ok {
				t.Errorf("%s tiene %q pero su superior %s no", pc.inf, p, pc.sup)
			}
		}
	}
}

func TestBrokenHierarchyFailsValidation(t *testing.T) {
	// Un inferior con un permiso que el superior no tiene rompe la tabla.
	_, err := newHierarchy(map[Role]roleDef{
		RoleTeacher: {
			kind:  KindTenant,
			perms: []string{Perm("grades", "write")},
		},
		RoleSchoolAdmin: {
			kind:      KindTenant,
			inferiors: []Role{RoleTeacher},
			perms:     []string{Perm("users", "read")},
		},
	})
	if err == nil {
		t.Fatal("tabla no monótona aceptada")
	}
}

func TestHierarchyRejectsUndefinedReferences(t *testing.T) {
	_, err := newHierarchy(map[Role]roleDef{
		RoleSchoolAdmin: {
			kind:      KindTenant,
			inferiors: []Role{RoleTeacher}, // no definido
		},
	})
	if err == nil {
		t.Fatal("referencia a rol no definido aceptada")
	}
}

func TestPermissionsTotalForUnknownRole(t *testing.T) {
	h := DefaultHierarchy()
	if got := h.Permissions(Role("GHOST")); len(got) != 0 {
		t.Fatalf("rol desconocido con permisos: %v", got)
	}
	if h.HasPermission(Role("GHOST"), "trusts", "read") {
		t.Fatal("rol desconocido pasó HasPermission")
	}
	if h.CanCreate(Role("GHOST"), RoleTeacher) {
		t.Fatal("rol desconocido pasó CanCreate")
	}
}

func TestCanCreateMatrix(t *testing.T) {
	h := DefaultHierarchy()
	cases := []struct {
		actor, target Role
		want          bool
	}{
		{RoleSystemAdmin, RoleSystemOperator, true},
		{RoleSystemAdmin, RoleTrustAdmin, true},
		{RoleSystemOperator, RoleSystemOperator, false},
		{RoleTrustAdmin, RoleSchoolAdmin, true},
		{RoleSchoolAdmin, RoleTeacher, true},
		{RoleSchoolAdmin, RoleAccountant, true},
		{RoleSchoolAdmin, RoleSchoolAdmin, false},
		{RoleTeacher, RoleTeacher, false},
		{RoleAccountant, RoleTeacher, false},
	}
	for _, c := range cases {
		if got := h.CanCreate(c.actor, c.target); got != c.want {
			t.Errorf("CanCreate(%s, %s) = %v, quería %v", c.actor, c.target, got, c.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	h := DefaultHierarchy()
	if r, ok := h.ParseRole("  school_admin "); !ok || r != RoleSchoolAdmin {
		t.Fatalf("ParseRole normalizado falló: %q %v", r, ok)
	}
	if _, ok := h.ParseRole("PRINCIPAL"); ok {
		t.Fatal("rol inexistente aceptado")
	}
}

func TestEngineDenialCarriesContext(t *testing.T) {
	e := NewEngine(nil)

	err := e.RequirePermission("p-1", "/v1/admin/trusts", RoleSystemOperator, "trusts", "create")
	if err == nil {
		t.Fatal("SYSTEM_OPERATOR no debería crear trusts")
	}
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("denial no envuelve ErrDenied: %v", err)
	}
	var d *Denial
	if !errors.As(err, &d) {
		t.Fatalf("denial sin detalle: %v", err)
	}
	if d.PrincipalID != "p-1" || d.Required != "trusts:create" {
		t.Fatalf("detalle inesperado: %+v", d)
	}

	if err := e.RequirePermission("p-1", "/v1/admin/trusts", RoleSystemAdmin, "trusts", "create"); err != nil {
		t.Fatalf("SYSTEM_ADMIN denegado: %v", err)
	}
}

func TestEngineRequireRoles(t *testing.T) {
	e := NewEngine(nil)
	if err := e.RequireRoles("p-1", "/v1/admin", RoleSystemOperator, RoleSystemAdmin, RoleSystemOperator); err != nil {
		t.Fatalf("rol incluido denegado: %v", err)
	}
	if err := e.RequireRoles("p-2", "/v1/admin", RoleTeacher, RoleSystemAdmin, RoleSystemOperator); err == nil {
		t.Fatal("rol tenant aceptado en set de sistema")
	}
}
