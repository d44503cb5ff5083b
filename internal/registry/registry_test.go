package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/schoolcore/internal/cache"
)

func seedTrust(t *testing.T, s Store, code string, status Status) *Trust {
	t.Helper()
	tr := &Trust{
		Code:         code,
		Subdomain:    code,
		Name:         "Trust " + code,
		ContactEmail: code + "@example.org",
		Status:       status,
		StoreName:    "trust_" + code,
	}
	if err := s.CreateTrust(context.Background(), tr); err != nil {
		t.Fatalf("seed %s: %v", code, err)
	}
	return tr
}

func TestValidateCode(t *testing.T) {
	valid := []string{"greenfield", "st_marys", "a1b"}
	for _, c := range valid {
		if err := ValidateCode(c); err != nil {
			t.Errorf("código válido rechazado %q: %v", c, err)
		}
	}
	invalid := []string{"", "ab", "1trust", "_lead", "Trust", "has-dash", "con espacios"}
	for _, c := range invalid {
		if err := ValidateCode(c); err == nil {
			t.Errorf("código inválido aceptado: %q", c)
		}
	}
}

func TestCreateTrustConflicts(t *testing.T) {
	s := NewMem()
	seedTrust(t, s, "alpha", StatusActive)

	// Mismo código.
	err := s.CreateTrust(context.Background(), &Trust{
		Code: "alpha", Subdomain: "otro", ContactEmail: "x@example.org",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("código duplicado: quería ErrConflict, hubo %v", err)
	}
	// Mismo subdominio.
	err = s.CreateTrust(context.Background(), &Trust{
		Code: "beta", Subdomain: "alpha", ContactEmail: "y@example.org",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("subdominio duplicado: quería ErrConflict, hubo %v", err)
	}
}

func TestDeleteTrustOnlyPending(t *testing.T) {
	s := NewMem()
	seedTrust(t, s, "pend", StatusPending)
	seedTrust(t, s, "live", StatusActive)

	if err := s.DeleteTrust(context.Background(), "pend"); err != nil {
		t.Fatalf("delete de PENDING falló: %v", err)
	}
	if err := s.DeleteTrust(context.Background(), "live"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete de ACTIVE: quería ErrNotFound, hubo %v", err)
	}
}

func TestSubdomainOf(t *testing.T) {
	r := NewResolver(NewMem(), nil, "schoolcore.in")
	cases := []struct{ host, want string }{
		{"greenfield.schoolcore.in", "greenfield"},
		{"Greenfield.Schoolcore.IN", "greenfield"},
		{"greenfield.schoolcore.in:8443", "greenfield"},
		{"schoolcore.in", ""},
		{"schoolcore.in:8080", ""},
		{"deep.greenfield.schoolcore.in", "greenfield"},
		{"evil.example.com", "evil.example.com"},
	}
	for _, c := range cases {
		if got := r.SubdomainOf(c.host); got != c.want {
			t.Errorf("SubdomainOf(%q) = %q, quería %q", c.host, got, c.want)
		}
	}
}

func TestResolveFailsClosed(t *testing.T) {
	ctx := context.Background()
	s := NewMem()
	seedTrust(t, s, "active", StatusActive)
	seedTrust(t, s, "frozen", StatusSuspended)
	seedTrust(t, s, "fresh", StatusPending)
	r := NewResolver(s, cache.NewMemory("test:"), "schoolcore.in")

	// Raíz: scope de sistema, sin error.
	tr, err := r.Resolve(ctx, "schoolcore.in", "")
	if err != nil || tr != nil {
		t.Fatalf("raíz: quería (nil, nil), hubo (%v, %v)", tr, err)
	}

	if tr, err = r.Resolve(ctx, "active.schoolcore.in", ""); err != nil || tr.Code != "active" {
		t.Fatalf("trust activo: (%v, %v)", tr, err)
	}
	if _, err = r.Resolve(ctx, "ghost.schoolcore.in", ""); !errors.Is(err, ErrUnknownTenant) {
		t.Fatalf("subdominio desconocido: quería ErrUnknownTenant, hubo %v", err)
	}
	if _, err = r.Resolve(ctx, "frozen.schoolcore.in", ""); !errors.Is(err, ErrInactiveTenant) {
		t.Fatalf("trust suspendido: quería ErrInactiveTenant, hubo %v", err)
	}
	if _, err = r.Resolve(ctx, "fresh.schoolcore.in", ""); !errors.Is(err, ErrInactiveTenant) {
		t.Fatalf("trust pendiente: quería ErrInactiveTenant, hubo %v", err)
	}
	// Host ajeno al deployment nunca cae a un tenant por defecto.
	if _, err = r.Resolve(ctx, "evil.example.com", ""); !errors.Is(err, ErrUnknownTenant) {
		t.Fatalf("host ajeno: quería ErrUnknownTenant, hubo %v", err)
	}
}

func TestResolveExplicitCodeWinsOverHost(t *testing.T) {
	ctx := context.Background()
	s := NewMem()
	seedTrust(t, s, "alpha", StatusActive)
	seedTrust(t, s, "beta", StatusActive)
	r := NewResolver(s, cache.NewMemory("test:"), "schoolcore.in")

	tr, err := r.Resolve(ctx, "alpha.schoolcore.in", "beta")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tr.Code != "beta" {
		t.Fatalf("código explícito ignorado: resolvió %q", tr.Code)
	}
}

func TestInvalidateRemovesCachedEntry(t *testing.T) {
	ctx := context.Background()
	s := NewMem()
	tr := seedTrust(t, s, "alpha", StatusActive)
	r := NewResolver(s, cache.NewMemory("test:"), "schoolcore.in")

	if _, err := r.Resolve(ctx, "alpha.schoolcore.in", ""); err != nil {
		t.Fatalf("primer resolve: %v", err)
	}

	// Suspensión + invalidación: el próximo resolve relee el store y ve el
	// estado nuevo en lugar del snapshot cacheado.
	if err := s.UpdateTrustStatus(ctx, "alpha", StatusSuspended, false); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	r.Invalidate(ctx, tr)

	if _, err := r.Resolve(ctx, "alpha.schoolcore.in", ""); !errors.Is(err, ErrInactiveTenant) {
		t.Fatalf("tras invalidación: quería ErrInactiveTenant, hubo %v", err)
	}
}
