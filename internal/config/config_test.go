package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Server.Addr != ":8080" {
		t.Errorf("addr default: %q", c.Server.Addr)
	}
	if c.Auth.Lockout.Threshold != 5 || c.Auth.Lockout.Window != "15m" {
		t.Errorf("lockout default: %+v", c.Auth.Lockout)
	}
	if c.Session.RoleTimeouts["TEACHER"] != "60m" {
		t.Errorf("timeout TEACHER default: %q", c.Session.RoleTimeouts["TEACHER"])
	}
	if c.Session.RoleTimeouts["SYSTEM_ADMIN"] != "15m" {
		t.Errorf("timeout SYSTEM_ADMIN default: %q", c.Session.RoleTimeouts["SYSTEM_ADMIN"])
	}
	if c.Cache.Kind != "memory" {
		t.Errorf("cache default: %q", c.Cache.Kind)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults no validan: %v", err)
	}
}

func TestLoadYAMLWithDefaults(t *testing.T) {
	p := writeYAML(t, `
server:
  addr: ":9090"
  root_domain: schoolcore.in
registry:
  dsn: postgres://reg
auth:
  lockout:
    threshold: 3
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":9090" || c.Server.RootDomain != "schoolcore.in" {
		t.Errorf("server: %+v", c.Server)
	}
	if c.Auth.Lockout.Threshold != 3 {
		t.Errorf("threshold: %d", c.Auth.Lockout.Threshold)
	}
	// Lo no especificado cae a defaults.
	if c.Auth.Lockout.Window != "15m" || c.TenantStore.MigrationsDir != "migrations/tenant" {
		t.Errorf("defaults no aplicados: %+v", c)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("AUTH_LOCKOUT_THRESHOLD", "9")
	t.Setenv("SERVER_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	p := writeYAML(t, `
server:
  addr: ":9090"
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":7070" {
		t.Errorf("env no pisó el YAML: %q", c.Server.Addr)
	}
	if c.Auth.Lockout.Threshold != 9 {
		t.Errorf("threshold: %d", c.Auth.Lockout.Threshold)
	}
	if len(c.Server.CORSAllowedOrigins) != 2 || c.Server.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("CSV mal parseado: %v", c.Server.CORSAllowedOrigins)
	}
}

func TestValidateRejectsBadDurations(t *testing.T) {
	c := Default()
	c.Auth.Lockout.Window = "quince minutos"
	if err := c.Validate(); err == nil {
		t.Fatal("duración inválida aceptada")
	}

	c = Default()
	c.Session.RoleTimeouts["TEACHER"] = "1 hora"
	if err := c.Validate(); err == nil {
		t.Fatal("timeout de rol inválido aceptado")
	}
}

func TestValidateRequiresSecretInProd(t *testing.T) {
	c := Default()
	c.App.Env = "prod"
	c.Auth.TokenSecret = ""
	if err := c.Validate(); err == nil {
		t.Fatal("prod sin token_secret aceptado")
	}
	c.Auth.TokenSecret = "s3cret"
	if err := c.Validate(); err != nil {
		t.Fatalf("prod con secreto rechazado: %v", err)
	}
}

func TestMustDurationPanicsOnGarbage(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustDuration no entró en pánico")
		}
	}()
	MustDuration("not-a-duration")
}
