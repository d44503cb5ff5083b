package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/schoolcore/internal/audit"
	"github.com/dropDatabas3/schoolcore/internal/authn"
	"github.com/dropDatabas3/schoolcore/internal/authz"
	"github.com/dropDatabas3/schoolcore/internal/cache"
	"github.com/dropDatabas3/schoolcore/internal/http/handlers"
	"github.com/dropDatabas3/schoolcore/internal/rate"
	"github.com/dropDatabas3/schoolcore/internal/registry"
	"github.com/dropDatabas3/schoolcore/internal/security/password"
	"github.com/dropDatabas3/schoolcore/internal/session"
)

const rootDomain = "schoolcore.test"

type edgeFixture struct {
	handler  http.Handler
	registry *registry.MemStore
	svc      *authn.Service
	sessions *session.Manager
}

// newEdge arma el stack completo sobre stores en memoria: router real,
// middlewares reales, sin red ni Postgres.
func newEdge(t *testing.T, limiter rate.Limiter) *edgeFixture {
	t.Helper()

	reg := registry.NewMem()
	seedActiveTrust(t, reg, "greenfield")

	cacheClient := cache.NewMemory("edge")
	resolver := registry.NewResolver(reg, cacheClient, rootDomain)

	signer := session.NewSigner("edge-test-secret", "schoolcore", 24*time.Hour)
	policy := session.NewPolicy(map[authz.Role]time.Duration{
		authz.RoleSystemAdmin: 15 * time.Minute,
		authz.RoleTeacher:     60 * time.Minute,
	}, 15*time.Minute)
	sessions := session.NewManager(signer, session.NewActivityStore(cacheClient), policy)

	engine := authz.NewEngine(nil)
	trail := audit.New()
	svc := authn.NewService(authn.Config{
		Creds:    authn.NewMem(),
		Sessions: sessions,
		Engine:   engine,
		Trail:    trail,
		Argon:    password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32},
	})

	handler := NewRouter(RouterDeps{
		Resolver:     resolver,
		Sessions:     sessions,
		Engine:       engine,
		Trail:        trail,
		Auth:         &handlers.AuthHandler{Auth: svc, Sessions: sessions},
		Trusts:       &handlers.TrustHandler{Registry: reg, Resolver: resolver, Trail: trail},
		Users:        &handlers.UserHandler{Auth: svc},
		Health:       &handlers.HealthHandler{},
		LoginLimiter: limiter,
	})

	return &edgeFixture{handler: handler, registry: reg, svc: svc, sessions: sessions}
}

func seedActiveTrust(t *testing.T, s registry.Store, code string) {
	t.Helper()
	err := s.CreateTrust(context.Background(), &registry.Trust{
		Code:         code,
		Subdomain:    code,
		Name:         "Trust " + code,
		ContactEmail: code + "@example.org",
		Status:       registry.StatusActive,
		StoreName:    "trust_" + code,
	})
	if err != nil {
		t.Fatalf("seed trust: %v", err)
	}
}

func (f *edgeFixture) seedAdmin(t *testing.T, identifier, pwd string) {
	t.Helper()
	if _, _, err := f.svc.EnsureSystemAdmin(context.Background(), identifier, pwd); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func (f *edgeFixture) seedTeacher(t *testing.T, trustCode, identifier, pwd string) {
	t.Helper()
	actor := session.Session{
		ID: "seed", PrincipalID: "seed-admin",
		Kind: authz.KindSystem, Role: authz.RoleSystemAdmin,
	}
	_, err := f.svc.CreateTenantUser(context.Background(), actor, trustCode, authn.CreateUserInput{
		Identifier: identifier,
		Password:   pwd,
		Role:       authz.RoleTeacher,
	})
	if err != nil {
		t.Fatalf("seed teacher: %v", err)
	}
}

func (f *edgeFixture) do(t *testing.T, method, host, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, "http://"+host+path, &buf)
	req.Host = host
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *edgeFixture) login(t *testing.T, host, kind, identifier, pwd string) (token string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, host, "/v1/auth/login", "", map[string]string{
		"kind": kind, "identifier": identifier, "password": pwd,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s@%s: status %d, body %s", identifier, host, rec.Code, rec.Body)
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return res.Token
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body, err)
	}
	return body.Code
}

func TestLoginAndSessionFlow(t *testing.T) {
	f := newEdge(t, nil)
	f.seedAdmin(t, "root@schoolcore.test", "correct-horse-9")

	token := f.login(t, rootDomain, "system", "root@schoolcore.test", "correct-horse-9")

	rec := f.do(t, http.MethodGet, rootDomain, "/v1/auth/session", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session: %d %s", rec.Code, rec.Body)
	}
	var dto struct {
		Role string `json:"role"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Role != "SYSTEM_ADMIN" || dto.Kind != "system" {
		t.Fatalf("sesión inesperada: %+v", dto)
	}

	// Logout idempotente: primero 204 destruyendo, después 204 sin sesión.
	if rec = f.do(t, http.MethodPost, rootDomain, "/v1/auth/logout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rec.Code)
	}
	if rec = f.do(t, http.MethodPost, rootDomain, "/v1/auth/logout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout repetido: %d", rec.Code)
	}
	if rec = f.do(t, http.MethodGet, rootDomain, "/v1/auth/session", token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("sesión tras logout: %d", rec.Code)
	}
}

func TestLoginOriginMismatchViaTenantHost(t *testing.T) {
	f := newEdge(t, nil)
	f.seedAdmin(t, "root@schoolcore.test", "correct-horse-9")

	// Credencial de sistema entrando por un subdominio tenant.
	rec := f.do(t, http.MethodPost, "greenfield."+rootDomain, "/v1/auth/login", "", map[string]string{
		"kind": "system", "identifier": "root@schoolcore.test", "password": "correct-horse-9",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("quería 403, hubo %d: %s", rec.Code, rec.Body)
	}
	if got := errCode(t, rec); got != "ORIGIN_MISMATCH" {
		t.Fatalf("código: %q", got)
	}
}

func TestUnknownSubdomainFailsClosed(t *testing.T) {
	f := newEdge(t, nil)
	rec := f.do(t, http.MethodGet, "ghost."+rootDomain, "/v1/auth/session", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("quería 404, hubo %d: %s", rec.Code, rec.Body)
	}
	if got := errCode(t, rec); got != "UNKNOWN_TENANT" {
		t.Fatalf("código: %q", got)
	}
}

func TestAdminRoutesRejectTenantScope(t *testing.T) {
	f := newEdge(t, nil)
	f.seedAdmin(t, "root@schoolcore.test", "correct-horse-9")
	token := f.login(t, rootDomain, "system", "root@schoolcore.test", "correct-horse-9")

	// Por el dominio raíz: acceso OK.
	rec := f.do(t, http.MethodGet, rootDomain, "/v1/admin/trusts", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin por raíz: %d %s", rec.Code, rec.Body)
	}

	// La misma ruta por un subdominio tenant se corta antes de la sesión.
	rec = f.do(t, http.MethodGet, "greenfield."+rootDomain, "/v1/admin/trusts", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin por subdominio: quería 403, hubo %d", rec.Code)
	}
}

func TestTenantSessionConfinedToItsTrust(t *testing.T) {
	f := newEdge(t, nil)
	seedActiveTrust(t, f.registry, "hillside")
	f.seedTeacher(t, "greenfield", "teacher@greenfield.org", "blackboard-42")

	host := "greenfield." + rootDomain
	token := f.login(t, host, "tenant", "teacher@greenfield.org", "blackboard-42")

	// En su trust: la sesión entra (el rol TEACHER no lista usuarios, pero
	// pasa la autenticación y cae en la denegación de permiso, no en 401).
	rec := f.do(t, http.MethodGet, host, "/v1/users", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("users en su trust: quería 403 por permiso, hubo %d %s", rec.Code, rec.Body)
	}

	// En otro trust: rechazado por corroboración de scope.
	rec = f.do(t, http.MethodGet, "hillside."+rootDomain, "/v1/users", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("users en trust ajeno: quería 403, hubo %d", rec.Code)
	}

	// En el dominio raíz una sesión tenant tampoco sirve.
	rec = f.do(t, http.MethodGet, rootDomain, "/v1/admin/trusts", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin con sesión tenant: quería 403, hubo %d", rec.Code)
	}
}

func TestCreateTenantUserEndToEnd(t *testing.T) {
	f := newEdge(t, nil)
	f.seedAdmin(t, "root@schoolcore.test", "correct-horse-9")
	token := f.login(t, rootDomain, "system", "root@schoolcore.test", "correct-horse-9")

	host := "greenfield." + rootDomain
	rec := f.do(t, http.MethodPost, host, "/v1/users", token, map[string]string{
		"identifier": "new.teacher@greenfield.org",
		"password":   "blackboard-42",
		"role":       "TEACHER",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: %d %s", rec.Code, rec.Body)
	}

	// El usuario nuevo puede loguearse en su trust.
	f.login(t, host, "tenant", "new.teacher@greenfield.org", "blackboard-42")
}

func TestLoginRateLimit(t *testing.T) {
	f := newEdge(t, rate.NewMemoryLimiter(2, time.Minute))
	f.seedAdmin(t, "root@schoolcore.test", "correct-horse-9")

	body := map[string]string{"kind": "system", "identifier": "root@schoolcore.test", "password": "wrong"}
	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, rootDomain, "/v1/auth/login", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("intento %d: quería 401, hubo %d", i+1, rec.Code)
		}
	}
	rec := f.do(t, http.MethodPost, rootDomain, "/v1/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("tercer intento: quería 429, hubo %d %s", rec.Code, rec.Body)
	}
	if got := errCode(t, rec); got != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("código: %q", got)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("falta Retry-After")
	}
}

func TestHealthz(t *testing.T) {
	f := newEdge(t, nil)
	rec := f.do(t, http.MethodGet, rootDomain, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body)
	}
}
