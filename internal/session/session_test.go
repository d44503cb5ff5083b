package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dropDatabas3/schoolcore/internal/authz"
	"github.com/dropDatabas3/schoolcore/internal/cache"
	"github.com/dropDatabas3/schoolcore/internal/metrics"
)

func newTestManager(t *testing.T, timeouts map[authz.Role]time.Duration) (*Manager, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := NewManager(
		NewSigner("test-secret-0123456789", "schoolcore-test", time.Hour),
		NewActivityStore(cache.NewMemory("test")),
		NewPolicy(timeouts, 15*time.Minute),
	)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestPolicyTimeoutFor(t *testing.T) {
	p := NewPolicy(map[authz.Role]time.Duration{
		authz.RoleSystemAdmin: 15 * time.Minute,
		authz.RoleTeacher:     60 * time.Minute,
	}, 30*time.Minute)

	if got := p.TimeoutFor(authz.RoleTeacher); got != 60*time.Minute {
		t.Fatalf("TimeoutFor(TEACHER) = %v, want 60m", got)
	}
	// Rol fuera de la tabla cae al piso (el más restrictivo), no al default.
	if got := p.TimeoutFor(authz.Role("GHOST")); got != 15*time.Minute {
		t.Fatalf("TimeoutFor(GHOST) = %v, want floor 15m", got)
	}
}

func TestPolicyEmptyTableUsesDefault(t *testing.T) {
	p := NewPolicy(nil, 20*time.Minute)
	if got := p.TimeoutFor(authz.RoleTrustAdmin); got != 20*time.Minute {
		t.Fatalf("TimeoutFor con tabla vacía = %v, want 20m", got)
	}
}

func TestIssueAndTouch(t *testing.T) {
	m, now := newTestManager(t, map[authz.Role]time.Duration{
		authz.RoleTeacher: 30 * time.Minute,
	})
	ctx := context.Background()

	sess, token, err := m.Issue(ctx, "u-1", authz.KindTenant, authz.RoleTeacher, "greenfield")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if sess.TrustCode != "greenfield" || sess.Role != authz.RoleTeacher {
		t.Fatalf("sesión emitida con claims incorrectos: %+v", sess)
	}

	// Actividad dentro de la ventana: refresca.
	*now = now.Add(20 * time.Minute)
	got, err := m.Touch(ctx, token)
	if err != nil {
		t.Fatalf("Touch dentro de ventana: %v", err)
	}
	if !got.LastActivity.Equal(*now) {
		t.Fatalf("LastActivity = %v, want %v", got.LastActivity, *now)
	}

	// El refresh corrió la ventana: otros 25m siguen siendo válidos.
	*now = now.Add(25 * time.Minute)
	if _, err := m.Touch(ctx, token); err != nil {
		t.Fatalf("Touch tras refresh: %v", err)
	}
}

func TestTouchExpiresIdleSession(t *testing.T) {
	m, now := newTestManager(t, map[authz.Role]time.Duration{
		authz.RoleAccountant: 30 * time.Minute,
	})
	ctx := context.Background()

	_, token, err := m.Issue(ctx, "u-2", authz.KindTenant, authz.RoleAccountant, "hillside")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	*now = now.Add(31 * time.Minute)
	if _, err := m.Touch(ctx, token); !errors.Is(err, ErrExpired) {
		t.Fatalf("Touch pasada la ventana: err = %v, want ErrExpired", err)
	}

	// La expiración destruye el registro: el mismo token ya no autentica.
	if _, err := m.Touch(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Touch post expiración: err = %v, want ErrUnauthenticated", err)
	}
}

func TestUnknownRoleGetsFloorTimeout(t *testing.T) {
	m, now := newTestManager(t, map[authz.Role]time.Duration{
		authz.RoleSystemAdmin: 10 * time.Minute,
		authz.RoleTeacher:     60 * time.Minute,
	})
	ctx := context.Background()

	_, token, err := m.Issue(ctx, "u-3", authz.KindTenant, authz.Role("EXPERIMENTAL"), "hillside")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	*now = now.Add(11 * time.Minute)
	if _, err := m.Touch(ctx, token); !errors.Is(err, ErrExpired) {
		t.Fatalf("rol desconocido debería expirar con el piso (10m), err = %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	_, token, err := m.Issue(ctx, "u-4", authz.KindSystem, authz.RoleSystemAdmin, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.Touch(ctx, tampered); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("token adulterado: err = %v, want ErrUnauthenticated", err)
	}

	// Token firmado con otro secreto tampoco pasa.
	other := NewManager(
		NewSigner("otro-secreto-totalmente-distinto", "schoolcore-test", time.Hour),
		NewActivityStore(cache.NewMemory("test2")),
		NewPolicy(nil, 15*time.Minute),
	)
	_, foreign, err := other.Issue(ctx, "u-4", authz.KindSystem, authz.RoleSystemAdmin, "")
	if err != nil {
		t.Fatalf("Issue (otro signer): %v", err)
	}
	if _, err := m.Touch(ctx, foreign); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("token ajeno: err = %v, want ErrUnauthenticated", err)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	_, token, err := m.Issue(ctx, "u-5", authz.KindTenant, authz.RoleTrustAdmin, "greenfield")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := m.Destroy(ctx, token); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := m.Touch(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Touch post logout: err = %v, want ErrUnauthenticated", err)
	}
	// Doble logout y token basura: ambos no-op.
	if err := m.Destroy(ctx, token); err != nil {
		t.Fatalf("Destroy repetido: %v", err)
	}
	if err := m.Destroy(ctx, "garbage.token.value"); err != nil {
		t.Fatalf("Destroy con token inválido: %v", err)
	}
}

func TestRevokeDestroysAllSessionsOfPrincipal(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	_, tok1, err := m.Issue(ctx, "u-7", authz.KindTenant, authz.RoleTeacher, "greenfield")
	if err != nil {
		t.Fatalf("Issue 1: %v", err)
	}
	_, tok2, err := m.Issue(ctx, "u-7", authz.KindTenant, authz.RoleTeacher, "greenfield")
	if err != nil {
		t.Fatalf("Issue 2: %v", err)
	}
	_, other, err := m.Issue(ctx, "u-8", authz.KindTenant, authz.RoleTeacher, "greenfield")
	if err != nil {
		t.Fatalf("Issue (otro principal): %v", err)
	}

	if err := m.Revoke(ctx, "u-7"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := m.Touch(ctx, tok1); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("sesión 1 post revoke: err = %v", err)
	}
	if _, err := m.Touch(ctx, tok2); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("sesión 2 post revoke: err = %v", err)
	}
	if _, err := m.Touch(ctx, other); err != nil {
		t.Fatalf("la revocación no debe tocar otros principals: %v", err)
	}
}

func TestPeekDoesNotRefresh(t *testing.T) {
	m, now := newTestManager(t, map[authz.Role]time.Duration{
		authz.RoleTeacher: 30 * time.Minute,
	})
	ctx := context.Background()

	_, token, err := m.Issue(ctx, "u-6", authz.KindTenant, authz.RoleTeacher, "greenfield")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	*now = now.Add(20 * time.Minute)
	if _, err := m.Peek(ctx, token); err != nil {
		t.Fatalf("Peek: %v", err)
	}

	// Peek no refrescó: 11m más y la sesión venció respecto al Issue original.
	*now = now.Add(11 * time.Minute)
	if _, err := m.Touch(ctx, token); !errors.Is(err, ErrExpired) {
		t.Fatalf("Peek no debería contar como actividad, err = %v", err)
	}
}

func TestPeekDestroysExpiredSession(t *testing.T) {
	m, now := newTestManager(t, map[authz.Role]time.Duration{
		authz.RoleTeacher: 30 * time.Minute,
	})
	ctx := context.Background()

	_, token, err := m.Issue(ctx, "u-9", authz.KindTenant, authz.RoleTeacher, "greenfield")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	*now = now.Add(31 * time.Minute)
	if _, err := m.Peek(ctx, token); !errors.Is(err, ErrExpired) {
		t.Fatalf("Peek pasada la ventana: err = %v, want ErrExpired", err)
	}
	// La detección destruyó el registro, no solo lo ignoró.
	if _, err := m.Peek(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Peek post expiración: err = %v, want ErrUnauthenticated", err)
	}
}

func TestRevokeCountsRevokedSessions(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := m.Issue(ctx, "u-10", authz.KindTenant, authz.RoleTeacher, "greenfield"); err != nil {
			t.Fatalf("Issue: %v", err)
		}
	}

	before := testutil.ToFloat64(metrics.SessionsRevoked)
	if err := m.Revoke(ctx, "u-10"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if got := testutil.ToFloat64(metrics.SessionsRevoked) - before; got != 2 {
		t.Fatalf("sessions_revoked_total delta = %v, want 2", got)
	}
	// Revocar sin sesiones activas no mueve el contador.
	if err := m.Revoke(ctx, "u-10"); err != nil {
		t.Fatalf("Revoke repetido: %v", err)
	}
	if got := testutil.ToFloat64(metrics.SessionsRevoked) - before; got != 2 {
		t.Fatalf("revocación vacía movió el contador: delta = %v", got)
	}
}
