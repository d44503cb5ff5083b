package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	base := time.Date(2026, 3, 10, 9, 0, 5, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ip:10.0.0.1")
		if err != nil || !res.Allowed {
			t.Fatalf("hit %d: allowed=%v err=%v", i+1, res.Allowed, err)
		}
	}

	res, err := l.Allow(ctx, "ip:10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Fatalf("el cuarto hit debe rechazarse")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v, debe ser positivo", res.RetryAfter)
	}

	// Otra key no comparte ventana.
	if res, _ := l.Allow(ctx, "ip:10.0.0.2"); !res.Allowed {
		t.Fatalf("keys distintas no comparten conteo")
	}

	// Ventana nueva: el conteo arranca de cero.
	now = base.Add(time.Minute)
	if res, _ := l.Allow(ctx, "ip:10.0.0.1"); !res.Allowed {
		t.Fatalf("la ventana nueva debe permitir de nuevo")
	}
}
