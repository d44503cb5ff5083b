package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("t")

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("key inexistente: quería ErrNotFound, hubo %v", err)
	}
	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("get: (%q, %v)", got, err)
	}
	ok, err := c.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("exists: (%v, %v)", ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("tras delete: quería ErrNotFound, hubo %v", err)
	}
}

func TestMemoryTTLExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("t")

	if err := c.Set(ctx, "ephemeral", "v", 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := c.Get(ctx, "ephemeral"); !IsNotFound(err) {
		t.Fatalf("entrada vencida aún visible: %v", err)
	}
}

func TestPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	a := NewMemory("a")
	b := NewMemory("b")

	if err := a.Set(ctx, "k", "from-a", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := b.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("clientes separados comparten estado: %v", err)
	}
}

func TestNewDefaultsToMemory(t *testing.T) {
	c, err := New(Config{Driver: "", Prefix: "x"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
