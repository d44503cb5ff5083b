package middlewares

import (
	"context"

	"github.com/dropDatabas3/schoolcore/internal/registry"
	"github.com/dropDatabas3/schoolcore/internal/session"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxTrust
	ctxSession
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestID, rid)
}

// GetRequestID retorna el request id inyectado por WithRequestID ("" si no hay).
func GetRequestID(ctx context.Context) string {
	rid, _ := ctx.Value(ctxRequestID).(string)
	return rid
}

func withTrust(ctx context.Context, t *registry.Trust) context.Context {
	return context.WithValue(ctx, ctxTrust, t)
}

// GetTrust retorna el trust resuelto para el request. nil significa scope de
// sistema (request llegó por el dominio raíz).
func GetTrust(ctx context.Context) *registry.Trust {
	t, _ := ctx.Value(ctxTrust).(*registry.Trust)
	return t
}

func withSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, ctxSession, s)
}

// GetSession retorna la sesión autenticada del request.
func GetSession(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(ctxSession).(session.Session)
	return s, ok
}
