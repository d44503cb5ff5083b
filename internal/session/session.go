// Package session maneja las sesiones de principals autenticados.
//
// La sesión viaja como JWT firmado (principal/kind/role/trust, tamper-
// evident) pero la última actividad vive server-side: el idle timeout y la
// revocación se deciden siempre en el servidor, en cada request.
package session

import (
	"errors"
	"time"

	"github.com/dropDatabas3/schoolcore/internal/authz"
)

var (
	// ErrUnauthenticated: token ausente, inválido o sin registro server-side.
	ErrUnauthenticated = errors.New("session: unauthenticated")
	// ErrExpired: la sesión superó el idle timeout de su rol y fue destruida.
	ErrExpired = errors.New("session: expired")
)

// Session es un valor inmutable: Touch devuelve una sesión nueva en vez de
// mutar campos in place.
type Session struct {
	ID           string     `json:"id"`
	PrincipalID  string     `json:"principal_id"`
	Kind         authz.Kind `json:"kind"`
	Role         authz.Role `json:"role"`
	TrustCode    string     `json:"trust_code,omitempty"` // solo sesiones tenant
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
}

// withActivity retorna una copia con la actividad refrescada.
func (s Session) withActivity(t time.Time) Session {
	s.LastActivity = t
	return s
}

// IdleFor retorna cuánto lleva inactiva la sesión a tiempo now.
func (s Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}
