// Package authn verifica credenciales y aplica la política de lockout.
//
// Maneja dos clases estructurales de principal: operadores de sistema
// (globales, viven en el registry) y usuarios tenant (scoped a un trust,
// viven en el store del trust). Las dos clases comparten el mismo shape de
// credencial/lockout pero nunca se resuelven cruzadas.
package authn

import (
	"errors"
	"time"

	"github.com/dropDatabas3/schoolcore/internal/authz"
)

// Estados de un principal.
const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
)

var (
	// ErrInvalidCredentials cubre principal inexistente, password incorrecto
	// y cuenta deshabilitada: shape idéntico para no permitir enumeración.
	ErrInvalidCredentials = errors.New("authn: invalid credentials")

	// ErrAccountLocked: lockout vigente; gana sobre la credencial correcta.
	ErrAccountLocked = errors.New("authn: account locked")

	// ErrOriginMismatch: el kind declarado no corrobora con el origen del
	// request (login de sistema en subdominio tenant o viceversa).
	ErrOriginMismatch = errors.New("authn: origin mismatch")

	// ErrPrincipalExists: el identificador ya está tomado en ese scope.
	ErrPrincipalExists = errors.New("authn: principal already exists")

	// ErrPrincipalNotFound: lookup administrativo sin resultado.
	ErrPrincipalNotFound = errors.New("authn: principal not found")
)

// Principal es la fila de credencial de cualquiera de las dos clases.
// Hash nunca sale del paquete hacia respuestas HTTP.
type Principal struct {
	ID             string
	Identifier     string // username o email de login
	Hash           string // PHC argon2id
	Kind           authz.Kind
	Role           authz.Role
	TrustCode      string // vacío para principals de sistema
	Status         string
	FailedAttempts int
	LockedUntil    *time.Time
	LastLogin      *time.Time
	CreatedAt      time.Time
}

// Locked indica si el lockout sigue vigente a tiempo now.
func (p *Principal) Locked(now time.Time) bool {
	return p.LockedUntil != nil && now.Before(*p.LockedUntil)
}

// Active indica si la cuenta puede autenticar.
func (p *Principal) Active() bool { return p.Status == StatusActive }
