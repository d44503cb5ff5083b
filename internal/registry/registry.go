// Package registry es la lista canónica de trusts (tenants).
//
// Cada trust tiene un código único, un subdominio y un store aislado cuyo
// nombre queda registrado acá. El registry nunca toca los stores por trust:
// resolución barata y sin side effects (eso es del tenantdb.Manager).
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status es el estado de ciclo de vida de un trust.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// Trust es una organización tenant (dueña de una o más escuelas).
type Trust struct {
	Code             string     `json:"code"`
	Subdomain        string     `json:"subdomain"`
	Name             string     `json:"name"`
	ContactEmail     string     `json:"contact_email"`
	Status           Status     `json:"status"`
	StoreName        string     `json:"store_name"`
	SetupCompletedAt *time.Time `json:"setup_completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Active indica si el trust puede atender requests.
// Un trust PENDING (registro a medias) no resuelve, igual que uno SUSPENDED.
func (t *Trust) Active() bool {
	return t != nil && t.Status == StatusActive
}

var (
	ErrNotFound       = errors.New("registry: trust not found")
	ErrConflict       = errors.New("registry: code, subdomain or contact email already registered")
	ErrUnknownTenant  = errors.New("registry: unknown tenant")
	ErrInactiveTenant = errors.New("registry: tenant is not active")
	ErrInvalidCode    = errors.New("registry: invalid trust code")
)

// Store es el puerto de persistencia del registry.
type Store interface {
	CreateTrust(ctx context.Context, t *Trust) error
	GetTrustByCode(ctx context.Context, code string) (*Trust, error)
	GetTrustBySubdomain(ctx context.Context, subdomain string) (*Trust, error)
	ListTrusts(ctx context.Context) ([]Trust, error)
	// UpdateTrustStatus cambia el estado; setupDone marca setup_completed_at.
	UpdateTrustStatus(ctx context.Context, code string, status Status, setupDone bool) error
	// DeleteTrust borra un registro PENDING cuyo provisioning falló.
	// Nunca se usa sobre trusts ACTIVE/SUSPENDED (esos solo se suspenden).
	DeleteTrust(ctx context.Context, code string) error
}

var codeRe = regexp.MustCompile(`^[a-z][a-z0-9_]{2,29}$`)

// NormalizeCode baja a minúsculas y recorta el código de trust.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// ValidateCode valida el código normalizado.
// El código nombra la database del trust, así que el charset es estricto.
func ValidateCode(code string) error {
	if !codeRe.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return nil
}
