package authn

import (
	"context"
	"time"
)

// CredentialStore es el puerto hacia las credenciales persistidas.
//
// Las mutaciones de lockout son atómicas por principal: dos logins fallidos
// concurrentes no pueden sub-contar, y un reset no puede pisar un lockout
// recién seteado (el adapter pg resuelve con UPDATE ... RETURNING, el de
// memoria con mutex).
type CredentialStore interface {
	// GetSystemPrincipal busca un operador global por identificador.
	// Retorna ErrPrincipalNotFound si no existe.
	GetSystemPrincipal(ctx context.Context, identifier string) (*Principal, error)

	// GetTenantPrincipal busca un usuario dentro del store del trust.
	// Un identificador válido en otro trust no es visible acá.
	GetTenantPrincipal(ctx context.Context, trustCode, identifier string) (*Principal, error)

	// CreateSystemPrincipal inserta un operador global.
	// Retorna ErrPrincipalExists si el identificador está tomado.
	CreateSystemPrincipal(ctx context.Context, p *Principal) error

	// CreateTenantPrincipal inserta un usuario en el store del trust.
	CreateTenantPrincipal(ctx context.Context, p *Principal) error

	// RecordFailure incrementa el contador de fallos del principal y, si
	// alcanza threshold, fija lockout hasta now+window. Retorna el conteo
	// resultante y el lockout vigente (nil si no se alcanzó el umbral).
	RecordFailure(ctx context.Context, p *Principal, threshold int, window time.Duration) (int, *time.Time, error)

	// RecordSuccess resetea el contador, limpia el lockout y estampa
	// last_login. Debe ser durable antes de emitir la sesión.
	RecordSuccess(ctx context.Context, p *Principal, at time.Time) error

	// ListTenantPrincipals lista los usuarios del trust (sin hashes a nivel
	// handler; acá viajan completos).
	ListTenantPrincipals(ctx context.Context, trustCode string) ([]Principal, error)

	// ListSystemPrincipals lista los operadores globales.
	ListSystemPrincipals(ctx context.Context) ([]Principal, error)
}
