// Package audit emite el trail de eventos de seguridad.
//
// Los eventos van por el logger estructurado con un campo discriminador
// estable ("audit_event") para poder filtrarlos en el agregador sin parsear
// mensajes. Nunca incluyen la credencial cruda.
package audit

import (
	"go.uber.org/zap"

	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
)

// Eventos conocidos.
const (
	EventLoginSucceeded = "login_succeeded"
	EventLoginFailed    = "login_failed"
	EventLoginLocked    = "login_locked"
	EventOriginMismatch = "origin_mismatch"
	EventAuthzDenied    = "authz_denied"
	EventTrustCreated   = "trust_created"
	EventTrustSuspended = "trust_suspended"
	EventTrustActivated = "trust_activated"
	EventUserCreated    = "user_created"
	EventStoreDropped   = "store_dropped"
)

// Trail escribe eventos de auditoría.
type Trail struct {
	log *zap.Logger
}

func New() *Trail {
	return &Trail{log: logger.Named("audit")}
}

// Event registra un evento con campos adicionales.
func (t *Trail) Event(event string, fields ...zap.Field) {
	all := make([]zap.Field, 0, len(fields)+1)
	all = append(all, logger.String("audit_event", event))
	all = append(all, fields...)
	t.log.Info(event, all...)
}

// LoginSucceeded registra un login exitoso.
func (t *Trail) LoginSucceeded(kind, identifier, trustCode, principalID string) {
	t.Event(EventLoginSucceeded,
		logger.PrincipalKind(kind),
		logger.Identifier(identifier),
		logger.TrustCode(trustCode),
		logger.PrincipalID(principalID),
	)
}

// LoginFailed registra un intento fallido con el conteo acumulado.
// reason es la categoría interna (credencial, cuenta bloqueada, etc.); el
// cliente nunca la ve.
func (t *Trail) LoginFailed(kind, identifier, trustCode, reason string, attempts int) {
	t.Event(EventLoginFailed,
		logger.PrincipalKind(kind),
		logger.Identifier(identifier),
		logger.TrustCode(trustCode),
		logger.String("reason", reason),
		logger.Int("failed_attempts", attempts),
	)
}

// Lockout registra que un principal quedó bloqueado.
func (t *Trail) Lockout(kind, identifier, trustCode string) {
	t.Event(EventLoginLocked,
		logger.PrincipalKind(kind),
		logger.Identifier(identifier),
		logger.TrustCode(trustCode),
	)
}

// OriginMismatch registra un intento de login cross-scope.
func (t *Trail) OriginMismatch(kind, identifier, host string) {
	t.Event(EventOriginMismatch,
		logger.PrincipalKind(kind),
		logger.Identifier(identifier),
		logger.String("host", host),
	)
}

// Denied registra una denegación de autorización con el contexto completo
// (requerido vs. actual); el cliente solo recibe el mensaje genérico.
func (t *Trail) Denied(principalID, role, required, path string) {
	t.Event(EventAuthzDenied,
		logger.PrincipalID(principalID),
		logger.Role(role),
		logger.String("required", required),
		logger.Path(path),
	)
}
