package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/schoolcore/internal/authz"
	"github.com/dropDatabas3/schoolcore/internal/metrics"
	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
)

// Manager emite, refresca y destruye sesiones.
//
// Flujo por request autenticado: Verify del token → Load del registro →
// chequeo de idle contra la Policy → refresh de actividad. Una sesión vencida
// se destruye server-side en el mismo Touch que la detecta.
type Manager struct {
	signer *Signer
	store  *ActivityStore
	policy *Policy
	now    func() time.Time // inyectable en tests
}

func NewManager(signer *Signer, store *ActivityStore, policy *Policy) *Manager {
	return &Manager{
		signer: signer,
		store:  store,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue crea una sesión nueva para el principal y retorna la sesión junto
// con su token carrier.
func (m *Manager) Issue(ctx context.Context, principalID string, kind authz.Kind, role authz.Role, trustCode string) (Session, string, error) {
	now := m.now()
	sess := Session{
		ID:           uuid.NewString(),
		PrincipalID:  principalID,
		Kind:         kind,
		Role:         role,
		TrustCode:    trustCode,
		CreatedAt:    now,
		LastActivity: now,
	}
	ttl := m.policy.TimeoutFor(role)
	if err := m.store.Save(ctx, sess, ttl); err != nil {
		return Session{}, "", err
	}
	if err := m.store.Index(ctx, sess); err != nil {
		_ = m.store.Remove(ctx, sess.ID)
		return Session{}, "", err
	}
	token, err := m.signer.Sign(sess)
	if err != nil {
		// Sin token no hay sesión utilizable; no dejamos el registro huérfano.
		_ = m.store.Remove(ctx, sess.ID)
		return Session{}, "", err
	}
	logger.L().Debug("session issued",
		logger.SessionID(sess.ID),
		logger.PrincipalID(principalID),
		logger.Role(string(role)),
	)
	return sess, token, nil
}

// Touch valida el token, aplica el idle timeout del rol y refresca la
// actividad. Retorna la sesión refrescada.
//
//   - token inválido o sin registro → ErrUnauthenticated
//   - idle > timeout del rol        → destruye el registro y ErrExpired
func (m *Manager) Touch(ctx context.Context, token string) (Session, error) {
	ref, err := m.signer.Verify(token)
	if err != nil {
		return Session{}, err
	}
	sess, err := m.store.Load(ctx, ref.SessionID)
	if err != nil {
		return Session{}, err
	}
	if err := ref.matches(sess); err != nil {
		return Session{}, err
	}

	now := m.now()
	timeout := m.policy.TimeoutFor(sess.Role)
	if sess.IdleFor(now) > timeout {
		if rmErr := m.store.Remove(ctx, sess.ID); rmErr != nil {
			logger.L().Warn("expired session cleanup failed",
				logger.SessionID(sess.ID), logger.Err(rmErr))
		}
		return Session{}, ErrExpired
	}

	refreshed := sess.withActivity(now)
	if err := m.store.Save(ctx, refreshed, timeout); err != nil {
		return Session{}, err
	}
	return refreshed, nil
}

// Peek valida token y registro sin refrescar la actividad (consultas de
// estado de sesión que no deben contar como actividad). Una sesión vencida
// se destruye server-side igual que en Touch.
func (m *Manager) Peek(ctx context.Context, token string) (Session, error) {
	ref, err := m.signer.Verify(token)
	if err != nil {
		return Session{}, err
	}
	sess, err := m.store.Load(ctx, ref.SessionID)
	if err != nil {
		return Session{}, err
	}
	if err := ref.matches(sess); err != nil {
		return Session{}, err
	}
	if sess.IdleFor(m.now()) > m.policy.TimeoutFor(sess.Role) {
		if rmErr := m.store.Remove(ctx, sess.ID); rmErr != nil {
			logger.L().Warn("expired session cleanup failed",
				logger.SessionID(sess.ID), logger.Err(rmErr))
		}
		return Session{}, ErrExpired
	}
	return sess, nil
}

// Destroy invalida la sesión del token. Idempotente: un token ya destruido o
// inválido no es error (logout repetido, carreras de doble click).
func (m *Manager) Destroy(ctx context.Context, token string) error {
	ref, err := m.signer.Verify(token)
	if err != nil {
		return nil
	}
	return m.store.Remove(ctx, ref.SessionID)
}

// Revoke destruye todas las sesiones activas de un principal. Operación
// administrativa (suspensión de cuenta, cambio de rol).
func (m *Manager) Revoke(ctx context.Context, principalID string) error {
	n, err := m.store.RemoveAllFor(ctx, principalID)
	if err != nil {
		return err
	}
	metrics.SessionsRevoked.Add(float64(n))
	logger.L().Info("sessions revoked", logger.PrincipalID(principalID))
	return nil
}

// Policy expone la política activa (solo lectura).
func (m *Manager) Policy() *Policy { return m.policy }
