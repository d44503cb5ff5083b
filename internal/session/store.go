package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dropDatabas3/schoolcore/internal/cache"
)

const (
	sessionKeyPrefix = "sess:"
	principalPrefix  = "sess:by-principal:"

	// indexTTL acota la vida del índice principal → sesiones; coincide con la
	// vida absoluta máxima del token carrier.
	indexTTL = 24 * time.Hour
)

// ActivityStore persiste el registro server-side de cada sesión.
// El TTL de la key acompaña al idle timeout del rol: una sesión que nadie
// toca desaparece sola del backend aunque nunca pase por Touch.
type ActivityStore struct {
	c cache.Client
}

func NewActivityStore(c cache.Client) *ActivityStore {
	return &ActivityStore{c: c}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func principalKey(pid string) string { return principalPrefix + pid }

// Save persiste la sesión con el TTL dado.
func (s *ActivityStore) Save(ctx context.Context, sess Session, ttl time.Duration) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	return s.c.Set(ctx, sessionKey(sess.ID), string(b), ttl)
}

// Load recupera la sesión. Retorna ErrUnauthenticated si no hay registro:
// para el caller, una sesión sin registro server-side no existe.
func (s *ActivityStore) Load(ctx context.Context, id string) (Session, error) {
	raw, err := s.c.Get(ctx, sessionKey(id))
	if err != nil {
		if cache.IsNotFound(err) {
			return Session{}, ErrUnauthenticated
		}
		return Session{}, fmt.Errorf("session: load: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("session: unmarshal: %w", err)
	}
	return sess, nil
}

// Remove borra el registro. Idempotente: borrar lo ya borrado no es error.
func (s *ActivityStore) Remove(ctx context.Context, id string) error {
	if err := s.c.Delete(ctx, sessionKey(id)); err != nil && !cache.IsNotFound(err) {
		return fmt.Errorf("session: remove: %w", err)
	}
	return nil
}

// Index registra la sesión bajo su principal, para revocación administrativa.
// El índice tolera ids viejos: RemoveAllFor ignora sesiones ya desaparecidas.
func (s *ActivityStore) Index(ctx context.Context, sess Session) error {
	ids, err := s.loadIndex(ctx, sess.PrincipalID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == sess.ID {
			return nil
		}
	}
	ids = append(ids, sess.ID)
	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("session: marshal index: %w", err)
	}
	return s.c.Set(ctx, principalKey(sess.PrincipalID), string(b), indexTTL)
}

// RemoveAllFor destruye todas las sesiones registradas del principal y
// retorna cuántas destruyó (ids viejos del índice cuentan igual: ya no
// existían al momento de revocar).
func (s *ActivityStore) RemoveAllFor(ctx context.Context, principalID string) (int, error) {
	ids, err := s.loadIndex(ctx, principalID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if err := s.Remove(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	if err := s.c.Delete(ctx, principalKey(principalID)); err != nil && !cache.IsNotFound(err) {
		return removed, fmt.Errorf("session: remove index: %w", err)
	}
	return removed, nil
}

func (s *ActivityStore) loadIndex(ctx context.Context, principalID string) ([]string, error) {
	raw, err := s.c.Get(ctx, principalKey(principalID))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: load index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("session: unmarshal index: %w", err)
	}
	return ids, nil
}
