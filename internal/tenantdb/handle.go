package tenantdb

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handle es la vista que los módulos de dominio reciben del store de su
// trust. Nunca cruza trusts: cada Handle queda atado a una database.
type Handle struct {
	trustCode      string
	storeName      string
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// TrustCode retorna el código del trust dueño del store.
func (h *Handle) TrustCode() string { return h.trustCode }

// StoreName retorna el nombre de la database subyacente.
func (h *Handle) StoreName() string { return h.storeName }

// Acquire toma una conexión con espera acotada.
// Si el pool está saturado más allá del acquire timeout retorna
// ErrPoolExhausted (transitorio, reintentable), nunca encola sin límite.
func (h *Handle) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acqCtx, cancel := context.WithTimeout(ctx, h.acquireTimeout)
	defer cancel()

	conn, err := h.pool.Acquire(acqCtx)
	if err != nil {
		return nil, acquireErr(err, acqCtx, ctx)
	}
	return conn, nil
}

// acquireErr distingue saturación del pool (venció el plazo propio de
// Acquire) de una cancelación del request: solo la primera es transitoria.
func acquireErr(err error, acqCtx, parent context.Context) error {
	if errors.Is(acqCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return ErrPoolExhausted
	}
	return err
}

// Ping verifica el store con la misma espera acotada que Acquire.
func (h *Handle) Ping(ctx context.Context) error {
	conn, err := h.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return conn.Ping(ctx)
}

func (h *Handle) close() {
	if h != nil && h.pool != nil {
		h.pool.Close()
	}
}
