// Package tenantdb administra los data stores aislados por trust: una
// database Postgres por trust, creada en el registro y ruteada por código.
//
// Provisioning y conexión están separados a propósito: una falla aplicando
// el schema baseline (registro) se distingue de una falla de ruteo en
// régimen (pool agotado, trust desconocido).
package tenantdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
)

var (
	ErrStoreNotFound      = errors.New("tenantdb: store not found for trust")
	ErrAlreadyProvisioned = errors.New("tenantdb: store already provisioned")
	ErrPoolExhausted      = errors.New("tenantdb: connection pool exhausted")
)

// PoolConfig define parámetros del pool por trust.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AcquireTimeout acota la espera por una conexión del pool.
	// Vencido el plazo el caller recibe ErrPoolExhausted, nunca cola infinita.
	AcquireTimeout time.Duration
}

// ProvisionMetricsFunc reporta el resultado de un provisioning.
type ProvisionMetricsFunc func(trustCode, result string, duration time.Duration)

// Config personaliza la instancia del Manager.
type Config struct {
	// BaseDSN apunta al cluster donde viven los stores. La database del DSN
	// se usa como database administrativa para CREATE/DROP.
	BaseDSN       string
	Pool          PoolConfig
	MigrationsDir string
	MetricsFunc   ProvisionMetricsFunc // Opcional
}

// PoolStat es un snapshot del estado del pool de un trust.
type PoolStat struct {
	TrustCode string
	Acquired  int32
	Idle      int32
	Total     int32
}

// Manager administra pools por trust, evitando creaciones en paralelo
// mediante singleflight. El pool administrativo (adminPool) solo se usa para
// provision/exists/drop, nunca para datos de tenant.
type Manager struct {
	baseDSN       string
	poolCfg       PoolConfig
	migrationsDir string
	metricsFunc   ProvisionMetricsFunc

	adminOnce sync.Once
	adminPool *pgxpool.Pool
	adminErr  error

	mu     sync.RWMutex
	stores map[string]*Handle
	sf     singleflight.Group
}

// New crea un Manager con la configuración indicada.
func New(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.BaseDSN) == "" {
		return nil, errors.New("tenantdb: BaseDSN requerido")
	}
	pool := cfg.Pool
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 8
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 2
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}
	if pool.AcquireTimeout <= 0 {
		pool.AcquireTimeout = 5 * time.Second
	}
	dir := strings.TrimSpace(cfg.MigrationsDir)
	if dir == "" {
		dir = "migrations/tenant"
	}
	return &Manager{
		baseDSN:       cfg.BaseDSN,
		poolCfg:       pool,
		migrationsDir: dir,
		metricsFunc:   cfg.MetricsFunc,
		stores:        make(map[string]*Handle),
	}, nil
}

// admin devuelve (o crea) el pool administrativo.
func (m *Manager) admin(ctx context.Context) (*pgxpool.Pool, error) {
	m.adminOnce.Do(func() {
		pcfg, err := pgxpool.ParseConfig(m.baseDSN)
		if err != nil {
			m.adminErr = err
			return
		}
		pcfg.MaxConns = 2
		m.adminPool, m.adminErr = pgxpool.NewWithConfig(ctx, pcfg)
	})
	return m.adminPool, m.adminErr
}

// Connect devuelve un handle pooled y reusable al store ya provisionado del
// trust. Un trust frío paga una creación de pool, no una creación de schema.
func (m *Manager) Connect(ctx context.Context, trustCode string) (*Handle, error) {
	name, err := StoreNameFor(trustCode)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	if h, ok := m.stores[name]; ok {
		m.mu.RUnlock()
		return h, nil
	}
	m.mu.RUnlock()

	result, err, _ := m.sf.Do(name, func() (interface{}, error) {
		// Re-chequear bajo singleflight: otro caller pudo crearlo.
		m.mu.RLock()
		if h, ok := m.stores[name]; ok {
			m.mu.RUnlock()
			return h, nil
		}
		m.mu.RUnlock()

		h, err := m.openHandle(ctx, trustCode, name)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.stores[name] = h
		m.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Handle), nil
}

func (m *Manager) openHandle(ctx context.Context, trustCode, name string) (*Handle, error) {
	ok, err := m.storeExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStoreNotFound
	}

	pcfg, err := pgxpool.ParseConfig(m.baseDSN)
	if err != nil {
		return nil, err
	}
	pcfg.ConnConfig.Database = name
	pcfg.MaxConns = int32(m.poolCfg.MaxOpenConns)
	pcfg.MinConns = int32(m.poolCfg.MaxIdleConns)
	pcfg.MaxConnLifetime = m.poolCfg.ConnMaxLifetime
	pcfg.MaxConnIdleTime = m.poolCfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	logger.Named("tenantdb").Info("tenant pool ready",
		logger.TrustCode(trustCode),
		logger.Int("max_conns", m.poolCfg.MaxOpenConns),
	)
	return &Handle{
		trustCode:      trustCode,
		storeName:      name,
		pool:           pool,
		acquireTimeout: m.poolCfg.AcquireTimeout,
	}, nil
}

// PoolCount retorna el número de pools activos.
func (m *Manager) PoolCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stores)
}

// Stats devuelve un snapshot de los pools por trust.
func (m *Manager) Stats() map[string]PoolStat {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]PoolStat, len(m.stores))
	for name, h := range m.stores {
		if h == nil || h.pool == nil {
			continue
		}
		st := h.pool.Stat()
		out[name] = PoolStat{
			TrustCode: h.trustCode,
			Acquired:  st.AcquiredConns(),
			Idle:      st.IdleConns(),
			Total:     st.TotalConns(),
		}
	}
	return out
}

// evict cierra y remueve el pool cacheado de un store (tras Drop).
func (m *Manager) evict(name string) {
	m.mu.Lock()
	h, ok := m.stores[name]
	delete(m.stores, name)
	m.mu.Unlock()
	if ok && h != nil {
		h.close()
	}
}

// Close cierra todos los pools activos y el administrativo.
func (m *Manager) Close() error {
	m.mu.Lock()
	for name, h := range m.stores {
		if h != nil {
			h.close()
		}
		delete(m.stores, name)
	}
	m.mu.Unlock()

	if m.adminPool != nil {
		m.adminPool.Close()
	}
	return nil
}
