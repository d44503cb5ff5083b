package tenantdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
)

// Provision crea el store aislado de un trust: database con nombre derivado
// del código + schema baseline. Idempotente-safe: una segunda llamada para
// el mismo código falla con ErrAlreadyProvisioned sin tocar el store.
//
// Provisioning concurrente del mismo código serializa con singleflight en
// este proceso y pg_advisory_lock entre procesos: exactamente un store.
func (m *Manager) Provision(ctx context.Context, trustCode string) (*Handle, error) {
	name, err := StoreNameFor(trustCode)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err, _ := m.sf.Do("provision:"+name, func() (interface{}, error) {
		return nil, m.provisionOnce(ctx, trustCode, name)
	})
	_ = result

	if m.metricsFunc != nil {
		res := "applied"
		switch err {
		case nil:
		case ErrAlreadyProvisioned:
			res = "skipped"
		default:
			res = "failed"
		}
		m.metricsFunc(trustCode, res, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	logger.Named("tenantdb").Info("tenant store provisioned",
		logger.TrustCode(trustCode),
		logger.String("store", name),
		logger.DurationMs(time.Since(start).Milliseconds()),
	)
	return m.Connect(ctx, trustCode)
}

func (m *Manager) provisionOnce(ctx context.Context, trustCode, name string) error {
	admin, err := m.admin(ctx)
	if err != nil {
		return err
	}

	lockID := provisionLockID(name)
	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Lock de sesión: tomar una conexión dedicada para lock y unlock.
	conn, err := admin.Acquire(lockCtx)
	if err != nil {
		return fmt.Errorf("tenantdb: acquire admin conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(lockCtx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		return fmt.Errorf("tenantdb: provision lock %s: %w", trustCode, err)
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			logger.Named("tenantdb").Warn("release provision lock failed",
				logger.TrustCode(trustCode), logger.Err(err))
		}
	}()

	exists, err := m.storeExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyProvisioned
	}

	// CREATE DATABASE no corre dentro de una transacción.
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+quoteIdent(name)); err != nil {
		return fmt.Errorf("tenantdb: create database %s: %w", name, err)
	}

	if err := m.applyBaseline(ctx, name); err != nil {
		// Schema a medias: tirar la database para no dejar un store corrupto
		// detrás de un trust que el registro va a marcar fallido.
		if dropErr := m.dropDatabase(ctx, conn.Conn(), name); dropErr != nil {
			logger.Named("tenantdb").Error("rollback of half-provisioned store failed",
				logger.TrustCode(trustCode), logger.Err(dropErr))
		}
		return fmt.Errorf("tenantdb: apply baseline schema %s: %w", name, err)
	}
	return nil
}

// applyBaseline abre un pool efímero contra el store recién creado y corre
// las migraciones baseline.
func (m *Manager) applyBaseline(ctx context.Context, name string) error {
	h, err := m.openBaselineHandle(ctx, name)
	if err != nil {
		return err
	}
	defer h.close()

	applied, err := runMigrations(ctx, h.pool, m.migrationsDir)
	if err != nil {
		return err
	}
	logger.Named("tenantdb").Info("baseline migrations applied",
		logger.String("store", name), logger.Count(applied))
	return nil
}

func (m *Manager) openBaselineHandle(ctx context.Context, name string) (*Handle, error) {
	pcfg, err := pgxpool.ParseConfig(m.baseDSN)
	if err != nil {
		return nil, err
	}
	pcfg.ConnConfig.Database = name
	pcfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &Handle{storeName: name, pool: pool, acquireTimeout: m.poolCfg.AcquireTimeout}, nil
}

// Exists verifica contra el catálogo si el store del trust fue provisionado.
func (m *Manager) Exists(ctx context.Context, trustCode string) (bool, error) {
	name, err := StoreNameFor(trustCode)
	if err != nil {
		return false, err
	}
	return m.storeExists(ctx, name)
}

func (m *Manager) storeExists(ctx context.Context, name string) (bool, error) {
	admin, err := m.admin(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = admin.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	return exists, err
}

// Drop elimina el store de un trust. Administrativo e irreversible: las
// rutas nunca lo exponen a principals tenant-scoped.
func (m *Manager) Drop(ctx context.Context, trustCode string) error {
	name, err := StoreNameFor(trustCode)
	if err != nil {
		return err
	}

	exists, err := m.storeExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return ErrStoreNotFound
	}

	// Cerrar el pool cacheado antes de terminar backends ajenos.
	m.evict(name)

	admin, err := m.admin(ctx)
	if err != nil {
		return err
	}
	conn, err := admin.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return m.dropDatabase(ctx, conn.Conn(), name)
}

func (m *Manager) dropDatabase(ctx context.Context, conn *pgx.Conn, name string) error {
	// Terminar conexiones colgadas del store antes del DROP.
	if _, err := conn.Exec(ctx,
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()",
		name); err != nil {
		return err
	}
	_, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+quoteIdent(name))
	return err
}
