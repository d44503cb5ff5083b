package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
)

// PGStore implementa Store sobre la database de control (Postgres).
type PGStore struct{ pool *pgxpool.Pool }

// PGConfig afina el pool del registry.
type PGConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func NewPG(ctx context.Context, dsn string, cfg PGConfig) (*PGStore, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	// Mapear MaxIdleConns → MinConns (pgxpool)
	if cfg.MaxIdleConns > 0 {
		pcfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	// Non-blocking startup: ping best-effort, la app puede arrancar con la DB caída.
	if err := pool.Ping(ctx); err != nil {
		logger.Named("registry").Warn("pg startup ping failed", logger.Err(err))
	}
	return &PGStore{pool: pool}, nil
}

// Pool expone el pool interno (migraciones/métricas).
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PGStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// isUniqueViolation mapea el 23505 de Postgres.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const trustCols = `code, subdomain, name, contact_email, status, store_name, setup_completed_at, created_at`

func (s *PGStore) CreateTrust(ctx context.Context, t *Trust) error {
	const q = `
INSERT INTO trust (code, subdomain, name, contact_email, status, store_name)
VALUES ($1, $2, $3, LOWER($4), $5, $6)
RETURNING created_at`
	err := s.pool.QueryRow(ctx, q,
		t.Code, t.Subdomain, t.Name, t.ContactEmail, t.Status, t.StoreName,
	).Scan(&t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *PGStore) GetTrustByCode(ctx context.Context, code string) (*Trust, error) {
	return s.getTrust(ctx, `SELECT `+trustCols+` FROM trust WHERE code = $1`, NormalizeCode(code))
}

func (s *PGStore) GetTrustBySubdomain(ctx context.Context, subdomain string) (*Trust, error) {
	return s.getTrust(ctx, `SELECT `+trustCols+` FROM trust WHERE subdomain = $1`, strings.ToLower(strings.TrimSpace(subdomain)))
}

func (s *PGStore) getTrust(ctx context.Context, q, arg string) (*Trust, error) {
	var t Trust
	err := s.pool.QueryRow(ctx, q, arg).Scan(
		&t.Code, &t.Subdomain, &t.Name, &t.ContactEmail, &t.Status,
		&t.StoreName, &t.SetupCompletedAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *PGStore) ListTrusts(ctx context.Context) ([]Trust, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+trustCols+` FROM trust ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trust
	for rows.Next() {
		var t Trust
		if err := rows.Scan(
			&t.Code, &t.Subdomain, &t.Name, &t.ContactEmail, &t.Status,
			&t.StoreName, &t.SetupCompletedAt, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateTrustStatus(ctx context.Context, code string, status Status, setupDone bool) error {
	var tag pgconn.CommandTag
	var err error
	if setupDone {
		tag, err = s.pool.Exec(ctx,
			`UPDATE trust SET status = $2, setup_completed_at = NOW() WHERE code = $1`,
			NormalizeCode(code), status)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE trust SET status = $2 WHERE code = $1`,
			NormalizeCode(code), status)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteTrust(ctx context.Context, code string) error {
	// Solo registros a medias: el status PENDING en el WHERE es la red de
	// seguridad contra borrar un trust ya activo.
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trust WHERE code = $1 AND status = $2`,
		NormalizeCode(code), StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
