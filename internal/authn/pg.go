package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/schoolcore/internal/authz"
	"github.com/dropDatabas3/schoolcore/internal/tenantdb"
)

// PGStore implementa CredentialStore sobre Postgres: los operadores globales
// viven en la tabla system_operator del registry; los usuarios tenant en la
// tabla tenant_user del store de su trust, alcanzada vía el Manager.
type PGStore struct {
	registry *pgxpool.Pool
	tenants  *tenantdb.Manager
}

func NewPG(registryPool *pgxpool.Pool, tenants *tenantdb.Manager) *PGStore {
	return &PGStore{registry: registryPool, tenants: tenants}
}

const principalCols = `id, identifier, password_hash, role, status,
	failed_attempts, locked_until, last_login, created_at`

// querier cubre tanto el pool como una conexión adquirida; los paths tenant
// siempre corren sobre una conexión tomada con espera acotada.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// withTenant corre fn sobre una conexión del store del trust. La conexión se
// toma vía Handle.Acquire: saturación del pool sale como ErrPoolExhausted,
// nunca como una cola sin límite sobre el pool crudo.
func (s *PGStore) withTenant(ctx context.Context, trustCode string, fn func(q querier) error) error {
	h, err := s.tenants.Connect(ctx, trustCode)
	if err != nil {
		return err
	}
	conn, err := h.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

// withStore rutea al store correcto según la clase del principal.
func (s *PGStore) withStore(ctx context.Context, p *Principal, fn func(q querier, table string) error) error {
	if p.Kind == authz.KindSystem {
		return fn(s.registry, "system_operator")
	}
	return s.withTenant(ctx, p.TrustCode, func(q querier) error {
		return fn(q, "tenant_user")
	})
}

func (s *PGStore) GetSystemPrincipal(ctx context.Context, identifier string) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM system_operator WHERE identifier = $1`, principalCols)
	return scanPrincipal(s.registry.QueryRow(ctx, q, identifier), authz.KindSystem, "")
}

func (s *PGStore) GetTenantPrincipal(ctx context.Context, trustCode, identifier string) (*Principal, error) {
	var p *Principal
	err := s.withTenant(ctx, trustCode, func(q querier) error {
		query := fmt.Sprintf(`SELECT %s FROM tenant_user WHERE identifier = $1`, principalCols)
		var serr error
		p, serr = scanPrincipal(q.QueryRow(ctx, query, identifier), authz.KindTenant, trustCode)
		return serr
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PGStore) CreateSystemPrincipal(ctx context.Context, p *Principal) error {
	return insertPrincipal(ctx, s.registry, "system_operator", p)
}

func (s *PGStore) CreateTenantPrincipal(ctx context.Context, p *Principal) error {
	return s.withTenant(ctx, p.TrustCode, func(q querier) error {
		return insertPrincipal(ctx, q, "tenant_user", p)
	})
}

// RecordFailure incrementa y eventualmente bloquea en un solo UPDATE: el
// CASE evalúa sobre el valor ya incrementado, así dos fallos concurrentes no
// sub-cuentan ni dejan el lockout sin fijar.
func (s *PGStore) RecordFailure(ctx context.Context, p *Principal, threshold int, window time.Duration) (int, *time.Time, error) {
	var attempts int
	var lockedUntil *time.Time
	err := s.withStore(ctx, p, func(q querier, table string) error {
		query := fmt.Sprintf(`
			UPDATE %s
			SET failed_attempts = failed_attempts + 1,
			    locked_until = CASE
			        WHEN failed_attempts + 1 >= $2 THEN NOW() + make_interval(secs => $3)
			        ELSE locked_until
			    END
			WHERE id = $1
			RETURNING failed_attempts, locked_until`, table)
		if err := q.QueryRow(ctx, query, p.ID, threshold, window.Seconds()).Scan(&attempts, &lockedUntil); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPrincipalNotFound
			}
			return fmt.Errorf("authn: record failure: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return attempts, lockedUntil, nil
}

func (s *PGStore) RecordSuccess(ctx context.Context, p *Principal, at time.Time) error {
	return s.withStore(ctx, p, func(q querier, table string) error {
		query := fmt.Sprintf(`
			UPDATE %s
			SET failed_attempts = 0, locked_until = NULL, last_login = $2
			WHERE id = $1`, table)
		tag, err := q.Exec(ctx, query, p.ID, at)
		if err != nil {
			return fmt.Errorf("authn: record success: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPrincipalNotFound
		}
		return nil
	})
}

func (s *PGStore) ListTenantPrincipals(ctx context.Context, trustCode string) ([]Principal, error) {
	var out []Principal
	err := s.withTenant(ctx, trustCode, func(q querier) error {
		query := fmt.Sprintf(`SELECT %s FROM tenant_user ORDER BY created_at`, principalCols)
		var serr error
		out, serr = listPrincipals(ctx, q, query, authz.KindTenant, trustCode)
		return serr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) ListSystemPrincipals(ctx context.Context) ([]Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM system_operator ORDER BY created_at`, principalCols)
	return listPrincipals(ctx, s.registry, q, authz.KindSystem, "")
}

func insertPrincipal(ctx context.Context, q querier, table string, p *Principal) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, identifier, password_hash, role, status, failed_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)`, table)
	_, err := q.Exec(ctx, query, p.ID, p.Identifier, p.Hash, string(p.Role), p.Status, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPrincipalExists
		}
		return fmt.Errorf("authn: insert principal: %w", err)
	}
	return nil
}

func listPrincipals(ctx context.Context, q querier, query string, kind authz.Kind, trustCode string) ([]Principal, error) {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("authn: list principals: %w", err)
	}
	defer rows.Close()

	var out []Principal
	for rows.Next() {
		p, err := scanPrincipalRow(rows, kind, trustCode)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row pgx.Row, kind authz.Kind, trustCode string) (*Principal, error) {
	p, err := scanPrincipalRow(row, kind, trustCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanPrincipalRow(row rowScanner, kind authz.Kind, trustCode string) (*Principal, error) {
	var p Principal
	var role string
	if err := row.Scan(
		&p.ID, &p.Identifier, &p.Hash, &role, &p.Status,
		&p.FailedAttempts, &p.LockedUntil, &p.LastLogin, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Kind = kind
	p.Role = authz.Role(role)
	p.TrustCode = trustCode
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
