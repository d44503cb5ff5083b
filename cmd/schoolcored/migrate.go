package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/schoolcore/internal/config"
	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
	"github.com/dropDatabas3/schoolcore/internal/registry"
)

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el schema del registry (trusts + operadores)",
		Long: "Ejecuta los *_up.sql del directorio de migraciones contra la database\n" +
			"del registry. Los scripts son idempotentes (CREATE IF NOT EXISTS), así\n" +
			"que re-correr el comando es seguro.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			initLogger(cfg)
			defer func() { _ = logger.Sync() }()
			return runMigrate(cmd.Context(), cfg, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations/registry", "directorio con los scripts *_up.sql")
	return cmd
}

func runMigrate(ctx context.Context, cfg *config.Config, dir string) error {
	reg, err := registry.NewPG(ctx, cfg.Registry.DSN, registry.PGConfig{
		MaxOpenConns:    cfg.Registry.MaxOpenConns,
		MaxIdleConns:    cfg.Registry.MaxIdleConns,
		ConnMaxLifetime: config.MustDuration(cfg.Registry.ConnMaxLifetime),
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	applied, err := applyDir(ctx, reg.Pool(), dir)
	if err != nil {
		return err
	}
	logger.L().Info("migraciones del registry aplicadas",
		logger.String("dir", dir), logger.Count(applied))
	return nil
}

// applyDir ejecuta los *_up.sql del dir en orden lexicográfico, cada uno
// dentro de su propia transacción y bajo un advisory lock para que dos
// deploys concurrentes no se pisen.
func applyDir(ctx context.Context, pool *pgxpool.Pool, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	const lockKey = int64(7430911) // arbitrario, fijo para este comando
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockKey); err != nil {
		return 0, err
	}
	defer func() { _, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockKey) }()

	var applied int
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return applied, err
		}
		tx, err := conn.Begin(ctx)
		if err != nil {
			return applied, err
		}
		if _, err := tx.Exec(ctx, string(b)); err != nil {
			_ = tx.Rollback(ctx)
			return applied, fmt.Errorf("exec %s: %w", f, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
