package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/schoolcore/internal/authn"
	"github.com/dropDatabas3/schoolcore/internal/config"
	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
	"github.com/dropDatabas3/schoolcore/internal/registry"
	"github.com/dropDatabas3/schoolcore/internal/security/password"
)

func newSeedCmd() *cobra.Command {
	var identifier, pass string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea el primer SYSTEM_ADMIN (idempotente)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if identifier == "" || pass == "" {
				return fmt.Errorf("faltan --identifier y/o --password (env SEED_ADMIN_IDENTIFIER / SEED_ADMIN_PASSWORD)")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			initLogger(cfg)
			defer func() { _ = logger.Sync() }()
			return runSeed(cmd.Context(), cfg, identifier, pass)
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier",
		envOr("SEED_ADMIN_IDENTIFIER", ""), "identificador del admin inicial")
	cmd.Flags().StringVar(&pass, "password",
		envOr("SEED_ADMIN_PASSWORD", ""), "password del admin inicial (mínimo 8 caracteres)")
	return cmd
}

func runSeed(ctx context.Context, cfg *config.Config, identifier, pass string) error {
	reg, err := registry.NewPG(ctx, cfg.Registry.DSN, registry.PGConfig{
		MaxOpenConns:    cfg.Registry.MaxOpenConns,
		MaxIdleConns:    cfg.Registry.MaxIdleConns,
		ConnMaxLifetime: config.MustDuration(cfg.Registry.ConnMaxLifetime),
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	// El seed solo toca credenciales de sistema: no necesita stores de tenant
	// ni sesiones, alcanza con el store de credenciales sobre el registry.
	svc := authn.NewService(authn.Config{
		Creds: authn.NewPG(reg.Pool(), nil),
		Argon: password.Params{
			Memory:      uint32(cfg.Auth.Argon.MemoryKiB),
			Time:        uint32(cfg.Auth.Argon.Time),
			Parallelism: uint8(cfg.Auth.Argon.Parallelism),
			KeyLen:      32,
		},
	})

	p, created, err := svc.EnsureSystemAdmin(ctx, identifier, pass)
	if err != nil {
		return err
	}
	if created {
		logger.L().Info("system admin creado",
			logger.PrincipalID(p.ID), logger.Identifier(p.Identifier))
	} else {
		logger.L().Info("system admin ya existía, sin cambios",
			logger.PrincipalID(p.ID), logger.Identifier(p.Identifier))
	}
	return nil
}
