package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/schoolcore/internal/audit"
	"github.com/dropDatabas3/schoolcore/internal/authn"
	"github.com/dropDatabas3/schoolcore/internal/authz"
	"github.com/dropDatabas3/schoolcore/internal/cache"
	"github.com/dropDatabas3/schoolcore/internal/config"
	httpx "github.com/dropDatabas3/schoolcore/internal/http"
	"github.com/dropDatabas3/schoolcore/internal/http/handlers"
	"github.com/dropDatabas3/schoolcore/internal/metrics"
	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
	"github.com/dropDatabas3/schoolcore/internal/rate"
	"github.com/dropDatabas3/schoolcore/internal/registry"
	"github.com/dropDatabas3/schoolcore/internal/security/password"
	"github.com/dropDatabas3/schoolcore/internal/session"
	"github.com/dropDatabas3/schoolcore/internal/tenantdb"
)

const tokenIssuer = "schoolcore"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servicio HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	initLogger(cfg)
	defer func() { _ = logger.Sync() }()
	log := logger.Named("serve")

	if err := metrics.Register(nil); err != nil {
		return err
	}

	// Cache compartido: sesiones + cache del resolver.
	cacheClient, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return err
	}
	defer func() { _ = cacheClient.Close() }()

	// Registry: trusts + credenciales de operadores.
	reg, err := registry.NewPG(ctx, cfg.Registry.DSN, registry.PGConfig{
		MaxOpenConns:    cfg.Registry.MaxOpenConns,
		MaxIdleConns:    cfg.Registry.MaxIdleConns,
		ConnMaxLifetime: config.MustDuration(cfg.Registry.ConnMaxLifetime),
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	resolver := registry.NewResolver(reg, cacheClient, cfg.Server.RootDomain)

	// Stores por trust.
	tenants, err := tenantdb.New(tenantdb.Config{
		BaseDSN: cfg.TenantStore.BaseDSN,
		Pool: tenantdb.PoolConfig{
			MaxOpenConns:    cfg.TenantStore.MaxOpenConns,
			MaxIdleConns:    cfg.TenantStore.MaxIdleConns,
			ConnMaxLifetime: config.MustDuration(cfg.TenantStore.ConnMaxLifetime),
			AcquireTimeout:  config.MustDuration(cfg.TenantStore.AcquireTimeout),
		},
		MigrationsDir: cfg.TenantStore.MigrationsDir,
		MetricsFunc:   metrics.RecordProvision,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tenants.Close() }()

	// El collector de pools lee stats en caliente en cada scrape.
	poolStats := func() (acquired, idle, total int32, ok bool) {
		st := reg.Pool().Stat()
		return st.AcquiredConns(), st.IdleConns(), st.TotalConns(), true
	}
	if err := metrics.RegisterCollector(nil, metrics.NewPoolCollector(tenants, poolStats)); err != nil {
		return err
	}

	// Sesiones: token firmado + registro de actividad en cache.
	secret := cfg.Auth.TokenSecret
	if secret == "" {
		secret = "dev-only-insecure-secret"
		log.Warn("auth.token_secret vacío: firmando con secreto de desarrollo")
	}
	signer := session.NewSigner(secret, tokenIssuer, 24*time.Hour)
	policy := session.NewPolicy(roleTimeouts(cfg), config.MustDuration(cfg.Session.DefaultTTL))
	sessions := session.NewManager(signer, session.NewActivityStore(cacheClient), policy)

	engine := authz.NewEngine(nil)
	trail := audit.New()

	svc := authn.NewService(authn.Config{
		Creds:    authn.NewPG(reg.Pool(), tenants),
		Sessions: sessions,
		Engine:   engine,
		Trail:    trail,
		Argon: password.Params{
			Memory:      uint32(cfg.Auth.Argon.MemoryKiB),
			Time:        uint32(cfg.Auth.Argon.Time),
			Parallelism: uint8(cfg.Auth.Argon.Parallelism),
			KeyLen:      32,
		},
		Lockout: authn.LockoutPolicy{
			Threshold: cfg.Auth.Lockout.Threshold,
			Window:    config.MustDuration(cfg.Auth.Lockout.Window),
		},
		Observe: metrics.ObserveLogin,
	})

	var loginLimiter rate.Limiter
	if cfg.Rate.Enabled {
		loginLimiter = newLoginLimiter(cfg)
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Resolver: resolver,
		Sessions: sessions,
		Engine:   engine,
		Trail:    trail,
		Auth:     &handlers.AuthHandler{Auth: svc, Sessions: sessions},
		Trusts: &handlers.TrustHandler{
			Registry: reg,
			Resolver: resolver,
			Tenants:  tenants,
			Trail:    trail,
		},
		Users: &handlers.UserHandler{Auth: svc},
		Health: &handlers.HealthHandler{Checks: []handlers.HealthCheck{
			{Name: "registry", Probe: reg.Ping},
			{Name: "cache", Probe: cacheClient.Ping},
		}},
		LoginLimiter:       loginLimiter,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := httpx.NewServer(cfg.Server.Addr, router)

	// Apagado ordenado: señal → drain con plazo.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// roleTimeouts convierte la tabla de timeouts del YAML a la del policy.
// Claves desconocidas frenan el arranque: un typo acá no puede degradar en
// silencio al timeout piso.
func roleTimeouts(cfg *config.Config) map[authz.Role]time.Duration {
	h := authz.DefaultHierarchy()
	out := make(map[authz.Role]time.Duration, len(cfg.Session.RoleTimeouts))
	for name, raw := range cfg.Session.RoleTimeouts {
		role, ok := h.ParseRole(name)
		if !ok {
			panic("config: session.role_timeouts con rol desconocido: " + name)
		}
		out[role] = config.MustDuration(raw)
	}
	return out
}

func newLoginLimiter(cfg *config.Config) rate.Limiter {
	limit := cfg.Rate.Login.Limit
	window := config.MustDuration(cfg.Rate.Login.Window)
	if cfg.Cache.Kind == "redis" {
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+"rate:", limit, window)
	}
	return rate.NewMemoryLimiter(limit, window)
}
