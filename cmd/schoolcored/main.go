// schoolcored es el binario del backend: serve corre el servicio HTTP,
// migrate aplica el schema del registry y seed crea el primer SYSTEM_ADMIN.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/schoolcore/internal/config"
	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
)

var cfgPath string

func main() {
	// .env es opcional: en deploy la config entra por env vars reales.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "schoolcored",
		Short:         "Backend multi-tenant de administración escolar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config",
		envOr("CONFIG_PATH", "config.yaml"),
		"ruta del archivo de configuración YAML (env CONFIG_PATH)")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadConfig carga el YAML indicado por --config; si el archivo no existe
// cae a defaults + env vars, que alcanzan para correr en dev.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			c := config.Default()
			if verr := c.Validate(); verr != nil {
				return nil, verr
			}
			return c, nil
		}
		return nil, err
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) {
	level := "info"
	if cfg.App.Env == "dev" || cfg.App.Env == "" {
		level = "debug"
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: level})
}
