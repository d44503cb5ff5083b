package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// RootDomain es el dominio raíz del deployment (ej: "schoolcore.in").
		// Requests a <sub>.<root_domain> se resuelven al trust del subdominio;
		// requests al dominio raíz quedan en scope de sistema.
		RootDomain         string   `yaml:"root_domain"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	// Registry: base de datos de control (trusts + credenciales).
	Registry struct {
		DSN             string `yaml:"dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"registry"`

	// TenantStore: manejo de stores aislados por trust.
	TenantStore struct {
		// BaseDSN apunta al cluster Postgres donde viven los stores por trust.
		// El nombre de database se deriva del código del trust.
		BaseDSN         string `yaml:"base_dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		AcquireTimeout  string `yaml:"acquire_timeout"`
		MigrationsDir   string `yaml:"migrations_dir"`
	} `yaml:"tenant_store"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Auth struct {
		// TokenSecret firma los tokens de sesión (HS256). Obligatorio en prod.
		TokenSecret string `yaml:"token_secret"`
		Lockout     struct {
			Threshold int    `yaml:"threshold"`
			Window    string `yaml:"window"`
		} `yaml:"lockout"`
		Argon struct {
			MemoryKiB   int `yaml:"memory_kib"`
			Time        int `yaml:"time"`
			Parallelism int `yaml:"parallelism"`
		} `yaml:"argon"`
	} `yaml:"auth"`

	Session struct {
		// Timeouts de inactividad por rol. Rol desconocido cae al más
		// restrictivo de la tabla, nunca al más laxo.
		RoleTimeouts map[string]string `yaml:"role_timeouts"`
		DefaultTTL   string            `yaml:"default_ttl"`
	} `yaml:"session"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default retorna una configuración con defaults sanos (sin YAML).
// Usada por comandos que no requieren archivo de config y por tests.
func Default() *Config {
	var c Config
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RootDomain == "" {
		c.Server.RootDomain = "localhost"
	}
	if c.Registry.MaxOpenConns <= 0 {
		c.Registry.MaxOpenConns = 10
	}
	if c.Registry.MaxIdleConns <= 0 {
		c.Registry.MaxIdleConns = 2
	}
	if c.Registry.ConnMaxLifetime == "" {
		c.Registry.ConnMaxLifetime = "30m"
	}
	if c.TenantStore.MaxOpenConns <= 0 {
		c.TenantStore.MaxOpenConns = 8
	}
	if c.TenantStore.MaxIdleConns <= 0 {
		c.TenantStore.MaxIdleConns = 2
	}
	if c.TenantStore.ConnMaxLifetime == "" {
		c.TenantStore.ConnMaxLifetime = "30m"
	}
	if c.TenantStore.AcquireTimeout == "" {
		c.TenantStore.AcquireTimeout = "5s"
	}
	if c.TenantStore.MigrationsDir == "" {
		c.TenantStore.MigrationsDir = "migrations/tenant"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Auth.Lockout.Threshold <= 0 {
		c.Auth.Lockout.Threshold = 5
	}
	if c.Auth.Lockout.Window == "" {
		c.Auth.Lockout.Window = "15m"
	}
	if c.Auth.Argon.MemoryKiB <= 0 {
		c.Auth.Argon.MemoryKiB = 64 * 1024
	}
	if c.Auth.Argon.Time <= 0 {
		c.Auth.Argon.Time = 3
	}
	if c.Auth.Argon.Parallelism <= 0 {
		c.Auth.Argon.Parallelism = 1
	}
	if c.Session.DefaultTTL == "" {
		c.Session.DefaultTTL = "15m"
	}
	if len(c.Session.RoleTimeouts) == 0 {
		// Admins con ventanas cortas; roles de aula más largas.
		c.Session.RoleTimeouts = map[string]string{
			"SYSTEM_ADMIN":    "15m",
			"SYSTEM_OPERATOR": "15m",
			"TRUST_ADMIN":     "30m",
			"SCHOOL_ADMIN":    "30m",
			"ACCOUNTANT":      "30m",
			"TEACHER":         "60m",
		}
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_ROOT_DOMAIN"); ok {
		c.Server.RootDomain = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("REGISTRY_DSN"); ok {
		c.Registry.DSN = v
	}
	if v, ok := getEnvInt("REGISTRY_MAX_OPEN_CONNS"); ok {
		c.Registry.MaxOpenConns = v
	}
	if v, ok := getEnvStr("TENANT_STORE_BASE_DSN"); ok {
		c.TenantStore.BaseDSN = v
	}
	if v, ok := getEnvInt("TENANT_STORE_MAX_OPEN_CONNS"); ok {
		c.TenantStore.MaxOpenConns = v
	}
	if v, ok := getEnvStr("TENANT_STORE_ACQUIRE_TIMEOUT"); ok {
		c.TenantStore.AcquireTimeout = v
	}
	if v, ok := getEnvStr("TENANT_STORE_MIGRATIONS_DIR"); ok {
		c.TenantStore.MigrationsDir = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("AUTH_TOKEN_SECRET"); ok {
		c.Auth.TokenSecret = v
	}
	if v, ok := getEnvInt("AUTH_LOCKOUT_THRESHOLD"); ok {
		c.Auth.Lockout.Threshold = v
	}
	if v, ok := getEnvStr("AUTH_LOCKOUT_WINDOW"); ok {
		c.Auth.Lockout.Window = v
	}
	if v, ok := getEnvStr("SESSION_DEFAULT_TTL"); ok {
		c.Session.DefaultTTL = v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}
}

// Validate chequea valores críticos y que las duraciones parseen.
func (c *Config) Validate() error {
	durs := map[string]string{
		"registry.conn_max_lifetime":     c.Registry.ConnMaxLifetime,
		"tenant_store.conn_max_lifetime": c.TenantStore.ConnMaxLifetime,
		"tenant_store.acquire_timeout":   c.TenantStore.AcquireTimeout,
		"auth.lockout.window":            c.Auth.Lockout.Window,
		"session.default_ttl":            c.Session.DefaultTTL,
		"rate.login.window":              c.Rate.Login.Window,
	}
	for name, s := range durs {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	for role, s := range c.Session.RoleTimeouts {
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("config: session.role_timeouts[%s]: %w", role, err)
		}
	}
	// Guardia dura: en prod el secreto de firma es obligatorio.
	if strings.EqualFold(c.App.Env, "prod") && strings.TrimSpace(c.Auth.TokenSecret) == "" {
		return fmt.Errorf("config: auth.token_secret es obligatorio en prod")
	}
	return nil
}

// MustDuration parsea una duración ya validada por Validate.
func MustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: duración inválida %q: %v", s, err))
	}
	return d
}
