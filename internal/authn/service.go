package authn

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/schoolcore/internal/audit"
	"github.com/dropDatabas3/schoolcore/internal/authz"
	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
	"github.com/dropDatabas3/schoolcore/internal/registry"
	"github.com/dropDatabas3/schoolcore/internal/security/password"
	"github.com/dropDatabas3/schoolcore/internal/session"
)

// LockoutPolicy es la política de bloqueo por intentos fallidos.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

// Outcomes para el observer de métricas.
const (
	OutcomeSuccess        = "success"
	OutcomeInvalid        = "invalid_credentials"
	OutcomeLocked         = "locked"
	OutcomeOriginMismatch = "origin_mismatch"
)

// ObserveFunc recibe el resultado de cada intento de login, para métricas.
type ObserveFunc func(kind authz.Kind, outcome string)

// Service verifica credenciales y emite sesiones.
type Service struct {
	creds    CredentialStore
	sessions *session.Manager
	engine   *authz.Engine
	trail    *audit.Trail
	argon    password.Params
	lockout  LockoutPolicy
	observe  ObserveFunc
	now      func() time.Time
}

// Config arma el Service; campos nil/cero caen a defaults seguros.
type Config struct {
	Creds    CredentialStore
	Sessions *session.Manager
	Engine   *authz.Engine
	Trail    *audit.Trail
	Argon    password.Params
	Lockout  LockoutPolicy
	Observe  ObserveFunc
}

func NewService(cfg Config) *Service {
	if cfg.Engine == nil {
		cfg.Engine = authz.NewEngine(nil)
	}
	if cfg.Trail == nil {
		cfg.Trail = audit.New()
	}
	if cfg.Argon == (password.Params{}) {
		cfg.Argon = password.Default
	}
	if cfg.Lockout.Threshold <= 0 {
		cfg.Lockout.Threshold = 5
	}
	if cfg.Lockout.Window <= 0 {
		cfg.Lockout.Window = 15 * time.Minute
	}
	if cfg.Observe == nil {
		cfg.Observe = func(authz.Kind, string) {}
	}
	return &Service{
		creds:    cfg.Creds,
		sessions: cfg.Sessions,
		engine:   cfg.Engine,
		trail:    cfg.Trail,
		argon:    cfg.Argon,
		lockout:  cfg.Lockout,
		observe:  cfg.Observe,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// LoginInput es la entrada ya resuelta por el edge: Trust viene del resolver
// (nil si el request llegó por el dominio raíz) y Kind es la clasificación
// explícita que declara el cliente.
type LoginInput struct {
	Kind       authz.Kind
	Identifier string
	Password   string
	Trust      *registry.Trust
	Host       string // solo para audit
}

// LoginResult es lo que recibe el cliente en un login exitoso.
type LoginResult struct {
	Session    session.Session
	Token      string
	RedirectTo string
}

// Login ejecuta el flujo completo de autenticación.
//
// El orden importa: la corroboración de origen corre antes de cualquier
// lectura del credential store, y las escrituras de contadores son durables
// antes de emitir la sesión.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := s.corroborate(in); err != nil {
		s.observe(in.Kind, OutcomeOriginMismatch)
		s.trail.OriginMismatch(string(in.Kind), in.Identifier, in.Host)
		return nil, err
	}

	p, err := s.lookup(ctx, in)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			s.observe(in.Kind, OutcomeInvalid)
			s.trail.LoginFailed(string(in.Kind), in.Identifier, trustCodeOf(in.Trust), "unknown principal", 0)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if !p.Active() {
		s.observe(in.Kind, OutcomeInvalid)
		s.trail.LoginFailed(string(in.Kind), in.Identifier, p.TrustCode, "disabled account", p.FailedAttempts)
		return nil, ErrInvalidCredentials
	}
	if p.Locked(now) {
		s.observe(in.Kind, OutcomeLocked)
		s.trail.LoginFailed(string(in.Kind), in.Identifier, p.TrustCode, "lockout in effect", p.FailedAttempts)
		return nil, ErrAccountLocked
	}

	if !password.Verify(in.Password, p.Hash) {
		attempts, lockedUntil, ferr := s.creds.RecordFailure(ctx, p, s.lockout.Threshold, s.lockout.Window)
		if ferr != nil {
			return nil, ferr
		}
		s.observe(in.Kind, OutcomeInvalid)
		s.trail.LoginFailed(string(in.Kind), in.Identifier, p.TrustCode, "bad credential", attempts)
		if lockedUntil != nil {
			s.trail.Lockout(string(in.Kind), in.Identifier, p.TrustCode)
		}
		return nil, ErrInvalidCredentials
	}

	// Escritura durable antes de emitir: si esto falla no hay sesión.
	if err := s.creds.RecordSuccess(ctx, p, now); err != nil {
		return nil, err
	}

	sess, token, err := s.sessions.Issue(ctx, p.ID, p.Kind, p.Role, p.TrustCode)
	if err != nil {
		return nil, err
	}

	s.observe(in.Kind, OutcomeSuccess)
	s.trail.LoginSucceeded(string(in.Kind), in.Identifier, p.TrustCode, p.ID)
	logger.L().Info("login",
		logger.PrincipalID(p.ID),
		logger.PrincipalKind(string(p.Kind)),
		logger.Role(string(p.Role)),
		logger.TrustCode(p.TrustCode),
	)
	return &LoginResult{
		Session:    sess,
		Token:      token,
		RedirectTo: redirectFor(p.Role),
	}, nil
}

// corroborate valida que el kind declarado coincida con el origen: logins de
// sistema solo por dominio raíz, logins tenant solo por el subdominio de su
// trust. Corre antes de tocar el credential store.
func (s *Service) corroborate(in LoginInput) error {
	switch in.Kind {
	case authz.KindSystem:
		if in.Trust != nil {
			return ErrOriginMismatch
		}
	case authz.KindTenant:
		if in.Trust == nil {
			return ErrOriginMismatch
		}
	default:
		return ErrOriginMismatch
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, in LoginInput) (*Principal, error) {
	if in.Kind == authz.KindSystem {
		return s.creds.GetSystemPrincipal(ctx, in.Identifier)
	}
	return s.creds.GetTenantPrincipal(ctx, in.Trust.Code, in.Identifier)
}

func trustCodeOf(t *registry.Trust) string {
	if t == nil {
		return ""
	}
	return t.Code
}

// redirectFor es el destino post-login por rol.
func redirectFor(role authz.Role) string {
	switch role {
	case authz.RoleSystemAdmin, authz.RoleSystemOperator:
		return "/system"
	case authz.RoleTrustAdmin:
		return "/trust"
	case authz.RoleSchoolAdmin:
		return "/school"
	case authz.RoleAccountant:
		return "/accounts"
	default:
		return "/"
	}
}
