package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/schoolcore/internal/audit"
	"github.com/dropDatabas3/schoolcore/internal/authz"
	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
	"github.com/dropDatabas3/schoolcore/internal/security/password"
	"github.com/dropDatabas3/schoolcore/internal/session"
)

// ErrRoleNotAssignable: el rol pedido no existe o no corresponde al scope
// (rol tenant para un operador global, o viceversa).
var ErrRoleNotAssignable = errors.New("authn: role not assignable")

// CreateUserInput es el pedido de alta de un principal.
type CreateUserInput struct {
	Identifier string
	Password   string
	Role       authz.Role
}

func (in *CreateUserInput) normalize() error {
	in.Identifier = strings.ToLower(strings.TrimSpace(in.Identifier))
	if in.Identifier == "" {
		return fmt.Errorf("authn: identifier requerido")
	}
	if len(in.Password) < 8 {
		return fmt.Errorf("authn: password demasiado corto")
	}
	return nil
}

// CreateSystemOperator da de alta un operador global.
//
// Además del acceso a la ruta (que guarda el edge), acá corre el chequeo de
// segundo orden: el rol target tiene que estar en el set de creables del
// actor.
func (s *Service) CreateSystemOperator(ctx context.Context, actor session.Session, in CreateUserInput) (*Principal, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	h := s.engine.Hierarchy()
	if !h.Known(in.Role) || h.KindOf(in.Role) != authz.KindSystem {
		return nil, ErrRoleNotAssignable
	}
	if err := s.engine.RequireCanCreate(actor.PrincipalID, "authn.create_operator", actor.Role, in.Role); err != nil {
		s.auditDenial(err)
		return nil, err
	}

	p, err := s.newPrincipal(in, authz.KindSystem, "")
	if err != nil {
		return nil, err
	}
	if err := s.creds.CreateSystemPrincipal(ctx, p); err != nil {
		return nil, err
	}
	s.trail.Event(audit.EventUserCreated,
		logger.PrincipalID(p.ID),
		logger.PrincipalKind(string(p.Kind)),
		logger.Role(string(p.Role)),
		logger.String("created_by", actor.PrincipalID),
	)
	return p, nil
}

// CreateTenantUser da de alta un usuario dentro del trust indicado.
// Actores tenant solo pueden crear dentro de su propio trust; los de sistema
// pueden crear en cualquiera (sujeto al set de creables de su rol).
func (s *Service) CreateTenantUser(ctx context.Context, actor session.Session, trustCode string, in CreateUserInput) (*Principal, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	h := s.engine.Hierarchy()
	if !h.Known(in.Role) || h.KindOf(in.Role) != authz.KindTenant {
		return nil, ErrRoleNotAssignable
	}
	if actor.Kind == authz.KindTenant && actor.TrustCode != trustCode {
		err := &authz.Denial{
			PrincipalID: actor.PrincipalID,
			Role:        actor.Role,
			Required:    "same-trust scope",
			Path:        "authn.create_user",
		}
		s.auditDenial(err)
		return nil, err
	}
	if err := s.engine.RequireCanCreate(actor.PrincipalID, "authn.create_user", actor.Role, in.Role); err != nil {
		s.auditDenial(err)
		return nil, err
	}

	p, err := s.newPrincipal(in, authz.KindTenant, trustCode)
	if err != nil {
		return nil, err
	}
	if err := s.creds.CreateTenantPrincipal(ctx, p); err != nil {
		return nil, err
	}
	s.trail.Event(audit.EventUserCreated,
		logger.PrincipalID(p.ID),
		logger.PrincipalKind(string(p.Kind)),
		logger.Role(string(p.Role)),
		logger.TrustCode(trustCode),
		logger.String("created_by", actor.PrincipalID),
	)
	return p, nil
}

// ListTenantUsers lista los usuarios del trust.
func (s *Service) ListTenantUsers(ctx context.Context, trustCode string) ([]Principal, error) {
	return s.creds.ListTenantPrincipals(ctx, trustCode)
}

// ListSystemOperators lista los operadores globales.
func (s *Service) ListSystemOperators(ctx context.Context) ([]Principal, error) {
	return s.creds.ListSystemPrincipals(ctx)
}

// EnsureSystemAdmin crea el primer SYSTEM_ADMIN si el identificador no
// existe. Idempotente: re-correr el seed no duplica ni pisa la credencial.
func (s *Service) EnsureSystemAdmin(ctx context.Context, identifier, plainPassword string) (*Principal, bool, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	existing, err := s.creds.GetSystemPrincipal(ctx, identifier)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrPrincipalNotFound) {
		return nil, false, err
	}

	p, err := s.newPrincipal(CreateUserInput{
		Identifier: identifier,
		Password:   plainPassword,
		Role:       authz.RoleSystemAdmin,
	}, authz.KindSystem, "")
	if err != nil {
		return nil, false, err
	}
	if err := s.creds.CreateSystemPrincipal(ctx, p); err != nil {
		// Carrera con otro seed concurrente: el existente gana.
		if errors.Is(err, ErrPrincipalExists) {
			existing, gerr := s.creds.GetSystemPrincipal(ctx, identifier)
			return existing, false, gerr
		}
		return nil, false, err
	}
	return p, true, nil
}

func (s *Service) newPrincipal(in CreateUserInput, kind authz.Kind, trustCode string) (*Principal, error) {
	hash, err := password.Hash(s.argon, in.Password)
	if err != nil {
		return nil, err
	}
	return &Principal{
		ID:         uuid.NewString(),
		Identifier: in.Identifier,
		Hash:       hash,
		Kind:       kind,
		Role:       in.Role,
		TrustCode:  trustCode,
		Status:     StatusActive,
		CreatedAt:  s.now(),
	}, nil
}

func (s *Service) auditDenial(err error) {
	var d *authz.Denial
	if errors.As(err, &d) {
		s.trail.Denied(d.PrincipalID, string(d.Role), d.Required, d.Path)
	}
}
