package handlers

import (
	"errors"

	"github.com/dropDatabas3/schoolcore/internal/authn"
	"github.com/dropDatabas3/schoolcore/internal/authz"
	httperrors "github.com/dropDatabas3/schoolcore/internal/http/errors"
	"github.com/dropDatabas3/schoolcore/internal/registry"
	"github.com/dropDatabas3/schoolcore/internal/session"
	"github.com/dropDatabas3/schoolcore/internal/tenantdb"
)

// mapDomainErr traduce los sentinels del dominio al catálogo externo.
// Lo que no matchea colapsa a INTERNAL_SERVER_ERROR con la causa adjunta
// (visible en logs, nunca en la respuesta).
func mapDomainErr(err error) *httperrors.AppError {
	switch {
	case errors.Is(err, authn.ErrInvalidCredentials):
		return httperrors.ErrInvalidCredentials
	case errors.Is(err, authn.ErrAccountLocked):
		return httperrors.ErrAccountLocked
	case errors.Is(err, authn.ErrOriginMismatch):
		return httperrors.ErrOriginMismatch
	case errors.Is(err, authn.ErrPrincipalExists):
		return httperrors.ErrPrincipalExists
	case errors.Is(err, authn.ErrRoleNotAssignable):
		return httperrors.ErrValidation.WithDetail("rol no asignable en este scope")
	case errors.Is(err, authz.ErrDenied):
		return httperrors.ErrForbidden
	case errors.Is(err, session.ErrExpired):
		return httperrors.ErrSessionExpired
	case errors.Is(err, session.ErrUnauthenticated):
		return httperrors.ErrUnauthorized
	case errors.Is(err, registry.ErrUnknownTenant):
		return httperrors.ErrUnknownTenant
	case errors.Is(err, registry.ErrInactiveTenant):
		return httperrors.ErrInactiveTenant
	case errors.Is(err, registry.ErrNotFound):
		return httperrors.ErrNotFound
	case errors.Is(err, registry.ErrConflict):
		return httperrors.ErrTrustExists
	case errors.Is(err, registry.ErrInvalidCode):
		return httperrors.ErrValidation.WithDetail("código de trust inválido")
	case errors.Is(err, tenantdb.ErrStoreNotFound):
		return httperrors.ErrStoreNotFound
	case errors.Is(err, tenantdb.ErrAlreadyProvisioned):
		return httperrors.ErrAlreadyProvisioned
	case errors.Is(err, tenantdb.ErrPoolExhausted):
		return httperrors.ErrPoolExhausted
	default:
		return httperrors.ErrInternal.WithCause(err)
	}
}
