package handlers

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/schoolcore/internal/authn"
	"github.com/dropDatabas3/schoolcore/internal/authz"
	httperrors "github.com/dropDatabas3/schoolcore/internal/http/errors"
	"github.com/dropDatabas3/schoolcore/internal/http/middlewares"
)

// UserHandler expone el alta/listado de principals: operadores globales en
// scope de sistema, usuarios tenant dentro de su trust.
type UserHandler struct {
	Auth *authn.Service
}

type createUserRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Role       string `json:"role"`
}

// principalDTO es la vista externa de un principal. El hash jamás viaja.
type principalDTO struct {
	ID             string     `json:"id"`
	Identifier     string     `json:"identifier"`
	Role           string     `json:"role"`
	TrustCode      string     `json:"trust_code,omitempty"`
	Status         string     `json:"status"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toPrincipalDTO(p authn.Principal) principalDTO {
	return principalDTO{
		ID:             p.ID,
		Identifier:     p.Identifier,
		Role:           string(p.Role),
		TrustCode:      p.TrustCode,
		Status:         p.Status,
		FailedAttempts: p.FailedAttempts,
		LockedUntil:    p.LockedUntil,
		LastLogin:      p.LastLogin,
		CreatedAt:      p.CreatedAt,
	}
}

// CreateOperator maneja POST /v1/admin/operators (scope de sistema).
func (h *UserHandler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	sess, ok := middlewares.GetSession(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	var req createUserRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	p, err := h.Auth.CreateSystemOperator(r.Context(), sess, authn.CreateUserInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		Role:       authz.Role(req.Role),
	})
	if err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}
	WriteJSON(w, http.StatusCreated, toPrincipalDTO(*p))
}

// ListOperators maneja GET /v1/admin/operators.
func (h *UserHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Auth.ListSystemOperators(r.Context())
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"operators": toPrincipalDTOs(ps)})
}

// CreateUser maneja POST /v1/users (scope tenant).
// El trust sale del contexto del request, nunca del body: un TRUST_ADMIN no
// puede apuntar el alta a otro trust por más que lo intente.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := middlewares.GetSession(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	trust := middlewares.GetTrust(r.Context())
	if trust == nil {
		httperrors.WriteError(w, httperrors.ErrUnknownTenant)
		return
	}
	var req createUserRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	p, err := h.Auth.CreateTenantUser(r.Context(), sess, trust.Code, authn.CreateUserInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		Role:       authz.Role(req.Role),
	})
	if err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}
	WriteJSON(w, http.StatusCreated, toPrincipalDTO(*p))
}

// ListUsers maneja GET /v1/users (scope tenant).
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	trust := middlewares.GetTrust(r.Context())
	if trust == nil {
		httperrors.WriteError(w, httperrors.ErrUnknownTenant)
		return
	}
	ps, err := h.Auth.ListTenantUsers(r.Context(), trust.Code)
	if err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": toPrincipalDTOs(ps)})
}

func toPrincipalDTOs(ps []authn.Principal) []principalDTO {
	out := make([]principalDTO, len(ps))
	for i, p := range ps {
		out[i] = toPrincipalDTO(p)
	}
	return out
}
