package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/schoolcore/internal/authn"
	"github.com/dropDatabas3/schoolcore/internal/authz"
	httperrors "github.com/dropDatabas3/schoolcore/internal/http/errors"
	"github.com/dropDatabas3/schoolcore/internal/http/middlewares"
	"github.com/dropDatabas3/schoolcore/internal/session"
)

// AuthHandler expone login/logout/estado de sesión.
type AuthHandler struct {
	Auth     *authn.Service
	Sessions *session.Manager
}

type loginRequest struct {
	Kind       string `json:"kind"` // "system" | "tenant"
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionDTO struct {
	ID           string    `json:"id"`
	PrincipalID  string    `json:"principal_id"`
	Kind         string    `json:"kind"`
	Role         string    `json:"role"`
	TrustCode    string    `json:"trust_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

type loginResponse struct {
	Token      string     `json:"token"`
	RedirectTo string     `json:"redirect_to"`
	Session    sessionDTO `json:"session"`
}

func toSessionDTO(s session.Session) sessionDTO {
	return sessionDTO{
		ID:           s.ID,
		PrincipalID:  s.PrincipalID,
		Kind:         string(s.Kind),
		Role:         string(s.Role),
		TrustCode:    s.TrustCode,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

// Login maneja POST /v1/auth/login.
// El trust (o su ausencia: scope de sistema) ya viene resuelto del
// middleware; el kind lo declara el cliente y el servicio corrobora ambos.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	req.Identifier = strings.ToLower(strings.TrimSpace(req.Identifier))
	if req.Identifier == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("identifier y password son requeridos"))
		return
	}

	res, err := h.Auth.Login(r.Context(), authn.LoginInput{
		Kind:       authz.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Identifier: req.Identifier,
		Password:   req.Password,
		Trust:      middlewares.GetTrust(r.Context()),
		Host:       r.Host,
	})
	if err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}

	WriteJSON(w, http.StatusOK, loginResponse{
		Token:      res.Token,
		RedirectTo: res.RedirectTo,
		Session:    toSessionDTO(res.Session),
	})
}

// Logout maneja POST /v1/auth/logout. Idempotente: sin token o con token
// inválido responde igual 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.Sessions.Destroy(r.Context(), token); err != nil {
			httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session maneja GET /v1/auth/session: estado de la sesión sin refrescar la
// actividad (consultar no cuenta como uso).
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	sess, err := h.Sessions.Peek(r.Context(), token)
	if err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}
	WriteJSON(w, http.StatusOK, toSessionDTO(sess))
}

func bearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}
