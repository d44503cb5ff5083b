package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/schoolcore/internal/audit"
	httperrors "github.com/dropDatabas3/schoolcore/internal/http/errors"
	"github.com/dropDatabas3/schoolcore/internal/http/middlewares"
	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
	"github.com/dropDatabas3/schoolcore/internal/registry"
	"github.com/dropDatabas3/schoolcore/internal/tenantdb"
)

// TrustHandler expone el ciclo de vida de trusts (registro, listado,
// suspensión/activación, drop administrativo del store).
type TrustHandler struct {
	Registry registry.Store
	Resolver *registry.Resolver
	Tenants  *tenantdb.Manager
	Trail    *audit.Trail
}

type registerTrustRequest struct {
	Code         string `json:"code"`
	Subdomain    string `json:"subdomain"`
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
}

// Register maneja POST /v1/admin/trusts: la operación transaccional de alta.
//
// Orden: fila PENDING primero (la unicidad de código/subdominio/email corta
// duplicados antes de crear nada), después el provisioning del store, y
// recién con el store listo el trust pasa a ACTIVE. Si el provisioning
// falla, la fila PENDING se borra: nunca queda un trust ACTIVE sin store ni
// un PENDING huérfano.
func (h *TrustHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerTrustRequest
	if !ReadJSON(w, r, &req) {
		return
	}

	code := registry.NormalizeCode(req.Code)
	if err := registry.ValidateCode(code); err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}
	subdomain := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if subdomain == "" {
		subdomain = code
	}
	req.Name = strings.TrimSpace(req.Name)
	req.ContactEmail = strings.ToLower(strings.TrimSpace(req.ContactEmail))
	if req.Name == "" {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("name es requerido"))
		return
	}
	if _, err := mail.ParseAddress(req.ContactEmail); err != nil {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("contact_email inválido"))
		return
	}

	storeName, err := tenantdb.StoreNameFor(code)
	if err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}

	trust := &registry.Trust{
		Code:         code,
		Subdomain:    subdomain,
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Status:       registry.StatusPending,
		StoreName:    storeName,
	}
	if err := h.Registry.CreateTrust(r.Context(), trust); err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}

	if _, err := h.Tenants.Provision(r.Context(), code); err != nil {
		// Rollback: el trust queda como si nunca se hubiera registrado.
		if delErr := h.Registry.DeleteTrust(r.Context(), code); delErr != nil {
			logger.From(r.Context()).Error("rollback of pending trust failed",
				logger.TrustCode(code), logger.Err(delErr))
		}
		logger.From(r.Context()).Error("trust provisioning failed",
			logger.TrustCode(code), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrProvisionFailed.WithCause(err))
		return
	}

	if err := h.Registry.UpdateTrustStatus(r.Context(), code, registry.StatusActive, true); err != nil {
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	h.Resolver.Invalidate(r.Context(), trust)

	h.Trail.Event(audit.EventTrustCreated,
		logger.TrustCode(code),
		logger.Subdomain(subdomain),
		logger.String("created_by", actorID(r)),
	)

	created, err := h.Registry.GetTrustByCode(r.Context(), code)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// List maneja GET /v1/admin/trusts.
func (h *TrustHandler) List(w http.ResponseWriter, r *http.Request) {
	trusts, err := h.Registry.ListTrusts(r.Context())
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"trusts": trusts})
}

// Suspend maneja POST /v1/admin/trusts/{code}/suspend.
// La suspensión no toca el store: los datos quedan intactos y el trust deja
// de resolver de inmediato (invalidación del cache del resolver).
func (h *TrustHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, registry.StatusSuspended, audit.EventTrustSuspended)
}

// Activate maneja POST /v1/admin/trusts/{code}/activate.
func (h *TrustHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, registry.StatusActive, audit.EventTrustActivated)
}

func (h *TrustHandler) setStatus(w http.ResponseWriter, r *http.Request, status registry.Status, event string) {
	code := registry.NormalizeCode(chi.URLParam(r, "code"))
	if err := registry.ValidateCode(code); err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}

	trust, err := h.Registry.GetTrustByCode(r.Context(), code)
	if err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}
	if err := h.Registry.UpdateTrustStatus(r.Context(), code, status, false); err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}
	h.Resolver.Invalidate(r.Context(), trust)

	h.Trail.Event(event,
		logger.TrustCode(code),
		logger.String("actor", actorID(r)),
	)

	updated, err := h.Registry.GetTrustByCode(r.Context(), code)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// DropStore maneja DELETE /v1/admin/trusts/{code}/store: operación
// administrativa irreversible, nunca alcanzable desde un principal tenant
// (la ruta exige permiso stores:drop, que solo tiene SYSTEM_ADMIN).
func (h *TrustHandler) DropStore(w http.ResponseWriter, r *http.Request) {
	code := registry.NormalizeCode(chi.URLParam(r, "code"))
	if err := registry.ValidateCode(code); err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}

	trust, err := h.Registry.GetTrustByCode(r.Context(), code)
	if err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}
	if trust.Status != registry.StatusSuspended {
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("el trust debe estar suspendido antes de dropear su store"))
		return
	}

	if err := h.Tenants.Drop(r.Context(), code); err != nil {
		httperrors.WriteError(w, mapDomainErr(err))
		return
	}
	h.Trail.Event(audit.EventStoreDropped,
		logger.TrustCode(code),
		logger.String("actor", actorID(r)),
	)
	w.WriteHeader(http.StatusNoContent)
}

func actorID(r *http.Request) string {
	if sess, ok := middlewares.GetSession(r.Context()); ok {
		return sess.PrincipalID
	}
	return ""
}
