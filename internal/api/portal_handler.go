package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/domain"
)

// ListPortals возвращает список порталов с количеством найденных RFP.
// GET /api/v1/portals
func (h *Handler) ListPortals(w http.ResponseWriter, r *http.Request) {
	portals, err := h.portalRepo.ListWithCounts(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]PortalResponse, len(portals))
	for i, p := range portals {
		resp := PortalFromDomain(p.Portal)
		resp.RFPCount = p.RFPCount
		result[i] = resp
	}

	List(w, result, len(result))
}

// CreatePortal регистрирует новый портал.
// POST /api/v1/portals
func (h *Handler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	var req CreatePortalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.BaseURL == "" {
		BadRequest(w, "base_url is required")
		return
	}

	authKind := req.AuthKind
	if authKind == "" {
		authKind = "credentials"
	}

	portal := &domain.Portal{
		ID:       uuid.New(),
		Name:     req.Name,
		BaseURL:  req.BaseURL,
		AuthKind: authKind,
		IsActive: true,
	}

	if err := h.portalRepo.Create(r.Context(), portal); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
	}

	Created(w, PortalFromDomain(*portal))
}

// GetPortal возвращает портал по ID.
// GET /api/v1/portals/{id}
func (h *Handler) GetPortal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid portal id")
		return
	}

	portal, err := h.portalRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "portal not found") {
		return
	}

	Success(w, PortalFromDomain(*portal))
}
