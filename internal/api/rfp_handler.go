package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/repo"
)

// ListRFPs возвращает список RFP с фильтрацией.
// GET /api/v1/rfps?portal_id=...&status=...&limit=...&offset=...
func (h *Handler) ListRFPs(w http.ResponseWriter, r *http.Request) {
	filter := repo.RFPFilter{}

	if portalIDStr := r.URL.Query().Get("portal_id"); portalIDStr != "" {
		portalID, err := uuid.Parse(portalIDStr)
		if err != nil {
			BadRequest(w, "invalid portal_id")
			return
		}
		filter.PortalID = &portalID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.RFPStatus(status)
	}

	filter.Limit = parseIntParam(r.URL.Query().Get("limit"), 50)
	filter.Offset = parseIntParam(r.URL.Query().Get("offset"), 0)

	rfps, err := h.rfpRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RFPResponse, len(rfps))
	for i, rfp := range rfps {
		result[i] = RFPFromDomain(rfp)
	}

	List(w, result, len(result))
}

// CreateRFP регистрирует RFP вручную по известному URL.
// POST /api/v1/rfps
//
// Минует сканирование: оператор нашёл возможность сам и вносит
// её напрямую. Содержимое страницы не скачивается, записываются
// только переданные поля; дальнейший pipeline обычный.
func (h *Handler) CreateRFP(w http.ResponseWriter, r *http.Request) {
	var req CreateRFPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Title == "" {
		BadRequest(w, "title is required")
		return
	}
	if req.URL == "" {
		BadRequest(w, "url is required")
		return
	}
	portalID, err := uuid.Parse(req.PortalID)
	if err != nil {
		BadRequest(w, "invalid portal_id")
		return
	}

	portal, err := h.portalRepo.GetByID(r.Context(), portalID)
	if HandleRepoError(w, h.logger, err, "portal not found") {
		return
	}

	// Без external_id с портала генерируем свой, чтобы повторный
	// upsert того же RFP со сканирования не затёр ручную запись.
	externalID := req.ExternalID
	if externalID == "" {
		externalID = "manual-" + uuid.NewString()
	}

	now := time.Now()
	rfp := &domain.RFP{
		ID:           uuid.New(),
		PortalID:     portal.ID,
		ExternalID:   externalID,
		Title:        req.Title,
		Agency:       req.Agency,
		URL:          req.URL,
		Status:       domain.RFPStatusDiscovered,
		Deadline:     req.Deadline,
		Details:      req.Details,
		DiscoveredAt: now,
		UpdatedAt:    now,
	}

	if err := h.rfpRepo.Upsert(r.Context(), rfp); err != nil {
		HandleRepoError(w, h.logger, err, "")
		return
	}

	Created(w, RFPFromDomain(*rfp))
}

// GetRFP возвращает RFP по ID.
// GET /api/v1/rfps/{id}
func (h *Handler) GetRFP(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid rfp id")
		return
	}

	rfp, err := h.rfpRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "rfp not found") {
		return
	}

	Success(w, RFPFromDomain(*rfp))
}
