package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/broadcast"
	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/repo"
)

// StartScan запускает discovery workflow для портала.
// POST /api/v1/portals/{id}/scans
//
// Возвращает 202: сканирование выполняется асинхронно, прогресс
// доступен по session_id через SSE-стрим.
func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	portalID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid portal id")
		return
	}

	var req StartScanRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	portal, err := h.portalRepo.GetByID(r.Context(), portalID)
	if HandleRepoError(w, h.logger, err, "portal not found") {
		return
	}

	if !portal.IsActive {
		InvalidState(w, "portal is not active")
		return
	}

	// Idempotency: повторный запрос с тем же ключом возвращает
	// существующий workflow
	if req.IdempotencyKey != "" {
		existing, err := h.workflowRepo.GetByIdempotencyKey(r.Context(), req.IdempotencyKey)
		if err == nil && existing != nil {
			Accepted(w, WorkflowStartedResponse{
				WorkflowID: existing.ID,
				SessionID:  existing.SessionID,
				Kind:       string(existing.Kind),
			})
			return
		}
	}

	wf := &domain.Workflow{
		ID:             uuid.New(),
		Kind:           domain.KindDiscovery,
		PortalID:       portal.ID,
		SessionID:      uuid.New(),
		CurrentPhase:   domain.PhaseQueued,
		Status:         domain.WorkflowStatusActive,
		IdempotencyKey: req.IdempotencyKey,
		Context: map[string]any{
			"portal_name":     portal.Name,
			"search_criteria": req.SearchCriteria,
			"triggered_by":    "api",
		},
	}

	if err := h.workflowRepo.Create(r.Context(), wf); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.announceSession(wf)
	h.publishPending(r.Context(), wf.ID)

	Accepted(w, WorkflowStartedResponse{
		WorkflowID: wf.ID,
		SessionID:  wf.SessionID,
		Kind:       string(wf.Kind),
	})
}

// StartSubmission запускает submission workflow для RFP.
// POST /api/v1/rfps/{id}/submissions
func (h *Handler) StartSubmission(w http.ResponseWriter, r *http.Request) {
	rfpID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid rfp id")
		return
	}

	var req StartSubmissionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	rfp, err := h.rfpRepo.GetByID(r.Context(), rfpID)
	if HandleRepoError(w, h.logger, err, "rfp not found") {
		return
	}

	if rfp.Status == domain.RFPStatusSubmitted {
		InvalidState(w, "submission already completed for this rfp")
		return
	}
	if rfp.Status == domain.RFPStatusClosed {
		InvalidState(w, "rfp is closed")
		return
	}

	if req.IdempotencyKey != "" {
		existing, err := h.workflowRepo.GetByIdempotencyKey(r.Context(), req.IdempotencyKey)
		if err == nil && existing != nil {
			Accepted(w, WorkflowStartedResponse{
				WorkflowID: existing.ID,
				SessionID:  existing.SessionID,
				Kind:       string(existing.Kind),
			})
			return
		}
	}

	wf := &domain.Workflow{
		ID:             uuid.New(),
		Kind:           domain.KindSubmission,
		PortalID:       rfp.PortalID,
		RFPID:          &rfp.ID,
		SessionID:      uuid.New(),
		CurrentPhase:   domain.PhaseQueued,
		Status:         domain.WorkflowStatusActive,
		IdempotencyKey: req.IdempotencyKey,
		Context: map[string]any{
			"rfp_title":    rfp.Title,
			"rfp_external": rfp.ExternalID,
			"form_data":    req.FormData,
			"triggered_by": "api",
		},
	}

	if err := h.workflowRepo.Create(r.Context(), wf); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.announceSession(wf)
	h.publishPending(r.Context(), wf.ID)

	Accepted(w, WorkflowStartedResponse{
		WorkflowID: wf.ID,
		SessionID:  wf.SessionID,
		Kind:       string(wf.Kind),
	})
}

// announceSession создаёт сессию наблюдателей до первого события
// от воркеров, чтобы клиент мог подписаться сразу после 202.
func (h *Handler) announceSession(wf *domain.Workflow) {
	if h.broadcaster == nil {
		return
	}

	h.broadcaster.Emit(wf.SessionID.String(), broadcast.NewEvent(broadcast.EventScanStarted, map[string]any{
		"workflow_id": wf.ID.String(),
		"kind":        string(wf.Kind),
	}))
}

// publishPending публикует workflow.pending; при недоступном MQ
// workflow подхватит polling оркестратора.
func (h *Handler) publishPending(ctx context.Context, workflowID uuid.UUID) {
	if h.publisher == nil {
		return
	}

	if err := h.publisher.PublishWorkflowPending(ctx, workflowID); err != nil {
		h.logger.Warn("failed to publish workflow.pending",
			"workflow_id", workflowID,
			"error", err,
		)
	}
}

// StreamScanEvents стримит прогресс-события сессии через SSE.
// GET /api/v1/scans/{sessionID}/events
//
// Поздний подписчик первым получает initial_state с текущим
// прогрессом сессии.
func (h *Handler) StreamScanEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if _, err := uuid.Parse(sessionID); err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	if h.broadcaster == nil {
		InternalError(w, h.logger, errors.New("broadcaster not configured"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, h.logger, errors.New("streaming not supported"))
		return
	}

	events, unsubscribe, err := h.broadcaster.Subscribe(sessionID)
	if err != nil {
		if errors.Is(err, broadcast.ErrSessionNotFound) {
			// Сессия могла ещё не начаться или уже закрыться:
			// проверяем, был ли такой workflow вообще
			if _, repoErr := h.workflowRepo.GetBySessionID(r.Context(), uuid.MustParse(sessionID)); repoErr != nil {
				if errors.Is(repoErr, repo.ErrNotFound) {
					NotFound(w, "session not found")
					return
				}
			}
			NotFound(w, "session is no longer streaming")
			return
		}
		InternalError(w, h.logger, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Heartbeat держит соединение живым через прокси
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				// Сессия закрыта после терминального события
				return
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE сериализует событие в формат Server-Sent Events.
func writeSSE(w http.ResponseWriter, ev broadcast.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
