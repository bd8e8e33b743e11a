package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/repo"
)

// ListWorkflows возвращает список workflows с фильтрацией.
// GET /api/v1/workflows?portal_id=...&kind=...&status=...&limit=...&offset=...
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	filter := repo.WorkflowFilter{}

	if portalIDStr := r.URL.Query().Get("portal_id"); portalIDStr != "" {
		portalID, err := uuid.Parse(portalIDStr)
		if err != nil {
			BadRequest(w, "invalid portal_id")
			return
		}
		filter.PortalID = &portalID
	}

	if kind := r.URL.Query().Get("kind"); kind != "" {
		filter.Kind = domain.WorkflowKind(kind)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.WorkflowStatus(status)
	}

	filter.Limit = parseIntParam(r.URL.Query().Get("limit"), 50)
	filter.Offset = parseIntParam(r.URL.Query().Get("offset"), 0)

	workflows, err := h.workflowRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]WorkflowResponse, len(workflows))
	for i, wf := range workflows {
		result[i] = WorkflowFromDomain(wf)
	}

	List(w, result, len(result))
}

// GetWorkflow возвращает workflow по ID.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	wf, err := h.workflowRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	Success(w, WorkflowFromDomain(*wf))
}

// ListWorkflowItems возвращает work items workflow.
// GET /api/v1/workflows/{id}/items
func (h *Handler) ListWorkflowItems(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	// Проверяем, что workflow существует
	_, err = h.workflowRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	items, err := h.workItemRepo.ListByWorkflowID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]WorkItemResponse, len(items))
	for i, item := range items {
		result[i] = WorkItemFromDomain(item)
	}

	List(w, result, len(result))
}

// SuspendWorkflow приостанавливает workflow.
// POST /api/v1/workflows/{id}/suspend
//
// Приостановка не прерывает текущую фазу: после её завершения
// оркестратор не поставит следующую, пока workflow не возобновят.
func (h *Handler) SuspendWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	wf, err := h.workflowRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	if wf.IsFinished() {
		InvalidState(w, "workflow is already finished")
		return
	}
	if wf.Status == domain.WorkflowStatusSuspended {
		InvalidState(w, "workflow is already suspended")
		return
	}

	wf.Suspend()

	if err := h.workflowRepo.Update(r.Context(), wf); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, WorkflowFromDomain(*wf))
}

// ResumeWorkflow возобновляет приостановленный workflow.
// POST /api/v1/workflows/{id}/resume
func (h *Handler) ResumeWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	wf, err := h.workflowRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	if wf.Status != domain.WorkflowStatusSuspended {
		InvalidState(w, "workflow is not suspended")
		return
	}

	wf.Resume()

	if err := h.workflowRepo.Update(r.Context(), wf); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, WorkflowFromDomain(*wf))
}
