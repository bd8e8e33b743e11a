package api

import (
	"net/http"
)

// GlobalState возвращает сводное состояние системы.
// GET /api/v1/state/global
func (h *Handler) GlobalState(w http.ResponseWriter, r *http.Request) {
	Success(w, h.aggregator.GlobalState(r.Context()))
}

// PhaseStatistics возвращает статистику выполнения по типам задач.
// GET /api/v1/state/phases
func (h *Handler) PhaseStatistics(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.PhaseStatistics(r.Context())
	List(w, stats, len(stats))
}

// TransitionSummary возвращает сводку переходов фаз.
// GET /api/v1/state/transitions
func (h *Handler) TransitionSummary(w http.ResponseWriter, r *http.Request) {
	Success(w, h.aggregator.TransitionSummary(r.Context()))
}
