package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Portals
	mux.Handle("GET /api/v1/portals", chain(http.HandlerFunc(h.ListPortals)))
	mux.Handle("POST /api/v1/portals", chain(http.HandlerFunc(h.CreatePortal)))
	mux.Handle("GET /api/v1/portals/{id}", chain(http.HandlerFunc(h.GetPortal)))

	// Scans
	mux.Handle("POST /api/v1/portals/{id}/scans", chain(http.HandlerFunc(h.StartScan)))
	mux.Handle("GET /api/v1/scans/{sessionID}/events", chain(http.HandlerFunc(h.StreamScanEvents)))

	// RFPs
	mux.Handle("GET /api/v1/rfps", chain(http.HandlerFunc(h.ListRFPs)))
	mux.Handle("POST /api/v1/rfps", chain(http.HandlerFunc(h.CreateRFP)))
	mux.Handle("GET /api/v1/rfps/{id}", chain(http.HandlerFunc(h.GetRFP)))
	mux.Handle("POST /api/v1/rfps/{id}/submissions", chain(http.HandlerFunc(h.StartSubmission)))

	// Workflows
	mux.Handle("GET /api/v1/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("GET /api/v1/workflows/{id}", chain(http.HandlerFunc(h.GetWorkflow)))
	mux.Handle("GET /api/v1/workflows/{id}/items", chain(http.HandlerFunc(h.ListWorkflowItems)))
	mux.Handle("POST /api/v1/workflows/{id}/suspend", chain(http.HandlerFunc(h.SuspendWorkflow)))
	mux.Handle("POST /api/v1/workflows/{id}/resume", chain(http.HandlerFunc(h.ResumeWorkflow)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/portals/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))

	// State
	mux.Handle("GET /api/v1/state/global", chain(http.HandlerFunc(h.GlobalState)))
	mux.Handle("GET /api/v1/state/phases", chain(http.HandlerFunc(h.PhaseStatistics)))
	mux.Handle("GET /api/v1/state/transitions", chain(http.HandlerFunc(h.TransitionSummary)))
}
