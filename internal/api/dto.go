package api

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/domain"
)

// Portal DTOs

// CreatePortalRequest — запрос на регистрацию портала.
type CreatePortalRequest struct {
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	AuthKind string `json:"auth_kind,omitempty"`
}

// PortalResponse — ответ с порталом.
type PortalResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url"`
	AuthKind  string    `json:"auth_kind"`
	IsActive  bool      `json:"is_active"`
	RFPCount  int       `json:"rfp_count,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PortalFromDomain конвертирует domain.Portal в PortalResponse.
func PortalFromDomain(p domain.Portal) PortalResponse {
	return PortalResponse{
		ID:        p.ID,
		Name:      p.Name,
		BaseURL:   p.BaseURL,
		AuthKind:  p.AuthKind,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}

// RFP DTOs

// CreateRFPRequest — запрос на ручное добавление RFP по известному URL.
type CreateRFPRequest struct {
	PortalID   string         `json:"portal_id"`
	URL        string         `json:"url"`
	Title      string         `json:"title"`
	ExternalID string         `json:"external_id,omitempty"`
	Agency     string         `json:"agency,omitempty"`
	Deadline   *time.Time     `json:"deadline,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// RFPResponse — ответ с RFP.
type RFPResponse struct {
	ID           uuid.UUID      `json:"id"`
	PortalID     uuid.UUID      `json:"portal_id"`
	ExternalID   string         `json:"external_id"`
	Title        string         `json:"title"`
	Agency       string         `json:"agency,omitempty"`
	URL          string         `json:"url,omitempty"`
	Status       string         `json:"status"`
	Deadline     *time.Time     `json:"deadline,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	DiscoveredAt time.Time      `json:"discovered_at"`
}

// RFPFromDomain конвертирует domain.RFP в RFPResponse.
func RFPFromDomain(r domain.RFP) RFPResponse {
	return RFPResponse{
		ID:           r.ID,
		PortalID:     r.PortalID,
		ExternalID:   r.ExternalID,
		Title:        r.Title,
		Agency:       r.Agency,
		URL:          r.URL,
		Status:       string(r.Status),
		Deadline:     r.Deadline,
		Details:      r.Details,
		DiscoveredAt: r.DiscoveredAt,
	}
}

// Workflow DTOs

// StartScanRequest — запрос на запуск сканирования портала.
type StartScanRequest struct {
	SearchCriteria map[string]any `json:"search_criteria,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// StartSubmissionRequest — запрос на запуск подачи заявки.
type StartSubmissionRequest struct {
	FormData       map[string]any `json:"form_data,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// WorkflowStartedResponse — ответ о запущенном workflow.
type WorkflowStartedResponse struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Kind       string    `json:"kind"`
}

// WorkflowResponse — ответ с workflow.
type WorkflowResponse struct {
	ID           uuid.UUID      `json:"id"`
	Kind         string         `json:"kind"`
	PortalID     uuid.UUID      `json:"portal_id"`
	RFPID        *uuid.UUID     `json:"rfp_id,omitempty"`
	SessionID    uuid.UUID      `json:"session_id"`
	CurrentPhase string         `json:"current_phase"`
	Status       string         `json:"status"`
	Progress     int            `json:"progress"`
	Context      map[string]any `json:"context,omitempty"`
	Error        string         `json:"error,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// WorkflowFromDomain конвертирует domain.Workflow в WorkflowResponse.
func WorkflowFromDomain(w domain.Workflow) WorkflowResponse {
	return WorkflowResponse{
		ID:           w.ID,
		Kind:         string(w.Kind),
		PortalID:     w.PortalID,
		RFPID:        w.RFPID,
		SessionID:    w.SessionID,
		CurrentPhase: string(w.CurrentPhase),
		Status:       string(w.Status),
		Progress:     w.Progress,
		Context:      w.Context,
		Error:        w.Error,
		StartedAt:    w.StartedAt,
		FinishedAt:   w.FinishedAt,
		CreatedAt:    w.CreatedAt,
	}
}

// WorkItem DTOs

// WorkItemResponse — ответ с work item.
type WorkItemResponse struct {
	ID         uuid.UUID      `json:"id"`
	WorkflowID uuid.UUID      `json:"workflow_id"`
	TaskType   string         `json:"task_type"`
	Status     string         `json:"status"`
	Attempt    int            `json:"attempt"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// WorkItemFromDomain конвертирует domain.WorkItem в WorkItemResponse.
func WorkItemFromDomain(i domain.WorkItem) WorkItemResponse {
	return WorkItemResponse{
		ID:         i.ID,
		WorkflowID: i.WorkflowID,
		TaskType:   string(i.TaskType),
		Status:     string(i.Status),
		Attempt:    i.Attempt,
		Result:     i.Result,
		Error:      i.Error,
		StartedAt:  i.StartedAt,
		FinishedAt: i.FinishedAt,
		CreatedAt:  i.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание расписания сканирования.
type CreateScheduleRequest struct {
	Name        string `json:"name,omitempty"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление расписания.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение расписания.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	ID             uuid.UUID  `json:"id"`
	PortalID       uuid.UUID  `json:"portal_id"`
	Name           string     `json:"name,omitempty"`
	CronExpr       string     `json:"cron_expr,omitempty"`
	IntervalSec    int        `json:"interval_sec,omitempty"`
	Timezone       string     `json:"timezone"`
	Enabled        bool       `json:"enabled"`
	NextDueAt      *time.Time `json:"next_due_at,omitempty"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastWorkflowID *uuid.UUID `json:"last_workflow_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ScheduleFromDomain конвертирует domain.ScanSchedule в ScheduleResponse.
func ScheduleFromDomain(s domain.ScanSchedule) ScheduleResponse {
	return ScheduleResponse{
		ID:             s.ID,
		PortalID:       s.PortalID,
		Name:           s.Name,
		CronExpr:       s.CronExpr,
		IntervalSec:    s.IntervalSec,
		Timezone:       s.Timezone,
		Enabled:        s.Enabled,
		NextDueAt:      s.NextDueAt,
		LastRunAt:      s.LastRunAt,
		LastWorkflowID: s.LastWorkflowID,
		CreatedAt:      s.CreatedAt,
	}
}

// parseIntParam парсит числовой query-параметр с дефолтным значением.
func parseIntParam(value string, defaultVal int) int {
	if value == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
