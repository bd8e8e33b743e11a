package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PortalResponse — портал из API.
type PortalResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BaseURL   string `json:"base_url"`
	AuthKind  string `json:"auth_kind"`
	IsActive  bool   `json:"is_active"`
	RFPCount  int    `json:"rfp_count,omitempty"`
	CreatedAt string `json:"created_at"`
}

// RFPResponse — RFP из API.
type RFPResponse struct {
	ID           string         `json:"id"`
	PortalID     string         `json:"portal_id"`
	ExternalID   string         `json:"external_id"`
	Title        string         `json:"title"`
	Agency       string         `json:"agency,omitempty"`
	URL          string         `json:"url,omitempty"`
	Status       string         `json:"status"`
	Deadline     string         `json:"deadline,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	DiscoveredAt string         `json:"discovered_at"`
}

// WorkflowStartedResponse — запущенный workflow из API.
type WorkflowStartedResponse struct {
	WorkflowID string `json:"workflow_id"`
	SessionID  string `json:"session_id"`
	Kind       string `json:"kind"`
}

// WorkflowResponse — workflow из API.
type WorkflowResponse struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	PortalID     string         `json:"portal_id"`
	RFPID        string         `json:"rfp_id,omitempty"`
	SessionID    string         `json:"session_id"`
	CurrentPhase string         `json:"current_phase"`
	Status       string         `json:"status"`
	Progress     int            `json:"progress"`
	Context      map[string]any `json:"context,omitempty"`
	Error        string         `json:"error,omitempty"`
	StartedAt    string         `json:"started_at,omitempty"`
	FinishedAt   string         `json:"finished_at,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

// WorkItemResponse — work item из API.
type WorkItemResponse struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	TaskType   string         `json:"task_type"`
	Status     string         `json:"status"`
	Attempt    int            `json:"attempt"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// ScheduleResponse — расписание из API.
type ScheduleResponse struct {
	ID             string `json:"id"`
	PortalID       string `json:"portal_id"`
	Name           string `json:"name,omitempty"`
	CronExpr       string `json:"cron_expr,omitempty"`
	IntervalSec    int    `json:"interval_sec,omitempty"`
	Timezone       string `json:"timezone"`
	Enabled        bool   `json:"enabled"`
	NextDueAt      string `json:"next_due_at,omitempty"`
	LastRunAt      string `json:"last_run_at,omitempty"`
	LastWorkflowID string `json:"last_workflow_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// ScanEvent — прогресс-событие из SSE-стрима.
type ScanEvent struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// --- Request types ---

// CreatePortalRequest — регистрация портала.
type CreatePortalRequest struct {
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	AuthKind string `json:"auth_kind,omitempty"`
}

// StartScanRequest — запуск сканирования.
type StartScanRequest struct {
	SearchCriteria map[string]any `json:"search_criteria,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// StartSubmissionRequest — запуск подачи заявки.
type StartSubmissionRequest struct {
	FormData       map[string]any `json:"form_data,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// CreateScheduleRequest — создание расписания.
type CreateScheduleRequest struct {
	Name        string `json:"name,omitempty"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// UpdateScheduleRequest — обновление расписания.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// ListRFPsOpts — параметры фильтрации RFP.
type ListRFPsOpts struct {
	PortalID string
	Status   string
	Limit    int
}

// ListWorkflowsOpts — параметры фильтрации workflows.
type ListWorkflowsOpts struct {
	PortalID string
	Kind     string
	Status   string
	Limit    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Tendera API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Portals ---

// ListPortals возвращает все порталы.
func (c *Client) ListPortals() ([]PortalResponse, error) {
	var portals []PortalResponse
	err := c.list("/api/v1/portals", nil, &portals)
	return portals, err
}

// CreatePortal регистрирует портал.
func (c *Client) CreatePortal(req CreatePortalRequest) (*PortalResponse, error) {
	var portal PortalResponse
	err := c.post("/api/v1/portals", req, &portal)
	return &portal, err
}

// GetPortal возвращает портал по ID.
func (c *Client) GetPortal(id string) (*PortalResponse, error) {
	var portal PortalResponse
	err := c.get("/api/v1/portals/"+id, &portal)
	return &portal, err
}

// --- Scans ---

// StartScan запускает discovery workflow для портала.
func (c *Client) StartScan(portalID string, req StartScanRequest) (*WorkflowStartedResponse, error) {
	var started WorkflowStartedResponse
	err := c.post("/api/v1/portals/"+portalID+"/scans", req, &started)
	return &started, err
}

// WatchScan подписывается на SSE-стрим сессии и вызывает fn для
// каждого события. Блокирует до закрытия стрима сервером.
func (c *Client) WatchScan(sessionID string, fn func(ScanEvent)) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/v1/scans/"+sessionID+"/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Стрим живёт до терминального события — без общего таймаута
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev ScanEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		fn(ev)
	}

	return scanner.Err()
}

// --- RFPs ---

// ListRFPs возвращает список RFP с фильтрацией.
func (c *Client) ListRFPs(opts ListRFPsOpts) ([]RFPResponse, error) {
	params := url.Values{}
	if opts.PortalID != "" {
		params.Set("portal_id", opts.PortalID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var rfps []RFPResponse
	err := c.list("/api/v1/rfps", params, &rfps)
	return rfps, err
}

// GetRFP возвращает RFP по ID.
func (c *Client) GetRFP(id string) (*RFPResponse, error) {
	var rfp RFPResponse
	err := c.get("/api/v1/rfps/"+id, &rfp)
	return &rfp, err
}

// StartSubmission запускает submission workflow для RFP.
func (c *Client) StartSubmission(rfpID string, req StartSubmissionRequest) (*WorkflowStartedResponse, error) {
	var started WorkflowStartedResponse
	err := c.post("/api/v1/rfps/"+rfpID+"/submissions", req, &started)
	return &started, err
}

// --- Workflows ---

// ListWorkflows возвращает список workflows с фильтрацией.
func (c *Client) ListWorkflows(opts ListWorkflowsOpts) ([]WorkflowResponse, error) {
	params := url.Values{}
	if opts.PortalID != "" {
		params.Set("portal_id", opts.PortalID)
	}
	if opts.Kind != "" {
		params.Set("kind", opts.Kind)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var workflows []WorkflowResponse
	err := c.list("/api/v1/workflows", params, &workflows)
	return workflows, err
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+id, &wf)
	return &wf, err
}

// ListWorkflowItems возвращает work items workflow.
func (c *Client) ListWorkflowItems(workflowID string) ([]WorkItemResponse, error) {
	var items []WorkItemResponse
	err := c.list("/api/v1/workflows/"+workflowID+"/items", nil, &items)
	return items, err
}

// SuspendWorkflow приостанавливает workflow.
func (c *Client) SuspendWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows/"+id+"/suspend", nil, &wf)
	return &wf, err
}

// ResumeWorkflow возобновляет workflow.
func (c *Client) ResumeWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows/"+id+"/resume", nil, &wf)
	return &wf, err
}

// --- Schedules ---

// ListSchedules возвращает расписания. Если portalID не пустой — фильтрует.
func (c *Client) ListSchedules(portalID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if portalID != "" {
		params.Set("portal_id", portalID)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт расписание для портала.
func (c *Client) CreateSchedule(portalID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/portals/"+portalID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает расписание по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет расписание.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет расписание.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает расписание.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает расписание.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- State ---

// GlobalState возвращает сводное состояние системы.
func (c *Client) GlobalState() (map[string]any, error) {
	var state map[string]any
	err := c.get("/api/v1/state/global", &state)
	return state, err
}

// PhaseStatistics возвращает статистику по типам задач.
func (c *Client) PhaseStatistics() ([]map[string]any, error) {
	var stats []map[string]any
	err := c.list("/api/v1/state/phases", nil, &stats)
	return stats, err
}

// TransitionSummary возвращает сводку переходов фаз.
func (c *Client) TransitionSummary() (map[string]any, error) {
	var summary map[string]any
	err := c.get("/api/v1/state/transitions", &summary)
	return summary, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
