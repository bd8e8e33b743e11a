package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/pipeline"
	"github.com/shaiso/Tendera/internal/repo"
)

// --- Fakes ---

type fakeWorkflowStore struct {
	workflows map[uuid.UUID]*domain.Workflow
}

func newFakeWorkflowStore() *fakeWorkflowStore {
	return &fakeWorkflowStore{workflows: make(map[uuid.UUID]*domain.Workflow)}
}

func (s *fakeWorkflowStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	wf, ok := s.workflows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *wf
	return &copied, nil
}

func (s *fakeWorkflowStore) Update(_ context.Context, wf *domain.Workflow) error {
	copied := *wf
	s.workflows[wf.ID] = &copied
	return nil
}

func (s *fakeWorkflowStore) ListQueued(_ context.Context, limit int) ([]domain.Workflow, error) {
	var out []domain.Workflow
	for _, wf := range s.workflows {
		if wf.CurrentPhase == domain.PhaseQueued && wf.Status == domain.WorkflowStatusActive {
			out = append(out, *wf)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeItemStore struct {
	items   map[uuid.UUID]*domain.WorkItem
	created []uuid.UUID
	overdue []domain.WorkItem
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: make(map[uuid.UUID]*domain.WorkItem)}
}

func (s *fakeItemStore) Create(_ context.Context, item *domain.WorkItem) error {
	copied := *item
	s.items[item.ID] = &copied
	s.created = append(s.created, item.ID)
	return nil
}

func (s *fakeItemStore) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *fakeItemStore) Update(_ context.Context, item *domain.WorkItem) error {
	copied := *item
	s.items[item.ID] = &copied
	return nil
}

func (s *fakeItemStore) HasInProgress(_ context.Context, workflowID uuid.UUID, taskType domain.TaskType) (bool, error) {
	for _, item := range s.items {
		if item.WorkflowID == workflowID && item.TaskType == taskType && item.Status == domain.WorkItemStatusInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeItemStore) ListOverdue(_ context.Context, _ int) ([]domain.WorkItem, error) {
	return s.overdue, nil
}

func (s *fakeItemStore) ArchiveByWorkflowID(_ context.Context, workflowID uuid.UUID) error {
	for _, item := range s.items {
		if item.WorkflowID == workflowID {
			item.Archived = true
		}
	}
	return nil
}

// lastCreated возвращает последний созданный item.
func (s *fakeItemStore) lastCreated(t *testing.T) *domain.WorkItem {
	t.Helper()
	if len(s.created) == 0 {
		t.Fatal("expected a work item to be created")
	}
	return s.items[s.created[len(s.created)-1]]
}

type fakeTransitionStore struct {
	transitions []domain.WorkflowTransition
}

func (s *fakeTransitionStore) RecordTransition(_ context.Context, tr *domain.WorkflowTransition) error {
	s.transitions = append(s.transitions, *tr)
	return nil
}

type fakeRFPStore struct {
	upserted []domain.RFP
}

func (s *fakeRFPStore) Upsert(_ context.Context, rfp *domain.RFP) error {
	s.upserted = append(s.upserted, *rfp)
	return nil
}

type testEnv struct {
	orch        *Orchestrator
	workflows   *fakeWorkflowStore
	items       *fakeItemStore
	transitions *fakeTransitionStore
	rfps        *fakeRFPStore
}

func newTestEnv() *testEnv {
	workflows := newFakeWorkflowStore()
	items := newFakeItemStore()
	transitions := &fakeTransitionStore{}
	rfps := &fakeRFPStore{}

	orch := New(Config{
		WorkflowRepo: workflows,
		WorkItemRepo: items,
		StatsRepo:    transitions,
		RFPRepo:      rfps,
	})

	return &testEnv{orch: orch, workflows: workflows, items: items, transitions: transitions, rfps: rfps}
}

func (e *testEnv) addWorkflow(kind domain.WorkflowKind, phase domain.Phase) *domain.Workflow {
	now := time.Now()
	wf := &domain.Workflow{
		ID:           uuid.New(),
		Kind:         kind,
		PortalID:     uuid.New(),
		SessionID:    uuid.New(),
		CurrentPhase: phase,
		Status:       domain.WorkflowStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if phase != domain.PhaseQueued {
		wf.StartedAt = &now
	}
	e.workflows.workflows[wf.ID] = wf
	return wf
}

// --- startWorkflow ---

func TestStartWorkflow_DispatchesFirstPhase(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseQueued)

	if err := env.orch.startWorkflow(context.Background(), wf.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Ровно один item первой фазы
	if len(env.items.created) != 1 {
		t.Fatalf("expected 1 work item, got %d", len(env.items.created))
	}
	item := env.items.lastCreated(t)
	if item.TaskType != domain.TaskAuthentication {
		t.Errorf("expected authentication task, got %s", item.TaskType)
	}
	if item.Status != domain.WorkItemStatusQueued {
		t.Errorf("expected queued item, got %s", item.Status)
	}
	// Дедлайн — ровно табличный таймаут типа задачи от момента создания
	if got := item.ExpectedCompletion.Sub(item.CreatedAt); got != pipeline.TimeoutFor(item.TaskType) {
		t.Errorf("expected deadline %s after creation, got %s", pipeline.TimeoutFor(item.TaskType), got)
	}

	updated := env.workflows.workflows[wf.ID]
	if updated.CurrentPhase != domain.PhaseAuthenticating {
		t.Errorf("expected authenticating phase, got %s", updated.CurrentPhase)
	}
	if updated.Progress != 10 {
		t.Errorf("expected progress 10, got %d", updated.Progress)
	}
}

func TestStartWorkflow_SubmissionFirstPhase(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindSubmission, domain.PhaseQueued)

	if err := env.orch.startWorkflow(context.Background(), wf.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := env.items.lastCreated(t)
	if item.TaskType != domain.TaskPreflight {
		t.Errorf("expected preflight task, got %s", item.TaskType)
	}
}

func TestStartWorkflow_NotQueued(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseScanning)

	err := env.orch.startWorkflow(context.Background(), wf.ID)
	if !errors.Is(err, ErrWorkflowNotQueued) {
		t.Errorf("expected ErrWorkflowNotQueued, got %v", err)
	}
	if len(env.items.created) != 0 {
		t.Error("no items should be created")
	}
}

func TestStartWorkflow_NotFound(t *testing.T) {
	env := newTestEnv()

	err := env.orch.startWorkflow(context.Background(), uuid.New())
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

// --- Advance ---

func TestAdvance_MidSequence(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseScanning)

	result := domain.WorkflowResult{
		Success:  true,
		TaskType: domain.TaskScanning,
		Data:     map[string]any{"rfps_found": 2},
		Attempts: 1,
	}

	if err := env.orch.Advance(context.Background(), wf.ID, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Ровно один item следующей фазы
	if len(env.items.created) != 1 {
		t.Fatalf("expected 1 work item, got %d", len(env.items.created))
	}
	item := env.items.lastCreated(t)
	if item.TaskType != domain.TaskExtraction {
		t.Errorf("expected extraction task, got %s", item.TaskType)
	}
	if got := item.ExpectedCompletion.Sub(item.CreatedAt); got != pipeline.TimeoutFor(domain.TaskExtraction) {
		t.Errorf("expected extraction deadline %s, got %s", pipeline.TimeoutFor(domain.TaskExtraction), got)
	}

	// Результат предыдущей фазы передан под её result key
	scanResults, ok := item.Inputs["scanResults"].(map[string]any)
	if !ok {
		t.Fatalf("expected scanResults in inputs, got %v", item.Inputs)
	}
	if scanResults["rfps_found"] != 2 {
		t.Errorf("expected carried data, got %v", scanResults)
	}

	updated := env.workflows.workflows[wf.ID]
	if updated.CurrentPhase != domain.PhaseExtracting {
		t.Errorf("expected extracting phase, got %s", updated.CurrentPhase)
	}
	if updated.Progress != 80 {
		t.Errorf("expected progress 80, got %d", updated.Progress)
	}
}

func TestAdvance_LastPhaseCompletes(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseMonitoring)

	item := &domain.WorkItem{ID: uuid.New(), WorkflowID: wf.ID, TaskType: domain.TaskMonitoring, Status: domain.WorkItemStatusCompleted}
	env.items.items[item.ID] = item

	result := domain.WorkflowResult{Success: true, TaskType: domain.TaskMonitoring, Attempts: 1}

	if err := env.orch.Advance(context.Background(), wf.ID, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Терминальная фаза: новых items нет, workflow завершён
	if len(env.items.created) != 0 {
		t.Errorf("no new items expected, got %d", len(env.items.created))
	}

	updated := env.workflows.workflows[wf.ID]
	if updated.Status != domain.WorkflowStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", updated.Status)
	}
	if updated.CurrentPhase != domain.PhaseCompleted {
		t.Errorf("expected completed phase, got %s", updated.CurrentPhase)
	}
	if updated.Progress != 100 {
		t.Errorf("expected progress 100, got %d", updated.Progress)
	}

	// Items завершённого workflow архивируются
	if !env.items.items[item.ID].Archived {
		t.Error("work items should be archived")
	}
}

func TestAdvance_FailureMarksFailed(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindSubmission, domain.PhaseUploading)

	result := domain.WorkflowResult{
		Success:  false,
		TaskType: domain.TaskUploading,
		Error:    "1 attempts failed, last error: portal rejected file",
		Attempts: 1,
	}

	if err := env.orch.Advance(context.Background(), wf.ID, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.items.created) != 0 {
		t.Error("failed workflow should not enqueue new items")
	}

	updated := env.workflows.workflows[wf.ID]
	if updated.Status != domain.WorkflowStatusFailed {
		t.Errorf("expected FAILED, got %s", updated.Status)
	}
	if updated.CurrentPhase != domain.PhaseFailed {
		t.Errorf("expected failed phase, got %s", updated.CurrentPhase)
	}
	if !strings.Contains(updated.Error, "portal rejected file") {
		t.Errorf("error should carry last cause: %s", updated.Error)
	}
}

func TestAdvance_IdempotentOnStalePhase(t *testing.T) {
	env := newTestEnv()
	// Workflow уже продвинут до extracting воркером
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseExtracting)

	// Событие о завершении scanning приходит вторым
	result := domain.WorkflowResult{Success: true, TaskType: domain.TaskScanning, Attempts: 1}

	if err := env.orch.Advance(context.Background(), wf.ID, result); err != nil {
		t.Fatalf("duplicate advance should be a no-op, got %v", err)
	}
	if len(env.items.created) != 0 {
		t.Errorf("duplicate advance must not enqueue items, got %d", len(env.items.created))
	}

	updated := env.workflows.workflows[wf.ID]
	if updated.CurrentPhase != domain.PhaseExtracting {
		t.Errorf("phase should be unchanged, got %s", updated.CurrentPhase)
	}
}

func TestAdvance_FinishedWorkflowNoop(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseScanning)
	wf.MarkFailed("earlier failure")
	env.workflows.workflows[wf.ID] = wf

	result := domain.WorkflowResult{Success: true, TaskType: domain.TaskScanning, Attempts: 1}

	if err := env.orch.Advance(context.Background(), wf.ID, result); err != nil {
		t.Fatalf("advance on finished workflow should be a no-op, got %v", err)
	}
	if len(env.items.created) != 0 {
		t.Error("finished workflow must not enqueue items")
	}
}

func TestAdvance_UnknownTaskType(t *testing.T) {
	env := newTestEnv()
	// Monitoring не входит в submission pipeline
	wf := env.addWorkflow(domain.KindSubmission, domain.PhaseFilling)

	result := domain.WorkflowResult{Success: true, TaskType: domain.TaskMonitoring, Attempts: 1}

	err := env.orch.Advance(context.Background(), wf.ID, result)
	if !errors.Is(err, ErrUnknownPhase) {
		t.Errorf("expected ErrUnknownPhase, got %v", err)
	}
}

func TestAdvance_RecordsTransitions(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseAuthenticating)

	result := domain.WorkflowResult{Success: true, TaskType: domain.TaskAuthentication, Attempts: 1}

	if err := env.orch.Advance(context.Background(), wf.ID, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.transitions.transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(env.transitions.transitions))
	}
	tr := env.transitions.transitions[0]
	if tr.FromPhase != domain.PhaseAuthenticating || tr.ToPhase != domain.PhaseScanning {
		t.Errorf("expected authenticating->scanning, got %s->%s", tr.FromPhase, tr.ToPhase)
	}
	if !tr.Success {
		t.Error("transition should be successful")
	}
}

func TestAdvance_PersistsDiscoveredRFPs(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseExtracting)

	result := domain.WorkflowResult{
		Success:  true,
		TaskType: domain.TaskExtraction,
		Data: map[string]any{
			"records": []any{
				map[string]any{"external_id": "RFP-100", "title": "Road maintenance", "agency": "DOT"},
				map[string]any{"external_id": "RFP-101", "title": "IT services"},
				map[string]any{"title": "missing external id"},
			},
		},
		Attempts: 1,
	}

	if err := env.orch.Advance(context.Background(), wf.ID, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Записи без external_id молча пропускаются
	if len(env.rfps.upserted) != 2 {
		t.Fatalf("expected 2 rfps, got %d", len(env.rfps.upserted))
	}
	first := env.rfps.upserted[0]
	if first.ExternalID != "RFP-100" || first.PortalID != wf.PortalID {
		t.Errorf("unexpected rfp: %+v", first)
	}
	if first.Status != domain.RFPStatusDiscovered {
		t.Errorf("expected DISCOVERED, got %s", first.Status)
	}
}

func TestAdvance_PhaseInProgressGuard(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseAuthenticating)

	// Item следующей фазы уже выполняется
	stuck := &domain.WorkItem{
		ID:         uuid.New(),
		WorkflowID: wf.ID,
		TaskType:   domain.TaskScanning,
		Status:     domain.WorkItemStatusInProgress,
	}
	env.items.items[stuck.ID] = stuck

	result := domain.WorkflowResult{Success: true, TaskType: domain.TaskAuthentication, Attempts: 1}

	err := env.orch.Advance(context.Background(), wf.ID, result)
	if !errors.Is(err, ErrPhaseInProgress) {
		t.Errorf("expected ErrPhaseInProgress, got %v", err)
	}
}

// --- resolveOverdue ---

func TestResolveOverdue_FailsStuckItem(t *testing.T) {
	env := newTestEnv()
	wf := env.addWorkflow(domain.KindDiscovery, domain.PhaseScanning)

	stuck := &domain.WorkItem{
		ID:                 uuid.New(),
		WorkflowID:         wf.ID,
		TaskType:           domain.TaskScanning,
		Status:             domain.WorkItemStatusInProgress,
		Attempt:            1,
		ExpectedCompletion: time.Now().Add(-time.Hour),
	}
	env.items.items[stuck.ID] = stuck
	env.items.overdue = []domain.WorkItem{*stuck}

	env.orch.resolveOverdue(context.Background())

	resolved := env.items.items[stuck.ID]
	if resolved.Status != domain.WorkItemStatusFailed {
		t.Errorf("expected FAILED item, got %s", resolved.Status)
	}
	if !strings.Contains(resolved.Error, "timed out") {
		t.Errorf("error should mention timeout: %s", resolved.Error)
	}

	updated := env.workflows.workflows[wf.ID]
	if updated.Status != domain.WorkflowStatusFailed {
		t.Errorf("workflow should be failed, got %s", updated.Status)
	}
}

// --- New ---

func TestNew_Defaults(t *testing.T) {
	o := New(Config{})

	if o.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, o.pollInterval)
	}
	if o.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, o.batchSize)
	}
	if o.logger == nil {
		t.Error("logger should be initialized")
	}
}

func TestOrchestrator_IsStopped(t *testing.T) {
	o := New(Config{})

	if o.IsStopped() {
		t.Error("should not be stopped initially")
	}

	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	if !o.IsStopped() {
		t.Error("should be stopped")
	}
}
