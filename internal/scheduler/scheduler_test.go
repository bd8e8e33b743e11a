package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/repo"
)

// --- Fakes ---

type fakeScheduleStore struct {
	due     []domain.ScanSchedule
	updated []domain.ScanSchedule
}

func (s *fakeScheduleStore) ListDue(_ context.Context, _ time.Time, _ int) ([]domain.ScanSchedule, error) {
	return s.due, nil
}

func (s *fakeScheduleStore) Update(_ context.Context, schedule *domain.ScanSchedule) error {
	s.updated = append(s.updated, *schedule)
	return nil
}

type fakeWorkflowStore struct {
	byKey   map[string]*domain.Workflow
	created []domain.Workflow
}

func newFakeWorkflowStore() *fakeWorkflowStore {
	return &fakeWorkflowStore{byKey: make(map[string]*domain.Workflow)}
}

func (s *fakeWorkflowStore) Create(_ context.Context, wf *domain.Workflow) error {
	copied := *wf
	s.created = append(s.created, copied)
	s.byKey[wf.IdempotencyKey] = &copied
	return nil
}

func (s *fakeWorkflowStore) GetByIdempotencyKey(_ context.Context, key string) (*domain.Workflow, error) {
	wf, ok := s.byKey[key]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return wf, nil
}

type fakePortalStore struct {
	portals map[uuid.UUID]*domain.Portal
}

func (s *fakePortalStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Portal, error) {
	portal, ok := s.portals[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return portal, nil
}

type schedEnv struct {
	sched     *Scheduler
	schedules *fakeScheduleStore
	workflows *fakeWorkflowStore
	portals   *fakePortalStore
}

func newSchedEnv() *schedEnv {
	schedules := &fakeScheduleStore{}
	workflows := newFakeWorkflowStore()
	portals := &fakePortalStore{portals: make(map[uuid.UUID]*domain.Portal)}

	sched := New(Config{
		ScheduleRepo: schedules,
		WorkflowRepo: workflows,
		PortalRepo:   portals,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &schedEnv{sched: sched, schedules: schedules, workflows: workflows, portals: portals}
}

func (e *schedEnv) addPortal(active bool) *domain.Portal {
	portal := &domain.Portal{
		ID:       uuid.New(),
		Name:     "sam-gov",
		IsActive: active,
	}
	e.portals.portals[portal.ID] = portal
	return portal
}

func dueSchedule(portalID uuid.UUID) domain.ScanSchedule {
	due := time.Now().Add(-time.Minute)
	return domain.ScanSchedule{
		ID:          uuid.New(),
		PortalID:    portalID,
		Name:        "nightly-scan",
		IntervalSec: 3600,
		Timezone:    "UTC",
		Enabled:     true,
		NextDueAt:   &due,
	}
}

// --- Tick ---

func TestTick_CreatesDiscoveryWorkflow(t *testing.T) {
	env := newSchedEnv()
	portal := env.addPortal(true)
	env.schedules.due = []domain.ScanSchedule{dueSchedule(portal.ID)}

	if err := env.sched.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.workflows.created) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(env.workflows.created))
	}
	wf := env.workflows.created[0]
	if wf.Kind != domain.KindDiscovery {
		t.Errorf("expected discovery workflow, got %s", wf.Kind)
	}
	if wf.PortalID != portal.ID {
		t.Errorf("expected portal %s, got %s", portal.ID, wf.PortalID)
	}
	if wf.CurrentPhase != domain.PhaseQueued {
		t.Errorf("expected queued phase, got %s", wf.CurrentPhase)
	}
	if wf.IdempotencyKey == "" {
		t.Error("workflow should carry idempotency key")
	}

	// Schedule обновлён: next_due_at сдвинут вперёд
	if len(env.schedules.updated) != 1 {
		t.Fatalf("expected schedule update, got %d", len(env.schedules.updated))
	}
	updated := env.schedules.updated[0]
	if updated.NextDueAt == nil || !updated.NextDueAt.After(time.Now()) {
		t.Error("next_due_at should move into the future")
	}
	if updated.LastWorkflowID == nil || *updated.LastWorkflowID != wf.ID {
		t.Error("last_workflow_id should point at the created workflow")
	}
}

func TestTick_IdempotentForSameDueTime(t *testing.T) {
	env := newSchedEnv()
	portal := env.addPortal(true)
	sched := dueSchedule(portal.ID)
	env.schedules.due = []domain.ScanSchedule{sched}

	if err := env.sched.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Тот же schedule с тем же next_due_at (например, после падения
	// до обновления schedule)
	env.schedules.due = []domain.ScanSchedule{sched}
	if err := env.sched.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.workflows.created) != 1 {
		t.Errorf("duplicate due time must not create a second workflow, got %d", len(env.workflows.created))
	}
}

func TestTick_SkipsInactivePortal(t *testing.T) {
	env := newSchedEnv()
	portal := env.addPortal(false)
	env.schedules.due = []domain.ScanSchedule{dueSchedule(portal.ID)}

	if err := env.sched.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.workflows.created) != 0 {
		t.Errorf("inactive portal should not be scanned, got %d workflows", len(env.workflows.created))
	}
}

func TestTick_SkipsMissingPortal(t *testing.T) {
	env := newSchedEnv()
	env.schedules.due = []domain.ScanSchedule{dueSchedule(uuid.New())}

	if err := env.sched.Tick(context.Background()); err != nil {
		t.Fatalf("missing portal should not fail the tick: %v", err)
	}
	if len(env.workflows.created) != 0 {
		t.Error("no workflow expected for missing portal")
	}
}

func TestTick_NoDueSchedules(t *testing.T) {
	env := newSchedEnv()

	if err := env.sched.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.workflows.created) != 0 {
		t.Error("no workflows expected")
	}
}

// --- CalculateNextDue ---

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.ScanSchedule{IntervalSec: 600, Timezone: "UTC"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := from.Add(10 * time.Minute); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.ScanSchedule{CronExpr: "0 9 * * *", Timezone: "UTC"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculateNextDue_CronPreferredOverInterval(t *testing.T) {
	sched := &domain.ScanSchedule{CronExpr: "0 9 * * *", IntervalSec: 60, Timezone: "UTC"}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Equal(from.Add(time.Minute)) {
		t.Error("cron expression should take precedence over interval")
	}
}

func TestCalculateNextDue_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.ScanSchedule{IntervalSec: 60, Timezone: "Mars/Olympus"}

	if _, err := CalculateNextDue(sched, time.Now()); err != nil {
		t.Fatalf("invalid timezone should fall back to UTC: %v", err)
	}
}

func TestCalculateNextDue_EmptySchedule(t *testing.T) {
	sched := &domain.ScanSchedule{Timezone: "UTC"}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("schedule without cron or interval should be rejected")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("0 9 * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("invalid expression accepted")
	}
}
