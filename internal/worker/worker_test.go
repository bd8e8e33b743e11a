package worker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Tendera/internal/domain"
)

// fakeCollaborator возвращает заранее заданные результаты по очереди попыток.
type fakeCollaborator struct {
	calls   atomic.Int32
	failN   int32 // первые failN вызовов падают
	failErr error
	data    map[string]any
	sleep   time.Duration
}

func (f *fakeCollaborator) Perform(ctx context.Context, _ map[string]any) (map[string]any, error) {
	n := f.calls.Add(1)

	if f.sleep > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.sleep):
		}
	}

	if n <= f.failN {
		err := f.failErr
		if err == nil {
			err = errors.New("portal unavailable")
		}
		return nil, err
	}
	return f.data, nil
}

// fakeItemStore — ItemStore в памяти для тестов retry wrapper'а.
type fakeItemStore struct {
	items map[uuid.UUID]*domain.WorkItem
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: make(map[uuid.UUID]*domain.WorkItem)}
}

func (s *fakeItemStore) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return item, nil
}

func (s *fakeItemStore) Update(_ context.Context, item *domain.WorkItem) error {
	s.items[item.ID] = item
	return nil
}

func (s *fakeItemStore) ListQueued(_ context.Context, _ int) ([]domain.WorkItem, error) {
	return nil, nil
}

func newTestWorker(registry *Registry) *Worker {
	w := New(Config{
		WorkItemRepo: newFakeItemStore(),
		Registry:     registry,
	})
	w.retryBase = time.Millisecond
	return w
}

// --- Executor Tests ---

func TestExecutor_Success(t *testing.T) {
	registry := NewRegistry()
	registry.Register(domain.TaskScanning, &fakeCollaborator{
		data: map[string]any{"rfps_found": 3},
	})

	executor := NewExecutor(registry)
	item := &domain.WorkItem{ID: uuid.New(), TaskType: domain.TaskScanning}

	data, err := executor.Execute(context.Background(), item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["rfps_found"] != 3 {
		t.Errorf("expected rfps_found=3, got %v", data["rfps_found"])
	}
}

func TestExecutor_UnknownTaskType(t *testing.T) {
	executor := NewExecutor(NewRegistry())
	item := &domain.WorkItem{ID: uuid.New(), TaskType: "unknown"}

	_, err := executor.Execute(context.Background(), item)
	if !errors.Is(err, ErrUnknownTaskType) {
		t.Errorf("expected ErrUnknownTaskType, got %v", err)
	}

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %T", err)
	}
	if execErr.TaskType != "unknown" {
		t.Errorf("expected task type in error, got %s", execErr.TaskType)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	registry := NewRegistry()
	registry.Register(domain.TaskScanning, &fakeCollaborator{sleep: time.Second})

	executor := NewExecutor(registry)
	executor.timeoutFor = func(domain.TaskType) time.Duration { return 50 * time.Millisecond }

	item := &domain.WorkItem{ID: uuid.New(), TaskType: domain.TaskScanning}

	start := time.Now()
	_, err := executor.Execute(context.Background(), item)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("expected ErrExecutionTimeout, got %v", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("executor should abandon the call at the deadline, took %v", elapsed)
	}
}

func TestExecutor_ParentCancel(t *testing.T) {
	registry := NewRegistry()
	registry.Register(domain.TaskScanning, &fakeCollaborator{sleep: time.Second})

	executor := NewExecutor(registry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	item := &domain.WorkItem{ID: uuid.New(), TaskType: domain.TaskScanning}

	_, err := executor.Execute(ctx, item)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context canceled, got %v", err)
	}
}

// --- Retry Wrapper Tests ---

func TestRunWithRetry_IdempotentRecovery(t *testing.T) {
	collab := &fakeCollaborator{failN: 2, data: map[string]any{"token": "abc"}}

	registry := NewRegistry()
	registry.Register(domain.TaskAuthentication, collab)

	w := newTestWorker(registry)
	item := &domain.WorkItem{ID: uuid.New(), TaskType: domain.TaskAuthentication, Attempt: 1}

	result := w.runWithRetry(context.Background(), item)

	// Аутентификация идемпотентна: две неудачи, третья попытка успешна
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if result.Data["token"] != "abc" {
		t.Errorf("expected data from last attempt, got %v", result.Data)
	}
}

func TestRunWithRetry_NonIdempotentSingleAttempt(t *testing.T) {
	collab := &fakeCollaborator{failN: 10}

	registry := NewRegistry()
	registry.Register(domain.TaskSubmitting, collab)

	w := newTestWorker(registry)
	item := &domain.WorkItem{ID: uuid.New(), TaskType: domain.TaskSubmitting, Attempt: 1}

	result := w.runWithRetry(context.Background(), item)

	// Подача заявки не повторяется молча
	if result.Success {
		t.Fatal("expected failure")
	}
	if got := collab.calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", got)
	}
	if result.Attempts != 1 {
		t.Errorf("expected attempts=1 in result, got %d", result.Attempts)
	}
}

func TestRunWithRetry_Exhausted(t *testing.T) {
	collab := &fakeCollaborator{failN: 10, failErr: errors.New("bad credentials")}

	registry := NewRegistry()
	registry.Register(domain.TaskAuthentication, collab)

	w := newTestWorker(registry)
	item := &domain.WorkItem{ID: uuid.New(), TaskType: domain.TaskAuthentication, Attempt: 1}

	result := w.runWithRetry(context.Background(), item)

	if result.Success {
		t.Fatal("expected failure")
	}
	if got := collab.calls.Load(); got != retryCap {
		t.Errorf("expected %d attempts, got %d", retryCap, got)
	}

	// Сообщение называет число попыток и последнюю ошибку
	if !strings.Contains(result.Error, "3 attempts") {
		t.Errorf("error should name attempt count: %s", result.Error)
	}
	if !strings.Contains(result.Error, "bad credentials") {
		t.Errorf("error should include last cause: %s", result.Error)
	}
}

func TestRunWithRetry_ContextCancelDuringBackoff(t *testing.T) {
	collab := &fakeCollaborator{failN: 10}

	registry := NewRegistry()
	registry.Register(domain.TaskAuthentication, collab)

	w := newTestWorker(registry)
	w.retryBase = time.Minute // backoff заведомо дольше теста

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	item := &domain.WorkItem{ID: uuid.New(), TaskType: domain.TaskAuthentication, Attempt: 1}
	result := w.runWithRetry(ctx, item)

	if result.Success {
		t.Fatal("expected failure on cancel")
	}
	if got := collab.calls.Load(); got != 1 {
		t.Errorf("expected 1 attempt before cancel, got %d", got)
	}
}

// --- Registry Tests ---

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.TaskScanning, &fakeCollaborator{})

	c, err := r.Get(domain.TaskScanning)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Error("collaborator should be registered")
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(domain.TaskFilling)
	if !errors.Is(err, ErrUnknownTaskType) {
		t.Errorf("expected ErrUnknownTaskType, got %v", err)
	}
}

// --- Worker Tests ---

func TestNew_DefaultConfig(t *testing.T) {
	w := New(Config{})

	if w.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, w.pollInterval)
	}
	if w.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, w.batchSize)
	}
	if w.registry == nil {
		t.Error("registry should be initialized")
	}
	if w.executor == nil {
		t.Error("executor should be initialized")
	}
}

func TestNew_CustomConfig(t *testing.T) {
	w := New(Config{
		PollInterval: 5 * time.Second,
		BatchSize:    25,
	})

	if w.pollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", w.pollInterval)
	}
	if w.batchSize != 25 {
		t.Errorf("expected batch size 25, got %d", w.batchSize)
	}
}

func TestWorker_IsStopped(t *testing.T) {
	w := New(Config{})

	if w.IsStopped() {
		t.Error("should not be stopped initially")
	}

	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	if !w.IsStopped() {
		t.Error("should be stopped")
	}
}
