package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/mq"
	"github.com/shaiso/Tendera/internal/repo"
)

// ScheduleStore — операции планировщика над расписаниями.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScanSchedule, error)
	Update(ctx context.Context, schedule *domain.ScanSchedule) error
}

// WorkflowStore — создание workflows и проверка идемпотентности.
type WorkflowStore interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Workflow, error)
}

// PortalStore — проверка портала расписания.
type PortalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Portal, error)
}

// Scheduler создаёт discovery workflows по расписаниям сканирования.
type Scheduler struct {
	scheduleRepo ScheduleStore
	workflowRepo WorkflowStore
	portalRepo   PortalStore
	publisher    *mq.Publisher
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleRepo ScheduleStore
	WorkflowRepo WorkflowStore
	PortalRepo   PortalStore
	Publisher    *mq.Publisher
	Logger       *slog.Logger
	BatchSize    int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		scheduleRepo: cfg.ScheduleRepo,
		workflowRepo: cfg.WorkflowRepo,
		portalRepo:   cfg.PortalRepo,
		publisher:    cfg.Publisher,
		logger:       logger,
		batchSize:    batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт discovery workflow
// 3. Обновляет next_due_at
// 4. Публикует workflow.pending в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.scheduleRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed, created int
	for i := range schedules {
		sched := &schedules[i]

		workflowCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}

		processed++
		if workflowCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"workflows_created", created,
	)

	return nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если workflow был создан (не был дубликатом).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.ScanSchedule, now time.Time) (bool, error) {
	// 1. Проверяем, что портал существует и активен
	portal, err := s.portalRepo.GetByID(ctx, sched.PortalID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("portal not found for schedule, skipping",
				"schedule_id", sched.ID,
				"portal_id", sched.PortalID,
			)
			return false, nil
		}
		return false, fmt.Errorf("get portal: %w", err)
	}

	if !portal.IsActive {
		s.logger.Debug("portal inactive, skipping schedule",
			"schedule_id", sched.ID,
			"portal_id", sched.PortalID,
		)
		return false, nil
	}

	// 2. Формируем idempotency key: "{schedule_id}_{next_due_at_unix}"
	// Это гарантирует, что для одного schedule и конкретного времени
	// будет создан только один workflow
	idempKey := fmt.Sprintf("%s_%d", sched.ID, sched.NextDueAt.Unix())

	// 3. Проверяем, не создан ли уже workflow (idempotency)
	existing, err := s.workflowRepo.GetByIdempotencyKey(ctx, idempKey)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("check idempotency: %w", err)
	}

	var workflowCreated bool
	var workflowID uuid.UUID

	if existing != nil {
		s.logger.Debug("workflow already exists (idempotency)",
			"schedule_id", sched.ID,
			"workflow_id", existing.ID,
			"idempotency_key", idempKey,
		)
		workflowID = existing.ID
		workflowCreated = false
	} else {
		// 4. Создаём новый discovery workflow
		wf := &domain.Workflow{
			ID:             uuid.New(),
			Kind:           domain.KindDiscovery,
			PortalID:       sched.PortalID,
			SessionID:      uuid.New(),
			CurrentPhase:   domain.PhaseQueued,
			Status:         domain.WorkflowStatusActive,
			IdempotencyKey: idempKey,
			Context: map[string]any{
				"schedule_id":   sched.ID.String(),
				"schedule_name": sched.Name,
				"portal_name":   portal.Name,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.workflowRepo.Create(ctx, wf); err != nil {
			return false, fmt.Errorf("create workflow: %w", err)
		}

		s.logger.Info("created workflow from schedule",
			"workflow_id", wf.ID,
			"schedule_id", sched.ID,
			"schedule_name", sched.Name,
			"portal", portal.Name,
		)

		workflowID = wf.ID
		workflowCreated = true
	}

	// 5. Вычисляем следующее время сканирования
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due",
			"schedule_id", sched.ID,
			"error", err,
		)
		// Schedule некорректный — лучше не трогать next_due_at
		return workflowCreated, nil
	}

	// 6. Обновляем schedule
	sched.RecordRun(workflowID, nextDue)
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return workflowCreated, fmt.Errorf("update schedule: %w", err)
	}

	// 7. Публикуем событие в RabbitMQ (если publisher настроен и workflow создан)
	if s.publisher != nil && workflowCreated {
		if err := s.publisher.PublishWorkflowPending(ctx, workflowID); err != nil {
			// Не фатальная ошибка — workflow уже создан в БД
			// Orchestrator может забрать его через polling
			s.logger.Warn("failed to publish workflow.pending",
				"workflow_id", workflowID,
				"error", err,
			)
		}
	}

	return workflowCreated, nil
}
