package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/mq"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// WorkflowStore — операции оркестратора над workflows.
type WorkflowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	Update(ctx context.Context, wf *domain.Workflow) error
	ListQueued(ctx context.Context, limit int) ([]domain.Workflow, error)
}

// ItemStore — операции оркестратора над work items.
type ItemStore interface {
	Create(ctx context.Context, item *domain.WorkItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkItem, error)
	Update(ctx context.Context, item *domain.WorkItem) error
	HasInProgress(ctx context.Context, workflowID uuid.UUID, taskType domain.TaskType) (bool, error)
	ListOverdue(ctx context.Context, limit int) ([]domain.WorkItem, error)
	ArchiveByWorkflowID(ctx context.Context, workflowID uuid.UUID) error
}

// TransitionStore — запись переходов фаз для агрегатора.
type TransitionStore interface {
	RecordTransition(ctx context.Context, t *domain.WorkflowTransition) error
}

// RFPStore — сохранение RFP, найденных discovery workflow.
type RFPStore interface {
	Upsert(ctx context.Context, rfp *domain.RFP) error
}

// Orchestrator управляет выполнением workflows.
//
// Orchestrator — центральный компонент системы, который:
//   - Получает новые workflows из очереди RabbitMQ (event-driven)
//   - Периодически проверяет queued workflows в БД (polling fallback)
//   - Продвигает workflow по фиксированной последовательности фаз
//     (Advance), ставя ровно один work item на фазу
//   - Разрешает зависшие items: просроченный IN_PROGRESS item
//     всегда доводится до failed
//   - Финализирует workflows (COMPLETED/FAILED) и архивирует их items
//
// Состояние workflow живёт только в БД: Advance перечитывает записи
// при каждом вызове и никогда не кеширует изменяемые поля.
type Orchestrator struct {
	// Stores
	workflowRepo WorkflowStore
	workItemRepo ItemStore
	statsRepo    TransitionStore
	rfpRepo      RFPStore

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Consumers
	workflowConsumer *mq.Consumer
	itemConsumer     *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Stores
	WorkflowRepo WorkflowStore
	WorkItemRepo ItemStore

	// StatsRepo — запись переходов фаз (опционально).
	StatsRepo TransitionStore

	// RFPRepo — сохранение найденных RFP (опционально).
	RFPRepo RFPStore

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество workflows за один poll (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		workflowRepo: cfg.WorkflowRepo,
		workItemRepo: cfg.WorkItemRepo,
		statsRepo:    cfg.StatsRepo,
		rfpRepo:      cfg.RFPRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для workflow.pending
//   - Consumer для workitem.completed
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	if o.conn != nil {
		o.workflowConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueWorkflowPending),
			Handler:  o.handleWorkflowPending,
			Prefetch: 10,
		})

		o.itemConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueWorkItemCompleted),
			Handler:  o.handleItemCompleted,
			Prefetch: 10,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.workflowConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("workflow consumer error", "error", err)
			}
		}()

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.itemConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("work item consumer error", "error", err)
			}
		}()
	} else {
		o.logger.Warn("mq connection not available, running in polling-only mode")
	}

	// Запускаем polling
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	// Останавливаем consumers
	if o.workflowConsumer != nil {
		o.workflowConsumer.Stop()
	}
	if o.itemConsumer != nil {
		o.itemConsumer.Stop()
	}

	// Ждём завершения горутин
	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем workflows созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling: запускает queued workflows
// и разрешает просроченные items.
func (o *Orchestrator) poll(ctx context.Context) {
	workflows, err := o.workflowRepo.ListQueued(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list queued workflows", "error", err)
	} else {
		for i := range workflows {
			wf := &workflows[i]

			if err := o.startWorkflow(ctx, wf.ID); err != nil {
				if errors.Is(err, ErrWorkflowNotQueued) {
					continue
				}
				o.logger.Error("failed to start workflow from poll",
					"workflow_id", wf.ID,
					"error", err,
				)
			}
		}
	}

	o.resolveOverdue(ctx)
}
