package worker

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
	defaultBatchSize    = 50
	defaultPrefetch     = 5
)

// Advancer продвигает workflow после завершения задачи.
// Реализуется оркестратором; воркер вызывает Advance синхронно,
// сразу после фиксации результата item в БД.
type Advancer interface {
	Advance(ctx context.Context, workflowID uuid.UUID, result domain.WorkflowResult) error
}

// ItemStore — операции воркера над work items.
type ItemStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkItem, error)
	Update(ctx context.Context, item *domain.WorkItem) error
	ListQueued(ctx context.Context, limit int) ([]domain.WorkItem, error)
}

// WorkflowStore — чтение workflow для прогресс-событий.
type WorkflowStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
}

// Worker выполняет отдельные work items.
//
// Worker — stateless компонент системы, который:
//   - Получает items из очереди RabbitMQ (event-driven)
//   - Периодически проверяет queued items в БД (polling fallback)
//   - Выполняет задачу через коллаборатора портала под жёстким таймаутом
//   - Повторяет идемпотентные задачи с exponential backoff
//   - Синхронно продвигает workflow через Advancer
//   - Публикует workitem.completed и прогресс-события сканирования
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	// Stores
	workItemRepo ItemStore
	workflowRepo WorkflowStore

	// Orchestration
	advancer Advancer

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Execution
	registry *Registry
	executor *Executor

	// Consumer
	consumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// retryBase переопределяется в тестах.
	retryBase time.Duration

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Stores
	WorkItemRepo ItemStore
	WorkflowRepo WorkflowStore

	// Advancer — оркестратор, продвигающий workflow.
	Advancer Advancer

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Registry — коллабораторы по типу задачи
	// (опционально; если nil — используется пустой NewRegistry())
	Registry *Registry

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество items за один poll (default: 50)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
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

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Worker{
		workItemRepo: cfg.WorkItemRepo,
		workflowRepo: cfg.WorkflowRepo,
		advancer:     cfg.Advancer,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		registry:     registry,
		executor:     NewExecutor(registry),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		retryBase:    retryBaseDelay,
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для workitem.ready
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueWorkItemReady),
			Handler:  w.handleItemReady,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("work item consumer error", "error", err)
			}
		}()
	} else {
		w.logger.Warn("mq connection not available, running in polling-only mode")
	}

	// Запускаем polling
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	// Ждём завершения горутин
	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем items созданные пока были выключены)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	items, err := w.workItemRepo.ListQueued(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list queued work items", "error", err)
		return
	}

	if len(items) == 0 {
		return
	}

	w.logger.Debug("poll found queued work items", "count", len(items))

	for i := range items {
		item := &items[i]

		if err := w.processItem(ctx, item.ID); err != nil {
			w.logger.Error("failed to process work item from poll",
				"item_id", item.ID,
				"error", err,
			)
		}
	}
}
