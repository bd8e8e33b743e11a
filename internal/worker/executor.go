package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/pipeline"
)

// Collaborator — интерфейс выполнения конкретного типа задачи.
//
// Реализации ходят на портал закупок через portal.Client и выполняют
// фактическую автоматизацию: аутентификацию, сканирование, извлечение,
// заполнение форм и т.д. Executor вызывает Perform только из-под
// таймаута; retry — ответственность retry wrapper'а.
type Collaborator interface {
	Perform(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// ExecutionError — ошибка выполнения задачи с типом задачи в контексте.
type ExecutionError struct {
	TaskType domain.TaskType
	Cause    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s: %v", e.TaskType, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Registry — реестр коллабораторов по типу задачи.
type Registry struct {
	collaborators map[domain.TaskType]Collaborator
}

// NewRegistry создаёт пустой реестр.
// Стандартный набор коллабораторов регистрирует NewPortalRegistry.
func NewRegistry() *Registry {
	return &Registry{collaborators: make(map[domain.TaskType]Collaborator)}
}

// Register добавляет коллаборатора для типа задачи.
func (r *Registry) Register(taskType domain.TaskType, c Collaborator) {
	r.collaborators[taskType] = c
}

// Get возвращает коллаборатора для типа задачи.
func (r *Registry) Get(taskType domain.TaskType) (Collaborator, error) {
	c, ok := r.collaborators[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	return c, nil
}

// Executor выполняет work items с жёстким дедлайном по типу задачи.
//
// Таймаут берётся из статической таблицы pipeline.TimeoutFor; задача,
// не уложившаяся в дедлайн, бросается и репортится как timeout failure.
// Executor не хранит состояния между вызовами и ничего не знает
// о последовательности фаз.
type Executor struct {
	registry *Registry

	// timeoutFor переопределяется в тестах.
	timeoutFor func(domain.TaskType) time.Duration
}

// NewExecutor создаёт Executor над реестром коллабораторов.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry:   registry,
		timeoutFor: pipeline.TimeoutFor,
	}
}

// Execute выполняет один work item.
//
// Коллаборатор запускается в отдельной горутине; по истечении
// дедлайна вызов бросается (горутина довершается с отменённым
// контекстом и её результат игнорируется).
func (e *Executor) Execute(ctx context.Context, item *domain.WorkItem) (map[string]any, error) {
	collaborator, err := e.registry.Get(item.TaskType)
	if err != nil {
		return nil, &ExecutionError{TaskType: item.TaskType, Cause: err}
	}

	timeout := e.timeoutFor(item.TaskType)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		data map[string]any
		err  error
	}

	done := make(chan outcome, 1)
	go func() {
		data, err := collaborator.Perform(ctx, item.Inputs)
		done <- outcome{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ExecutionError{
				TaskType: item.TaskType,
				Cause:    fmt.Errorf("%w after %s", ErrExecutionTimeout, timeout),
			}
		}
		return nil, ctx.Err()

	case out := <-done:
		if out.err != nil {
			return nil, &ExecutionError{TaskType: item.TaskType, Cause: out.err}
		}
		return out.data, nil
	}
}
