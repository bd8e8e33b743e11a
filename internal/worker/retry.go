package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/telemetry"
)

const (
	// retryCap — максимум попыток для идемпотентных типов задач.
	retryCap = 3

	// retryBaseDelay — база экспоненциального backoff между попытками.
	retryBaseDelay = time.Second
)

// runWithRetry выполняет item с ограниченным числом попыток.
//
// Повторяются только типы задач, помеченные как идемпотентные
// (TaskType.IsIdempotent); остальные выполняются ровно один раз —
// повтор незавершённой подачи заявки никогда не происходит молча.
// Backoff удваивается от секундной базы. После исчерпания попыток
// возвращается failure с числом сделанных попыток и последней ошибкой.
func (w *Worker) runWithRetry(ctx context.Context, item *domain.WorkItem) domain.WorkflowResult {
	maxAttempts := 1
	if item.TaskType.IsIdempotent() {
		maxAttempts = retryCap
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		telemetry.WorkItemAttempts.WithLabelValues(string(item.TaskType)).Inc()

		data, err := w.executor.Execute(ctx, item)
		if err == nil {
			return domain.WorkflowResult{
				Success:  true,
				TaskType: item.TaskType,
				Data:     data,
				Attempts: attempt,
			}
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := w.retryBase * time.Duration(1<<(attempt-1))

		w.logger.Debug("retrying work item",
			"item_id", item.ID,
			"task_type", item.TaskType,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return domain.WorkflowResult{
				Success:  false,
				TaskType: item.TaskType,
				Error:    fmt.Sprintf("%d attempts made, interrupted: %v", attempt, ctx.Err()),
				Attempts: attempt,
			}
		case <-time.After(delay):
		}

		// Фиксируем номер новой попытки в БД
		item.Attempt++
		if err := w.workItemRepo.Update(ctx, item); err != nil {
			w.logger.Error("failed to persist retry attempt",
				"item_id", item.ID,
				"error", err,
			)
		}
	}

	return domain.WorkflowResult{
		Success:  false,
		TaskType: item.TaskType,
		Error:    fmt.Sprintf("%d attempts failed, last error: %v", maxAttempts, lastErr),
		Attempts: maxAttempts,
	}
}
