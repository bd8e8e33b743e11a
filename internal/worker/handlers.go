package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/mq"
	"github.com/shaiso/Tendera/internal/pipeline"
	"github.com/shaiso/Tendera/internal/repo"
)

// handleItemReady обрабатывает событие о новом item из очереди workitem.ready.
func (w *Worker) handleItemReady(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.WorkItemReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse workitem.ready payload", "error", err)
		return err
	}

	w.logger.Debug("received workitem.ready event",
		"item_id", payload.WorkItemID,
		"workflow_id", payload.WorkflowID,
	)

	if err := w.processItem(ctx, payload.WorkItemID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrItemNotQueued) {
			w.logger.Debug("work item not processed", "item_id", payload.WorkItemID, "reason", err)
			return nil
		}
		w.logger.Error("failed to process work item", "item_id", payload.WorkItemID, "error", err)
		return err
	}

	return nil
}

// processItem загружает item из БД, выполняет и обрабатывает результат.
func (w *Worker) processItem(ctx context.Context, itemID uuid.UUID) error {
	// 1. Загружаем item из БД
	item, err := w.workItemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		return fmt.Errorf("get work item: %w", err)
	}

	// 2. Проверяем статус
	if item.Status != domain.WorkItemStatusQueued {
		return ErrItemNotQueued
	}

	// 3. Помечаем как in progress
	item.MarkInProgress()
	if err := w.workItemRepo.Update(ctx, item); err != nil {
		return fmt.Errorf("update work item to in progress: %w", err)
	}

	w.logger.Info("work item started",
		"item_id", item.ID,
		"workflow_id", item.WorkflowID,
		"task_type", item.TaskType,
		"attempt", item.Attempt,
	)

	// 4. Загружаем workflow для session ID и вида pipeline
	workflow, err := w.workflowRepo.GetByID(ctx, item.WorkflowID)
	if err != nil {
		return fmt.Errorf("get workflow: %w", err)
	}

	// 5. Выполняем с retry
	result := w.runWithRetry(ctx, item)

	// 6. Фиксируем результат item
	if result.Success {
		item.MarkCompleted(result.Data)
	} else {
		item.MarkFailed(result.Error)
	}
	if err := w.workItemRepo.Update(ctx, item); err != nil {
		return fmt.Errorf("update work item result: %w", err)
	}

	if result.Success {
		w.logger.Info("work item completed",
			"item_id", item.ID,
			"workflow_id", item.WorkflowID,
			"task_type", item.TaskType,
			"attempts", result.Attempts,
		)
		w.publishStepProgress(ctx, workflow, item.TaskType)
	} else {
		w.logger.Warn("work item failed",
			"item_id", item.ID,
			"workflow_id", item.WorkflowID,
			"task_type", item.TaskType,
			"attempts", result.Attempts,
			"error", result.Error,
		)
	}

	// 7. Синхронно продвигаем workflow
	if w.advancer != nil {
		if err := w.advancer.Advance(ctx, item.WorkflowID, result); err != nil {
			return fmt.Errorf("advance workflow: %w", err)
		}
	}

	// 8. Публикуем событие завершения
	return w.publishCompletion(ctx, item, result)
}

// publishCompletion публикует событие workitem.completed.
func (w *Worker) publishCompletion(ctx context.Context, item *domain.WorkItem, result domain.WorkflowResult) error {
	if w.publisher == nil {
		w.logger.Warn("publisher not available, skipping workitem.completed publish",
			"item_id", item.ID,
		)
		return nil
	}

	payload := mq.WorkItemCompletedPayload{
		WorkItemID: item.ID,
		WorkflowID: item.WorkflowID,
		TaskType:   string(item.TaskType),
		Status:     string(item.Status),
		Error:      item.Error,
		Attempt:    result.Attempts,
		DurationMs: item.Duration().Milliseconds(),
	}

	if err := w.publisher.PublishWorkItemCompleted(ctx, payload); err != nil {
		w.logger.Warn("failed to publish workitem.completed",
			"item_id", item.ID,
			"error", err,
		)
		// Не возвращаем ошибку — item обновлён в БД, оркестратор подхватит через polling
	}

	return nil
}

// publishStepProgress публикует step_update для наблюдателей сессии.
func (w *Worker) publishStepProgress(ctx context.Context, workflow *domain.Workflow, taskType domain.TaskType) {
	if w.publisher == nil {
		return
	}

	phase, ok := pipeline.PhaseForTask(workflow.Kind, taskType)
	if !ok {
		return
	}

	payload := mq.ScanProgressPayload{
		SessionID: workflow.SessionID.String(),
		EventType: "step_update",
		Timestamp: time.Now(),
		Data: map[string]any{
			"step":     string(phase),
			"progress": pipeline.WeightFor(workflow.Kind, phase),
			"message":  pipeline.DisplayNameFor(phase) + " finished",
		},
	}

	if err := w.publisher.PublishScanProgress(ctx, payload); err != nil {
		w.logger.Warn("failed to publish scan progress",
			"workflow_id", workflow.ID,
			"error", err,
		)
	}
}
