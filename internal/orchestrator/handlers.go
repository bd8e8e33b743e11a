package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Tendera/internal/domain"
	"github.com/shaiso/Tendera/internal/mq"
)

// handleWorkflowPending обрабатывает событие о новом workflow
// из очереди workflow.pending.
func (o *Orchestrator) handleWorkflowPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.WorkflowPendingPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse workflow.pending payload", "error", err)
		return err
	}

	o.logger.Debug("received workflow.pending event", "workflow_id", payload.WorkflowID)

	if err := o.startWorkflow(ctx, payload.WorkflowID); err != nil {
		// Ожидаемые ситуации — не возвращаем ошибку (ack)
		if errors.Is(err, ErrWorkflowNotQueued) || errors.Is(err, ErrWorkflowNotFound) {
			o.logger.Debug("workflow not started", "workflow_id", payload.WorkflowID, "reason", err)
			return nil
		}
		o.logger.Error("failed to start workflow", "workflow_id", payload.WorkflowID, "error", err)
		return err
	}

	return nil
}

// handleItemCompleted обрабатывает событие завершения item из очереди
// workitem.completed.
//
// Это fallback-путь: воркер продвигает workflow синхронно, поэтому
// к моменту доставки события Advance обычно уже выполнен и выходит
// no-op'ом по сверке фазы. Событие доводит дело до конца, если воркер
// упал между записью результата и вызовом Advance.
func (o *Orchestrator) handleItemCompleted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.WorkItemCompletedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse workitem.completed payload", "error", err)
		return err
	}

	o.logger.Debug("received workitem.completed event",
		"item_id", payload.WorkItemID,
		"workflow_id", payload.WorkflowID,
		"status", payload.Status,
	)

	// Результат берём из БД, а не из payload: запись в БД первична
	item, err := o.workItemRepo.GetByID(ctx, payload.WorkItemID)
	if err != nil {
		o.logger.Warn("completed item not found, skipping", "item_id", payload.WorkItemID)
		return nil
	}

	if !item.IsFinished() {
		o.logger.Debug("item not finished yet, skipping", "item_id", item.ID, "status", item.Status)
		return nil
	}

	result := domain.WorkflowResult{
		Success:  item.Status == domain.WorkItemStatusCompleted,
		TaskType: item.TaskType,
		Data:     item.Result,
		Error:    item.Error,
		Attempts: item.Attempt,
	}

	if err := o.Advance(ctx, item.WorkflowID, result); err != nil {
		o.logger.Error("failed to advance workflow",
			"workflow_id", item.WorkflowID,
			"item_id", item.ID,
			"error", err,
		)
		return err
	}

	return nil
}

// resolveOverdue доводит просроченные IN_PROGRESS items до failed.
//
// Item, чей воркер умер посреди выполнения, иначе остался бы
// in_progress навсегда и заблокировал workflow.
func (o *Orchestrator) resolveOverdue(ctx context.Context) {
	items, err := o.workItemRepo.ListOverdue(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list overdue work items", "error", err)
		return
	}

	for i := range items {
		item := &items[i]

		o.logger.Warn("resolving overdue work item",
			"item_id", item.ID,
			"workflow_id", item.WorkflowID,
			"task_type", item.TaskType,
			"expected_completion", item.ExpectedCompletion,
		)

		errMsg := fmt.Sprintf("task %s timed out: no result by %s",
			item.TaskType, item.ExpectedCompletion.Format(time.RFC3339))

		item.MarkFailed(errMsg)
		if err := o.workItemRepo.Update(ctx, item); err != nil {
			o.logger.Error("failed to fail overdue item", "item_id", item.ID, "error", err)
			continue
		}

		result := domain.WorkflowResult{
			Success:  false,
			TaskType: item.TaskType,
			Error:    errMsg,
			Attempts: item.Attempt,
		}

		if err := o.Advance(ctx, item.WorkflowID, result); err != nil {
			o.logger.Error("failed to advance workflow after overdue item",
				"workflow_id", item.WorkflowID,
				"error", err,
			)
		}
	}
}
