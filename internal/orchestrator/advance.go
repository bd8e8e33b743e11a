package orchestrator

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
	"github.com/shaiso/Tendera/internal/telemetry"
)

// Advance продвигает workflow после завершения задачи.
//
// Переходы строго последовательные и только вперёд. Ровно один
// побочный эффект: либо в очередь ставится один новый work item
// следующей фазы, либо workflow переводится в терминальный статус.
// Повторный вызов для уже продвинутого workflow — no-op: Advance
// сверяет текущую фазу с фазой завершившейся задачи.
func (o *Orchestrator) Advance(ctx context.Context, workflowID uuid.UUID, result domain.WorkflowResult) error {
	wf, err := o.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
		}
		return fmt.Errorf("get workflow: %w", err)
	}

	if wf.IsFinished() {
		o.logger.Debug("workflow already finished, skipping advance",
			"workflow_id", workflowID,
			"status", wf.Status,
		)
		return nil
	}

	finishedPhase, ok := pipeline.PhaseForTask(wf.Kind, result.TaskType)
	if !ok {
		return fmt.Errorf("%w: %s in %s workflow", ErrUnknownPhase, result.TaskType, wf.Kind)
	}

	if wf.CurrentPhase != finishedPhase {
		// Воркер уже продвинул workflow синхронно; событие
		// workitem.completed пришло вторым
		o.logger.Debug("workflow already advanced past phase",
			"workflow_id", workflowID,
			"current_phase", wf.CurrentPhase,
			"finished_phase", finishedPhase,
		)
		return nil
	}

	phaseDuration := time.Since(wf.UpdatedAt)

	if !result.Success {
		return o.failWorkflow(ctx, wf, finishedPhase, phaseDuration, result.Error)
	}

	// Находки extraction-фазы сохраняются до постановки следующей фазы
	if result.TaskType == domain.TaskExtraction {
		o.persistDiscoveredRFPs(ctx, wf, result.Data)
	}

	next, ok := pipeline.NextPhase(wf.Kind, finishedPhase)
	if !ok {
		return o.completeWorkflow(ctx, wf, finishedPhase, phaseDuration, result)
	}

	inputs := carryForward(wf, finishedPhase, result)
	if err := o.dispatchPhase(ctx, wf, next, inputs); err != nil {
		return err
	}

	wf.AdvanceTo(next, pipeline.WeightFor(wf.Kind, next))
	if err := o.workflowRepo.Update(ctx, wf); err != nil {
		return fmt.Errorf("update workflow phase: %w", err)
	}

	o.recordTransition(ctx, wf.ID, finishedPhase, next, true, phaseDuration)
	telemetry.PhaseTransitions.WithLabelValues("success").Inc()

	o.logger.Info("workflow advanced",
		"workflow_id", wf.ID,
		"from", finishedPhase,
		"to", next,
		"progress", wf.Progress,
	)

	return nil
}

// startWorkflow запускает queued workflow: ставит item первой фазы.
func (o *Orchestrator) startWorkflow(ctx context.Context, workflowID uuid.UUID) error {
	wf, err := o.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
		}
		return fmt.Errorf("get workflow: %w", err)
	}

	if wf.CurrentPhase != domain.PhaseQueued || wf.Status != domain.WorkflowStatusActive {
		return ErrWorkflowNotQueued
	}

	first := pipeline.FirstPhase(wf.Kind)

	inputs := carryForward(wf, domain.PhaseQueued, domain.WorkflowResult{})
	if err := o.dispatchPhase(ctx, wf, first, inputs); err != nil {
		return err
	}

	wf.AdvanceTo(first, pipeline.WeightFor(wf.Kind, first))
	if err := o.workflowRepo.Update(ctx, wf); err != nil {
		return fmt.Errorf("update workflow phase: %w", err)
	}

	o.recordTransition(ctx, wf.ID, domain.PhaseQueued, first, true, 0)
	telemetry.ActiveWorkflows.Inc()

	o.publishProgress(ctx, wf, "scan_started", map[string]any{
		"workflow_id": wf.ID.String(),
		"kind":        string(wf.Kind),
	})

	o.logger.Info("workflow started",
		"workflow_id", wf.ID,
		"kind", wf.Kind,
		"first_phase", first,
	)

	return nil
}

// dispatchPhase создаёт work item фазы и публикует workitem.ready.
func (o *Orchestrator) dispatchPhase(ctx context.Context, wf *domain.Workflow, phase domain.Phase, inputs map[string]any) error {
	taskType, ok := pipeline.TaskTypeFor(phase)
	if !ok {
		return fmt.Errorf("%w: no task type for phase %s", ErrUnknownPhase, phase)
	}

	// Инвариант: не больше одного IN_PROGRESS item на (workflow, task type)
	inProgress, err := o.workItemRepo.HasInProgress(ctx, wf.ID, taskType)
	if err != nil {
		return fmt.Errorf("check in-progress items: %w", err)
	}
	if inProgress {
		return fmt.Errorf("%w: %s/%s", ErrPhaseInProgress, wf.ID, taskType)
	}

	now := time.Now()
	item := &domain.WorkItem{
		ID:                 uuid.New(),
		WorkflowID:         wf.ID,
		TaskType:           taskType,
		Status:             domain.WorkItemStatusQueued,
		Inputs:             inputs,
		ExpectedCompletion: now.Add(pipeline.TimeoutFor(taskType)),
		CreatedAt:          now,
	}

	if err := o.workItemRepo.Create(ctx, item); err != nil {
		return fmt.Errorf("create work item: %w", err)
	}

	if o.publisher != nil {
		if err := o.publisher.PublishWorkItemReady(ctx, item.ID, wf.ID); err != nil {
			o.logger.Warn("failed to publish workitem.ready",
				"item_id", item.ID,
				"workflow_id", wf.ID,
				"error", err,
			)
			// Item создан в БД — Worker заберёт через polling
		}
	}

	o.logger.Debug("work item dispatched",
		"item_id", item.ID,
		"workflow_id", wf.ID,
		"task_type", taskType,
		"expected_completion", item.ExpectedCompletion,
	)

	return nil
}

// completeWorkflow завершает workflow после последней фазы.
func (o *Orchestrator) completeWorkflow(ctx context.Context, wf *domain.Workflow, lastPhase domain.Phase, phaseDuration time.Duration, result domain.WorkflowResult) error {
	wf.MarkCompleted()
	if err := o.workflowRepo.Update(ctx, wf); err != nil {
		return fmt.Errorf("update workflow to completed: %w", err)
	}

	o.recordTransition(ctx, wf.ID, lastPhase, domain.PhaseCompleted, true, phaseDuration)
	telemetry.PhaseTransitions.WithLabelValues("success").Inc()
	telemetry.WorkflowsFinished.WithLabelValues(string(domain.WorkflowStatusCompleted)).Inc()
	telemetry.ActiveWorkflows.Dec()

	o.publishProgress(ctx, wf, "scan_completed", map[string]any{
		"workflow_id": wf.ID.String(),
		"duration_ms": wf.Duration().Milliseconds(),
		"final_data":  result.Data,
	})

	o.archiveItems(ctx, wf.ID)

	o.logger.Info("workflow completed",
		"workflow_id", wf.ID,
		"kind", wf.Kind,
		"duration", wf.Duration(),
	)

	return nil
}

// failWorkflow переводит workflow в FAILED после исчерпания retry.
func (o *Orchestrator) failWorkflow(ctx context.Context, wf *domain.Workflow, phase domain.Phase, phaseDuration time.Duration, errMsg string) error {
	wf.MarkFailed(errMsg)
	if err := o.workflowRepo.Update(ctx, wf); err != nil {
		return fmt.Errorf("update workflow to failed: %w", err)
	}

	o.recordTransition(ctx, wf.ID, phase, domain.PhaseFailed, false, phaseDuration)
	telemetry.PhaseTransitions.WithLabelValues("failure").Inc()
	telemetry.WorkflowsFinished.WithLabelValues(string(domain.WorkflowStatusFailed)).Inc()
	telemetry.ActiveWorkflows.Dec()

	o.publishProgress(ctx, wf, "scan_failed", map[string]any{
		"workflow_id": wf.ID.String(),
		"phase":       string(phase),
		"error":       errMsg,
	})

	o.archiveItems(ctx, wf.ID)

	o.logger.Warn("workflow failed",
		"workflow_id", wf.ID,
		"phase", phase,
		"error", errMsg,
	)

	return nil
}

// archiveItems архивирует items завершённого workflow.
func (o *Orchestrator) archiveItems(ctx context.Context, workflowID uuid.UUID) {
	if err := o.workItemRepo.ArchiveByWorkflowID(ctx, workflowID); err != nil {
		o.logger.Warn("failed to archive work items",
			"workflow_id", workflowID,
			"error", err,
		)
	}
}

// recordTransition записывает переход фазы для агрегатора.
func (o *Orchestrator) recordTransition(ctx context.Context, workflowID uuid.UUID, from, to domain.Phase, success bool, duration time.Duration) {
	if o.statsRepo == nil {
		return
	}

	t := &domain.WorkflowTransition{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		FromPhase:  from,
		ToPhase:    to,
		Success:    success,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  time.Now(),
	}

	if err := o.statsRepo.RecordTransition(ctx, t); err != nil {
		o.logger.Warn("failed to record transition",
			"workflow_id", workflowID,
			"error", err,
		)
	}
}

// publishProgress публикует прогресс-событие сессии workflow.
func (o *Orchestrator) publishProgress(ctx context.Context, wf *domain.Workflow, eventType string, data map[string]any) {
	if o.publisher == nil {
		return
	}

	payload := mq.ScanProgressPayload{
		SessionID: wf.SessionID.String(),
		EventType: eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	if err := o.publisher.PublishScanProgress(ctx, payload); err != nil {
		o.logger.Warn("failed to publish scan progress",
			"workflow_id", wf.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}

// carryForward собирает inputs следующей фазы из результата предыдущей.
//
// Результат кладётся под result key завершившейся фазы; идентификаторы
// workflow доступны каждой фазе.
func carryForward(wf *domain.Workflow, finishedPhase domain.Phase, result domain.WorkflowResult) map[string]any {
	inputs := map[string]any{
		"workflow_id": wf.ID.String(),
		"portal_id":   wf.PortalID.String(),
	}
	if wf.RFPID != nil {
		inputs["rfp_id"] = wf.RFPID.String()
	}

	if result.Data != nil {
		if key, ok := pipeline.ResultKeyFor(finishedPhase); ok {
			inputs[key] = result.Data
		}
	}

	return inputs
}

// persistDiscoveredRFPs сохраняет RFP из результата extraction-фазы
// и публикует rfp_discovered для наблюдателей.
//
// Ошибки сохранения не валят workflow: находки переизвлекаются
// при следующем сканировании.
func (o *Orchestrator) persistDiscoveredRFPs(ctx context.Context, wf *domain.Workflow, data map[string]any) {
	if o.rfpRepo == nil || data == nil {
		return
	}

	records, ok := data["records"].([]any)
	if !ok {
		return
	}

	now := time.Now()
	saved := 0

	for _, raw := range records {
		record, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		externalID, _ := record["external_id"].(string)
		title, _ := record["title"].(string)
		if externalID == "" || title == "" {
			continue
		}

		rfp := &domain.RFP{
			ID:           uuid.New(),
			PortalID:     wf.PortalID,
			ExternalID:   externalID,
			Title:        title,
			Status:       domain.RFPStatusDiscovered,
			Details:      record,
			DiscoveredAt: now,
			UpdatedAt:    now,
		}
		if agency, ok := record["agency"].(string); ok {
			rfp.Agency = agency
		}
		if url, ok := record["url"].(string); ok {
			rfp.URL = url
		}

		if err := o.rfpRepo.Upsert(ctx, rfp); err != nil {
			o.logger.Warn("failed to persist discovered rfp",
				"workflow_id", wf.ID,
				"external_id", externalID,
				"error", err,
			)
			continue
		}
		saved++

		o.publishProgress(ctx, wf, "rfp_discovered", map[string]any{
			"external_id": externalID,
			"title":       title,
		})
	}

	if saved > 0 {
		o.logger.Info("discovered rfps persisted",
			"workflow_id", wf.ID,
			"count", saved,
		)
	}
}
