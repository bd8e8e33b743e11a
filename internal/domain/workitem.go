package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkItem — отдельная диспетчеризуемая единица работы внутри workflow.
//
// WorkItem создаётся Orchestrator'ом при постановке следующей фазы
// и выполняется Worker'ом. Инвариант: на пару (workflow_id, task_type)
// одновременно может быть не больше одного item в статусе IN_PROGRESS.
//
// Items архивируются, когда владеющий workflow достигает терминальной фазы.
type WorkItem struct {
	// ID — уникальный идентификатор item.
	ID uuid.UUID `json:"id"`

	// WorkflowID — ссылка на родительский workflow.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// TaskType — тип задачи (закрытое перечисление).
	TaskType TaskType `json:"task_type"`

	// Status — текущий статус item.
	Status WorkItemStatus `json:"status"`

	// Attempt — номер попытки (начиная с 1).
	// Увеличивается retry wrapper'ом.
	Attempt int `json:"attempt"`

	// Inputs — входные данные для executor'а (данные предыдущей фазы).
	Inputs map[string]any `json:"inputs,omitempty"`

	// Result — результат выполнения. Присутствует только при COMPLETED.
	Result map[string]any `json:"result,omitempty"`

	// Error — текст ошибки. Присутствует только при FAILED.
	Error string `json:"error,omitempty"`

	// ExpectedCompletion — дедлайн: время постановки + таймаут типа задачи.
	ExpectedCompletion time.Time `json:"expected_completion"`

	// Archived — item принадлежит завершённому workflow.
	Archived bool `json:"archived,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время постановки item.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
func (i *WorkItem) Duration() time.Duration {
	if i.StartedAt == nil || i.FinishedAt == nil {
		return 0
	}
	return i.FinishedAt.Sub(*i.StartedAt)
}

// IsFinished возвращает true, если item завершён.
func (i *WorkItem) IsFinished() bool {
	return i.Status.IsTerminal()
}

// IsOverdue возвращает true, если item выполняется дольше своего дедлайна.
func (i *WorkItem) IsOverdue(now time.Time) bool {
	return i.Status == WorkItemStatusInProgress && now.After(i.ExpectedCompletion)
}

// MarkInProgress переводит item в статус IN_PROGRESS.
func (i *WorkItem) MarkInProgress() {
	now := time.Now()
	i.Status = WorkItemStatusInProgress
	i.StartedAt = &now
	i.Attempt++
}

// MarkCompleted переводит item в статус COMPLETED с результатом.
func (i *WorkItem) MarkCompleted(result map[string]any) {
	now := time.Now()
	i.Status = WorkItemStatusCompleted
	i.FinishedAt = &now
	i.Result = result
	i.Error = ""
}

// MarkFailed переводит item в статус FAILED с ошибкой.
func (i *WorkItem) MarkFailed(err string) {
	now := time.Now()
	i.Status = WorkItemStatusFailed
	i.FinishedAt = &now
	i.Error = err
}
