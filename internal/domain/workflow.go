package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workflow — агрегатный жизненный цикл одной найденной opportunity
// или одной подачи заявки.
//
// Workflow создаётся когда:
// - Пользователь запускает сканирование портала вручную (через API/CLI)
// - Scheduler создаёт discovery workflow по расписанию
// - Пользователь стартует submission pipeline для RFP
//
// Каждый workflow продвигается по фиксированной последовательности фаз
// (пакет pipeline); в один момент времени выполняется ровно одна фаза.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID uuid.UUID `json:"id"`

	// Kind — вид workflow: DISCOVERY или SUBMISSION.
	Kind WorkflowKind `json:"kind"`

	// PortalID — портал закупок, против которого работает workflow.
	PortalID uuid.UUID `json:"portal_id"`

	// RFPID — ссылка на RFP (только для submission workflows).
	RFPID *uuid.UUID `json:"rfp_id,omitempty"`

	// SessionID — сессия прогресс-стрима для наблюдателей.
	SessionID uuid.UUID `json:"session_id"`

	// CurrentPhase — текущая фаза последовательности.
	CurrentPhase Phase `json:"current_phase"`

	// Status — текущий статус выполнения.
	Status WorkflowStatus `json:"status"`

	// Progress — процент выполнения (0–100), выводится из таблицы фаз.
	// Никогда не уменьшается.
	Progress int `json:"progress"`

	// Context — свободные метаданные для отображения (title, agency и т.д.).
	// Никогда не используется для control flow.
	Context map[string]any `json:"context,omitempty"`

	// Error — текст ошибки, если workflow завершился с FAILED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Например, для scheduled scans: "{schedule_id}_{next_due_at}"
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// StartedAt — время запуска первой фазы.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания workflow.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения фазы или статуса.
	UpdatedAt time.Time `json:"updated_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если workflow ещё не завершён.
func (w *Workflow) Duration() time.Duration {
	if w.StartedAt == nil || w.FinishedAt == nil {
		return 0
	}
	return w.FinishedAt.Sub(*w.StartedAt)
}

// IsFinished возвращает true, если workflow завершён.
func (w *Workflow) IsFinished() bool {
	return w.Status.IsTerminal()
}

// AdvanceTo переводит workflow в следующую фазу.
// Progress монотонный: меньший вес фазы не уменьшает уже достигнутый.
func (w *Workflow) AdvanceTo(phase Phase, weight int) {
	now := time.Now()
	if w.StartedAt == nil {
		w.StartedAt = &now
	}
	w.CurrentPhase = phase
	if weight > w.Progress {
		w.Progress = weight
	}
	w.UpdatedAt = now
}

// MarkCompleted переводит workflow в статус COMPLETED.
func (w *Workflow) MarkCompleted() {
	now := time.Now()
	w.Status = WorkflowStatusCompleted
	w.CurrentPhase = PhaseCompleted
	w.Progress = 100
	w.FinishedAt = &now
	w.UpdatedAt = now
}

// MarkFailed переводит workflow в статус FAILED с ошибкой.
func (w *Workflow) MarkFailed(err string) {
	now := time.Now()
	w.Status = WorkflowStatusFailed
	w.CurrentPhase = PhaseFailed
	w.Error = err
	w.FinishedAt = &now
	w.UpdatedAt = now
}

// Suspend приостанавливает workflow.
func (w *Workflow) Suspend() {
	w.Status = WorkflowStatusSuspended
	w.UpdatedAt = time.Now()
}

// Resume возвращает приостановленный workflow в ACTIVE.
func (w *Workflow) Resume() {
	w.Status = WorkflowStatusActive
	w.UpdatedAt = time.Now()
}

// WorkflowResult — нормализованный результат выполнения одной задачи,
// передаваемый в Orchestrator.Advance.
type WorkflowResult struct {
	// Success — завершилась ли задача успешно.
	Success bool `json:"success"`

	// TaskType — тип выполненной задачи.
	TaskType TaskType `json:"task_type"`

	// Data — результат задачи (присутствует только при успехе).
	Data map[string]any `json:"data,omitempty"`

	// Error — текст ошибки (присутствует только при неудаче).
	Error string `json:"error,omitempty"`

	// Attempts — сколько попыток было сделано retry wrapper'ом.
	Attempts int `json:"attempts"`
}
