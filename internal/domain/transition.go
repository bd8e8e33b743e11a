package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowTransition — запись об одном переходе фазы.
//
// Пишется оркестратором при каждом вызове Advance и служит сырьём
// для transitionSummary() агрегатора.
type WorkflowTransition struct {
	// ID — уникальный идентификатор перехода.
	ID uuid.UUID `json:"id"`

	// WorkflowID — workflow, в котором произошёл переход.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// FromPhase — завершившаяся фаза.
	FromPhase Phase `json:"from_phase"`

	// ToPhase — фаза, в которую перешёл workflow
	// (или терминальная псевдо-фаза).
	ToPhase Phase `json:"to_phase"`

	// Success — был ли переход результатом успешного выполнения задачи.
	Success bool `json:"success"`

	// DurationMs — длительность завершившейся фазы в миллисекундах.
	DurationMs int64 `json:"duration_ms"`

	// CreatedAt — время перехода.
	CreatedAt time.Time `json:"created_at"`
}
