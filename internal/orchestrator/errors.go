package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrWorkflowNotFound — workflow не найден в БД.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowNotQueued — workflow не в фазе queued.
	ErrWorkflowNotQueued = errors.New("workflow is not in queued phase")

	// ErrWorkflowFinished — workflow уже в терминальном статусе.
	ErrWorkflowFinished = errors.New("workflow already finished")

	// ErrUnknownPhase — тип задачи не соответствует ни одной фазе
	// последовательности данного вида workflow.
	ErrUnknownPhase = errors.New("task type does not map to a pipeline phase")

	// ErrPhaseInProgress — для пары (workflow, task type) уже есть
	// item в статусе IN_PROGRESS.
	ErrPhaseInProgress = errors.New("phase already has an in-progress work item")
)
