package worker

import "errors"

// Ошибки воркера.
var (
	// ErrItemNotFound — work item не найден в БД.
	ErrItemNotFound = errors.New("work item not found")

	// ErrItemNotQueued — item не в статусе QUEUED.
	ErrItemNotQueued = errors.New("work item is not in QUEUED status")

	// ErrUnknownTaskType — нет коллаборатора для данного типа задачи.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrExecutionTimeout — выполнение задачи превысило дедлайн.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
