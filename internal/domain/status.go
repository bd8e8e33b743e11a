package domain

// WorkflowStatus — статус жизненного цикла workflow.
//
// Жизненный цикл:
//
//	ACTIVE → COMPLETED
//	       ↘ FAILED
//	(или) → SUSPENDED (ручная приостановка, возврат в ACTIVE)
type WorkflowStatus string

const (
	// WorkflowStatusActive — workflow выполняется (фазы продвигаются).
	WorkflowStatusActive WorkflowStatus = "ACTIVE"

	// WorkflowStatusSuspended — workflow приостановлен оператором.
	WorkflowStatusSuspended WorkflowStatus = "SUSPENDED"

	// WorkflowStatusCompleted — последовательность фаз исчерпана успешно.
	WorkflowStatusCompleted WorkflowStatus = "COMPLETED"

	// WorkflowStatusFailed — workflow завершился с ошибкой (retry исчерпаны).
	WorkflowStatusFailed WorkflowStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (workflow завершён).
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// WorkItemStatus — статус выполнения work item.
//
// Жизненный цикл:
//
//	QUEUED → IN_PROGRESS → COMPLETED
//	                     ↘ FAILED
type WorkItemStatus string

const (
	// WorkItemStatusQueued — item в очереди, ожидает выполнения.
	WorkItemStatusQueued WorkItemStatus = "QUEUED"

	// WorkItemStatusInProgress — item выполняется воркером.
	WorkItemStatusInProgress WorkItemStatus = "IN_PROGRESS"

	// WorkItemStatusCompleted — item успешно завершён.
	WorkItemStatusCompleted WorkItemStatus = "COMPLETED"

	// WorkItemStatusFailed — item завершился с ошибкой (после всех retry).
	WorkItemStatusFailed WorkItemStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s WorkItemStatus) IsTerminal() bool {
	switch s {
	case WorkItemStatusCompleted, WorkItemStatusFailed:
		return true
	default:
		return false
	}
}

// TaskType — тип задачи, закрытое перечисление.
//
// Discovery-задачи выполняются при сканировании портала,
// submission-задачи — при подаче заявки.
type TaskType string

const (
	// TaskAuthentication — авторизация на портале закупок.
	TaskAuthentication TaskType = "authentication"

	// TaskScanning — сканирование списков opportunities на портале.
	TaskScanning TaskType = "scanning"

	// TaskExtraction — извлечение деталей и документов найденных RFP.
	TaskExtraction TaskType = "extraction"

	// TaskMonitoring — отслеживание изменений уже известных RFP.
	TaskMonitoring TaskType = "monitoring"

	// TaskPreflight — проверка готовности заявки перед подачей.
	TaskPreflight TaskType = "preflight"

	// TaskFilling — заполнение форм заявки на портале.
	TaskFilling TaskType = "filling"

	// TaskUploading — загрузка документов заявки.
	TaskUploading TaskType = "uploading"

	// TaskSubmitting — финальная отправка заявки.
	TaskSubmitting TaskType = "submitting"

	// TaskVerifying — проверка подтверждения подачи.
	TaskVerifying TaskType = "verifying"
)

// IsIdempotent возвращает true для задач, которые безопасно повторять
// на уровне retry wrapper'а.
//
// Авторизация и preflight — read-only операции против портала.
// Остальные типы выполняются один раз: повтор финальной отправки
// заявки никогда не делается молча.
func (t TaskType) IsIdempotent() bool {
	switch t {
	case TaskAuthentication, TaskPreflight:
		return true
	default:
		return false
	}
}

// WorkflowKind — вид workflow.
type WorkflowKind string

const (
	// KindDiscovery — поиск opportunities на портале
	// (authenticating → scanning → extracting → monitoring).
	KindDiscovery WorkflowKind = "DISCOVERY"

	// KindSubmission — подача заявки
	// (preflight → authenticating → filling → uploading → submitting → verifying).
	KindSubmission WorkflowKind = "SUBMISSION"
)

// Phase — именованный шаг в фиксированной последовательности workflow.
//
// Последовательности и метаданные фаз определены в пакете pipeline.
// Переходы строго последовательные и только вперёд.
type Phase string

const (
	// PhaseQueued — workflow создан, первая фаза ещё не запущена.
	PhaseQueued Phase = "queued"

	// PhaseAuthenticating — выполняется авторизация на портале.
	PhaseAuthenticating Phase = "authenticating"

	// PhaseScanning — выполняется сканирование портала.
	PhaseScanning Phase = "scanning"

	// PhaseExtracting — извлекаются детали найденных RFP.
	PhaseExtracting Phase = "extracting"

	// PhaseMonitoring — отслеживаются изменения RFP.
	PhaseMonitoring Phase = "monitoring"

	// PhasePreflight — проверка готовности заявки.
	PhasePreflight Phase = "preflight"

	// PhaseFilling — заполнение форм заявки.
	PhaseFilling Phase = "filling"

	// PhaseUploading — загрузка документов.
	PhaseUploading Phase = "uploading"

	// PhaseSubmitting — отправка заявки.
	PhaseSubmitting Phase = "submitting"

	// PhaseVerifying — проверка подтверждения.
	PhaseVerifying Phase = "verifying"

	// PhaseCompleted — терминальная псевдо-фаза успешного завершения.
	PhaseCompleted Phase = "completed"

	// PhaseFailed — терминальная псевдо-фаза завершения с ошибкой.
	PhaseFailed Phase = "failed"
)
