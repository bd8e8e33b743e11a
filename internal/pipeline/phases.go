package pipeline

import (
	"time"

	"github.com/shaiso/Tendera/internal/domain"
)

// discoverySequence — порядок фаз discovery workflow.
var discoverySequence = []domain.Phase{
	domain.PhaseAuthenticating,
	domain.PhaseScanning,
	domain.PhaseExtracting,
	domain.PhaseMonitoring,
}

// submissionSequence — порядок фаз submission workflow.
var submissionSequence = []domain.Phase{
	domain.PhasePreflight,
	domain.PhaseAuthenticating,
	domain.PhaseFilling,
	domain.PhaseUploading,
	domain.PhaseSubmitting,
	domain.PhaseVerifying,
}

// Descriptor — статические метаданные одной фазы.
type Descriptor struct {
	// DisplayName — имя фазы для отображения.
	DisplayName string

	// Weight — вес прогресса (0–100). Монотонно возрастает
	// вдоль последовательности фаз.
	Weight int

	// Estimate — оценка длительности фазы.
	Estimate time.Duration

	// ResultKey — ключ, под которым результат фазы попадает
	// в payload следующей фазы.
	ResultKey string
}

// descriptors — таблица метаданных фаз.
//
// Веса submission-фаз: 10/25/45/65/80/95; веса discovery-фаз: 10/45/80/95.
// Терминальные псевдо-фазы completed/failed тоже имеют result key,
// чтобы финальное состояние было адресуемо наблюдателями.
var descriptors = map[domain.Phase]Descriptor{
	domain.PhaseAuthenticating: {DisplayName: "Portal authentication", Weight: 10, Estimate: 2 * time.Minute, ResultKey: "session"},
	domain.PhaseScanning:       {DisplayName: "Portal scanning", Weight: 45, Estimate: 10 * time.Minute, ResultKey: "scanResults"},
	domain.PhaseExtracting:     {DisplayName: "RFP extraction", Weight: 80, Estimate: 15 * time.Minute, ResultKey: "extractedRFPs"},
	domain.PhaseMonitoring:     {DisplayName: "RFP monitoring", Weight: 95, Estimate: 5 * time.Minute, ResultKey: "monitoringReport"},

	domain.PhasePreflight:  {DisplayName: "Submission preflight", Weight: 10, Estimate: time.Minute, ResultKey: "preflightReport"},
	domain.PhaseFilling:    {DisplayName: "Form filling", Weight: 45, Estimate: 5 * time.Minute, ResultKey: "filledForms"},
	domain.PhaseUploading:  {DisplayName: "Document upload", Weight: 65, Estimate: 3 * time.Minute, ResultKey: "uploadedDocuments"},
	domain.PhaseSubmitting: {DisplayName: "Submission", Weight: 80, Estimate: 2 * time.Minute, ResultKey: "confirmation"},
	domain.PhaseVerifying:  {DisplayName: "Verification", Weight: 95, Estimate: 2 * time.Minute, ResultKey: "verification"},

	domain.PhaseCompleted: {DisplayName: "Completed", Weight: 100, ResultKey: "finalResult"},
	domain.PhaseFailed:    {DisplayName: "Failed", Weight: 100, ResultKey: "failureReason"},
}

// submissionWeights — веса фаз submission pipeline, переопределяющие
// общую таблицу там, где последовательности делят фазу (authenticating
// в submission идёт второй и весит 25, а не 10).
var submissionWeights = map[domain.Phase]int{
	domain.PhasePreflight:      10,
	domain.PhaseAuthenticating: 25,
	domain.PhaseFilling:        45,
	domain.PhaseUploading:      65,
	domain.PhaseSubmitting:     80,
	domain.PhaseVerifying:      95,
}

// phaseTasks — соответствие фазы типу задачи.
var phaseTasks = map[domain.Phase]domain.TaskType{
	domain.PhaseAuthenticating: domain.TaskAuthentication,
	domain.PhaseScanning:       domain.TaskScanning,
	domain.PhaseExtracting:     domain.TaskExtraction,
	domain.PhaseMonitoring:     domain.TaskMonitoring,
	domain.PhasePreflight:      domain.TaskPreflight,
	domain.PhaseFilling:        domain.TaskFilling,
	domain.PhaseUploading:      domain.TaskUploading,
	domain.PhaseSubmitting:     domain.TaskSubmitting,
	domain.PhaseVerifying:      domain.TaskVerifying,
}

// Sequence возвращает порядок фаз для вида workflow.
func Sequence(kind domain.WorkflowKind) []domain.Phase {
	if kind == domain.KindSubmission {
		return submissionSequence
	}
	return discoverySequence
}

// FirstPhase возвращает первую фазу последовательности.
func FirstPhase(kind domain.WorkflowKind) domain.Phase {
	return Sequence(kind)[0]
}

// NextPhase возвращает фазу, следующую за current.
// ok=false, если current — последняя фаза (workflow завершается)
// или current отсутствует в последовательности.
func NextPhase(kind domain.WorkflowKind, current domain.Phase) (domain.Phase, bool) {
	seq := Sequence(kind)
	if current == domain.PhaseQueued {
		return seq[0], true
	}
	for i, phase := range seq {
		if phase == current {
			if i+1 < len(seq) {
				return seq[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// IsKnownPhase проверяет, известна ли фаза таблице
// (включая терминальные псевдо-фазы).
func IsKnownPhase(name string) bool {
	_, ok := descriptors[domain.Phase(name)]
	return ok || domain.Phase(name) == domain.PhaseQueued
}

// ResultKeyFor возвращает result key фазы.
// Для обычных фаз и терминальных псевдо-фаз completed/failed
// возвращает ключ, иначе ok=false.
func ResultKeyFor(phase domain.Phase) (string, bool) {
	d, ok := descriptors[phase]
	if !ok {
		return "", false
	}
	return d.ResultKey, true
}

// WeightFor возвращает вес прогресса фазы в рамках вида workflow.
func WeightFor(kind domain.WorkflowKind, phase domain.Phase) int {
	if kind == domain.KindSubmission {
		if w, ok := submissionWeights[phase]; ok {
			return w
		}
	}
	if d, ok := descriptors[phase]; ok {
		return d.Weight
	}
	return 0
}

// EstimateFor возвращает оценку длительности фазы.
func EstimateFor(phase domain.Phase) time.Duration {
	return descriptors[phase].Estimate
}

// DisplayNameFor возвращает имя фазы для отображения.
func DisplayNameFor(phase domain.Phase) string {
	if d, ok := descriptors[phase]; ok {
		return d.DisplayName
	}
	return string(phase)
}

// TaskTypeFor возвращает тип задачи, выполняющий фазу.
func TaskTypeFor(phase domain.Phase) (domain.TaskType, bool) {
	t, ok := phaseTasks[phase]
	return t, ok
}

// PhaseForTask возвращает фазу, которую выполняет тип задачи
// в рамках вида workflow.
func PhaseForTask(kind domain.WorkflowKind, taskType domain.TaskType) (domain.Phase, bool) {
	for _, phase := range Sequence(kind) {
		if phaseTasks[phase] == taskType {
			return phase, true
		}
	}
	return "", false
}
