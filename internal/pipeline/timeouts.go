package pipeline

import (
	"time"

	"github.com/shaiso/Tendera/internal/domain"
)

// DefaultTimeout — таймаут для неизвестных типов задач.
const DefaultTimeout = 15 * time.Minute

// taskTimeouts — жёсткие дедлайны выполнения по типу задачи.
//
// Executor прерывает задачу, не уложившуюся в дедлайн; retry —
// ответственность retry wrapper'а, не таблицы.
var taskTimeouts = map[domain.TaskType]time.Duration{
	domain.TaskAuthentication: 5 * time.Minute,
	domain.TaskScanning:       20 * time.Minute,
	domain.TaskExtraction:     30 * time.Minute,
	domain.TaskMonitoring:     10 * time.Minute,
	domain.TaskPreflight:      5 * time.Minute,
	domain.TaskFilling:        15 * time.Minute,
	domain.TaskUploading:      20 * time.Minute,
	domain.TaskSubmitting:     10 * time.Minute,
	domain.TaskVerifying:      10 * time.Minute,
}

// TimeoutFor возвращает таймаут типа задачи.
// Для неизвестного типа — DefaultTimeout.
func TimeoutFor(taskType domain.TaskType) time.Duration {
	if d, ok := taskTimeouts[taskType]; ok {
		return d
	}
	return DefaultTimeout
}
