package broadcast

import (
	"math"
	"time"
)

// EventKind — тип прогресс-события.
type EventKind string

// Виды событий.
const (
	EventScanStarted   EventKind = "scan_started"
	EventStepUpdate    EventKind = "step_update"
	EventProgress      EventKind = "progress"
	EventRFPDiscovered EventKind = "rfp_discovered"
	EventError         EventKind = "error"
	EventScanCompleted EventKind = "scan_completed"
	EventScanFailed    EventKind = "scan_failed"

	// EventInitialState — синтетическое событие с текущим состоянием
	// сессии, доставляется подписчику первым.
	EventInitialState EventKind = "initial_state"
)

// Event — одно прогресс-событие сессии.
type Event struct {
	// Type — вид события.
	Type EventKind `json:"type"`

	// Timestamp — время события.
	Timestamp time.Time `json:"timestamp"`

	// Message — описание прогресса. Часть продюсеров кладёт его
	// на верхний уровень, часть — в Data["message"]; при наличии
	// обоих вложенное значение приоритетнее.
	Message string `json:"message,omitempty"`

	// Data — полезная нагрузка события.
	// Для step_update/progress содержит step, progress, message.
	Data map[string]any `json:"data,omitempty"`
}

// NewEvent создаёт событие с текущим временем.
func NewEvent(kind EventKind, data map[string]any) Event {
	return Event{
		Type:      kind,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// progressValue извлекает числовой progress из события.
// Возвращает false, если значение отсутствует или не является
// конечным числом.
func progressValue(ev Event) (float64, bool) {
	raw, ok := ev.Data["progress"]
	if !ok {
		return 0, false
	}

	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	default:
		return 0, false
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func stringField(ev Event, key string) string {
	if s, ok := ev.Data[key].(string); ok {
		return s
	}
	return ""
}

// messageText возвращает описание прогресса события:
// Data["message"] приоритетнее верхнеуровневого Message.
func messageText(ev Event) string {
	if s := stringField(ev, "message"); s != "" {
		return s
	}
	return ev.Message
}
