package portal

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingBaseURL возвращается при создании клиента без базового URL.
var ErrMissingBaseURL = errors.New("portal base URL is required")

// RemoteError — ошибка удалённого портала.
//
// Retryable выставляется только для rate-limiting (429) и временной
// недоступности (503); остальные статусы не повторяются.
type RemoteError struct {
	// StatusCode — HTTP-статус ответа.
	StatusCode int

	// Retryable — можно ли повторить запрос.
	Retryable bool

	// RetryAfter — подсказка сервера, сколько ждать перед повтором.
	// Ноль, если сервер подсказку не прислал.
	RetryAfter time.Duration

	// Body — тело ответа для диагностики (усечённое).
	Body string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("portal returned %d (%s)", e.StatusCode, e.StatusClass())
}

// StatusClass возвращает класс статуса: "4xx", "5xx" и т.д.
func (e *RemoteError) StatusClass() string {
	return fmt.Sprintf("%dxx", e.StatusCode/100)
}

// IsRetryable сообщает, является ли ошибка временной.
func IsRetryable(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Retryable
	}
	return false
}
