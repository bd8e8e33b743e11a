package broadcast

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Tendera/internal/telemetry"
)

// ErrSessionNotFound возвращается при подписке на несуществующую сессию.
var ErrSessionNotFound = errors.New("session not found")

const (
	// defaultGracePeriod — пауза между терминальным событием и
	// закрытием сессии, чтобы подписчики успели его получить.
	defaultGracePeriod = 5 * time.Second

	// defaultBuffer — размер буфера канала подписчика.
	// Подписчик с переполненным буфером отключается.
	defaultBuffer = 16

	// maxLogSize — ограничение журнала событий сессии.
	maxLogSize = 256
)

// currentStep — производное состояние сессии,
// пересчитывается на каждом step_update/progress.
type currentStep struct {
	Step     string
	Progress float64
	Message  string
}

// observer — один подписчик сессии.
type observer struct {
	ch chan Event
}

// session — состояние одной сессии сканирования.
type session struct {
	log       []Event
	step      currentStep
	items     int
	terminal  bool
	observers map[*observer]struct{}
	closeTmr  *time.Timer
}

// Broadcaster раздаёт прогресс-события подписчикам по session ID.
//
// Один писатель, много читателей. Сессии живут только в памяти:
// после терминального события и grace-периода сессия удаляется,
// долговременная история — ответственность хранилища.
type Broadcaster struct {
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session

	grace  time.Duration
	buffer int
}

// Option настраивает Broadcaster.
type Option func(*Broadcaster)

// WithGracePeriod переопределяет grace-период закрытия сессии.
func WithGracePeriod(d time.Duration) Option {
	return func(b *Broadcaster) { b.grace = d }
}

// WithBuffer переопределяет размер буфера подписчика.
// Минимум 1: небуферизованный канал заблокировал бы Subscribe
// на отправке initial_state под общим локом.
func WithBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n < 1 {
			n = 1
		}
		b.buffer = n
	}
}

// NewBroadcaster создаёт новый Broadcaster.
func NewBroadcaster(logger *slog.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		logger:   logger,
		sessions: make(map[string]*session),
		grace:    defaultGracePeriod,
		buffer:   defaultBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit публикует событие в сессию.
//
// Событие дописывается в журнал сессии и рассылается всем текущим
// подписчикам. Некорректные step_update/progress (без числового
// progress) логируются и отбрасываются. Для терминальных событий
// планируется закрытие сессии после grace-периода.
func (b *Broadcaster) Emit(sessionID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[sessionID]
	if !ok {
		s = &session{observers: make(map[*observer]struct{})}
		b.sessions[sessionID] = s
	}

	if s.terminal {
		// После терминального события сессия только доживает grace-период.
		b.logger.Debug("event after terminal, dropped", "session_id", sessionID, "type", ev.Type)
		return
	}

	switch ev.Type {
	case EventStepUpdate, EventProgress:
		progress, ok := progressValue(ev)
		if !ok {
			b.logger.Warn("malformed progress event dropped",
				"session_id", sessionID,
				"type", ev.Type,
			)
			return
		}
		if step := stringField(ev, "step"); step != "" {
			s.step.Step = step
		}
		s.step.Progress = progress
		if msg := messageText(ev); msg != "" {
			s.step.Message = msg
		}

	case EventRFPDiscovered:
		s.items++

	case EventScanCompleted, EventScanFailed:
		s.terminal = true
	}

	s.log = append(s.log, ev)
	if len(s.log) > maxLogSize {
		s.log = s.log[len(s.log)-maxLogSize:]
	}

	b.push(sessionID, s, ev)

	if s.terminal {
		s.closeTmr = time.AfterFunc(b.grace, func() {
			b.closeSession(sessionID)
		})
	}
}

// Subscribe подписывает наблюдателя на сессию.
//
// Первым в канал кладётся initial_state с текущим производным
// состоянием, поэтому поздний подписчик никогда не начинает с пустоты.
// Возвращённая функция отписывает наблюдателя.
func (b *Broadcaster) Subscribe(sessionID string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	obs := &observer{ch: make(chan Event, b.buffer)}

	// initial_state кладётся до регистрации наблюдателя, под общим
	// локом: события, опубликованные после подписки, гарантированно
	// придут следом.
	obs.ch <- NewEvent(EventInitialState, map[string]any{
		"step":             s.step.Step,
		"progress":         s.step.Progress,
		"message":          s.step.Message,
		"items_discovered": s.items,
	})

	s.observers[obs] = struct{}{}
	telemetry.ScanObservers.Inc()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, still := s.observers[obs]; still {
			delete(s.observers, obs)
			close(obs.ch)
			telemetry.ScanObservers.Dec()
		}
	}

	return obs.ch, unsubscribe, nil
}

// ObserverCount возвращает число подписчиков сессии.
func (b *Broadcaster) ObserverCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(s.observers)
}

// push рассылает событие подписчикам. Вызывается под локом.
func (b *Broadcaster) push(sessionID string, s *session, ev Event) {
	for obs := range s.observers {
		select {
		case obs.ch <- ev:
		default:
			// Переполненный буфер: подписчик не успевает читать,
			// отключаем чтобы не блокировать остальных.
			b.logger.Warn("slow observer disconnected", "session_id", sessionID)
			delete(s.observers, obs)
			close(obs.ch)
			telemetry.ScanObservers.Dec()
		}
	}
}

// closeSession отключает всех подписчиков и удаляет сессию.
func (b *Broadcaster) closeSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[sessionID]
	if !ok {
		return
	}

	// Подписчики убираются из observers до закрытия каналов:
	// unsubscribe, вызванный после, увидит их отсутствие и не
	// закроет канал повторно.
	for obs := range s.observers {
		delete(s.observers, obs)
		close(obs.ch)
		telemetry.ScanObservers.Dec()
	}
	delete(b.sessions, sessionID)

	b.logger.Debug("session closed", "session_id", sessionID)
}

// Close закрывает все сессии. Используется при остановке сервиса.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.sessions))
	for id, s := range b.sessions {
		if s.closeTmr != nil {
			s.closeTmr.Stop()
		}
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.closeSession(id)
	}
}
