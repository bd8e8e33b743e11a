package broadcast

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stepEvent(step string, progress float64) Event {
	return NewEvent(EventStepUpdate, map[string]any{
		"step":     step,
		"progress": progress,
		"message":  "working on " + step,
	})
}

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestSubscribe_InitialStateFirst(t *testing.T) {
	b := NewBroadcaster(testLogger())

	b.Emit("s1", NewEvent(EventScanStarted, nil))
	b.Emit("s1", stepEvent("scanning", 45))
	b.Emit("s1", NewEvent(EventRFPDiscovered, map[string]any{"title": "RFP-1"}))

	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubscribe()

	// Первое событие — всегда initial_state с текущим состоянием
	ev := recvEvent(t, ch)
	if ev.Type != EventInitialState {
		t.Fatalf("expected initial_state first, got %s", ev.Type)
	}
	if ev.Data["step"] != "scanning" {
		t.Errorf("expected step scanning, got %v", ev.Data["step"])
	}
	if ev.Data["progress"] != 45.0 {
		t.Errorf("expected progress 45, got %v", ev.Data["progress"])
	}
	if ev.Data["items_discovered"] != 1 {
		t.Errorf("expected 1 item discovered, got %v", ev.Data["items_discovered"])
	}
}

func TestSubscribe_UnknownSession(t *testing.T) {
	b := NewBroadcaster(testLogger())

	_, _, err := b.Subscribe("missing")
	if err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEmit_OrderedDelivery(t *testing.T) {
	b := NewBroadcaster(testLogger())
	b.Emit("s1", NewEvent(EventScanStarted, nil))

	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubscribe()

	recvEvent(t, ch) // initial_state

	b.Emit("s1", stepEvent("authenticating", 10))
	b.Emit("s1", stepEvent("scanning", 45))
	b.Emit("s1", stepEvent("extracting", 80))

	want := []float64{10, 45, 80}
	for _, expected := range want {
		ev := recvEvent(t, ch)
		if ev.Type != EventStepUpdate {
			t.Fatalf("expected step_update, got %s", ev.Type)
		}
		if ev.Data["progress"] != expected {
			t.Errorf("expected progress %v, got %v", expected, ev.Data["progress"])
		}
	}
}

func TestEmit_MalformedDropped(t *testing.T) {
	b := NewBroadcaster(testLogger())
	b.Emit("s1", NewEvent(EventScanStarted, nil))
	b.Emit("s1", stepEvent("scanning", 45))

	// step_update без числового progress — отбрасывается
	b.Emit("s1", NewEvent(EventStepUpdate, map[string]any{"step": "broken"}))
	b.Emit("s1", NewEvent(EventStepUpdate, map[string]any{
		"step":     "broken",
		"progress": "not-a-number",
	}))

	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubscribe()

	// Производное состояние не должно быть испорчено
	ev := recvEvent(t, ch)
	if ev.Data["step"] != "scanning" {
		t.Errorf("expected step scanning, got %v", ev.Data["step"])
	}
	if ev.Data["progress"] != 45.0 {
		t.Errorf("expected progress 45, got %v", ev.Data["progress"])
	}
}

func TestEmit_CrossSessionIsolation(t *testing.T) {
	b := NewBroadcaster(testLogger())
	b.Emit("s1", NewEvent(EventScanStarted, nil))
	b.Emit("s2", NewEvent(EventScanStarted, nil))

	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubscribe()

	recvEvent(t, ch) // initial_state

	b.Emit("s2", stepEvent("scanning", 45))
	b.Emit("s1", stepEvent("authenticating", 10))

	// Подписчик s1 не должен видеть события s2
	ev := recvEvent(t, ch)
	if ev.Data["step"] != "authenticating" {
		t.Errorf("expected authenticating from s1, got %v", ev.Data["step"])
	}
}

func TestTerminal_GracePeriodClose(t *testing.T) {
	b := NewBroadcaster(testLogger(), WithGracePeriod(20*time.Millisecond))
	b.Emit("s1", NewEvent(EventScanStarted, nil))

	ch, _, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recvEvent(t, ch) // initial_state

	b.Emit("s1", stepEvent("monitoring", 100))
	b.Emit("s1", NewEvent(EventScanCompleted, map[string]any{"rfps_found": 3}))

	// Терминальное событие ещё доставляется
	ev := recvEvent(t, ch)
	if ev.Data["progress"] != 100.0 {
		t.Errorf("expected progress 100, got %v", ev.Data["progress"])
	}
	ev = recvEvent(t, ch)
	if ev.Type != EventScanCompleted {
		t.Fatalf("expected scan_completed, got %s", ev.Type)
	}

	// После grace-периода канал закрывается и сессия удаляется
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("channel should be closed after grace period")
	}

	if _, _, err := b.Subscribe("s1"); err != ErrSessionNotFound {
		t.Errorf("session should be discarded, got %v", err)
	}
}

func TestUnsubscribe_AfterGraceCloseNoop(t *testing.T) {
	b := NewBroadcaster(testLogger(), WithGracePeriod(20*time.Millisecond))
	b.Emit("s1", NewEvent(EventScanStarted, nil))

	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recvEvent(t, ch) // initial_state

	b.Emit("s1", NewEvent(EventScanCompleted, nil))
	recvEvent(t, ch) // scan_completed

	// Ждём закрытия канала grace-таймером
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel should be closed after grace period")
	}

	// SSE handler отписывается через defer уже после закрытия сессии;
	// повторного close канала быть не должно
	unsubscribe()
}

func TestUnsubscribe_AfterCloseNoop(t *testing.T) {
	b := NewBroadcaster(testLogger())
	b.Emit("s1", NewEvent(EventScanStarted, nil))

	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recvEvent(t, ch) // initial_state

	b.Close()
	unsubscribe()
}

func TestEmit_AfterTerminalDropped(t *testing.T) {
	b := NewBroadcaster(testLogger(), WithGracePeriod(time.Minute))
	b.Emit("s1", NewEvent(EventScanStarted, nil))
	b.Emit("s1", NewEvent(EventScanFailed, map[string]any{"error": "portal down"}))

	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubscribe()

	recvEvent(t, ch) // initial_state

	// События после терминального не доставляются
	b.Emit("s1", stepEvent("scanning", 50))

	select {
	case ev := <-ch:
		t.Errorf("expected no event after terminal, got %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowObserver_Disconnected(t *testing.T) {
	b := NewBroadcaster(testLogger(), WithBuffer(1))
	b.Emit("s1", NewEvent(EventScanStarted, nil))

	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubscribe()

	// Буфер размера 1 занят initial_state; следующее событие
	// переполняет его и подписчик отключается
	b.Emit("s1", stepEvent("scanning", 45))

	if got := b.ObserverCount("s1"); got != 0 {
		t.Errorf("slow observer should be disconnected, got %d observers", got)
	}

	recvEvent(t, ch) // initial_state всё ещё в буфере

	// Канал должен быть закрыт
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel should be closed")
	}
}

func TestClose_AllSessions(t *testing.T) {
	b := NewBroadcaster(testLogger())
	b.Emit("s1", NewEvent(EventScanStarted, nil))
	b.Emit("s2", NewEvent(EventScanStarted, nil))

	ch1, _, _ := b.Subscribe("s1")
	ch2, _, _ := b.Subscribe("s2")

	recvEvent(t, ch1)
	recvEvent(t, ch2)

	b.Close()

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case _, ok := <-ch:
			if ok {
				t.Error("expected closed channel")
			}
		case <-time.After(time.Second):
			t.Fatal("channel should be closed")
		}
	}
}

func TestEmit_MessagePlacements(t *testing.T) {
	b := NewBroadcaster(testLogger())
	b.Emit("s1", NewEvent(EventScanStarted, nil))

	// message только на верхнем уровне
	b.Emit("s1", Event{
		Type:      EventStepUpdate,
		Timestamp: time.Now(),
		Message:   "top-level message",
		Data:      map[string]any{"step": "scanning", "progress": 45.0},
	})

	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev := recvEvent(t, ch)
	if ev.Data["message"] != "top-level message" {
		t.Errorf("expected top-level message in derived state, got %v", ev.Data["message"])
	}
	unsubscribe()

	// При обоих вариантах приоритет у вложенного значения
	b.Emit("s1", Event{
		Type:      EventStepUpdate,
		Timestamp: time.Now(),
		Message:   "top-level message",
		Data:      map[string]any{"step": "scanning", "progress": 60.0, "message": "nested message"},
	})

	ch, unsubscribe, err = b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubscribe()
	ev = recvEvent(t, ch)
	if ev.Data["message"] != "nested message" {
		t.Errorf("nested message should win, got %v", ev.Data["message"])
	}
}

func TestWithBuffer_ClampedToOne(t *testing.T) {
	b := NewBroadcaster(testLogger(), WithBuffer(0))

	if b.buffer != 1 {
		t.Fatalf("expected buffer clamped to 1, got %d", b.buffer)
	}

	// Subscribe кладёт initial_state под локом: нулевой буфер
	// заблокировал бы broadcaster навсегда
	b.Emit("s1", NewEvent(EventScanStarted, nil))
	ch, unsubscribe, err := b.Subscribe("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unsubscribe()

	if ev := recvEvent(t, ch); ev.Type != EventInitialState {
		t.Errorf("expected initial_state, got %s", ev.Type)
	}
}

func TestProgressValue(t *testing.T) {
	tests := []struct {
		name  string
		data  map[string]any
		want  float64
		valid bool
	}{
		{"float", map[string]any{"progress": 45.0}, 45, true},
		{"int", map[string]any{"progress": 45}, 45, true},
		{"missing", map[string]any{}, 0, false},
		{"string", map[string]any{"progress": "45"}, 0, false},
		{"nil data", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := progressValue(Event{Data: tt.data})
			if ok != tt.valid {
				t.Fatalf("expected valid=%v, got %v", tt.valid, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
