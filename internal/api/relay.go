package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shaiso/Tendera/internal/broadcast"
	"github.com/shaiso/Tendera/internal/mq"
)

// ProgressRelay переносит события scan.progress из RabbitMQ
// в Broadcaster для SSE-подписчиков.
//
// Очередь scan.progress объявлена с DiscardOnError: повтор
// устаревшего UI-события не имеет смысла.
type ProgressRelay struct {
	broadcaster *broadcast.Broadcaster
	consumer    *mq.Consumer
	logger      *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewProgressRelay создаёт relay поверх соединения с RabbitMQ.
func NewProgressRelay(conn *mq.Connection, broadcaster *broadcast.Broadcaster, logger *slog.Logger) *ProgressRelay {
	r := &ProgressRelay{
		broadcaster: broadcaster,
		logger:      logger,
	}

	r.consumer = mq.NewConsumer(conn, logger, mq.ConsumerConfig{
		Queue:          string(mq.QueueScanProgress),
		Handler:        r.handleProgress,
		Prefetch:       50,
		DiscardOnError: true,
	})

	return r
}

// Start запускает consumer очереди scan.progress.
func (r *ProgressRelay) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("progress consumer error", "error", err)
		}
	}()
}

// Stop останавливает relay.
func (r *ProgressRelay) Stop() {
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.consumer.Stop()
	r.wg.Wait()
}

// handleProgress передаёт одно событие в Broadcaster.
func (r *ProgressRelay) handleProgress(_ context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.ScanProgressPayload](&delivery.Message)
	if err != nil {
		r.logger.Warn("failed to parse scan.progress payload", "error", err)
		return err
	}

	r.broadcaster.Emit(payload.SessionID, broadcast.Event{
		Type:      broadcast.EventKind(payload.EventType),
		Timestamp: payload.Timestamp,
		Message:   payload.Message,
		Data:      payload.Data,
	})

	return nil
}
