package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWorkflowPending   MessageType = "workflow.pending"
	MessageTypeWorkItemReady     MessageType = "workitem.ready"
	MessageTypeWorkItemCompleted MessageType = "workitem.completed"
	MessageTypeScanProgress      MessageType = "scan.progress"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowPendingPayload — payload для сообщения о новом workflow.
type WorkflowPendingPayload struct {
	WorkflowID uuid.UUID `json:"workflow_id"`
}

// WorkItemReadyPayload — payload для сообщения о готовом элементе работы.
type WorkItemReadyPayload struct {
	WorkItemID uuid.UUID `json:"work_item_id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
}

// WorkItemCompletedPayload — payload для сообщения о завершённом элементе.
type WorkItemCompletedPayload struct {
	WorkItemID uuid.UUID `json:"work_item_id"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	TaskType   string    `json:"task_type"`
	Status     string    `json:"status"` // COMPLETED или FAILED
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	DurationMs int64     `json:"duration_ms"`
}

// ScanProgressPayload — payload для прогресс-события сканирования.
// Data повторяет структуру broadcast.Event и доносится до SSE-подписчиков
// без изменений. Message может лежать как на верхнем уровне, так и в
// Data["message"]; потребитель обязан принять оба варианта.
type ScanProgressPayload struct {
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishWorkflowPending публикует событие о новом workflow, ожидающем выполнения.
// Потребитель: Orchestrator.
func (p *Publisher) PublishWorkflowPending(ctx context.Context, workflowID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeWorkflowPending,
		Payload:   WorkflowPendingPayload{WorkflowID: workflowID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeWorkflows, RoutingKeyPending, msg)
}

// PublishWorkItemReady публикует событие об элементе, готовом к выполнению.
// Потребитель: Worker.
func (p *Publisher) PublishWorkItemReady(ctx context.Context, workItemID, workflowID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeWorkItemReady,
		Payload:   WorkItemReadyPayload{WorkItemID: workItemID, WorkflowID: workflowID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeWorkItems, RoutingKeyReady, msg)
}

// PublishWorkItemCompleted публикует событие о завершённом элементе работы.
// Потребитель: Orchestrator.
func (p *Publisher) PublishWorkItemCompleted(ctx context.Context, payload WorkItemCompletedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeWorkItemCompleted,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeWorkItems, RoutingKeyCompleted, msg)
}

// PublishScanProgress публикует прогресс-событие сканирования.
// Потребитель: API (ретранслирует в SSE-поток сессии).
func (p *Publisher) PublishScanProgress(ctx context.Context, payload ScanProgressPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeScanProgress,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeScans, RoutingKeyProgress, msg)
}
