package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeWorkflows Exchange = "tendera.workflows"
	ExchangeWorkItems Exchange = "tendera.workitems"
	ExchangeScans     Exchange = "tendera.scans"
	ExchangeDLQ       Exchange = "tendera.dlq"
)

// Queues — имена очередей.
const (
	QueueWorkflowPending   Queue = "workflow.pending"
	QueueWorkItemReady     Queue = "workitem.ready"
	QueueWorkItemCompleted Queue = "workitem.completed"
	QueueScanProgress      Queue = "scan.progress"
	QueueDLQWorkItems      Queue = "dlq.workitems"
)

// Routing keys.
const (
	RoutingKeyPending      RoutingKey = "pending"
	RoutingKeyReady        RoutingKey = "ready"
	RoutingKeyCompleted    RoutingKey = "completed"
	RoutingKeyProgress     RoutingKey = "progress"
	RoutingKeyDLQWorkItems RoutingKey = "workitems"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeWorkflows, "direct"},
		{ExchangeWorkItems, "direct"},
		{ExchangeScans, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQWorkItems),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// workflow.pending — без DLQ (workflows обрабатываются один раз)
		{QueueWorkflowPending, nil},

		// workitem.ready — с DLQ (элементы могут уходить в DLQ после retry)
		{QueueWorkItemReady, dlqArgs},

		// workitem.completed — без DLQ (события завершения)
		{QueueWorkItemCompleted, nil},

		// scan.progress — без DLQ (UI-события, потеря допустима)
		{QueueScanProgress, nil},

		// dlq.workitems — сама DLQ очередь
		{QueueDLQWorkItems, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueWorkflowPending, RoutingKeyPending, ExchangeWorkflows},
		{QueueWorkItemReady, RoutingKeyReady, ExchangeWorkItems},
		{QueueWorkItemCompleted, RoutingKeyCompleted, ExchangeWorkItems},
		{QueueScanProgress, RoutingKeyProgress, ExchangeScans},
		{QueueDLQWorkItems, RoutingKeyDLQWorkItems, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Tendera RabbitMQ Topology:

    tendera.workflows (direct)
    └── workflow.pending [routing: pending]
            Consumer: Orchestrator

    tendera.workitems (direct)
    ├── workitem.ready [routing: ready]
    │       Consumer: Worker
    │       DLQ: dlq.workitems
    └── workitem.completed [routing: completed]
            Consumer: Orchestrator

    tendera.scans (direct)
    └── scan.progress [routing: progress]
            Consumer: API (SSE broadcaster)

    tendera.dlq (direct)
    └── dlq.workitems [routing: workitems]
            Manual processing
  `
}
