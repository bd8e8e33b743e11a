// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - workflow.pending    — новый workflow ожидает выполнения
//   - workitem.ready      — элемент работы готов к выполнению
//   - workitem.completed  — элемент работы завершён
//   - scan.progress       — прогресс-событие для SSE-подписчиков
//
// Exchanges:
//   - tendera.workflows  — события workflows
//   - tendera.workitems  — события элементов работы
//   - tendera.scans      — прогресс-события сканирования
//   - tendera.dlq        — dead letter queue
package mq
