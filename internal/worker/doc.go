// Package worker выполняет отдельные work items.
//
// # Обзор
//
// Worker — stateless компонент системы Tendera, который выполняет
// отдельные единицы работы (work items), созданные Orchestrator'ом.
// Worker отвечает за:
//
//   - Получение items из очереди RabbitMQ (event-driven)
//   - Периодическую проверку queued items в БД (polling fallback)
//   - Выполнение задачи через коллаборатора портала под жёстким таймаутом
//   - Retry идемпотентных задач с exponential backoff
//   - Синхронное продвижение workflow через Advancer
//   - Отправку результата в очередь workitem.completed
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди workitem.ready.
//
// # Ключевые компоненты
//
// ## Worker
//
// Основная структура, управляющая жизненным циклом.
// Создаётся через New(cfg Config) и запускается методом Start(ctx).
//
//	w := worker.New(worker.Config{
//	    WorkItemRepo: itemRepo,
//	    WorkflowRepo: workflowRepo,
//	    Advancer:     orch,
//	    Registry:     worker.NewPortalRegistry(portalClient),
//	    Publisher:    publisher,
//	    Conn:         mqConn,
//	    Logger:       logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// ## Collaborator
//
// Интерфейс выполнения конкретного типа задачи:
//
//	type Collaborator interface {
//	    Perform(ctx context.Context, inputs map[string]any) (map[string]any, error)
//	}
//
// NewPortalRegistry(client) регистрирует коллабораторов для всех
// типов задач: authentication, scanning, extraction, monitoring,
// preflight, filling, uploading, submitting, verifying.
//
// ## Executor
//
// Выполняет item с жёстким дедлайном из pipeline.TimeoutFor.
// Задача, не уложившаяся в дедлайн, бросается и репортится как
// timeout failure — retry решает retry wrapper, не Executor.
//
// # Обработка item
//
//  1. Получение item (из очереди или polling)
//  2. Загрузка item из БД, проверка статуса QUEUED
//  3. Перевод в IN_PROGRESS, инкремент Attempt
//  4. Выполнение через runWithRetry
//  5. Успех → MarkCompleted, step_update для наблюдателей
//  6. Ошибка → MarkFailed
//  7. Синхронный Advance (оркестратор ставит следующую фазу
//     или завершает workflow)
//  8. Publish workitem.completed
//
// # Retry
//
// Retry выполняется в процессе (in-process), а не через requeue в RabbitMQ.
// Это даёт точный контроль над backoff и подсчётом попыток.
//
// Повторяются только идемпотентные типы задач (authentication,
// preflight) — максимум 3 попытки с удвоением задержки от 1 секунды.
// Остальные типы выполняются ровно один раз: повтор подачи заявки
// никогда не происходит молча.
package worker
