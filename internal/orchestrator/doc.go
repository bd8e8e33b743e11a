// Package orchestrator управляет жизненным циклом workflows.
//
// # Обзор
//
// Orchestrator — центральный компонент системы Tendera. Он запускает
// queued workflows, продвигает их по фиксированной последовательности
// фаз и финализирует по завершении последней фазы или при неудаче.
//
// Последовательности фаз определены в пакете pipeline и строго
// последовательные: фазы не пропускаются, не повторяются и не идут
// параллельно. За один вызов Advance происходит ровно одно из двух:
// либо ставится один work item следующей фазы, либо workflow
// переводится в терминальный статус (COMPLETED или FAILED).
//
// # Каналы получения работы
//
// Orchestrator получает работу двумя путями:
//
//   - Event-driven: consumer очереди workflow.pending запускает новые
//     workflows, consumer очереди workitem.completed доводит продвижение,
//     если воркер упал между записью результата и вызовом Advance
//   - Polling fallback: периодический опрос БД подхватывает queued
//     workflows и просроченные items, если RabbitMQ недоступен
//
// Worker вызывает Advance синхронно сразу после записи результата
// item'а, поэтому event-driven путь чаще всего оказывается no-op'ом:
// Advance идемпотентен и сверяет текущую фазу workflow с фазой
// завершившейся задачи.
//
// # Состояние
//
// Состояние workflow живёт только в БД. Advance перечитывает записи
// при каждом вызове и никогда не кеширует изменяемые поля, поэтому
// оркестратор можно перезапускать в любой момент без потери работы.
//
// # Использование
//
//	orch := orchestrator.New(orchestrator.Config{
//	    WorkflowRepo: workflowRepo,
//	    WorkItemRepo: itemRepo,
//	    StatsRepo:    statsRepo,
//	    RFPRepo:      rfpRepo,
//	    Publisher:    publisher,
//	    Conn:         mqConn,
//	    Logger:       logger,
//	})
//
//	if err := orch.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer orch.Stop()
package orchestrator
