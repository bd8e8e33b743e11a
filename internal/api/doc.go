// Package api реализует HTTP API системы Tendera.
//
// API построен на стандартном http.ServeMux (Go 1.22+) с method
// patterns и path values. Все ответы — JSON в единой обёртке
// {"data": ...} или {"error": {"code": ..., "message": ...}}.
//
// # Endpoints
//
// Порталы и RFP:
//
//	GET    /api/v1/portals
//	POST   /api/v1/portals
//	GET    /api/v1/portals/{id}
//	GET    /api/v1/rfps
//	GET    /api/v1/rfps/{id}
//
// Запуск workflows (возвращают 202, выполнение асинхронное):
//
//	POST   /api/v1/portals/{id}/scans       — discovery workflow
//	POST   /api/v1/rfps/{id}/submissions    — submission workflow
//
// Наблюдение:
//
//	GET    /api/v1/scans/{sessionID}/events — SSE-стрим прогресса
//	GET    /api/v1/workflows
//	GET    /api/v1/workflows/{id}
//	GET    /api/v1/workflows/{id}/items
//	GET    /api/v1/state/global
//	GET    /api/v1/state/phases
//	GET    /api/v1/state/transitions
//
// Расписания:
//
//	GET    /api/v1/schedules
//	POST   /api/v1/portals/{id}/schedules
//	PUT    /api/v1/schedules/{id}
//	DELETE /api/v1/schedules/{id}
//	PUT    /api/v1/schedules/{id}/enabled
//
// # Прогресс-стрим
//
// События воркеров и оркестратора приходят в API-процесс через
// очередь scan.progress (ProgressRelay) и раздаются подписчикам
// Broadcaster'ом. Поздний подписчик первым получает initial_state
// с текущим шагом, прогрессом и количеством найденных RFP.
package api
