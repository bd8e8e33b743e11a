// Package telemetry — structured logging и prometheus-метрики.
//
// Логирование: log/slog, JSON для production, text для разработки
// (переменные LOG_LEVEL и LOG_FORMAT).
//
// Метрики: счётчики переходов фаз и попыток выполнения задач,
// gauge активных workflow'ов и подключённых наблюдателей.
// Каждый бинарник отдаёт их на /metrics через promhttp.
package telemetry
