// Package aggregator собирает сводную статистику по workflows.
//
// Aggregator — read-only слой поверх StatsRepo для дашборда и API.
// Он отвечает на три вопроса:
//
//   - GlobalState — сколько workflows в каком статусе и фазе,
//     какие завершились последними
//   - PhaseStatistics — как выполняются отдельные типы задач
//   - TransitionSummary — сводка переходов фаз
//
// # Граница нормализации
//
// Хранилище отдаёт агрегаты слабо типизированными: AVG по пустому
// набору — nil, числа из JSON — float64, иногда строки. Aggregator
// гарантирует, что каждое числовое поле на выходе — конечное число
// (не nil, не NaN, не Inf). Потребители не делают никаких проверок.
//
// Ошибки хранилища не пробрасываются: наружу уходит нулевая сводка,
// ошибка логируется. Сводки кешируются с коротким TTL, чтобы частые
// запросы дашборда не нагружали БД.
package aggregator
