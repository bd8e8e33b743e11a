// Package pipeline содержит статические таблицы фаз workflow'ов.
//
// Таблицы задают:
//   - Порядок фаз discovery и submission pipeline'ов
//   - Вес прогресса каждой фазы (монотонно возрастающий)
//   - Оценку длительности фазы для UI
//   - Ключ result-payload'а фазы
//   - Таймаут каждого типа задачи
//
// Пакет не имеет изменяемого состояния: добавление фазы —
// правка одной таблицы, а не поиск строковых литералов по коду.
package pipeline
