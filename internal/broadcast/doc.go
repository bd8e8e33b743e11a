// Package broadcast раздаёт прогресс-события сканирования подписчикам.
//
// Один Broadcaster обслуживает много независимых сессий (session ID =
// один наблюдаемый прогон сканирования). Каждая сессия держит в памяти
// ограниченный журнал событий и производное состояние текущего шага;
// поздний подписчик первым получает синтетическое initial_state и
// никогда не начинает с пустоты.
//
// Сессии эфемерны: после scan_completed/scan_failed и grace-периода
// сессия удаляется вместе с журналом.
package broadcast
