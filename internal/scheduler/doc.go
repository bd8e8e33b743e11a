// Package scheduler создаёт discovery workflows по расписаниям.
//
// Scheduler периодически (Tick) находит due расписания сканирования
// и для каждого создаёт discovery workflow. Расписание задаётся либо
// cron-выражением, либо интервалом в секундах, с учётом timezone.
//
// Дубликаты исключаются через idempotency key вида
// "{schedule_id}_{next_due_at_unix}": если планировщик упал между
// созданием workflow и обновлением next_due_at, повторный тик найдёт
// существующий workflow и не создаст второй.
//
// Расписания неактивных порталов пропускаются.
package scheduler
