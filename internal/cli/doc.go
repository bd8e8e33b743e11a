// Package cli реализует команды утилиты tendera-cli.
//
// CLI — тонкий клиент HTTP API: все операции выполняются через
// запросы к tendera-api, прямого доступа к БД у CLI нет.
//
// Группы команд:
//
//	portal    — регистрация и просмотр порталов
//	scan      — запуск сканирований и наблюдение за прогрессом (SSE)
//	rfp       — просмотр найденных RFP, запуск подачи заявок
//	workflow  — просмотр и управление workflows (suspend/resume)
//	schedule  — управление расписаниями сканирования
//	state     — сводная статистика системы
//
// Вывод — таблица (по умолчанию) или JSON с флагом --json.
package cli
