// Package portal содержит устойчивый HTTP-клиент порталов закупок.
//
// Клиент повторяет запросы при 429/503 с экспоненциальной задержкой,
// уважает серверную подсказку Retry-After и никогда не повторяет
// остальные 4xx. Все методы автоматизации портала ходят через него.
package portal
