package aggregator

import (
	"math"
	"strconv"
)

// toFiniteNumber приводит значение из сырого агрегата к конечному числу.
//
// SQL-агрегаты над пустыми таблицами возвращают NULL, а JSON-декодер
// отдаёт числа как float64 и может встретить строку. Всё, что нельзя
// привести к конечному числу, заменяется на fallback.
func toFiniteNumber(value any, fallback float64) float64 {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fallback
		}
		return v
	case float32:
		return toFiniteNumber(float64(v), fallback)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fallback
		}
		return toFiniteNumber(parsed, fallback)
	default:
		return fallback
	}
}

// toCount — как toFiniteNumber, но для счётчиков: неотрицательное целое.
func toCount(value any) int {
	n := toFiniteNumber(value, 0)
	if n < 0 {
		return 0
	}
	return int(n)
}

// toText приводит значение к строке; не-строки дают fallback.
func toText(value any, fallback string) string {
	if s, ok := value.(string); ok && s != "" {
		return s
	}
	return fallback
}
