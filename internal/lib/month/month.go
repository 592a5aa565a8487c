// Package month содержит арифметику календарных месяцев: ключи YYYY-MM и границы месяца.
package month

import (
	"errors"
	"fmt"
	"time"
)

// KeyLayout — формат ключа месяца.
const KeyLayout = "2006-01"

// ErrInvalid — некорректный год или месяц.
var ErrInvalid = errors.New("month must be in format YYYY-MM")

// Key возвращает ключ месяца для даты. Лексикографический порядок ключей
// совпадает с хронологическим.
func Key(t time.Time) string {
	return t.Format(KeyLayout)
}

// KeyOf собирает ключ из года и месяца.
func KeyOf(year int, m time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(m))
}

// Parse разбирает ключ YYYY-MM.
func Parse(s string) (int, time.Month, error) {
	t, err := time.Parse(KeyLayout, s)
	if err != nil {
		return 0, 0, ErrInvalid
	}
	return t.Year(), t.Month(), nil
}

// Validate проверяет, что год и месяц задают существующий месяц.
func Validate(year int, m time.Month) error {
	if year < 1 || year > 9999 || m < time.January || m > time.December {
		return ErrInvalid
	}
	return nil
}

// Bounds возвращает полуинтервал [start, end) месяца в UTC.
func Bounds(year int, m time.Month) (time.Time, time.Time) {
	start := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
