// Package money разбирает денежные суммы и переводит их в копейки/центы и обратно.
//
// Суммы чеков хранятся как decimal.Decimal, а агрегация идёт в целых центах,
// чтобы сумма многих мелких значений не накапливала ошибку float64.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalid — строка не является числом.
	ErrInvalid = errors.New("amount is not a number")
	// ErrNotPositive — сумма меньше или равна нулю.
	ErrNotPositive = errors.New("amount must be greater than zero")
	// ErrTooPrecise — больше двух знаков после запятой.
	ErrTooPrecise = errors.New("amount must have at most two decimal places")
	// ErrTooLarge — сумма не помещается в колонку NUMERIC(12,2).
	ErrTooLarge = errors.New("amount is too large")
)

// MaxAmount — верхняя граница суммы одного чека (не включительно).
var MaxAmount = decimal.New(1, 10)

// Parse разбирает сумму. Допускаются точка и запятая как десятичный разделитель.
//
// Пример:
//
//	Parse("12,50") -> 12.5, nil
//	Parse("0.001") -> 0, ErrTooPrecise
func Parse(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalid
	}
	return d, Check(d)
}

// Check проверяет уже разобранную сумму.
func Check(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrNotPositive
	}
	if !d.Equal(d.Round(2)) {
		return ErrTooPrecise
	}
	if d.GreaterThanOrEqual(MaxAmount) {
		return ErrTooLarge
	}
	return nil
}

// ToCents переводит сумму в целые центы. Дробная часть сверх двух знаков отбрасывается.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

// FromCents переводит центы обратно в decimal с двумя знаками.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format выводит сумму с ровно двумя знаками после точки.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
