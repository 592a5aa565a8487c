package models

import "github.com/shopspring/decimal"

// MonthlyStat — сумма расходов пользователя за один календарный месяц.
// Не хранится, вычисляется по запросу.
type MonthlyStat struct {
	MonthKey string          `json:"month"` // YYYY-MM
	Total    decimal.Decimal `json:"total"`
}
