// Package models содержит доменные структуры, описывающие чек (bill),
// а также вспомогательные типы для приёма данных из внешних источников.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DateLayout — формат даты чека.
	DateLayout = "2006-01-02"
	// TimeLayout — формат времени чека, в котором оно хранится и выводится.
	TimeLayout = "15:04:05"
)

// Bill представляет собой сохранённый чек пользователя.
// Запись не изменяется после создания; ImageRef указывает на файл в хранилище изображений.
type Bill struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"-"`
	Amount     decimal.Decimal `json:"amount"`
	BillDate   time.Time       `json:"bill_date"`
	BillTime   string          `json:"bill_time"` // ЧЧ:ММ:СС
	Shop       string          `json:"shop"`
	ImageRef   string          `json:"image_ref"`
	UploadedAt time.Time       `json:"uploaded_at"`
}

// MonthKey возвращает ключ месяца чека в формате YYYY-MM.
func (b Bill) MonthKey() string {
	return b.BillDate.Format("2006-01")
}

// NewBill — сырые данные для создания чека до валидации и разбора.
// Даты и сумма приходят строками, чтобы их можно было проверить вручную.
type NewBill struct {
	Amount   string
	BillDate string
	BillTime string
	Shop     string
	Filename string
	Image    []byte
}

// BillUploadedEvent публикуется в брокер после успешного сохранения чека.
type BillUploadedEvent struct {
	BillID int64           `json:"bill_id"`
	UserID int64           `json:"user_id"`
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}
