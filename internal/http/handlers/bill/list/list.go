// Package list реализует HTTP-обработчик получения чеков пользователя.
//
// С параметром ?month=YYYY-MM возвращаются чеки за месяц, без него все чеки.
// Порядок в обоих случаях: дата, затем время чека.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/receipt-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/response"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/money"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/month"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
)

// Bill — представление чека в ответе.
type Bill struct {
	ID         int64     `json:"id"`
	Amount     string    `json:"amount" example:"12.50"`
	BillDate   string    `json:"bill_date" example:"2025-01-15"`
	BillTime   string    `json:"bill_time" example:"12:30:00"`
	Shop       string    `json:"shop"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Service описывает чтение чеков.
type Service interface {
	ListForMonth(ctx context.Context, userID int64, year int, m time.Month) ([]models.Bill, error)
	ListAll(ctx context.Context, userID int64) ([]models.Bill, error)
}

// Handler обрабатывает запросы списка чеков.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Чеки пользователя
// @Description Возвращает чеки пользователя за месяц (или все, если месяц не указан) в порядке даты и времени.
// @Tags Bills
// @Produce  json
// @Security BearerAuth
// @Param month query string false "Месяц в формате YYYY-MM"
// @Success 200 {object} response.Response "Список чеков"
// @Failure 400 {object} response.ErrorResponse "Некорректный месяц"
// @Failure 401 {object} response.ErrorResponse "Нет действительного токена"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/bills [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id is missing in context")
		response.RenderError(w, r, apperr.Auth("invalid or missing token"))
		return
	}

	var (
		bills []models.Bill
		key   string
		err   error
	)
	if raw := r.URL.Query().Get("month"); raw != "" {
		year, m, perr := month.Parse(raw)
		if perr != nil {
			log.Info("invalid month", sl.Err(perr))
			response.RenderError(w, r, apperr.Validation("month", "month must be YYYY-MM"))
			return
		}
		key = month.KeyOf(year, m)
		bills, err = h.service.ListForMonth(r.Context(), userID, year, m)
	} else {
		bills, err = h.service.ListAll(r.Context(), userID)
	}
	if err != nil {
		log.Error("failed to list bills", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	out := make([]Bill, 0, len(bills))
	for _, b := range bills {
		out = append(out, Bill{
			ID:         b.ID,
			Amount:     money.Format(b.Amount),
			BillDate:   b.BillDate.Format(models.DateLayout),
			BillTime:   b.BillTime,
			Shop:       b.Shop,
			UploadedAt: b.UploadedAt,
		})
	}

	log.Info("bills listed", sl.UserID(userID), slog.Int("count", len(out)))
	data := map[string]any{"bills": out}
	if key != "" {
		data["month"] = key
	}
	render.JSON(w, r, response.OK(data))
}
