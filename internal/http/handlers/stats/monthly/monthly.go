// Package monthly реализует HTTP-обработчик помесячной статистики расходов.
//
// Ответ содержит объект {"YYYY-MM": "сумма"}; ключи в JSON идут по возрастанию,
// суммы выводятся с двумя знаками после запятой.
package monthly

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/receipt-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/response"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/money"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
)

// Service описывает расчёт помесячных сумм.
type Service interface {
	MonthlyTotals(ctx context.Context, userID int64) ([]models.MonthlyStat, error)
}

// Handler обрабатывает запросы статистики.
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
// @Summary Помесячная статистика
// @Description Возвращает сумму расходов пользователя по каждому месяцу, в котором есть чеки.
// @Tags Stats
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Суммы по месяцам"
// @Failure 401 {object} response.ErrorResponse "Нет действительного токена"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/stats [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.stats.monthly"

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

	totals, err := h.service.MonthlyTotals(r.Context(), userID)
	if err != nil {
		log.Error("failed to compute monthly totals", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	stats := make(map[string]string, len(totals))
	for _, s := range totals {
		stats[s.MonthKey] = money.Format(s.Total)
	}

	render.JSON(w, r, response.OK(map[string]any{
		"stats": stats,
	}))
}
