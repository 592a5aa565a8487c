// Package monthly реализует HTTP-обработчик выгрузки месячного PDF-отчёта.
package monthly

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/receipt-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/response"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/month"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
)

// Service описывает построение отчёта.
type Service interface {
	BuildMonthlyReport(ctx context.Context, userID int64, year int, m time.Month) ([]byte, error)
}

// Handler отдаёт PDF-отчёт за месяц.
type Handler struct {
	log     *slog.Logger
	service Service
	metrics *metrics.Metrics
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, m *metrics.Metrics) *Handler {
	return &Handler{
		log:     log,
		service: service,
		metrics: m,
	}
}

// ServeHTTP godoc
// @Summary Месячный отчёт
// @Description Формирует PDF: по одной странице на чек с метаданными и изображением.
// @Tags Reports
// @Produce  application/pdf
// @Security BearerAuth
// @Param year_month path string true "Месяц в формате YYYY-MM"
// @Success 200 {file} file "PDF-отчёт"
// @Failure 400 {object} response.ErrorResponse "Некорректный месяц"
// @Failure 401 {object} response.ErrorResponse "Нет действительного токена"
// @Failure 404 {object} response.ErrorResponse "Нет чеков за месяц"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/monthly_report/{year_month} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.report.monthly"

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

	year, m, err := month.Parse(chi.URLParam(r, "year_month"))
	if err != nil {
		log.Info("invalid month", sl.Err(err))
		response.RenderError(w, r, apperr.Validation("year_month", "month must be YYYY-MM"))
		return
	}
	key := month.KeyOf(year, m)

	start := time.Now()
	pdf, err := h.service.BuildMonthlyReport(r.Context(), userID, year, m)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			log.Error("failed to build report", slog.String("month", key), sl.Err(err))
		} else {
			log.Info("report not built", slog.String("month", key), sl.Err(err))
		}
		response.RenderError(w, r, err)
		return
	}
	h.metrics.ReportDuration.Observe(time.Since(start).Seconds())
	h.metrics.ReportsGenerated.Inc()

	log.Info("report built", sl.UserID(userID), slog.String("month", key), slog.Int("bytes", len(pdf)))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=report_%s.pdf", key))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		log.Error("failed to write report", sl.Err(err))
	}
}
