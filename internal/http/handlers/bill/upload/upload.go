// Package upload реализует HTTP-обработчик загрузки чека.
//
// Тело запроса содержит изображение в base64 (допускается префикс data-URL)
// и метаданные чека. Токен берётся из заголовка Authorization, параметра ?token=
// или поля token тела запроса, поэтому маршрут не закрыт общим middleware.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/receipt-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/response"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
)

// Amount принимает сумму и строкой ("12,50"), и числом (12.5).
type Amount string

// UnmarshalJSON реализует json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// Request — данные загружаемого чека.
type Request struct {
	Token    string `json:"token,omitempty"`
	Filename string `json:"filename" validate:"max=255"`
	Image    string `json:"image" validate:"required"`
	Amount   Amount `json:"amount" validate:"required"`
	BillDate string `json:"bill_date" validate:"required"`
	BillTime string `json:"bill_time" validate:"required"`
	Shop     string `json:"shop" validate:"required,max=255"`
}

// Service описывает сохранение чека.
type Service interface {
	Add(ctx context.Context, userID int64, req models.NewBill) (*models.Bill, error)
}

// Handler обрабатывает загрузку чеков.
type Handler struct {
	log      *slog.Logger
	service  Service
	resolver middlewarectx.Resolver
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, resolver middlewarectx.Resolver, m *metrics.Metrics) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		resolver: resolver,
		metrics:  m,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Загрузка чека
// @Description Сохраняет изображение чека и его метаданные. Возвращает ID созданной записи.
// @Tags Bills
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Чек"
// @Success 201 {object} response.Response "Чек сохранен"
// @Failure 400 {object} response.ErrorResponse "Некорректные данные"
// @Failure 401 {object} response.ErrorResponse "Нет действительного токена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/upload_bill [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.upload"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	// Токен из заголовка или строки запроса проверяется до чтения тела
	token := middlewarectx.TokenFromRequest(r)
	var userID int64
	if token != "" {
		id, ok := h.authorize(w, r, log, token)
		if !ok {
			return
		}
		userID = id
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if token == "" {
			h.metrics.AuthFailures.WithLabelValues("resolve").Inc()
			log.Info("unauthenticated request with unreadable body", sl.Err(err))
			response.RenderError(w, r, apperr.Auth("invalid or missing token"))
			return
		}
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if token == "" {
		id, ok := h.authorize(w, r, log, req.Token)
		if !ok {
			return
		}
		userID = id
	}
	log = log.With(sl.UserID(userID))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	image, err := decodeImage(req.Image)
	if err != nil {
		log.Info("image is not valid base64", sl.Err(err))
		response.RenderError(w, r, apperr.Validation("image", "image must be base64 encoded"))
		return
	}

	bill, err := h.service.Add(r.Context(), userID, models.NewBill{
		Amount:   string(req.Amount),
		BillDate: req.BillDate,
		BillTime: req.BillTime,
		Shop:     req.Shop,
		Filename: req.Filename,
		Image:    image,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			log.Error("failed to store bill", sl.Err(err))
		} else {
			log.Info("bill rejected", sl.Err(err))
		}
		response.RenderError(w, r, err)
		return
	}

	h.metrics.BillsUploaded.Inc()
	log.Info("bill stored", slog.Int64("bill_id", bill.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OK(map[string]any{
		"id": bill.ID,
	}))
}

// authorize определяет пользователя по токену. При отказе ответ уже записан.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, log *slog.Logger, token string) (int64, bool) {
	userID, err := h.resolver.Resolve(r.Context(), token)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuth {
			h.metrics.AuthFailures.WithLabelValues("resolve").Inc()
			log.Info("token rejected")
		} else {
			log.Error("failed to resolve token", sl.Err(err))
		}
		response.RenderError(w, r, err)
		return 0, false
	}
	return userID, true
}

// decodeImage снимает необязательный префикс data-URL и декодирует base64.
func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
