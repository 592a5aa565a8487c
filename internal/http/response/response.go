// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков и отображения ошибок
// бизнес-логики в HTTP-статусы.
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (при неуспехе), Field — поле, не прошедшее проверку.
// Поле Data — данные ответа (при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Field  string `json:"field,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
	Field  string `json:"field,omitempty" example:"amount"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

const msgInternal = "internal error"

// OK возвращает успешный Response с переданными данными.
func OK(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too long", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	resp := Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
	if len(errs) > 0 {
		resp.Field = errs[0].Field()
	}
	return resp
}

// FromError сопоставляет ошибку бизнес-логики HTTP-статусу и телу ответа.
// Ошибки вне таксономии отдаются как 500 без подробностей.
func FromError(err error) (int, Response) {
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError, Error(msgInternal)
	}

	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, Response{Status: StatusError, Error: e.Msg, Field: e.Field}
	case apperr.KindConflict:
		return http.StatusConflict, Error(e.Msg)
	case apperr.KindAuth:
		return http.StatusUnauthorized, Error(e.Msg)
	case apperr.KindNotFound:
		return http.StatusNotFound, Error(e.Msg)
	case apperr.KindInternal:
		return http.StatusInternalServerError, Error(msgInternal)
	default:
		return http.StatusInternalServerError, Error(msgInternal)
	}
}

// RenderError пишет ответ для ошибки err.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := FromError(err)
	render.Status(r, status)
	render.JSON(w, r, resp)
}
