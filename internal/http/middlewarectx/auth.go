// Package middlewarectx содержит HTTP middleware: проверку токена сессии,
// ограничение частоты запросов и сбор метрик.
//
// TokenAuth извлекает токен из заголовка Authorization: Bearer или параметра
// ?token=, разрешает его через реестр токенов и кладёт ID пользователя в контекст.
// В случае ошибки возвращает 401 с единым сообщением.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/receipt-ledger/internal/http/response"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// UserID — ключ для ID пользователя в контексте.
const UserID Key = "user_id"

// Resolver разрешает токен в ID пользователя.
type Resolver interface {
	Resolve(ctx context.Context, token string) (int64, error)
}

// TokenFromRequest возвращает токен из заголовка Authorization или параметра token.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// WithUserID кладёт ID пользователя в контекст.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserID, userID)
}

// UserIDFrom достаёт ID пользователя из контекста.
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserID).(int64)
	return id, ok
}

// TokenAuth возвращает middleware, пропускающий только запросы с действительным токеном.
func TokenAuth(resolver Resolver, m *metrics.Metrics, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.TokenAuth"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userID, err := resolver.Resolve(r.Context(), TokenFromRequest(r))
			if err != nil {
				if apperr.KindOf(err) == apperr.KindAuth {
					m.AuthFailures.WithLabelValues("resolve").Inc()
					log.Info("token rejected")
				} else {
					log.Error("failed to resolve token", sl.Err(err))
				}
				response.RenderError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
