package receiptledger

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/receipt-ledger/internal/config"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/handlers/auth/signup"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/handlers/bill/list"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/handlers/bill/upload"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/handlers/health"
	reportmonthly "github.com/magabrotheeeer/receipt-ledger/internal/http/handlers/report/monthly"
	statsmonthly "github.com/magabrotheeeer/receipt-ledger/internal/http/handlers/stats/monthly"
	"github.com/magabrotheeeer/receipt-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/metrics"
)

// AuthService — операции аутентификации, нужные маршрутам.
type AuthService interface {
	signup.Service
	login.Service
	middlewarectx.Resolver
}

// LedgerService — операции с чеками, нужные маршрутам.
type LedgerService interface {
	upload.Service
	list.Service
}

// Deps зависимости маршрутов.
type Deps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Storage  health.Pinger
	Auth     AuthService
	Ledger   LedgerService
	Stats    statsmonthly.Service
	Reports  reportmonthly.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middlewarectx.RequestLogger(d.Logger),
		middleware.Recoverer,
		middlewarectx.Metrics(d.Metrics),
		middlewarectx.MaxBody(d.Config.HTTPServer.MaxBodyBytes),
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(d.Logger, d.Config.RateLimit.RPS, d.Config.RateLimit.Burst))

		// Открытые конечные точки
		r.Post("/signup", signup.New(d.Logger, d.Auth).ServeHTTP)
		r.Post("/login", login.New(d.Logger, d.Auth, d.Metrics).ServeHTTP)

		// Токен может прийти в теле запроса, поэтому обработчик проверяет его сам
		r.Post("/upload_bill", upload.New(d.Logger, d.Ledger, d.Auth, d.Metrics).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.TokenAuth(d.Auth, d.Metrics, d.Logger))
			r.Get("/bills", list.New(d.Logger, d.Ledger).ServeHTTP)
			r.Get("/stats", statsmonthly.New(d.Logger, d.Stats).ServeHTTP)
			r.Get("/monthly_report/{year_month}", reportmonthly.New(d.Logger, d.Reports, d.Metrics).ServeHTTP)
		})
	})

	r.Method(http.MethodGet, "/health", health.New(d.Logger, d.Storage))
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
