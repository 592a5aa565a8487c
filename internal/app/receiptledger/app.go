// Package receiptledger собирает зависимости сервиса учёта чеков и запускает HTTP-сервер.
package receiptledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"

	"github.com/magabrotheeeer/receipt-ledger/internal/blobstore"
	"github.com/magabrotheeeer/receipt-ledger/internal/cache"
	"github.com/magabrotheeeer/receipt-ledger/internal/config"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/password"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/receipt-ledger/internal/migrations"
	authservice "github.com/magabrotheeeer/receipt-ledger/internal/services/auth"
	ledgerservice "github.com/magabrotheeeer/receipt-ledger/internal/services/ledger"
	reportservice "github.com/magabrotheeeer/receipt-ledger/internal/services/report"
	statsservice "github.com/magabrotheeeer/receipt-ledger/internal/services/stats"
	"github.com/magabrotheeeer/receipt-ledger/internal/storage"
)

const shutdownTimeout = 15 * time.Second

type statsCache interface {
	statsservice.Cache
	io.Closer
}

type publisher interface {
	ledgerservice.Publisher
	io.Closer
}

// App хранит HTTP-сервер и ресурсы, которые нужно закрыть при остановке.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	db        *storage.Storage
	cache     statsCache
	publisher publisher
}

// New подключается к хранилищам, применяет миграции и собирает сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "receiptledger.New"

	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var statsCacheImpl statsCache = cache.Nop{}
	if cfg.RedisConnection.Address != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		statsCacheImpl = c
	} else {
		logger.Warn("redis address is empty, stats cache disabled")
	}

	blobs, err := blobstore.NewFS(cfg.BlobStore.Dir)
	if err != nil {
		_ = statsCacheImpl.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var pub publisher = rabbitmq.Nop{}
	if cfg.AMQP.URL != "" {
		p, err := rabbitmq.NewPublisher(ctx, cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
		if err != nil {
			_ = statsCacheImpl.Close()
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pub = p
	} else {
		logger.Warn("amqp url is empty, bill events disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	hasher, err := password.NewHasher(bcrypt.DefaultCost)
	if err != nil {
		_ = pub.Close()
		_ = statsCacheImpl.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	registry := authservice.NewRegistry(db)
	authService := authservice.NewAuthService(db, registry, hasher, logger)
	statsService := statsservice.NewStatsService(db, statsCacheImpl, cfg.RedisConnection.StatsTTL, logger)
	ledgerService := ledgerservice.NewLedgerService(db, blobs, pub, statsService, ledgerservice.ImageLimits{
		MaxBytes:  cfg.BlobStore.MaxImageBytes,
		MaxPixels: cfg.BlobStore.MaxImagePixels,
	}, logger)
	reportService, err := reportservice.NewReportService(ledgerService, blobs, reportservice.Options{
		Geometry: reportservice.PageGeometry{
			Width:      cfg.Report.PageWidth,
			Height:     cfg.Report.PageHeight,
			Margin:     cfg.Report.Margin,
			MetaHeight: cfg.Report.MetaHeight,
			Gap:        reportservice.A4.Gap,
		},
		FontSize:       cfg.Report.FontSize,
		FetchWorkers:   cfg.Report.FetchWorkers,
		MaxImagePixels: cfg.BlobStore.MaxImagePixels,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = statsCacheImpl.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:   logger,
		Config:   cfg,
		Metrics:  m,
		Gatherer: reg,
		Storage:  db,
		Auth:     authService,
		Ledger:   ledgerService,
		Stats:    statsService,
		Reports:  reportService,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	return &App{
		server:    srv,
		logger:    logger,
		db:        db,
		cache:     statsCacheImpl,
		publisher: pub,
	}, nil
}

// Run запускает сервер и блокируется до отмены ctx или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("failed to close publisher", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close storage", sl.Err(err))
	}
}
