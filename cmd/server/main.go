// Package main is the entry point for the gatherd server.
//
// The bootstrap sequence is:
//  1. Load configuration from environment variables.
//  2. Connect to PostgreSQL via pgxpool and apply migrations.
//  3. Create the repository, notifier, dispatcher, and service.
//  4. Wrap the API handler in auth, request logging, and tracing middleware.
//  5. Start the HTTP server and wait for SIGINT/SIGTERM.
//  6. Gracefully shut down, draining in-flight notification deliveries.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mhalley/gatherd/internal/clock"
	"github.com/mhalley/gatherd/internal/config"
	"github.com/mhalley/gatherd/internal/logging"
	"github.com/mhalley/gatherd/internal/metrics"
	"github.com/mhalley/gatherd/internal/middleware"
	"github.com/mhalley/gatherd/internal/notify"
	"github.com/mhalley/gatherd/internal/repository"
	"github.com/mhalley/gatherd/internal/server"
	"github.com/mhalley/gatherd/internal/service"
	"github.com/mhalley/gatherd/internal/tracing"
)

const (
	shutdownTimeout       = 10 * time.Second
	httpReadHeaderTimeout = 5 * time.Second
	httpReadTimeout       = 30 * time.Second
	httpIdleTimeout       = 2 * time.Minute
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	shutdownTracer, err := tracing.Init(context.Background())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown error", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(pool); err != nil {
		return err
	}

	m := metrics.New()
	metrics.RegisterPoolMetrics(m.Registry, pool)

	notifier, closeNotifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	dispatcher := notify.NewDispatcher(notifier,
		notify.WithDispatchLogger(logging.ForComponent(log, "notify")),
		notify.WithDispatchTimeout(cfg.NotifyTimeout),
		notify.WithOnResult(m.RecordNotification),
	)

	repo := repository.NewPostgresRepository(pool)
	svc, err := service.New(repo, clock.NewSystem(), dispatcher,
		service.WithLogger(log),
		service.WithEvaluationMetrics(m.RecordEvaluation),
		service.WithTransitionMetrics(m.RecordTransition),
	)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimit)
	defer rateLimiter.Stop()

	apiHandler := server.NewHTTPHandler(svc, m)
	httpHandler := newHTTPHandler(apiHandler, cfg.APIKeyBcryptHash, rateLimiter, log, m)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(httpHandler, "gatherd-http"),
		ReadHeaderTimeout: httpReadHeaderTimeout,
		ReadTimeout:       httpReadTimeout,
		IdleTimeout:       httpIdleTimeout,
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen HTTP %s: %w", cfg.HTTPAddr, err)
	}
	defer httpListener.Close()

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("serve HTTP: %w", err)
		}
	}()

	log.Info("server started", "http_addr", cfg.HTTPAddr)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serveErrCh:
	}
	stop()

	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		if serveErr != nil {
			return serveErr
		}
		return fmt.Errorf("shutdown HTTP: %w", err)
	}

	// Let queued notification deliveries finish before the process exits.
	dispatcher.Drain()

	return serveErr
}

// newNotifier picks the notification backend: RabbitMQ when AMQP_URL is set,
// the structured log otherwise.
func newNotifier(cfg config.Config, log *slog.Logger) (notify.Notifier, func(), error) {
	if cfg.AMQPURL == "" {
		log.Info("notifications", "backend", "log")
		return notify.NewLogNotifier(logging.ForComponent(log, "notify")), func() {}, nil
	}

	amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, fmt.Errorf("connect amqp: %w", err)
	}
	log.Info("notifications", "backend", "amqp", "exchange", cfg.AMQPExchange)

	closer := func() {
		if err := amqpNotifier.Close(); err != nil {
			log.Error("amqp close error", "error", err)
		}
	}
	return amqpNotifier, closer, nil
}

// newHTTPHandler protects the /v1/ API surface with bearer auth and per-IP
// failure throttling while keeping the health and metrics endpoints public.
func newHTTPHandler(apiHandler http.Handler, keyBcryptHash string, rl *middleware.RateLimiter, log *slog.Logger, m *metrics.Metrics) http.Handler {
	protected := middleware.BearerAuth(keyBcryptHash,
		middleware.WithOnAuthFailure(func() { m.AuthFailuresTotal.Inc() }),
		middleware.WithRateLimiter(rl),
	)(apiHandler)

	mux := http.NewServeMux()
	mux.Handle("/v1/", protected)
	mux.Handle("GET /healthz", apiHandler)
	mux.Handle("GET /metrics", apiHandler)

	return middleware.RequestLogging(log)(mux)
}
