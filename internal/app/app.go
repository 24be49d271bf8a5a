// Package app wires configuration, storage and the HTTP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
)

const serviceName = "shortlink"

const shutdownTimeout = 10 * time.Second

func newLogger(cfg *config.Config) *httplog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	return httplog.NewLogger(serviceName, httplog.Options{
		LogLevel:         level,
		JSON:             cfg.Log.JSON,
		Concise:          cfg.Env == config.EnvDev,
		RequestHeaders:   cfg.Env != config.EnvProd,
		MessageFieldName: "message",
		Tags: map[string]string{
			"env": cfg.Env,
		},
		QuietDownRoutes: []string{"/_health", "/metrics"},
		QuietDownPeriod: 10 * time.Second,
	})
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Run starts the service and blocks until ctx is canceled or the server fails.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg)

	s := openStore(ctx, cfg.Storage, logger.Logger)
	defer func() {
		if err := s.close(); err != nil {
			logger.Error("failed to close storage", slog.Any("err", err))
		}
	}()

	allocator := shortcode.NewAllocator(
		shortcode.WithLength(cfg.ShortCode.Length),
		shortcode.WithMaxAttempts(cfg.ShortCode.MaxAttempts),
	)
	urlUseCase := usecase.NewURLUseCase(s.repo, allocator)

	router := delivery.NewRouter(
		logger,
		urlUseCase,
		delivery.WithBaseURL(cfg.BaseURL),
		delivery.WithShortCodeLength(cfg.ShortCode.Length),
		delivery.WithAllowedOrigins(cfg.HTTPServer.AllowedOrigins),
		delivery.WithMetrics(newRegistry()),
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(logger.Handler(), slog.LevelError),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", s.driver),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
