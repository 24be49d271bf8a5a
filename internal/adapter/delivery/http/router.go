// Package http provides the HTTP delivery layer for the URL shortener service.
// This package contains the HTTP handlers and related types used for processing
// incoming requests, validating input, and formatting responses.
package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vadimbarashkov/shortlink/docs"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
	"github.com/vadimbarashkov/shortlink/pkg/middleware/metrics"
	"github.com/vadimbarashkov/shortlink/pkg/middleware/recoverer"

	httpSwagger "github.com/swaggo/http-swagger"
)

const metricsNamespace = "shortlink"

type routerOptions struct {
	baseURL         string
	shortCodeLength int
	allowedOrigins  []string
	registry        *prometheus.Registry
}

// Option configures the router returned by NewRouter.
type Option func(*routerOptions)

// WithBaseURL sets the prefix of issued short URLs. When empty, the origin
// of the shorten request is used.
func WithBaseURL(baseURL string) Option {
	return func(o *routerOptions) {
		o.baseURL = baseURL
	}
}

// WithShortCodeLength sets the code length the redirect route accepts.
func WithShortCodeLength(n int) Option {
	return func(o *routerOptions) {
		o.shortCodeLength = n
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(o *routerOptions) {
		o.allowedOrigins = origins
	}
}

// WithMetrics instruments every route and exposes reg on /metrics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(o *routerOptions) {
		o.registry = reg
	}
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the URL shortener API.
//
// Redirects are served from the root: only paths made of exactly the configured
// number of alphanumeric characters reach the store, everything else is a 404.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, opts ...Option) *chi.Mux {
	o := routerOptions{
		shortCodeLength: shortcode.DefaultLength,
		allowedOrigins:  []string{"*"},
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.allowedOrigins,
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))

	if o.registry != nil {
		r.Use(metrics.New(o.registry, metricsNamespace).Handler)
		r.Handle("/metrics", promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{}))
	}

	r.NotFound(handleNotFound)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(docs.SwaggerYAML)
	})

	r.Get("/_health", handleHealth)

	h := newURLHandler(urlUseCase, validator.New(), o.baseURL)

	r.Post("/shorten", h.shortenURL)
	r.Get(fmt.Sprintf("/{shortCode:%s}", shortcode.Pattern(o.shortCodeLength)), h.redirect)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.listURLs)
		r.Get("/stats/{shortCode}", h.getURLStats)
		r.Delete("/delete/{shortCode}", h.deleteURL)
	})

	return r
}
