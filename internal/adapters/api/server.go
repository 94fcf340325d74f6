package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/coastguard/svm-spam-filter/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	serviceName    = "Spam Email Detection API by CoastGuard"
	serviceVersion = "1.0.0"
)

// Options configures the HTTP server
type Options struct {
	ListenAddress  string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	CORSOrigins    []string
	MetricsPath    string
}

// Server exposes the spam filter service over HTTP
type Server struct {
	service *core.SpamFilterService
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options
	router  chi.Router
	server  *http.Server
}

// NewServer creates the HTTP server; metrics may be nil
func NewServer(service *core.SpamFilterService, m *metrics.Metrics, logger *zap.Logger, opts Options) *Server {
	if opts.ListenAddress == "" {
		opts.ListenAddress = "0.0.0.0:8000"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}

	s := &Server{
		service: service,
		metrics: m,
		logger:  logger,
		opts:    opts,
	}
	s.router = s.routes()
	return s
}

// Handler returns the router; used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/predict", s.handlePredict)
	r.Post("/predict-batch", s.handlePredictBatch)
	r.Get("/model-info", s.handleModelInfo)
	r.Get("/predictions", s.handleListPredictions)
	r.Delete("/predictions", s.handleClearPredictions)
	r.Get("/statistics", s.handleStatistics)
	r.Route("/export", func(r chi.Router) {
		r.Get("/csv", s.handleExportCSV)
		r.Get("/json", s.handleExportJSON)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, s.opts.MetricsPath, s.metrics.Handler())
	}

	return r
}

// Start begins serving in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.opts.ListenAddress)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		ErrorLog:     zap.NewStdLog(s.logger),
	}

	s.logger.Info("HTTP API starting", zap.String("address", listener.Addr().String()))

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop drains in-flight requests and shuts the server down
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
