// Package server exposes the vein pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"medisense/internal/logger"

	"github.com/go-kit/kit/endpoint"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SystemName  = "medisense"
	ServiceName = "vein"
)

type Options struct {
	Addr           string
	MaxConcurrent  int
	RequestTimeout time.Duration
	MaxUploadBytes int64
	Logger         logger.Logger
	// Registry receives request metrics and backs /metrics. A fresh registry
	// is created when nil.
	Registry *stdprometheus.Registry
}

type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

type ctxKeyType int

const ctxURLPath ctxKeyType = iota

func beforeCtx(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, ctxURLPath, r.URL.Path)
}

func pathFromContext(ctx context.Context) string {
	path, _ := ctx.Value(ctxURLPath).(string)
	return path
}

type logErrorHandler struct {
	logger logger.Logger
}

// Handle sees decode and encode failures too, which never reach the endpoint
// middlewares.
func (h logErrorHandler) Handle(ctx context.Context, err error) {
	h.logger.Debug("HTTPServer", "transport error", map[string]interface{}{
		"path":   pathFromContext(ctx),
		"status": DecodeErrorCode(err).HTTPCode,
		"error":  err.Error(),
	})
}

// NewHandler builds the router: health check, prediction and metrics.
func NewHandler(svc Processor, opts Options) http.Handler {
	opts = withDefaults(opts)

	predict := endpoint.Chain(
		CreateLoggingMiddleware(opts.Logger),
		CreateMetrics(opts.Registry, SystemName, ServiceName),
		CreateTimeoutMiddleware(opts.RequestTimeout),
		CreateConcurrencyMiddleware(opts.MaxConcurrent),
	)(MakePredictEndpoint(svc))

	serverOptions := []httptransport.ServerOption{
		httptransport.ServerBefore(beforeCtx),
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerErrorHandler(logErrorHandler{logger: opts.Logger}),
	}
	predictHandler := httptransport.NewServer(
		predict,
		makeDecodePredictRequest(opts.MaxUploadBytes),
		encodePredictResponse,
		serverOptions...,
	)

	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/").HandlerFunc(healthCheck)
	r.Methods(http.MethodPost).Path("/predict").Handler(predictHandler)
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func withDefaults(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.NopLogger{}
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry(SystemName, nil)
	}
	return opts
}

func New(svc Processor, opts Options) *Server {
	opts = withDefaults(opts)
	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewHandler(svc, opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: opts.Logger,
	}
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTPServer", "listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests. It satisfies shutdown.Shutdownable.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTPServer", err, map[string]interface{}{
			"stage": "shutdown",
		})
	}
}
