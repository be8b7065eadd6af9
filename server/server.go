// Package server exposes the inference adapter over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/YuminosukeSato/salesforecast/artifact"
	"github.com/YuminosukeSato/salesforecast/inference"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
)

// Version is reported by / and /health.
const Version = "1.0.0"

// MaxBodyBytes limits request bodies.
const MaxBodyBytes = 1 << 20

// Server は推論APIのHTTPハンドラー群
//
// adapter が nil の場合は縮退モードで動作し、モデルを必要とするエンドポイントは 503 を返す。
type Server struct {
	adapter *inference.Adapter
	loadErr error
	logger  log.Logger
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New builds a Server around adapter. When adapter is nil, loadErr explains
// why and is reported by model endpoints.
func New(adapter *inference.Adapter, loadErr error, opts ...Option) *Server {
	s := &Server{adapter: adapter, loadErr: loadErr}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("server")
	}
	if s.adapter == nil && s.loadErr == nil {
		s.loadErr = errors.ErrModelUnavailable
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("POST /predict_batch", s.handlePredictBatch)
	mux.HandleFunc("GET /model-info", s.handleModelInfo)
	mux.HandleFunc("GET /feature-importance", s.handleFeatureImportance)
	mux.HandleFunc("GET /example", s.handleExample)
	s.handler = s.withRequestID(s.withLogging(s.withRecover(mux)))
	return s
}

// NewFromDir loads the bundle in dir. A load failure does not prevent the
// server from starting: it runs in degraded mode instead.
func NewFromDir(dir string, opts ...Option) *Server {
	a, err := loadAdapter(dir)
	s := New(a, err, opts...)
	if err != nil {
		s.logger.Error("Model could not be loaded; serving in degraded mode", err, log.PathKey, dir)
	}
	return s
}

func loadAdapter(dir string) (*inference.Adapter, error) {
	b, err := artifact.Load(dir)
	if err != nil {
		return nil, err
	}
	return inference.NewAdapter(b)
}

// Ready reports whether a model is loaded.
func (s *Server) Ready() bool {
	return s.adapter != nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", log.AddrKey, addr, "model_loaded", s.Ready())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down", log.AddrKey, addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
