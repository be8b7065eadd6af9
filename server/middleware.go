package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("Request handled",
			log.RequestIDKey, RequestID(r.Context()),
			log.HTTPMethodKey, r.Method,
			log.HTTPPathKey, r.URL.Path,
			log.HTTPStatusKey, rec.status,
			log.DurationMsKey, time.Since(start))
	})
}

// withRecover turns a handler panic into a 500 response.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := errors.SafeExecute(r.Method+" "+r.URL.Path, func() error {
			next.ServeHTTP(w, r)
			return nil
		})
		if err != nil {
			s.logger.Error("Handler panicked", err, log.RequestIDKey, RequestID(r.Context()))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	})
}
