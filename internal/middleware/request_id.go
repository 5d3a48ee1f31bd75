package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/S1riyS/dirsize/pkg/logging"
)

const RequestIDHeader = "X-Request-ID"

func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Check if request_id is already in context
		requestID := logging.GetRequestIDFromCtx(ctx)

		// If not in context, check X-Request-ID header
		if requestID == "" {
			requestID = r.Header.Get(RequestIDHeader)
		}

		// If still no request_id, generate a new one
		if requestID == "" {
			ctx = logging.MakeContextWithNewRequestID(ctx)
		} else {
			ctx = logging.MakeContextWithRequestID(ctx, requestID)
		}

		w.Header().Set(RequestIDHeader, logging.GetRequestIDFromCtx(ctx))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.size += int64(n)
	return n, err
}

// LoggingMiddleware logs every completed request. It expects to run inside
// RequestIDMiddleware so the request id is attached.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "middleware.LoggingMiddleware"

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger := logging.GetLoggerFromContextWithOp(r.Context(), op)
		logger.Info("Request completed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Int64("size", sw.size),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
