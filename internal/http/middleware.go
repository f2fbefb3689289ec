package http

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()),
					)
					writeError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// zapFormatter feeds chi's request logger into zap.
type zapFormatter struct {
	logger *zap.Logger
}

func (f zapFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return zapEntry{logger: f.logger.With(
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote", r.RemoteAddr),
	)}
}

type zapEntry struct {
	logger *zap.Logger
}

func (e zapEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	fields := []zap.Field{
		zap.Int("status", status),
		zap.Int("bytes", bytes),
		zap.Duration("elapsed", elapsed),
	}
	if status >= http.StatusInternalServerError {
		e.logger.Warn("request", fields...)
		return
	}
	e.logger.Info("request", fields...)
}

func (e zapEntry) Panic(v any, stack []byte) {
	e.logger.Error("request panic", zap.Any("panic", v), zap.ByteString("stack", stack))
}

func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(zapFormatter{logger: logger})
}

func Timeout(next http.Handler) http.Handler {
	return middleware.Timeout(60 * time.Second)(next)
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
