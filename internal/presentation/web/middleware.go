package web

import (
	"net/http"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"photo-studio/internal/application"
)

// sanitizeForLog убирает переводы строк, чтобы нельзя было подделать записи лога
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// requestLogger пишет запросы в логгер приложения вместо стандартного log
func requestLogger(logger application.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debug("%s %s -> %d (%d байт, %s) [%s]",
				r.Method, sanitizeForLog(r.URL.Path), status, ww.BytesWritten(),
				time.Since(start).Round(time.Millisecond), chiMiddleware.GetReqID(r.Context()))
		})
	}
}
