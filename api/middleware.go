package api

import (
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
)

// Captures the status code for logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request with its status and duration.
func LoggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lrw := &loggingResponseWriter{w, http.StatusOK}

			startTime := time.Now()
			next.ServeHTTP(lrw, r)

			status := color.HiGreenString("%d", lrw.statusCode)
			if lrw.statusCode >= 400 {
				status = color.HiRedString("%d", lrw.statusCode)
			}
			logger.Printf("%s %s from %s status=%s took=%v\n", r.Method, r.RequestURI, r.RemoteAddr, status, time.Since(startTime))
		})
	}
}
