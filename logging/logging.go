// Package logging builds the application's logrus logger and the HTTP
// request logging middleware.
package logging

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/user/accountd/config"
)

// New returns a logger configured from cfg. Unknown levels fall back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// RequestLogger logs one entry per request after it completes.
// It expects middleware.RequestID to run first.
func RequestLogger(log logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				entry := log.WithFields(logrus.Fields{
					"request_id":  middleware.GetReqID(r.Context()),
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      status,
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"remote_addr": r.RemoteAddr,
				})
				switch {
				case status >= http.StatusInternalServerError:
					entry.Error("request completed")
				case status >= http.StatusBadRequest:
					entry.Warn("request completed")
				default:
					entry.Info("request completed")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
