package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"pwsproxy/internal/config"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
)

const readHeaderTimeout = 5 * time.Second

// NewServer wraps mux in the middleware chain. telemetry may be nil.
func NewServer(cfg config.Config, mux *http.ServeMux, logger *slog.Logger, telemetry appinsights.TelemetryClient) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           Handler(mux, logger, telemetry),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// Handler applies request id, request logging and optional tracing, in that order.
func Handler(mux *http.ServeMux, logger *slog.Logger, telemetry appinsights.TelemetryClient) http.Handler {
	var h http.Handler = mux
	if telemetry != nil {
		h = traceRequests(telemetry, h)
	}
	return requestID(requestLogger(logger, h))
}
