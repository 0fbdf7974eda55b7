package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
)

// NewTelemetryClient builds an Application Insights client tagged with role.
func NewTelemetryClient(instrumentationKey, role string) appinsights.TelemetryClient {
	telemetryConfig := appinsights.NewTelemetryConfiguration(instrumentationKey)
	telemetryConfig.MaxBatchSize = 8192
	telemetryConfig.MaxBatchInterval = 2 * time.Second

	client := appinsights.NewTelemetryClientFromConfig(telemetryConfig)
	client.Context().Tags.Cloud().SetRole(role)
	return client
}

// traceRequests sends one request telemetry item per request. It must run
// inside requestID so the id can be attached.
func traceRequests(client appinsights.TelemetryClient, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme := "https"
		if r.TLS == nil {
			scheme = "http"
		}
		telemetry := appinsights.NewRequestTelemetry(r.Method, fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path), 0, "200")
		start := time.Now()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		telemetry.Duration = time.Since(start)
		telemetry.ResponseCode = strconv.Itoa(sr.status)
		telemetry.Success = sr.status < http.StatusInternalServerError
		// The mux fills in the matched pattern while routing.
		telemetry.Name = r.Method + " " + r.URL.Path
		if r.Pattern != "" {
			telemetry.Name = r.Pattern
		}
		if id := RequestIDFromContext(r.Context()); id != "" {
			telemetry.Id = id
		}

		client.Track(telemetry)
	})
}
