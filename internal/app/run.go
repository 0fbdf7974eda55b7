package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"pwsproxy/internal/config"
	httpapi "pwsproxy/internal/httpapi"
	weather "pwsproxy/internal/modules/weather"
	weatherclient "pwsproxy/internal/modules/weather/client"
	weatherservice "pwsproxy/internal/modules/weather/service"
	weatherviews "pwsproxy/internal/modules/weather/views"
	"pwsproxy/internal/mqtt"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
)

const (
	mqttConnectTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
	telemetryFlushWait = 5 * time.Second
)

type app struct {
	cfg       config.Config
	logger    *slog.Logger
	srv       *http.Server
	publisher *mqtt.Publisher
	telemetry appinsights.TelemetryClient
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, version string, logger *slog.Logger) error {
	logger.Info("config loaded",
		"app_env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"upstream_base_url", cfg.UpstreamBaseURL,
		"upstream_timeout", cfg.UpstreamTimeout.String(),
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_topic_prefix", cfg.MQTTTopicPrefix,
		"appinsights_enabled", cfg.AppInsightsKey != "",
	)

	a, err := newApp(ctx, cfg, version, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		a.closeBackends()
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	return a.serve(ctx, ln)
}

func newApp(ctx context.Context, cfg config.Config, version string, logger *slog.Logger) (*app, error) {
	if err := weatherviews.LoadTemplates(); err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	upstream, err := weatherclient.New(
		cfg.UpstreamBaseURL,
		cfg.APIKey,
		"pwsproxy/"+version,
		weatherclient.NewHTTPClient(cfg.UpstreamTimeout),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	// Both stay untyped nil when disabled so nil checks downstream hold.
	var publisher weatherservice.Publisher
	var connState httpapi.ConnectionState
	if cfg.MQTTEnabled() {
		p, err := mqtt.NewPublisher(cfg, logger)
		if err != nil {
			return nil, err
		}
		// Short bound so a missing broker doesn't block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err = p.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing, client keeps retrying)", "error", err)
		}
		a.publisher = p
		publisher = p
		connState = p
	}

	svc := weatherservice.NewService(upstream, publisher, logger)

	mux := httpapi.NewMux(connState)
	weather.RegisterFeature(mux, svc)

	if cfg.AppInsightsKey != "" {
		a.telemetry = httpapi.NewTelemetryClient(cfg.AppInsightsKey, "pwsproxy")
	}

	a.srv = httpapi.NewServer(cfg, mux, logger, a.telemetry)
	return a, nil
}

func (a *app) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http listening", "addr", ln.Addr().String())
		errCh <- a.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.closeBackends()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Info("http shutting down")
	shutdownErr := a.srv.Shutdown(shutdownCtx)

	// After Shutdown so in-flight requests can still publish.
	a.closeBackends()

	if shutdownErr != nil {
		return shutdownErr
	}

	err := <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

func (a *app) closeBackends() {
	if a.publisher != nil {
		a.logger.Info("mqtt disconnecting")
		a.publisher.Disconnect()
	}
	if a.telemetry != nil {
		select {
		case <-a.telemetry.Channel().Close(telemetryFlushWait):
		case <-time.After(telemetryFlushWait):
			a.logger.Warn("appinsights flush timed out")
		}
	}
}
