package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultUpstreamBaseURL = "https://api.weather.com/v2/pws/observations/current"
	DefaultUpstreamTimeout = 10 * time.Second
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// APIKey is the upstream credential. Never log it.
	APIKey          string
	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	// MQTTBroker empty disables observation publishing.
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	// AppInsightsKey empty disables request telemetry.
	AppInsightsKey string
}

// MQTTEnabled reports whether a broker was configured.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	apiKey := strings.TrimSpace(os.Getenv("WU_API_KEY"))
	if apiKey == "" {
		return Config{}, errors.New("WU_API_KEY is required")
	}

	baseURL := strings.TrimSpace(os.Getenv("WU_BASE_URL"))
	if baseURL == "" {
		baseURL = DefaultUpstreamBaseURL
	}
	if err := validateBaseURL(baseURL); err != nil {
		return Config{}, err
	}

	timeoutStr := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT"))
	timeout := DefaultUpstreamTimeout
	if timeoutStr != "" {
		timeout, err = time.ParseDuration(timeoutStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid UPSTREAM_TIMEOUT %q: %w", timeoutStr, err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %v", timeout)
		}
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "pwsproxy"
	}

	mqttTopicPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/")
	if mqttTopicPrefix == "" {
		mqttTopicPrefix = "pws"
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        httpAddr,
		APIKey:          apiKey,
		UpstreamBaseURL: baseURL,
		UpstreamTimeout: timeout,
		MQTTBroker:      mqttBroker,
		MQTTPort:        mqttPort,
		MQTTClientID:    mqttClientID,
		MQTTTopicPrefix: mqttTopicPrefix,
		AppInsightsKey:  strings.TrimSpace(os.Getenv("APPLICATIONINSIGHTS_INSTRUMENTATION_KEY")),
	}, nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid WU_BASE_URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid WU_BASE_URL %q (scheme must be http or https)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid WU_BASE_URL %q (missing host)", raw)
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
