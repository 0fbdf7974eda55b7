package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"pwsproxy/internal/config"
)

func TestNewWithWriter_prodIsJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}

	logger := NewWithWriter(&buf, cfg, "1.2.3", "pwsproxy")
	logger.Info("hello", "station_id", "KTEST1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		"msg":        "hello",
		"app":        "pwsproxy",
		"version":    "1.2.3",
		"env":        "prod",
		"station_id": "KTEST1",
	} {
		if rec[key] != want {
			t.Errorf("%s = %v; want %q", key, rec[key], want)
		}
	}
}

func TestNewWithWriter_respectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelWarn}

	logger := NewWithWriter(&buf, cfg, "1.2.3", "pwsproxy")
	logger.Info("dropped")

	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %q", buf.String())
	}
}

func TestNewWithWriter_redactsAPIKey(t *testing.T) {
	for _, version := range []string{"dev", "1.2.3"} {
		t.Run(version, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}

			logger := NewWithWriter(&buf, cfg, version, "pwsproxy")
			logger.Info("config", "api_key", "super-secret", "apiKey", "super-secret")

			out := buf.String()
			if strings.Contains(out, "super-secret") {
				t.Fatalf("secret leaked into log output: %q", out)
			}
			if !strings.Contains(out, redacted) {
				t.Errorf("output missing %q marker: %q", redacted, out)
			}
		})
	}
}
