package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"pwsproxy/internal/config"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
)

type fakeConn struct{ connected bool }

func (f fakeConn) IsConnected() bool { return f.connected }

// syncBuffer guards a bytes.Buffer shared with the server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestServer(t *testing.T, conn ConnectionState) (*httptest.Server, *syncBuffer) {
	t.Helper()

	logs := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	mux := NewMux(conn)
	mux.HandleFunc("GET /teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	srv := NewServer(config.Config{HTTPAddr: ":0"}, mux, logger, nil)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, logs
}

func mustGetJSON[T any](t *testing.T, client *http.Client, url string, out *T) *http.Response {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name string
		conn ConnectionState
		want string
	}{
		{"mqtt disabled", nil, "disabled"},
		{"mqtt connected", fakeConn{connected: true}, "connected"},
		{"mqtt disconnected", fakeConn{connected: false}, "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(t, tt.conn)

			var body map[string]string
			resp := mustGetJSON(t, ts.Client(), ts.URL+"/healthz", &body)

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
			}
			if body["status"] != "ok" {
				t.Errorf("body.status=%q want=%q", body["status"], "ok")
			}
			if body["mqtt"] != tt.want {
				t.Errorf("body.mqtt=%q want=%q", body["mqtt"], tt.want)
			}
		})
	}
}

func TestHealthz_wrongMethod(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := ts.Client().Post(ts.URL+"/healthz", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status=%d want=%d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestRequestID(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	t.Run("generated", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		if id := resp.Header.Get("X-Request-ID"); len(id) != 36 {
			t.Errorf("X-Request-ID=%q want a uuid", id)
		}
	})

	t.Run("echoed", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		defer resp.Body.Close()
		if id := resp.Header.Get("X-Request-ID"); id != "abc-123" {
			t.Errorf("X-Request-ID=%q want=%q", id, "abc-123")
		}
	})

	t.Run("oversized is replaced", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLen+1))
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		defer resp.Body.Close()
		if id := resp.Header.Get("X-Request-ID"); len(id) != 36 {
			t.Errorf("X-Request-ID=%q want a fresh uuid", id)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	ts, logs := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/teapot", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err == nil && m["msg"] == "http request" {
			entry = m
		}
	}
	if entry == nil {
		t.Fatalf("no http request log line in %q", logs.String())
	}
	if entry["method"] != "GET" || entry["path"] != "/teapot" {
		t.Errorf("method/path = %v %v", entry["method"], entry["path"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("status = %v; want %d", entry["status"], http.StatusTeapot)
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v; want req-42", entry["request_id"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("duration_ms missing")
	}
}

func TestStatusRecorder_firstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	_, _ = sr.Write([]byte("body"))
	sr.WriteHeader(http.StatusInternalServerError)

	if sr.status != http.StatusOK {
		t.Errorf("status = %d; want %d", sr.status, http.StatusOK)
	}
}

// recordingTelemetry embeds the client interface so Track is the only method to implement.
type recordingTelemetry struct {
	appinsights.TelemetryClient
	mu      sync.Mutex
	tracked []appinsights.Telemetry
}

func (r *recordingTelemetry) Track(item appinsights.Telemetry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = append(r.tracked, item)
}

func TestTraceRequests(t *testing.T) {
	telemetry := &recordingTelemetry{}
	mux := NewMux(nil)
	handler := Handler(mux, slog.New(slog.NewTextHandler(&syncBuffer{}, nil)), telemetry)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if len(telemetry.tracked) != 1 {
		t.Fatalf("tracked %d items; want 1", len(telemetry.tracked))
	}
	rt, ok := telemetry.tracked[0].(*appinsights.RequestTelemetry)
	if !ok {
		t.Fatalf("tracked %T; want *appinsights.RequestTelemetry", telemetry.tracked[0])
	}
	if rt.ResponseCode != "200" {
		t.Errorf("ResponseCode = %q; want 200", rt.ResponseCode)
	}
	if rt.Name != "GET /healthz" {
		t.Errorf("Name = %q; want GET /healthz", rt.Name)
	}
	if rt.Id != "trace-1" {
		t.Errorf("Id = %q; want trace-1", rt.Id)
	}
	if !rt.Success {
		t.Error("Success = false; want true")
	}
}
