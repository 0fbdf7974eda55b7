// Package client talks to the third-party PWS current-observations API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// MaxBodyBytes caps how much of an upstream body is read.
const MaxBodyBytes = 1 << 20

// ErrUnreachable marks failures where no upstream response was obtained.
var ErrUnreachable = errors.New("upstream unreachable")

// Response is the raw upstream answer. Any status code is a Response, not an error.
type Response struct {
	StatusCode int
	Body       []byte
}

type Client struct {
	baseURL    *url.URL
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient returns the shared outbound client. The timeout bounds the
// whole exchange, body read included.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// New builds a client for baseURL. A nil httpClient or logger falls back to
// the package defaults.
func New(baseURL string, apiKey string, userAgent string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    u,
		apiKey:     apiKey,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// FetchCurrent performs one GET for the station's current conditions.
func (c *Client) FetchCurrent(ctx context.Context, stationID string) (Response, error) {
	reqURL := c.currentURL(stationID, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrUnreachable, stripURL(err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("close upstream body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %w", ErrUnreachable, stripURL(err))
	}

	c.logger.Debug("upstream response",
		"url", c.currentURL(stationID, "REDACTED"),
		"upstream_status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) currentURL(stationID string, apiKey string) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("stationId", stationID)
	q.Set("format", "json")
	q.Set("units", "e")
	q.Set("apiKey", apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// stripURL drops the request URL from a *url.Error so the api key never
// travels inside error strings.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
