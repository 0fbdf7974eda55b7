// Package mqtt publishes normalized observations to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"pwsproxy/internal/config"
	"pwsproxy/internal/modules/weather/types"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosAtLeastOnce = byte(1)
	publishTimeout = 5 * time.Second
)

var ErrNotConnected = errors.New("mqtt client not connected")

type Publisher struct {
	client    mqtt.Client
	prefix    string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
}

func NewPublisher(cfg config.Config, logger *slog.Logger) (*Publisher, error) {
	if !cfg.MQTTEnabled() {
		return nil, errors.New("mqtt broker not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Publisher{
		prefix: cfg.MQTTTopicPrefix,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWriteTimeout(publishTimeout)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p, nil
}

// Connect waits for the initial connection, and respects ctx and Disconnect().
// On ctx expiry the client keeps retrying in the background.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errors.New("publisher stopped")
	default:
	}

	if p.IsConnected() {
		return nil
	}

	// With ConnectRetry(true) the token only completes once connected.
	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errors.New("publisher stopped")
		default:
		}
	}
}

// PublishObservation sends w as a retained QoS 1 message. It returns once the
// message is handed to the client; delivery failures are logged.
func (p *Publisher) PublishObservation(_ context.Context, w types.Weather) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}

	topic := Topic(p.prefix, w.StationID)
	token := p.client.Publish(topic, qosAtLeastOnce, true, data)

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		if !token.WaitTimeout(publishTimeout) {
			p.logger.Warn("mqtt publish timed out", "topic", topic, "station_id", w.StationID)
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("mqtt publish failed", "topic", topic, "station_id", w.StationID, "error", err)
			return
		}
		p.logger.Debug("published observation", "topic", topic, "station_id", w.StationID, "bytes", len(data))
	}()
	return nil
}

// Topic returns <prefix>/<station>/observation. Topic separators and
// wildcards in the station id are replaced so one station maps to one level.
func Topic(prefix, stationID string) string {
	level := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(stationID)
	if prefix == "" {
		return level + "/observation"
	}
	return prefix + "/" + level + "/observation"
}

// IsConnected returns whether the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the publisher and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	// Let pending publishes settle before paho quiesces.
	p.inflight.Wait()

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt publisher disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
