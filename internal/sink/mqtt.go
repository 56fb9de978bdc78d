package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/view"
	"github.com/danghamo/satwatch/pkg/config"
	"github.com/danghamo/satwatch/pkg/logger"
)

// Publisher is the part of mqtt.Client the sink uses
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes every panel as JSON to one topic
type MQTTSink struct {
	client   Publisher
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
	logger   *logger.Logger
}

// NewMQTTSink connects to the configured broker
func NewMQTTSink(cfg config.MQTTConfig, log *logger.Logger) (*MQTTSink, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	s := newMQTTSink(client, cfg, log)
	s.logger.Info("Connected to MQTT broker",
		zap.String("broker", cfg.Broker),
		zap.String("topic", cfg.Topic))
	return s, nil
}

func newMQTTSink(client Publisher, cfg config.MQTTConfig, log *logger.Logger) *MQTTSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTSink{
		client:   client,
		topic:    cfg.Topic,
		qos:      byte(cfg.QoS),
		retained: cfg.Retained,
		timeout:  timeout,
		logger:   log.WithComponent("mqtt-sink"),
	}
}

// PublishPanel sends the panel and waits for the broker acknowledgement
func (s *MQTTSink) PublishPanel(ctx context.Context, panel view.Panel) error {
	payload, err := json.Marshal(panel)
	if err != nil {
		return fmt.Errorf("failed to marshal panel: %w", err)
	}

	token := s.client.Publish(s.topic, s.qos, s.retained, payload)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("mqtt publish to %s: timed out after %s", s.topic, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", s.topic, err)
	}

	s.logger.Debug("Panel published", zap.String("topic", s.topic), zap.Int("bytes", len(payload)))
	return nil
}

// Close disconnects from the broker
func (s *MQTTSink) Close() {
	if c, ok := s.client.(mqtt.Client); ok {
		c.Disconnect(250)
	}
}
