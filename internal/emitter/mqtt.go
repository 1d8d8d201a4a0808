// Package emitter publishes gesture actions and game moves to an MQTT
// broker.
package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/game"
	"github.com/ayusman/gestureboard/internal/log"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt not connected")

// Config selects the broker and topics. An empty Broker disables the
// emitter.
type Config struct {
	Broker         string        `yaml:"broker" env:"BROKER"`
	ClientID       string        `yaml:"client_id" env:"CLIENT_ID"`
	Username       string        `yaml:"username" env:"USERNAME"`
	Password       string        `yaml:"password" env:"PASSWORD"`
	TopicPrefix    string        `yaml:"topic_prefix" env:"TOPIC_PREFIX"`
	QoS            byte          `yaml:"qos" env:"QOS"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env:"PUBLISH_TIMEOUT"`
}

// DefaultConfig returns a disabled emitter configuration.
func DefaultConfig() Config {
	return Config{
		ClientID:       "gestureboard",
		TopicPrefix:    "gestureboard",
		ConnectTimeout: 5 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}

// ActionMessage is published for every emitted action.
type ActionMessage struct {
	Session   string    `json:"session"`
	Timestamp time.Time `json:"timestamp"`
	action.Record
}

// MoveMessage is published for every executed move.
type MoveMessage struct {
	Session   string    `json:"session"`
	GameID    string    `json:"game_id,omitempty"`
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	game.Move
	GameOver bool        `json:"game_over"`
	Winner   game.Player `json:"winner,omitempty"`
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// MQTTEmitter publishes to one broker with automatic reconnection.
type MQTTEmitter struct {
	cfg    Config
	client mqtt.Client

	// newClient builds the paho client; replaced in tests.
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates an emitter for cfg. Call Connect before
// publishing.
func NewMQTTEmitter(cfg Config) *MQTTEmitter {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &MQTTEmitter{
		cfg:       cfg,
		newClient: mqtt.NewClient,
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection. Later connection losses are
// recovered by the client's auto-reconnect.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	broker := e.cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(e.cfg.ClientID)
	if e.cfg.Username != "" {
		opts.SetUsername(e.cfg.Username)
		opts.SetPassword(e.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		log.Info("mqtt connection established", "broker", broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		log.Warn("mqtt connection lost, will auto-reconnect", "broker", broker, "error", err)
	}

	e.client = e.newClient(opts)

	log.Info("connecting to mqtt broker", "broker", broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(e.cfg.ConnectTimeout):
		return fmt.Errorf("mqtt connect to %s: timeout", broker)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	e.setConnected(true)
	return nil
}

// PublishAction publishes rec to <prefix>/<session>/actions.
func (e *MQTTEmitter) PublishAction(session string, rec action.Record) error {
	return e.publish(e.topic(session, "actions"), ActionMessage{
		Session:   session,
		Timestamp: time.Now().UTC(),
		Record:    rec,
	})
}

// PublishMove publishes msg to <prefix>/<session>/moves.
func (e *MQTTEmitter) PublishMove(msg MoveMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return e.publish(e.topic(msg.Session, "moves"), msg)
}

func (e *MQTTEmitter) topic(session, kind string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(e.cfg.TopicPrefix, "/"), session, kind)
}

func (e *MQTTEmitter) publish(topic string, v any) error {
	if !e.isConnected() {
		e.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(v)
	if err != nil {
		e.countError()
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(e.cfg.PublishTimeout) {
		e.countError()
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	log.Debug("mqtt message published", "topic", topic, "qos", e.cfg.QoS, "size", len(payload))
	return nil
}

// Disconnect closes the broker connection.
func (e *MQTTEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		log.Info("mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats returns a snapshot of the publish counters.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
