package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/game"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu         sync.Mutex
	opts       *mqtt.ClientOptions
	connectErr error
	publishErr error
	messages   []published
	connected  bool
}

func (c *fakeClient) IsConnected() bool      { return c.connected }
func (c *fakeClient) IsConnectionOpen() bool { return c.connected }
func (c *fakeClient) Connect() mqtt.Token {
	if c.connectErr == nil {
		c.connected = true
	}
	return newToken(c.connectErr)
}
func (c *fakeClient) Disconnect(uint) { c.connected = false }
func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr == nil {
		c.messages = append(c.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	}
	return newToken(c.publishErr)
}
func (c *fakeClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return newToken(nil)
}
func (c *fakeClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return newToken(nil)
}
func (c *fakeClient) Unsubscribe(...string) mqtt.Token        { return newToken(nil) }
func (c *fakeClient) AddRoute(string, mqtt.MessageHandler)    {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

func newTestEmitter(t *testing.T, client *fakeClient) *MQTTEmitter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Broker = "localhost:1883"
	cfg.QoS = 1
	e := NewMQTTEmitter(cfg)
	e.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		client.opts = opts
		return client
	}
	if err := e.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return e
}

func TestMQTTEmitter_Connect(t *testing.T) {
	client := &fakeClient{}
	e := newTestEmitter(t, client)

	if len(client.opts.Servers) != 1 || client.opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("servers = %v, want tcp://localhost:1883", client.opts.Servers)
	}
	if !client.opts.AutoReconnect {
		t.Error("auto-reconnect should be enabled")
	}
	if !e.Stats().Connected {
		t.Error("Stats().Connected should be true")
	}

	e.Disconnect()
	if e.Stats().Connected {
		t.Error("Stats().Connected should be false after Disconnect")
	}
}

func TestMQTTEmitter_ConnectError(t *testing.T) {
	want := errors.New("connection refused")
	cfg := DefaultConfig()
	cfg.Broker = "tcp://broker:1883"
	e := NewMQTTEmitter(cfg)
	e.newClient = func(*mqtt.ClientOptions) mqtt.Client { return &fakeClient{connectErr: want} }

	if err := e.Connect(context.Background()); !errors.Is(err, want) {
		t.Errorf("Connect() error = %v, want %v", err, want)
	}
}

func TestMQTTEmitter_PublishAction(t *testing.T) {
	client := &fakeClient{}
	e := newTestEmitter(t, client)

	rec := action.ToRecord(action.Select{Cell: board.Cell{Row: 2, Col: 3}}, 0.82)
	if err := e.PublishAction("sess-1", rec); err != nil {
		t.Fatalf("PublishAction() error = %v", err)
	}

	if len(client.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.messages))
	}
	msg := client.messages[0]
	if msg.topic != "gestureboard/sess-1/actions" || msg.qos != 1 {
		t.Errorf("topic = %q qos = %d", msg.topic, msg.qos)
	}

	var got map[string]any
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if got["session"] != "sess-1" || got["type"] != "select_piece" {
		t.Errorf("payload = %s", msg.payload)
	}
	if pos, ok := got["position"].([]any); !ok || len(pos) != 2 || pos[0] != 2.0 || pos[1] != 3.0 {
		t.Errorf("position = %v, want [2 3]", got["position"])
	}

	if n := e.Stats().Published["gestureboard/sess-1/actions"]; n != 1 {
		t.Errorf("published count = %d, want 1", n)
	}
}

func TestMQTTEmitter_PublishMove(t *testing.T) {
	client := &fakeClient{}
	e := newTestEmitter(t, client)

	captured := board.Cell{Row: 3, Col: 2}
	err := e.PublishMove(MoveMessage{
		Session: "sess-1",
		GameID:  "game-1",
		Seq:     4,
		Move: game.Move{
			Player:   game.PlayerRed,
			From:     board.Cell{Row: 2, Col: 1},
			To:       board.Cell{Row: 4, Col: 3},
			Captured: &captured,
		},
	})
	if err != nil {
		t.Fatalf("PublishMove() error = %v", err)
	}

	msg := client.messages[0]
	if msg.topic != "gestureboard/sess-1/moves" {
		t.Errorf("topic = %q", msg.topic)
	}
	var got struct {
		Seq      int        `json:"seq"`
		Player   int        `json:"player"`
		From     board.Cell `json:"from"`
		Captured board.Cell `json:"captured"`
	}
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if got.Seq != 4 || got.Player != 1 || got.From != (board.Cell{Row: 2, Col: 1}) || got.Captured != captured {
		t.Errorf("payload = %s", msg.payload)
	}
}

func TestMQTTEmitter_PublishErrors(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		e := NewMQTTEmitter(DefaultConfig())
		err := e.PublishAction("sess-1", action.ToRecord(action.Cancel{}, 0.5))
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("error = %v, want ErrNotConnected", err)
		}
		if e.Stats().Errors != 1 {
			t.Errorf("Errors = %d, want 1", e.Stats().Errors)
		}
	})

	t.Run("broker rejects", func(t *testing.T) {
		client := &fakeClient{}
		e := newTestEmitter(t, client)
		client.publishErr = errors.New("not authorized")

		if err := e.PublishAction("sess-1", action.ToRecord(action.Cancel{}, 0.5)); err == nil {
			t.Error("expected publish error")
		}
		if e.Stats().Errors != 1 {
			t.Errorf("Errors = %d, want 1", e.Stats().Errors)
		}
	})
}

func TestConfig_Enabled(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled() {
		t.Error("default config should be disabled")
	}
	cfg.Broker = "localhost:1883"
	if !cfg.Enabled() {
		t.Error("config with broker should be enabled")
	}
}
