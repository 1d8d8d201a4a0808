package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WriteTimeout bounds every websocket write.
const WriteTimeout = 2 * time.Second

// Client receives the messages of one session.
type Client interface {
	ID() string
	Send(msg Message) error
}

// ConnClient is a Client over a websocket connection. Send is safe for
// concurrent use.
type ConnClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewConnClient wraps conn.
func NewConnClient(conn *websocket.Conn) *ConnClient {
	return &ConnClient{id: uuid.NewString(), conn: conn}
}

// ID returns the client's unique id.
func (c *ConnClient) ID() string {
	return c.id
}

// Send writes msg as one JSON text frame.
func (c *ConnClient) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the connection with a normal closure frame.
func (c *ConnClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(WriteTimeout))
	return c.conn.Close()
}
