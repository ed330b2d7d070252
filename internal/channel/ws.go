package channel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cjeanneret/RoverGo/internal/debug"
)

// envelope frames messages on the single websocket with a logical topic, so
// the command/status/sensor paths keep their identity without a broker.
type envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// wsChannel is the broker-less transport: one websocket to a relay (or
// directly to the operator UI) carrying topic-framed JSON.
type wsChannel struct {
	cfg   Config
	inbox chan []byte

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func newWebsocket(cfg Config) *wsChannel {
	return &wsChannel{
		cfg:   cfg,
		inbox: make(chan []byte, inboxSize),
	}
}

func (c *wsChannel) Connect() error {
	header := http.Header{}
	header.Set("X-Client-Id", c.cfg.ClientPrefix+uuid.NewString()[:8])

	var (
		conn    *websocket.Conn
		lastErr error
	)
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, _, lastErr = websocket.DefaultDialer.Dial(c.cfg.WebsocketURL, header)
		if lastErr == nil {
			break
		}
		debug.Info("Websocket connect attempt %d/%d failed: %v", attempt, connectAttempts, lastErr)
		if attempt < connectAttempts {
			time.Sleep(connectDelay)
		}
	}
	if lastErr != nil {
		return fmt.Errorf("websocket connect: %w", lastErr)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)

	_ = c.Publish(c.cfg.StatusTopic, []byte(`{"status":"online"}`))

	debug.Info("Websocket connected to %s", c.cfg.WebsocketURL)
	return nil
}

// readLoop dispatches inbound frames until the socket dies. Only command
// topic payloads are queued; anything else is noise from the relay.
func (c *wsChannel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			debug.Info("Websocket read failed: %v", err)
			c.mu.Lock()
			if c.conn == conn {
				c.connected = false
			}
			c.mu.Unlock()
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			debug.Verbose("Dropping unparseable websocket frame")
			continue
		}
		if env.Topic != c.cfg.CommandTopic {
			continue
		}

		debug.Channel("recv", env.Topic, len(env.Payload))
		select {
		case c.inbox <- []byte(env.Payload):
		default:
			debug.Verbose("Command inbox full, dropping message")
		}
	}
}

func (c *wsChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *wsChannel) Publish(topic string, payload []byte) error {
	raw, err := json.Marshal(envelope{Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("websocket marshal: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return fmt.Errorf("websocket publish: not connected")
	}
	debug.Channel("send", topic, len(payload))
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.connected = false
		return fmt.Errorf("websocket publish %s: %w", topic, err)
	}
	return nil
}

func (c *wsChannel) Incoming() <-chan []byte {
	return c.inbox
}

func (c *wsChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
