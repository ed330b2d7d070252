// Package channel abstracts the bidirectional message path between the rover
// and its operator. Implementations deliver inbound command payloads through
// a buffered queue so that all state mutation stays on the control-loop
// goroutine; transport callbacks only enqueue.
package channel

import (
	"fmt"
	"time"
)

// Bounded reconnect policy applied inside Connect: a small number of
// attempts with a fixed delay, tolerated indefinitely by the caller.
const (
	connectAttempts = 3
	connectDelay    = 2 * time.Second
)

// inboxSize bounds queued inbound commands; overflow is dropped so the
// control loop is never blocked by a chatty operator.
const inboxSize = 16

// Channel is a logical publish/subscribe message path over some transport.
type Channel interface {
	// Connect brings the channel up, making a bounded number of attempts.
	// On success the command topic is subscribed and an online hello is
	// published on the status topic.
	Connect() error
	// Connected reports whether the channel is currently up.
	Connected() bool
	// Publish sends one message. Failures are reported, never retried.
	Publish(topic string, payload []byte) error
	// Incoming delivers raw command payloads for the control loop to drain.
	Incoming() <-chan []byte
	Close() error
}

// Config parameterizes the transport selection and topics.
type Config struct {
	Transport    string // "mqtt" or "websocket"
	BrokerURL    string
	WebsocketURL string
	Username     string
	Password     string
	ClientPrefix string
	CommandTopic string
	StatusTopic  string
	SensorTopic  string
}

// New builds the channel selected by cfg.Transport.
func New(cfg Config) (Channel, error) {
	switch cfg.Transport {
	case "mqtt":
		return newMQTT(cfg), nil
	case "websocket":
		return newWebsocket(cfg), nil
	default:
		return nil, fmt.Errorf("unknown channel transport %q", cfg.Transport)
	}
}
