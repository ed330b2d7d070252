package channel

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/cjeanneret/RoverGo/internal/debug"
)

// mqttChannel carries commands and telemetry over an MQTT broker.
type mqttChannel struct {
	cfg    Config
	client mqtt.Client
	inbox  chan []byte
}

func newMQTT(cfg Config) *mqttChannel {
	c := &mqttChannel{
		cfg:   cfg,
		inbox: make(chan []byte, inboxSize),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientPrefix + uuid.NewString()[:8]).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(false) // reconnection is the control loop's call, bounded per pass
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		debug.Info("MQTT connection lost: %v", err)
	}

	c.client = mqtt.NewClient(opts)
	return c
}

func (c *mqttChannel) Connect() error {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		token := c.client.Connect()
		token.Wait()
		if lastErr = token.Error(); lastErr == nil {
			break
		}
		debug.Info("MQTT connect attempt %d/%d failed: %v", attempt, connectAttempts, lastErr)
		if attempt < connectAttempts {
			time.Sleep(connectDelay)
		}
	}
	if lastErr != nil {
		return fmt.Errorf("mqtt connect: %w", lastErr)
	}

	sub := c.client.Subscribe(c.cfg.CommandTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		debug.Channel("recv", msg.Topic(), len(msg.Payload()))
		select {
		case c.inbox <- msg.Payload():
		default:
			debug.Verbose("Command inbox full, dropping message")
		}
	})
	sub.Wait()
	if err := sub.Error(); err != nil {
		c.client.Disconnect(0)
		return fmt.Errorf("mqtt subscribe %s: %w", c.cfg.CommandTopic, err)
	}

	// Lets the operator UI notice the rover coming back up.
	_ = c.Publish(c.cfg.StatusTopic, []byte(`{"status":"online"}`))

	debug.Info("MQTT connected to %s", c.cfg.BrokerURL)
	return nil
}

func (c *mqttChannel) Connected() bool {
	return c.client.IsConnectionOpen()
}

func (c *mqttChannel) Publish(topic string, payload []byte) error {
	if !c.Connected() {
		return fmt.Errorf("mqtt publish: not connected")
	}
	debug.Channel("send", topic, len(payload))
	token := c.client.Publish(topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (c *mqttChannel) Incoming() <-chan []byte {
	return c.inbox
}

func (c *mqttChannel) Close() error {
	c.client.Disconnect(250)
	return nil
}
