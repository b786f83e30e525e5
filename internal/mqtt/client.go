package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Config holds broker connection settings.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// MessageHandler handles one inbound message.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client wraps a paho client with bounded waits. Subscriptions are
// re-issued on every (re)connect since the session is clean.
type Client struct {
	client  paho.Client
	logger  *zap.Logger
	timeout time.Duration

	mu   sync.Mutex
	subs map[string]subscription
}

func newClient(logger *zap.Logger, timeout time.Duration) *Client {
	return &Client{logger: logger, timeout: timeout, subs: make(map[string]subscription)}
}

// Connect dials the broker.
func Connect(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: empty broker")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(timeout)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	c := newClient(logger, timeout)
	opts.SetOnConnectHandler(c.onConnect)

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	return c, nil
}

// Subscribe registers handler for topic. Handler errors are logged.
// The subscription survives reconnects.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()
	return c.subscribe(c.client, topic, qos, handler)
}

func (c *Client) subscribe(client paho.Client, topic string, qos byte, handler MessageHandler) error {
	token := client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("mqtt message handling failed", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("mqtt: subscribe %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	return nil
}

// onConnect runs on its own goroutine after each successful connect.
func (c *Client) onConnect(client paho.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		if err := c.subscribe(client, topic, sub.qos, sub.handler); err != nil {
			c.logger.Error("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(err))
			continue
		}
		c.logger.Info("mqtt resubscribed", zap.String("topic", topic))
	}
}

// Publish sends payload to topic.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("mqtt: publish %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects, waiting up to 250ms for in-flight work.
func (c *Client) Close() {
	if c == nil || c.client == nil {
		return
	}
	c.client.Disconnect(250)
}
