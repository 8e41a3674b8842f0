package broker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string

	// Last will, published by the broker when the session drops.
	WillTopic    string
	WillPayload  string
	WillRetained bool

	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	MaxRetries     int
}

func (c *Config) addr() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// Conn wraps the paho client and tracks the link state for health checks.
type Conn struct {
	client    mqtt.Client
	addr      string
	connected atomic.Bool

	mu       sync.Mutex
	onChange func(bool)
}

// OnConnect runs after every successful (re)connect, inside the paho callback
// goroutine.
type OnConnect func(c *Conn)

// NewConn dials the broker with exponential backoff. The paho client keeps
// reconnecting on its own afterwards and onConnect runs on every session.
func NewConn(ctx context.Context, cfg *Config, onConnect OnConnect) (*Conn, error) {
	conn := &Conn{addr: cfg.addr()}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(conn.addr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, cfg.WillPayload, 1, cfg.WillRetained)
	}
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Printf("broker: connected to %s", conn.addr)
		conn.setConnected(true)
		if onConnect != nil {
			onConnect(conn)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("broker: WARN: connection lost: %v", err)
		conn.setConnected(false)
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Printf("broker: reconnecting to %s", conn.addr)
	})

	// exponential backoff between connect attempts
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	err := backoff.Retry(func() error {
		conn.client = mqtt.NewClient(opts)
		if token := conn.client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("broker: failed to connect to %s: %v", conn.addr, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return conn, nil
}

// Notify registers a callback for link state changes.
func (c *Conn) Notify(fn func(connected bool)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
	if fn != nil {
		fn(c.connected.Load())
	}
}

func (c *Conn) setConnected(v bool) {
	c.connected.Store(v)
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

func (c *Conn) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnectionOpen()
}

func (c *Conn) Client() mqtt.Client { return c.client }

// Close disconnects gracefully; the last will is not sent.
func (c *Conn) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		log.Println("broker: MQTT connection closed")
	}
	c.setConnected(false)
}
