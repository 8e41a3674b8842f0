package broker

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher sends one payload to one topic.
type IPublisher interface {
	Publish(topic, payload string, retained bool) error
}

// Publisher publishes over a shared connection. While the link is down every
// call is a silent no-op.
type Publisher struct {
	conn    linkState
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

type linkState interface {
	IsConnected() bool
}

var _ IPublisher = (*Publisher)(nil)

func NewPublisher(conn *Conn) *Publisher {
	return &Publisher{conn: conn, client: conn.Client(), timeout: 2 * time.Second}
}

// WithQoS sets the QoS of every publish.
func (p *Publisher) WithQoS(qos byte) *Publisher {
	p.qos = qos
	return p
}

func (p *Publisher) Publish(topic, payload string, retained bool) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return nil
	}
	token := p.client.Publish(topic, p.qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
