package telemetry

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/services/controller"
	"github.com/LeonardoBeccarini/hydroponic_project/pkg/dedup"
)

// Submitter accepts commands for later application.
type Submitter interface {
	Submit(cmd controller.Command) bool
}

// Router turns inbound MQTT messages into controller commands.
type Router struct {
	topics  *Topics
	sink    Submitter
	deduper *dedup.Deduper

	// OnReject, when set, sees every message the router drops.
	OnReject func(topic string, err error)
}

// Reasons a message is dropped before it reaches the controller.
var (
	ErrUnknownTopic = errors.New("unknown command topic")
	ErrRetained     = errors.New("retained pump command ignored")
	ErrQueueFull    = errors.New("command queue full")
)

func NewRouter(topics *Topics, sink Submitter, d *dedup.Deduper) *Router {
	return &Router{topics: topics, sink: sink, deduper: d}
}

// Handle has the broker.Handler signature.
func (r *Router) Handle(topic string, msg mqtt.Message) error {
	tmpl, ok := r.topics.Resolve(topic)
	if !ok {
		return r.reject(topic, ErrUnknownTopic)
	}

	// QoS1 redeliveries carry the DUP flag and the original packet id.
	id := dedup.Key(topic, strconv.Itoa(int(msg.MessageID())), string(msg.Payload()))
	if msg.Qos() > 0 && r.deduper != nil {
		if seen := r.deduper.Seen(id); seen && msg.Duplicate() {
			log.Printf("telemetry: duplicate delivery on %s ignored", topic)
			return nil
		}
	}

	// a retained dose would be replayed on every reconnect
	if msg.Retained() && tmpl.Kind == controller.PumpCommand {
		return r.reject(topic, ErrRetained)
	}

	cmd := tmpl
	cmd.Payload = strings.TrimSpace(string(msg.Payload()))
	log.Printf("telemetry: command %s", cmd)
	if !r.sink.Submit(cmd) {
		return r.reject(topic, ErrQueueFull)
	}
	return nil
}

func (r *Router) reject(topic string, err error) error {
	if r.OnReject != nil {
		r.OnReject(topic, err)
	}
	return fmt.Errorf("%s: %w", topic, err)
}
