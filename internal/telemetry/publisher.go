package telemetry

import (
	"context"
	"errors"
	"log"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/services/controller"
	"github.com/LeonardoBeccarini/hydroponic_project/pkg/broker"
)

// StatePublisher pushes controller state and sensor readings to the broker.
// States are retained; readings and alerts are not.
//
// The controller calls the Notifier methods under its lock, so they only
// queue; Run does the publishing. Readings, heartbeat and Online publish
// directly from the caller's goroutine.
type StatePublisher struct {
	pub    broker.IPublisher
	topics *Topics
	queue  chan outbound
}

type outbound struct {
	topic    string
	payload  string
	retained bool
}

var _ controller.Notifier = (*StatePublisher)(nil)

func NewStatePublisher(pub broker.IPublisher, topics *Topics, queueSize int) *StatePublisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &StatePublisher{pub: pub, topics: topics, queue: make(chan outbound, queueSize)}
}

func (s *StatePublisher) enqueue(topic, payload string, retained bool) {
	select {
	case s.queue <- outbound{topic, payload, retained}:
	default:
		log.Printf("telemetry: WARN: queue full, dropping %s=%s", topic, payload)
	}
}

// Run publishes queued state changes in order until ctx ends, then drains
// what is left.
func (s *StatePublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case m := <-s.queue:
					_ = s.publish(m.topic, m.payload, m.retained)
				default:
					return
				}
			}
		case m := <-s.queue:
			_ = s.publish(m.topic, m.payload, m.retained)
		}
	}
}

func (s *StatePublisher) publish(topic, payload string, retained bool) error {
	if err := s.pub.Publish(topic, payload, retained); err != nil {
		log.Printf("telemetry: WARN: publish %s: %v", topic, err)
		return err
	}
	return nil
}

// ===================== controller.Notifier =====================

func (s *StatePublisher) PumpChanged(evt messages.PumpEvent) {
	s.enqueue(s.topics.PumpStatus(evt.Pump), string(evt.NewState), true)
}

func (s *StatePublisher) ModeChanged(mode entities.SystemMode) {
	s.enqueue(s.topics.ModeStatus, string(mode), true)
}

func (s *StatePublisher) ToggleChanged(t entities.Toggle, on bool) {
	payload := string(entities.PumpOff)
	if on {
		payload = string(entities.PumpOn)
	}
	s.enqueue(s.topics.ToggleStatus(t), payload, true)
}

func (s *StatePublisher) Alert(evt messages.AlertEvent) {
	s.enqueue(s.topics.Alert, evt.Message, false)
}

// ===================== periodic =====================

// PublishSnapshot sends every reading; invalid ones as "unavailable".
func (s *StatePublisher) PublishSnapshot(snap messages.SensorSnapshot) error {
	var errs []error
	for _, r := range s.topics.Readings {
		if err := s.publish(r.Topic, FormatReading(r.Value(snap), r.Precision), false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *StatePublisher) Heartbeat() error {
	return s.publish(s.topics.Heartbeat, Online, true)
}

// Online marks the instance alive on the LWT topic.
func (s *StatePublisher) Online() error {
	return s.publish(s.topics.LWT, Online, true)
}
