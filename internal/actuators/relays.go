// Package actuators drives the pump and buzzer lines through gobot relays.
package actuators

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/platforms/raspi"
)

type relay interface {
	On() error
	Off() error
}

// Relays implements controller.Outputs on top of gobot relay drivers.
// Inverted boards (active-low) swap On and Off.
type Relays struct {
	mu       sync.Mutex
	relays   map[string]relay
	inverted bool
	state    map[string]bool
}

// NewRaspiRelays starts one relay per header pin on a connected adaptor.
func NewRaspiRelays(r *raspi.Adaptor, lines []string, inverted bool) (*Relays, error) {
	relays := make(map[string]relay, len(lines))
	for _, line := range lines {
		if _, dup := relays[line]; dup || line == "" {
			continue
		}
		d := gpio.NewRelayDriver(r, line)
		if err := d.Start(); err != nil {
			return nil, fmt.Errorf("relay %s: %w", line, err)
		}
		relays[line] = d
	}
	return newRelays(relays, inverted), nil
}

// Adaptor returns a connected raspi adaptor, shared by the relays and the
// I2C sensors.
func Adaptor() (*raspi.Adaptor, error) {
	r := raspi.NewAdaptor()
	if err := r.Connect(); err != nil {
		return nil, fmt.Errorf("raspi connect: %w", err)
	}
	return r, nil
}

func newRelays(relays map[string]relay, inverted bool) *Relays {
	return &Relays{relays: relays, inverted: inverted, state: map[string]bool{}}
}

func (r *Relays) SetOutput(line string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.relays[line]
	if !ok {
		return fmt.Errorf("line %s: not configured", line)
	}
	on := active != r.inverted
	var err error
	if on {
		err = d.On()
	} else {
		err = d.Off()
	}
	if err != nil {
		return fmt.Errorf("line %s: %w", line, err)
	}
	r.state[line] = active
	return nil
}

// Active reports the last commanded state of line.
func (r *Relays) Active(line string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state[line]
}

// Close drives every line inactive.
func (r *Relays) Close() error {
	r.mu.Lock()
	lines := make([]string, 0, len(r.relays))
	for l := range r.relays {
		lines = append(lines, l)
	}
	r.mu.Unlock()

	var errs []error
	for _, l := range lines {
		if err := r.SetOutput(l, false); err != nil {
			log.Printf("actuators: WARN: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
