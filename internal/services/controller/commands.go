package controller

import (
	"fmt"
	"log"
	"strings"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
)

// CommandKind selects the handler of a Command.
type CommandKind int

const (
	PumpCommand CommandKind = iota
	ModeCommand
	ToggleCommand
)

func (k CommandKind) String() string {
	switch k {
	case PumpCommand:
		return "pump"
	case ModeCommand:
		return "mode"
	case ToggleCommand:
		return "toggle"
	}
	return "unknown"
}

// Command is an external request. Target is the pump slug or the toggle
// name; it is ignored for mode commands.
type Command struct {
	Kind    CommandKind
	Target  string
	Payload string
}

func (c Command) String() string {
	if c.Target == "" {
		return fmt.Sprintf("%s=%q", c.Kind, c.Payload)
	}
	return fmt.Sprintf("%s/%s=%q", c.Kind, c.Target, c.Payload)
}

// Apply dispatches a command synchronously.
func (c *Controller) Apply(cmd Command) error {
	switch cmd.Kind {
	case PumpCommand:
		return c.HandlePumpCommand(cmd.Target, cmd.Payload)
	case ModeCommand:
		return c.HandleModeCommand(cmd.Payload)
	case ToggleCommand:
		return c.HandleToggleCommand(entities.Toggle(cmd.Target), cmd.Payload)
	}
	return fmt.Errorf("%w: command kind %d", ErrBadPayload, int(cmd.Kind))
}

// HandleModeCommand switches between NUTRITION and CLEANER. Repeating the
// current mode is logged and publishes nothing.
func (c *Controller) HandleModeCommand(payload string) error {
	mode, ok := entities.ParseSystemMode(payload)
	if !ok {
		log.Printf("controller: WARN: unknown mode command %q", payload)
		return fmt.Errorf("%w: mode %q", ErrBadPayload, payload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == mode {
		log.Printf("controller: system already in %s mode", mode)
		return nil
	}
	c.mode = mode
	log.Printf("controller: system mode changed to %s", mode)
	c.notify.ModeChanged(mode)
	c.buzzerLocked()
	return nil
}

// HandleToggleCommand sets an automation flag. Only "ON" enables; any other
// payload disables. The value is always republished.
func (c *Controller) HandleToggleCommand(t entities.Toggle, payload string) error {
	if !t.Valid() {
		log.Printf("controller: WARN: command for unknown toggle %q", t)
		return fmt.Errorf("%w: %s", ErrUnknownToggle, t)
	}
	on := strings.EqualFold(strings.TrimSpace(payload), "ON")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.toggles.Set(t, on) {
		log.Printf("controller: automation %s -> %s", t, onOff(on))
	}
	c.notify.ToggleChanged(t, on)
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
