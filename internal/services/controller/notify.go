package controller

import (
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

// Notifier receives every state change of the controller. Implementations
// run under its lock: they must not call back into the Controller and must
// not block on I/O.
type Notifier interface {
	PumpChanged(evt messages.PumpEvent)
	ModeChanged(mode entities.SystemMode)
	ToggleChanged(t entities.Toggle, on bool)
	Alert(evt messages.AlertEvent)
}

// Notifiers fans a change out to several sinks in order.
type Notifiers []Notifier

var _ Notifier = Notifiers(nil)

func (ns Notifiers) PumpChanged(evt messages.PumpEvent) {
	for _, n := range ns {
		n.PumpChanged(evt)
	}
}

func (ns Notifiers) ModeChanged(mode entities.SystemMode) {
	for _, n := range ns {
		n.ModeChanged(mode)
	}
}

func (ns Notifiers) ToggleChanged(t entities.Toggle, on bool) {
	for _, n := range ns {
		n.ToggleChanged(t, on)
	}
}

func (ns Notifiers) Alert(evt messages.AlertEvent) {
	for _, n := range ns {
		n.Alert(evt)
	}
}
