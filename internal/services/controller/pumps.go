package controller

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

type pumpRuntime struct {
	desc entities.Pump

	running   bool
	deadline  time.Time // zero = open-ended
	startedAt time.Time
	runID     string
	reason    string
}

func (p *pumpRuntime) state() entities.PumpState {
	if p.running {
		return entities.PumpOn
	}
	return entities.PumpOff
}

func (c *Controller) runningLocked() *pumpRuntime {
	for _, p := range c.pumps {
		if p.running {
			return p
		}
	}
	return nil
}

// maxRun bounds every timed run.
const maxRun = 24 * time.Hour

// startLocked enforces the single running pump invariant. d == 0 starts an
// open-ended run, which only the refill pump may do.
func (c *Controller) startLocked(p *pumpRuntime, d time.Duration, reason string) error {
	if d <= 0 && p.desc.Role != entities.RoleRefill {
		log.Printf("controller: WARN: refusing open-ended run of %s", p.desc.Name)
		return fmt.Errorf("start %s: %w: run time %s", p.desc.Slug, ErrBadPayload, d)
	}
	if other := c.runningLocked(); other != nil {
		log.Printf("controller: cannot start %s, %s is already running", p.desc.Name, other.desc.Name)
		return fmt.Errorf("start %s: %w (%s)", p.desc.Slug, ErrPumpBusy, other.desc.Slug)
	}
	if err := c.out.SetOutput(p.desc.Line, true); err != nil {
		log.Printf("controller: WARN: start %s: line %s: %v", p.desc.Name, p.desc.Line, err)
		return fmt.Errorf("start %s: %w", p.desc.Slug, err)
	}

	now := c.clock.Now()
	p.running = true
	p.startedAt = now
	p.reason = reason
	p.runID = uuid.NewString()
	p.deadline = time.Time{}
	if d > 0 {
		p.deadline = now.Add(d)
		log.Printf("controller: pump %s ON for %s (%s)", p.desc.Name, d, reason)
	} else {
		log.Printf("controller: pump %s ON until stopped (%s)", p.desc.Name, reason)
	}

	c.notify.PumpChanged(messages.PumpEvent{
		RunID:     p.runID,
		Pump:      p.desc.Slug,
		Role:      p.desc.Role,
		NewState:  entities.PumpOn,
		Reason:    reason,
		Planned:   d,
		Timestamp: now,
	})
	return nil
}

// stopLocked always drives the line off and publishes OFF, even for an idle
// pump. A failing line is logged; the pump is still considered idle.
func (c *Controller) stopLocked(p *pumpRuntime, reason string) {
	if err := c.out.SetOutput(p.desc.Line, false); err != nil {
		log.Printf("controller: WARN: stop %s: line %s: %v", p.desc.Name, p.desc.Line, err)
	}
	now := c.clock.Now()
	evt := messages.PumpEvent{
		RunID:     p.runID,
		Pump:      p.desc.Slug,
		Role:      p.desc.Role,
		NewState:  entities.PumpOff,
		Reason:    reason,
		Timestamp: now,
	}
	if p.running {
		evt.Ran = now.Sub(p.startedAt)
		log.Printf("controller: pump %s OFF after %s (%s)", p.desc.Name, evt.Ran.Round(time.Millisecond), reason)
	} else {
		log.Printf("controller: pump %s OFF (%s, was idle)", p.desc.Name, reason)
	}

	p.running = false
	p.deadline = time.Time{}
	p.startedAt = time.Time{}
	p.runID = ""
	p.reason = ""

	c.notify.PumpChanged(evt)
}

// completeTimedLocked stops every pump whose deadline has passed. When the
// first dose stage finishes, the second stage starts if nothing else runs;
// the sequence goes back to Idle either way.
func (c *Controller) completeTimedLocked(now time.Time) {
	for _, p := range c.pumps {
		if !p.running || p.deadline.IsZero() || now.Before(p.deadline) {
			continue
		}
		c.stopLocked(p, messages.ReasonCompleted)

		if c.seq == WaitingForSecondDose && p == c.first {
			if c.second != nil && c.runningLocked() == nil {
				log.Printf("controller: auto-dose: dosing %s as second stage", c.second.desc.Name)
				_ = c.startLocked(c.second, entities.DoseDuration(c.cfg.DosingML, c.cfg.MsPerML), messages.ReasonAutoDose)
			}
			c.seq = Idle
		}
	}
}

// HandlePumpCommand applies a payload received for one pump. "OFF" is honoured
// by every pump; otherwise the role decides how the payload is read.
func (c *Controller) HandlePumpCommand(slug, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.bySlug[slug]
	if !ok {
		log.Printf("controller: WARN: command for unknown pump %q", slug)
		return fmt.Errorf("%w: %s", ErrUnknownPump, slug)
	}
	cmd := strings.TrimSpace(payload)

	if strings.EqualFold(cmd, "OFF") {
		c.stopLocked(p, messages.ReasonStopped)
		if p == c.first && c.seq == WaitingForSecondDose {
			log.Printf("controller: auto-dose: sequence cancelled by manual stop of %s", p.desc.Name)
			c.seq = Idle
		}
		return nil
	}

	switch p.desc.Role {
	case entities.RoleRefill:
		if !strings.EqualFold(cmd, "ON") {
			log.Printf("controller: WARN: refill pump %s accepts only ON/OFF, got %q", p.desc.Name, cmd)
			return fmt.Errorf("%w: %q for refill pump %s", ErrBadPayload, cmd, slug)
		}
		return c.startLocked(p, 0, messages.ReasonManual)

	case entities.RoleDuration:
		secs, err := parsePositive(cmd)
		if err != nil {
			log.Printf("controller: WARN: pump %s: invalid duration %q", p.desc.Name, cmd)
			return fmt.Errorf("pump %s: %w", slug, err)
		}
		d, err := runFor(secs, time.Second)
		if err != nil {
			log.Printf("controller: WARN: pump %s: %v", p.desc.Name, err)
			return fmt.Errorf("pump %s: %w", slug, err)
		}
		return c.startLocked(p, d, messages.ReasonManual)

	default:
		ml, err := parsePositive(cmd)
		if err != nil {
			log.Printf("controller: WARN: pump %s: invalid volume %q", p.desc.Name, cmd)
			return fmt.Errorf("pump %s: %w", slug, err)
		}
		d, err := runFor(ml*c.cfg.MsPerML, time.Millisecond)
		if err != nil {
			log.Printf("controller: WARN: pump %s: %v", p.desc.Name, err)
			return fmt.Errorf("pump %s: %w", slug, err)
		}
		log.Printf("controller: pumping %.1f ml from %s", ml, p.desc.Name)
		return c.startLocked(p, d, messages.ReasonManual)
	}
}

func parsePositive(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadPayload, s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrBadPayload, s)
	}
	return f, nil
}

// runFor converts qty units into a run time. Anything under a millisecond or
// over maxRun is refused before the conversion can round or overflow.
func runFor(qty float64, unit time.Duration) (time.Duration, error) {
	ns := qty * float64(unit)
	if math.IsNaN(ns) || ns < float64(time.Millisecond) || ns > float64(maxRun) {
		return 0, fmt.Errorf("%w: run time of %g ms out of range", ErrBadPayload, ns/float64(time.Millisecond))
	}
	return time.Duration(ns), nil
}
