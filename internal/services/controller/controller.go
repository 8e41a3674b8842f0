package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
	"github.com/LeonardoBeccarini/hydroponic_project/pkg/latch"
)

// ===================== Config / defaults =====================

// SafetyCeilingCm is the last-resort level at which a running refill pump is
// cut off on every tick, whatever the mode or toggles say.
const SafetyCeilingCm = 90.0

const (
	defaultMsPerML          = (13.0 * 60.0 * 1000.0) / 200.0
	defaultDosingML         = 20.0
	defaultTDSLowerPpm      = 650.0
	defaultCriticalLevelCm  = 20.0
	defaultAutoDoseInterval = 30 * time.Minute
	defaultCommandQueue     = 64
)

var (
	ErrUnknownPump   = errors.New("unknown pump")
	ErrUnknownToggle = errors.New("unknown toggle")
	ErrBadPayload    = errors.New("bad payload")
	ErrPumpBusy      = errors.New("another pump is running")
	ErrRoster        = errors.New("invalid pump roster")
)

// Settings are the tunables of the decision core.
type Settings struct {
	MsPerML          float64
	DosingML         float64
	TDSLowerPpm      float64
	CriticalLevelCm  float64
	AutoDoseInterval time.Duration

	// FirstDose/SecondDose are pump slugs of the A->B sequence. Empty means the
	// first two dosing pumps of the roster.
	FirstDose  string
	SecondDose string

	// RefillTargetCm is where automatic refill stops. Must stay below SafetyCeilingCm.
	RefillTargetCm float64

	IrrigationInterval time.Duration
	IrrigationDuration time.Duration

	BuzzerLine string
	Toggles    map[entities.Toggle]bool
}

// DefaultSettings mirrors the production rig.
func DefaultSettings() Settings {
	return Settings{
		MsPerML:          defaultMsPerML,
		DosingML:         defaultDosingML,
		TDSLowerPpm:      defaultTDSLowerPpm,
		CriticalLevelCm:  defaultCriticalLevelCm,
		AutoDoseInterval: defaultAutoDoseInterval,
		RefillTargetCm:   80,
		Toggles: map[entities.Toggle]bool{
			entities.ToggleDosing: true,
		},
	}
}

// ===================== Collaborators =====================

// Clock is the time source of the controller.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Outputs drives the physical actuator lines.
type Outputs interface {
	SetOutput(line string, active bool) error
}

// ===================== Controller =====================

// AutoDoseState sequences the A->B nutrient dose.
type AutoDoseState int

const (
	Idle AutoDoseState = iota
	WaitingForSecondDose
)

func (s AutoDoseState) String() string {
	if s == WaitingForSecondDose {
		return "waiting_for_second_dose"
	}
	return "idle"
}

// Controller owns the pump roster, mode, toggles, alert latch and dosing
// sequence. Every entry point takes the same lock.
type Controller struct {
	mu     sync.Mutex
	clock  Clock
	out    Outputs
	notify Notifier
	cfg    Settings

	pumps  []*pumpRuntime
	bySlug map[string]*pumpRuntime
	first  *pumpRuntime
	second *pumpRuntime
	refill *pumpRuntime
	water  *pumpRuntime

	mode    entities.SystemMode
	toggles *ToggleStore
	seq     AutoDoseState

	alert    *latch.Latch
	buzzerOn bool

	lastDoseCheck  time.Time
	lastIrrigation time.Time

	latest     messages.SensorSnapshot
	haveLatest bool

	cmds      chan Command
	onApplied func(Command, error)
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithQueueSize sets the capacity of the command queue used by Run.
func WithQueueSize(n int) Option {
	return func(ctrl *Controller) {
		if n > 0 {
			ctrl.cmds = make(chan Command, n)
		}
	}
}

// WithCommandHook observes every queued command after it was applied; err is
// nil when the command was accepted.
func WithCommandHook(fn func(cmd Command, err error)) Option {
	return func(ctrl *Controller) { ctrl.onApplied = fn }
}

// ===================== ctor =====================

func New(roster []entities.Pump, s Settings, out Outputs, n Notifier, opts ...Option) (*Controller, error) {
	if out == nil {
		return nil, errors.New("outputs is nil")
	}
	if n == nil {
		n = Notifiers(nil)
	}
	if s.RefillTargetCm >= SafetyCeilingCm {
		return nil, fmt.Errorf("refill target %.1f cm must be below safety ceiling %.1f cm", s.RefillTargetCm, SafetyCeilingCm)
	}

	c := &Controller{
		clock:   systemClock{},
		out:     out,
		notify:  n,
		cfg:     s,
		bySlug:  make(map[string]*pumpRuntime, len(roster)),
		mode:    entities.ModeNutrition,
		toggles: NewToggleStore(s.Toggles),
		alert:   latch.New(),
		cmds:    make(chan Command, defaultCommandQueue),
	}
	for _, o := range opts {
		o(c)
	}

	if err := c.buildRoster(roster); err != nil {
		return nil, err
	}

	now := c.clock.Now()
	c.lastDoseCheck = now
	c.lastIrrigation = now
	c.latest = messages.EmptySnapshot(now)

	// all lines off at startup
	for _, p := range c.pumps {
		if err := c.out.SetOutput(p.desc.Line, false); err != nil {
			log.Printf("controller: WARN: cannot reset line %s (%s): %v", p.desc.Line, p.desc.Name, err)
		}
	}
	if c.cfg.BuzzerLine != "" {
		if err := c.out.SetOutput(c.cfg.BuzzerLine, false); err != nil {
			log.Printf("controller: WARN: cannot reset buzzer line %s: %v", c.cfg.BuzzerLine, err)
		}
	}
	return c, nil
}

func (c *Controller) buildRoster(roster []entities.Pump) error {
	if len(roster) == 0 {
		return fmt.Errorf("%w: empty", ErrRoster)
	}
	var dosing []*pumpRuntime
	for _, d := range roster {
		slug := strings.TrimSpace(d.Slug)
		if slug == "" {
			return fmt.Errorf("%w: pump %q without slug", ErrRoster, d.Name)
		}
		if !d.Role.Valid() {
			return fmt.Errorf("%w: pump %s has role %q", ErrRoster, slug, d.Role)
		}
		if _, dup := c.bySlug[slug]; dup {
			return fmt.Errorf("%w: duplicate slug %s", ErrRoster, slug)
		}
		d.Slug = slug
		if d.Name == "" {
			d.Name = slug
		}
		p := &pumpRuntime{desc: d}
		c.pumps = append(c.pumps, p)
		c.bySlug[slug] = p

		switch d.Role {
		case entities.RoleDosing:
			dosing = append(dosing, p)
		case entities.RoleRefill:
			if c.refill == nil {
				c.refill = p
			}
		case entities.RoleDuration:
			if c.water == nil {
				c.water = p
			}
		}
	}

	pick := func(slug string, idx int) (*pumpRuntime, error) {
		if slug != "" {
			p, ok := c.bySlug[slug]
			if !ok || p.desc.Role != entities.RoleDosing {
				return nil, fmt.Errorf("%w: dose pump %s is not a dosing pump", ErrRoster, slug)
			}
			return p, nil
		}
		if idx < len(dosing) {
			return dosing[idx], nil
		}
		return nil, nil
	}
	var err error
	if c.first, err = pick(c.cfg.FirstDose, 0); err != nil {
		return err
	}
	if c.second, err = pick(c.cfg.SecondDose, 1); err != nil {
		return err
	}
	if c.first != nil && c.first == c.second {
		return fmt.Errorf("%w: both dose stages use %s", ErrRoster, c.first.desc.Slug)
	}
	return nil
}

// ===================== driver =====================

// Run drives Tick at the given interval and applies queued commands after
// each tick, so completions of a tick land before its commands. On exit every
// pump is switched off.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.StopAll()
			return
		case <-ticker.C:
			c.Tick()
			c.drain()
		}
	}
}

// Submit queues a command for the next Run iteration. It never blocks; a
// full queue drops the command.
func (c *Controller) Submit(cmd Command) bool {
	select {
	case c.cmds <- cmd:
		return true
	default:
		log.Printf("controller: WARN: command queue full, dropping %s", cmd)
		return false
	}
}

func (c *Controller) drain() {
	for {
		select {
		case cmd := <-c.cmds:
			err := c.Apply(cmd)
			if err != nil {
				log.Printf("controller: command %s rejected: %v", cmd, err)
			}
			if c.onApplied != nil {
				c.onApplied(cmd, err)
			}
		default:
			return
		}
	}
}

// Tick runs the non-blocking periodic work: timed stops (and the second dose
// stage), the refill interlock, automatic refill stop, scheduled irrigation
// and the buzzer mirror.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.completeTimedLocked(now)
	c.interlockLocked()
	c.refillReachedLocked()
	c.irrigationLocked(now)
	c.buzzerLocked()
}

// ProcessSnapshot hands a fresh read cycle to the controller: it becomes the
// level reference for the interlock, updates the alert and runs the
// automatic dosing and refill checks.
func (c *Controller) ProcessSnapshot(snap messages.SensorSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = snap
	c.haveLatest = true

	c.updateAlertLocked(snap)
	c.autoDoseLocked(c.clock.Now(), snap)
	c.refillStartLocked(snap)
	c.buzzerLocked()
}

// UpdateAlert evaluates the water level alert for a snapshot.
func (c *Controller) UpdateAlert(snap messages.SensorSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateAlertLocked(snap)
	c.buzzerLocked()
}

// AutoDose runs the periodic nutrient check against a snapshot. It reports
// whether a dosing sequence was started.
func (c *Controller) AutoDose(snap messages.SensorSnapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoDoseLocked(c.clock.Now(), snap)
}

// StopAll forces every running pump off.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pumps {
		if p.running {
			c.stopLocked(p, messages.ReasonStopped)
		}
	}
	c.seq = Idle
}
