package controller

import (
	"log"
	"time"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

// autoDoseLocked starts nutrient A when TDS is low. The check time is stamped
// as soon as the interval has elapsed, before the remaining guards run.
func (c *Controller) autoDoseLocked(now time.Time, snap messages.SensorSnapshot) bool {
	if c.mode != entities.ModeNutrition {
		return false
	}
	if now.Sub(c.lastDoseCheck) < c.cfg.AutoDoseInterval {
		return false
	}
	c.lastDoseCheck = now

	if c.first == nil {
		return false
	}
	if !c.toggles.Enabled(entities.ToggleDosing) {
		log.Printf("controller: auto-dose: skipped, dosing automation is off")
		return false
	}
	if c.runningLocked() != nil || c.seq != Idle {
		log.Printf("controller: auto-dose: skipped, a pump is running or a sequence is in progress")
		return false
	}
	if !messages.Valid(snap.TDSPpm) {
		log.Printf("controller: auto-dose: skipped, TDS unavailable")
		return false
	}
	if snap.TDSPpm >= c.cfg.TDSLowerPpm {
		log.Printf("controller: auto-dose: TDS ok (%.1f ppm)", snap.TDSPpm)
		return false
	}

	log.Printf("controller: auto-dose: TDS low (%.1f ppm), starting nutrient sequence", snap.TDSPpm)
	c.seq = WaitingForSecondDose
	if err := c.startLocked(c.first, entities.DoseDuration(c.cfg.DosingML, c.cfg.MsPerML), messages.ReasonAutoDose); err != nil {
		c.seq = Idle
		return false
	}
	return true
}

// interlockLocked cuts a running refill pump once the last valid level
// reaches the safety ceiling. Mode and toggles are not consulted.
func (c *Controller) interlockLocked() {
	p := c.refill
	if p == nil || !p.running || !c.haveLatest {
		return
	}
	level := c.latest.WaterLevelCm
	if !messages.Valid(level) || level < SafetyCeilingCm {
		return
	}
	log.Printf("controller: INTERLOCK: level %.1f cm >= %.1f cm, forcing %s off", level, SafetyCeilingCm, p.desc.Name)
	c.stopLocked(p, messages.ReasonInterlock)
}

// refillStartLocked starts an open-ended refill when the level drops below
// the configured target.
func (c *Controller) refillStartLocked(snap messages.SensorSnapshot) {
	p := c.refill
	if p == nil || p.running || !c.toggles.Enabled(entities.ToggleRefill) {
		return
	}
	level := snap.WaterLevelCm
	if !messages.Valid(level) || level >= c.cfg.RefillTargetCm {
		return
	}
	log.Printf("controller: auto-refill: level %.1f cm below target %.1f cm", level, c.cfg.RefillTargetCm)
	_ = c.startLocked(p, 0, messages.ReasonRefill)
}

// refillReachedLocked ends an automatic refill at the target level. Manual
// refills are left to the operator and the interlock.
func (c *Controller) refillReachedLocked() {
	p := c.refill
	if p == nil || !p.running || p.reason != messages.ReasonRefill || !c.haveLatest {
		return
	}
	level := c.latest.WaterLevelCm
	if !messages.Valid(level) || level < c.cfg.RefillTargetCm {
		return
	}
	log.Printf("controller: auto-refill: target %.1f cm reached", c.cfg.RefillTargetCm)
	c.stopLocked(p, messages.ReasonCompleted)
}

// irrigationLocked runs the watering pump on a fixed schedule.
func (c *Controller) irrigationLocked(now time.Time) {
	p := c.water
	if p == nil || c.cfg.IrrigationInterval <= 0 || c.cfg.IrrigationDuration <= 0 {
		return
	}
	if now.Sub(c.lastIrrigation) < c.cfg.IrrigationInterval {
		return
	}
	c.lastIrrigation = now
	if !c.toggles.Enabled(entities.ToggleIrrigation) {
		return
	}
	if err := c.startLocked(p, c.cfg.IrrigationDuration, messages.ReasonSchedule); err != nil {
		log.Printf("controller: scheduled irrigation skipped: %v", err)
	}
}
