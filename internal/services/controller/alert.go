package controller

import (
	"fmt"
	"log"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
	"github.com/LeonardoBeccarini/hydroponic_project/pkg/latch"
)

const (
	AlertSensorInvalid = "ALERT: Level air tidak terdeteksi atau di luar jangkauan!"
	AlertCriticalFmt   = "ALERT: Level air kritis! %.1f cm"
	AlertNormal        = "Level air normal kembali."
)

func (c *Controller) updateAlertLocked(snap messages.SensorSnapshot) {
	level := snap.WaterLevelCm
	should := c.mode == entities.ModeNutrition &&
		(!messages.Valid(level) || level <= c.cfg.CriticalLevelCm)

	switch c.alert.Update(should) {
	case latch.Rising:
		msg := AlertSensorInvalid
		if messages.Valid(level) {
			msg = fmt.Sprintf(AlertCriticalFmt, level)
		}
		log.Printf("controller: >>> %s <<<", msg)
		c.notify.Alert(messages.AlertEvent{Active: true, Message: msg, LevelCm: level, Timestamp: snap.Timestamp})
	case latch.Falling:
		if c.mode != entities.ModeNutrition {
			log.Printf("controller: alert cleared silently (%s mode)", c.mode)
			return
		}
		log.Printf("controller: %s", AlertNormal)
		c.notify.Alert(messages.AlertEvent{Active: false, Message: AlertNormal, LevelCm: level, Timestamp: snap.Timestamp})
	}
}

// buzzerLocked mirrors the latch onto the buzzer line; CLEANER keeps it off.
func (c *Controller) buzzerLocked() {
	want := c.alert.Active() && c.mode == entities.ModeNutrition
	if want == c.buzzerOn || c.cfg.BuzzerLine == "" {
		c.buzzerOn = want
		return
	}
	if err := c.out.SetOutput(c.cfg.BuzzerLine, want); err != nil {
		log.Printf("controller: WARN: buzzer line %s: %v", c.cfg.BuzzerLine, err)
		return
	}
	c.buzzerOn = want
}
