package messages

import (
	"encoding/json"
	"math"
	"time"
)

// Invalid is the sentinel for a reading that is not a valid measurement.
var Invalid = math.NaN()

// Valid reports whether v holds a measurement.
func Valid(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// SensorSnapshot holds one read cycle. Any field may be Invalid.
type SensorSnapshot struct {
	WaterLevelCm    float64   `json:"water_level_cm"`
	WaterDistanceCm float64   `json:"water_distance_cm"`
	WaterTempC      float64   `json:"water_temp_c"`
	AirTempC        float64   `json:"air_temp_c"`
	AirHumidity     float64   `json:"air_humidity_pct"`
	TDSPpm          float64   `json:"tds_ppm"`
	PH              float64   `json:"ph"`
	Voltage         float64   `json:"voltage_v"`
	Current         float64   `json:"current_a"`
	Power           float64   `json:"power_w"`
	EnergyKWh       float64   `json:"energy_kwh"`
	Frequency       float64   `json:"frequency_hz"`
	PowerFactor     float64   `json:"power_factor"`
	Timestamp       time.Time `json:"timestamp"`
}

// EmptySnapshot returns a snapshot where every reading is Invalid.
func EmptySnapshot(at time.Time) SensorSnapshot {
	return SensorSnapshot{
		WaterLevelCm:    Invalid,
		WaterDistanceCm: Invalid,
		WaterTempC:      Invalid,
		AirTempC:        Invalid,
		AirHumidity:     Invalid,
		TDSPpm:          Invalid,
		PH:              Invalid,
		Voltage:         Invalid,
		Current:         Invalid,
		Power:           Invalid,
		EnergyKWh:       Invalid,
		Frequency:       Invalid,
		PowerFactor:     Invalid,
		Timestamp:       at,
	}
}

// MarshalJSON writes invalid readings as null.
func (s SensorSnapshot) MarshalJSON() ([]byte, error) {
	opt := func(v float64) *float64 {
		if !Valid(v) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		WaterLevelCm    *float64  `json:"water_level_cm"`
		WaterDistanceCm *float64  `json:"water_distance_cm"`
		WaterTempC      *float64  `json:"water_temp_c"`
		AirTempC        *float64  `json:"air_temp_c"`
		AirHumidity     *float64  `json:"air_humidity_pct"`
		TDSPpm          *float64  `json:"tds_ppm"`
		PH              *float64  `json:"ph"`
		Voltage         *float64  `json:"voltage_v"`
		Current         *float64  `json:"current_a"`
		Power           *float64  `json:"power_w"`
		EnergyKWh       *float64  `json:"energy_kwh"`
		Frequency       *float64  `json:"frequency_hz"`
		PowerFactor     *float64  `json:"power_factor"`
		Timestamp       time.Time `json:"timestamp"`
	}{
		opt(s.WaterLevelCm), opt(s.WaterDistanceCm), opt(s.WaterTempC), opt(s.AirTempC), opt(s.AirHumidity),
		opt(s.TDSPpm), opt(s.PH), opt(s.Voltage), opt(s.Current), opt(s.Power), opt(s.EnergyKWh),
		opt(s.Frequency), opt(s.PowerFactor), s.Timestamp,
	})
}
