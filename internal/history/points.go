package history

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

const (
	MeasurementSnapshot = "hydroponic_snapshot"
	MeasurementPump     = "pump_event"
	MeasurementSystem   = "system_event"
)

// SnapshotToPoint keeps only valid readings. A snapshot with nothing valid
// yields nil.
func SnapshotToPoint(instance string, s messages.SensorSnapshot) *write.Point {
	fields := map[string]interface{}{}
	add := func(k string, v float64) {
		if messages.Valid(v) {
			fields[k] = v
		}
	}
	add("water_level_cm", s.WaterLevelCm)
	add("water_distance_cm", s.WaterDistanceCm)
	add("water_temp_c", s.WaterTempC)
	add("air_temp_c", s.AirTempC)
	add("air_humidity_pct", s.AirHumidity)
	add("tds_ppm", s.TDSPpm)
	add("ph", s.PH)
	add("voltage_v", s.Voltage)
	add("current_a", s.Current)
	add("power_w", s.Power)
	add("energy_kwh", s.EnergyKWh)
	add("frequency_hz", s.Frequency)
	add("power_factor", s.PowerFactor)
	if len(fields) == 0 {
		return nil
	}
	return influxdb2.NewPoint(MeasurementSnapshot,
		map[string]string{"instance": instance},
		fields, stamp(s.Timestamp))
}

func PumpEventToPoint(instance string, e messages.PumpEvent) *write.Point {
	tags := map[string]string{
		"instance": instance,
		"pump":     e.Pump,
		"role":     string(e.Role),
		"state":    string(e.NewState),
		"reason":   e.Reason,
	}
	fields := map[string]interface{}{
		"on":     e.NewState == entities.PumpOn,
		"run_id": e.RunID,
	}
	if e.NewState == entities.PumpOn {
		fields["planned_s"] = e.Planned.Seconds()
	} else {
		fields["ran_s"] = e.Ran.Seconds()
	}
	return influxdb2.NewPoint(MeasurementPump, tags, fields, stamp(e.Timestamp))
}

func SystemEventToPoint(instance, eventType, value string, at time.Time) *write.Point {
	return influxdb2.NewPoint(MeasurementSystem,
		map[string]string{"instance": instance, "event_type": eventType},
		map[string]interface{}{"value": value},
		stamp(at))
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
