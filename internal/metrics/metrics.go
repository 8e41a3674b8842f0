// Package metrics exposes the controller state as Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/services/controller"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/telemetry"
)

const namespace = "hydroponic"

// Metrics owns its registry so several instances can live in one process
// (tests).
type Metrics struct {
	reg *prometheus.Registry

	sensor      *prometheus.GaugeVec
	pumpRunning *prometheus.GaugeVec
	mode        *prometheus.GaugeVec
	toggle      *prometheus.GaugeVec
	alertActive prometheus.Gauge

	commands       *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	alerts         prometheus.Counter
	interlockTrips prometheus.Counter
	autoDoses      prometheus.Counter
	pumpSeconds    *prometheus.CounterVec
	readCycles     prometheus.Counter
}

var _ controller.Notifier = (*Metrics)(nil)

func New(instance string) *Metrics {
	labels := prometheus.Labels{"instance_name": instance}
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		sensor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sensor_value", ConstLabels: labels,
			Help: "Latest valid reading per quantity.",
		}, []string{"quantity"}),
		pumpRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pump_running", ConstLabels: labels,
			Help: "1 while the pump output is on.",
		}, []string{"pump"}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "system_mode", ConstLabels: labels,
			Help: "1 for the active system mode.",
		}, []string{"mode"}),
		toggle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "automation_enabled", ConstLabels: labels,
			Help: "Automation toggles.",
		}, []string{"toggle"}),
		alertActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "level_alert_active", ConstLabels: labels,
			Help: "1 while the water level alert is latched.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total", ConstLabels: labels,
			Help: "Commands applied by the controller.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_rejected_total", ConstLabels: labels,
			Help: "Commands dropped by the router or refused by the controller.",
		}, []string{"kind"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "level_alerts_total", ConstLabels: labels,
			Help: "Rising edges of the water level alert.",
		}),
		interlockTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "interlock_trips_total", ConstLabels: labels,
			Help: "Refill stops forced by the safety ceiling.",
		}),
		autoDoses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "auto_dose_starts_total", ConstLabels: labels,
			Help: "Automatic nutrient dosing sequences started.",
		}),
		pumpSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pump_run_seconds_total", ConstLabels: labels,
			Help: "Accumulated pump run time.",
		}, []string{"pump"}),
		readCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "read_cycles_total", ConstLabels: labels,
			Help: "Sensor read cycles processed.",
		}),
	}
	m.reg.MustRegister(
		m.sensor, m.pumpRunning, m.mode, m.toggle, m.alertActive,
		m.commands, m.rejected, m.alerts, m.interlockTrips, m.autoDoses, m.pumpSeconds, m.readCycles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveSnapshot sets one gauge per valid reading. Invalid readings are
// removed so a dead sensor does not keep reporting its last value.
func (m *Metrics) ObserveSnapshot(s messages.SensorSnapshot) {
	m.readCycles.Inc()
	for _, q := range []struct {
		name string
		v    float64
	}{
		{"water_level_cm", s.WaterLevelCm},
		{"water_distance_cm", s.WaterDistanceCm},
		{"water_temp_c", s.WaterTempC},
		{"air_temp_c", s.AirTempC},
		{"air_humidity_pct", s.AirHumidity},
		{"tds_ppm", s.TDSPpm},
		{"ph", s.PH},
		{"voltage_v", s.Voltage},
		{"current_a", s.Current},
		{"power_w", s.Power},
		{"energy_kwh", s.EnergyKWh},
		{"frequency_hz", s.Frequency},
		{"power_factor", s.PowerFactor},
	} {
		if messages.Valid(q.v) {
			m.sensor.WithLabelValues(q.name).Set(q.v)
		} else {
			m.sensor.DeleteLabelValues(q.name)
		}
	}
}

// ObserveCommand counts a command after the controller applied it; it plugs
// into controller.WithCommandHook.
func (m *Metrics) ObserveCommand(cmd controller.Command, err error) {
	kind := cmd.Kind.String()
	if err != nil {
		m.rejected.WithLabelValues(kind).Inc()
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

// ObserveRejected counts a message the router refused before it reached the
// controller. It plugs into telemetry.Router.OnReject.
func (m *Metrics) ObserveRejected(_ string, err error) {
	kind := "router"
	switch {
	case errors.Is(err, telemetry.ErrUnknownTopic):
		kind = "unknown_topic"
	case errors.Is(err, telemetry.ErrRetained):
		kind = "retained"
	case errors.Is(err, telemetry.ErrQueueFull):
		kind = "queue_full"
	}
	m.rejected.WithLabelValues(kind).Inc()
}

// ===================== controller.Notifier =====================

func (m *Metrics) PumpChanged(evt messages.PumpEvent) {
	if evt.NewState == entities.PumpOn {
		m.pumpRunning.WithLabelValues(evt.Pump).Set(1)
		if evt.Reason == messages.ReasonAutoDose {
			m.autoDoses.Inc()
		}
		return
	}
	m.pumpRunning.WithLabelValues(evt.Pump).Set(0)
	if evt.Ran > 0 {
		m.pumpSeconds.WithLabelValues(evt.Pump).Add(evt.Ran.Seconds())
	}
	if evt.Reason == messages.ReasonInterlock {
		m.interlockTrips.Inc()
	}
}

func (m *Metrics) ModeChanged(mode entities.SystemMode) {
	for _, md := range []entities.SystemMode{entities.ModeNutrition, entities.ModeCleaner} {
		v := 0.0
		if md == mode {
			v = 1
		}
		m.mode.WithLabelValues(string(md)).Set(v)
	}
}

func (m *Metrics) ToggleChanged(t entities.Toggle, on bool) {
	v := 0.0
	if on {
		v = 1
	}
	m.toggle.WithLabelValues(string(t)).Set(v)
}

func (m *Metrics) Alert(evt messages.AlertEvent) {
	if evt.Active {
		m.alerts.Inc()
		m.alertActive.Set(1)
		return
	}
	m.alertActive.Set(0)
}
