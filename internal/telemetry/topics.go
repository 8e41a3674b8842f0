package telemetry

import (
	"sort"
	"strings"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/services/controller"
)

const (
	suffixCommand = "/kontrol"
	suffixStatus  = "/status"
)

// Reading binds one snapshot quantity to its topic and fixed-point precision.
type Reading struct {
	Topic     string
	Precision int
	Value     func(s messages.SensorSnapshot) float64
}

// Topics is the full topic table of one controller instance.
type Topics struct {
	Base string

	LWT       string
	Heartbeat string
	Alert     string

	ModeCommand string
	ModeStatus  string

	Readings []Reading

	pumps []string
	route map[string]controller.Command
}

// NewTopics builds the table under base (e.g. "hidroponik/produksi") for the
// given roster.
func NewTopics(base string, roster []entities.Pump) *Topics {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	t := &Topics{
		Base:        base,
		LWT:         base + "/status/LWT",
		Heartbeat:   base + "/status/HEARTBEAT",
		Alert:       base + "/peringatan",
		ModeCommand: base + "/sistem/mode" + suffixCommand,
		ModeStatus:  base + "/sistem/mode" + suffixStatus,
		route:       map[string]controller.Command{},
	}
	t.Readings = []Reading{
		{base + "/air/level_cm", 1, func(s messages.SensorSnapshot) float64 { return s.WaterLevelCm }},
		{base + "/air/jarak_sensor_cm", 0, func(s messages.SensorSnapshot) float64 { return s.WaterDistanceCm }},
		{base + "/air/suhu_c", 2, func(s messages.SensorSnapshot) float64 { return s.WaterTempC }},
		{base + "/udara/suhu_c", 2, func(s messages.SensorSnapshot) float64 { return s.AirTempC }},
		{base + "/udara/kelembaban_persen", 2, func(s messages.SensorSnapshot) float64 { return s.AirHumidity }},
		{base + "/air/tds_ppm", 1, func(s messages.SensorSnapshot) float64 { return s.TDSPpm }},
		{base + "/air/ph", 2, func(s messages.SensorSnapshot) float64 { return s.PH }},
		{base + "/listrik/tegangan_v", 1, func(s messages.SensorSnapshot) float64 { return s.Voltage }},
		{base + "/listrik/arus_a", 3, func(s messages.SensorSnapshot) float64 { return s.Current }},
		{base + "/listrik/daya_w", 1, func(s messages.SensorSnapshot) float64 { return s.Power }},
		{base + "/listrik/energi_kwh", 3, func(s messages.SensorSnapshot) float64 { return s.EnergyKWh }},
		{base + "/listrik/frekuensi_hz", 1, func(s messages.SensorSnapshot) float64 { return s.Frequency }},
		{base + "/listrik/faktor_daya", 2, func(s messages.SensorSnapshot) float64 { return s.PowerFactor }},
	}

	t.route[t.ModeCommand] = controller.Command{Kind: controller.ModeCommand}
	for _, p := range roster {
		t.pumps = append(t.pumps, p.Slug)
		t.route[t.PumpCommand(p.Slug)] = controller.Command{Kind: controller.PumpCommand, Target: p.Slug}
	}
	for _, tg := range entities.Toggles {
		t.route[t.ToggleCommand(tg)] = controller.Command{Kind: controller.ToggleCommand, Target: string(tg)}
	}
	return t
}

func (t *Topics) PumpCommand(slug string) string { return t.Base + "/pompa/" + slug + suffixCommand }
func (t *Topics) PumpStatus(slug string) string  { return t.Base + "/pompa/" + slug + suffixStatus }

func (t *Topics) ToggleCommand(tg entities.Toggle) string {
	return t.Base + "/otomasi/" + string(tg) + suffixCommand
}

func (t *Topics) ToggleStatus(tg entities.Toggle) string {
	return t.Base + "/otomasi/" + string(tg) + suffixStatus
}

// Resolve maps an inbound topic to a command template (payload empty).
func (t *Topics) Resolve(topic string) (controller.Command, bool) {
	cmd, ok := t.route[topic]
	return cmd, ok
}

// Subscriptions lists every command topic, sorted.
func (t *Topics) Subscriptions() []string {
	out := make([]string, 0, len(t.route))
	for k := range t.route {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
