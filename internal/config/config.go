// Package config loads the controller configuration from YAML with
// environment overrides for credentials and endpoints.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/calibration"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/services/controller"
	"github.com/LeonardoBeccarini/hydroponic_project/pkg/broker"
)

const DefaultPath = "/etc/hydroponic/config.yaml"

var ErrInvalid = errors.New("invalid configuration")

// Config is the full controller configuration.
type Config struct {
	Instance    InstanceConfig           `yaml:"instance"`
	Broker      BrokerConfig             `yaml:"broker"`
	Intervals   IntervalsConfig          `yaml:"intervals"`
	Thresholds  ThresholdsConfig         `yaml:"thresholds"`
	Calibration CalibrationConfig        `yaml:"calibration"`
	Pumps       []entities.Pump          `yaml:"pumps"`
	Dose        DoseConfig               `yaml:"dose"`
	BuzzerLine  string                   `yaml:"buzzer_line"`
	Toggles     map[entities.Toggle]bool `yaml:"toggles"`
	Hardware    HardwareConfig           `yaml:"hardware"`
	History     HistoryConfig            `yaml:"history"`
	Store       StoreConfig              `yaml:"store"`
	HTTP        HTTPConfig               `yaml:"http"`
	GRPC        GRPCConfig               `yaml:"grpc"`
}

type InstanceConfig struct {
	Name      string `yaml:"name"`
	BaseTopic string `yaml:"base_topic"`
	ClientID  string `yaml:"client_id"`
}

type BrokerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

type IntervalsConfig struct {
	Tick          time.Duration `yaml:"tick"`
	SensorPublish time.Duration `yaml:"sensor_publish"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
	AutoDose      time.Duration `yaml:"auto_dose"`
	// Irrigation is the schedule period of the duration pump; IrrigationRun
	// how long each scheduled run lasts.
	Irrigation    time.Duration `yaml:"irrigation"`
	IrrigationRun time.Duration `yaml:"irrigation_run"`
}

type ThresholdsConfig struct {
	CriticalLevelCm float64 `yaml:"critical_level_cm"`
	TDSLowerPpm     float64 `yaml:"tds_lower_ppm"`
	DosingML        float64 `yaml:"dosing_ml"`
	RefillTargetCm  float64 `yaml:"refill_target_cm"`
}

type CalibrationConfig struct {
	TDSK              float64 `yaml:"tds_k"`
	TDSTempCoeff      float64 `yaml:"tds_temp_coeff"`
	ReservoirHeightCm float64 `yaml:"reservoir_height_cm"`
	MsPerML           float64 `yaml:"ms_per_ml"`
	PHSamples         int     `yaml:"ph_samples"`
}

// DoseConfig names the two stages of the automatic nutrient dose. Empty
// picks the first two dosing pumps.
type DoseConfig struct {
	First  string `yaml:"first"`
	Second string `yaml:"second"`
}

type HardwareConfig struct {
	Driver         string `yaml:"driver"` // raspi | sim
	RelayActiveLow bool   `yaml:"relay_active_low"`

	I2CBus         int  `yaml:"i2c_bus"`
	ADS1115Address int  `yaml:"ads1115_address"`
	PHChannel      int  `yaml:"ph_channel"`  // -1 = not fitted
	TDSChannel     int  `yaml:"tds_channel"` // -1 = not fitted
	AirSensor      bool `yaml:"air_sensor"`

	OneWireID      string `yaml:"onewire_id"`
	UltrasonicPort string `yaml:"ultrasonic_port"`
	PZEMPort       string `yaml:"pzem_port"`
	PZEMAddress    int    `yaml:"pzem_address"`

	SimSeed int64 `yaml:"sim_seed"`
}

type HistoryConfig struct {
	Enabled      bool          `yaml:"enabled"`
	URL          string        `yaml:"url"`
	Token        string        `yaml:"token"`
	Org          string        `yaml:"org"`
	Bucket       string        `yaml:"bucket"`
	BreakerFails int           `yaml:"breaker_fails"`
	BreakerOpen  time.Duration `yaml:"breaker_open"`
}

type StoreConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type GRPCConfig struct {
	Port int `yaml:"port"`
}

// ===================== presets =====================

// Default is the 'produksi' rig.
func Default() *Config {
	return &Config{
		Instance: InstanceConfig{
			Name:      "produksi",
			BaseTopic: "hidroponik/produksi",
			ClientID:  "hidro_produksi",
		},
		Broker: BrokerConfig{
			Host:           "localhost",
			Port:           1883,
			KeepAlive:      30 * time.Second,
			ConnectTimeout: 10 * time.Second,
			MaxRetries:     60,
		},
		Intervals: IntervalsConfig{
			Tick:          100 * time.Millisecond,
			SensorPublish: 5 * time.Second,
			Heartbeat:     10 * time.Second,
			AutoDose:      30 * time.Minute,
			Irrigation:    6 * time.Hour,
			IrrigationRun: 2 * time.Minute,
		},
		Thresholds: ThresholdsConfig{
			CriticalLevelCm: 20,
			TDSLowerPpm:     650,
			DosingML:        20,
			RefillTargetCm:  80,
		},
		Calibration: CalibrationConfig{
			TDSK:              calibration.DefaultTDSK,
			TDSTempCoeff:      calibration.DefaultTDSTempCoeff,
			ReservoirHeightCm: calibration.ReservoirHeightCm,
			MsPerML:           (13.0 * 60.0 * 1000.0) / 200.0,
			PHSamples:         calibration.PHSamples,
		},
		// header pin numbers of the relay board
		Pumps: []entities.Pump{
			{Name: "Nutrisi A", Slug: "nutrisi_a", Line: "11", Role: entities.RoleDosing},
			{Name: "Nutrisi B", Slug: "nutrisi_b", Line: "13", Role: entities.RoleDosing},
			{Name: "pH", Slug: "ph", Line: "15", Role: entities.RoleDosing},
			{Name: "Isi Ulang", Slug: "isi_ulang", Line: "16", Role: entities.RoleRefill},
		},
		Dose:       DoseConfig{First: "nutrisi_a", Second: "nutrisi_b"},
		BuzzerLine: "12",
		Toggles: map[entities.Toggle]bool{
			entities.ToggleDosing:     true,
			entities.ToggleRefill:     false,
			entities.ToggleIrrigation: false,
		},
		Hardware: HardwareConfig{
			Driver:         "raspi",
			I2CBus:         1,
			ADS1115Address: 0x48,
			PHChannel:      0,
			TDSChannel:     1,
			AirSensor:      true,
			UltrasonicPort: "/dev/ttyAMA1",
			PZEMPort:       "/dev/ttyUSB0",
			PZEMAddress:    0xF8,
			SimSeed:        1,
		},
		History: HistoryConfig{
			URL:          "http://localhost:8086",
			Org:          "hidroponik",
			Bucket:       "hydroponic",
			BreakerFails: 3,
			BreakerOpen:  30 * time.Second,
		},
		Store: StoreConfig{
			Path:      "/var/lib/hydroponic/controller.db",
			Retention: 30 * 24 * time.Hour,
		},
		HTTP: HTTPConfig{Port: 8080},
		GRPC: GRPCConfig{Port: 50051},
	}
}

// Preset returns the configuration of a named rig.
func Preset(name string) (*Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "produksi":
		return Default(), nil
	case "penyemaian":
		// seedling bench: watering pump only, no probes in the tank
		c := Default()
		c.Instance = InstanceConfig{Name: "penyemaian", BaseTopic: "hidroponik/penyemaian", ClientID: "hidro_penyemaian"}
		c.Pumps = []entities.Pump{
			{Name: "Siram", Slug: "siram", Line: "18", Role: entities.RoleDuration},
		}
		c.Dose = DoseConfig{}
		c.BuzzerLine = ""
		c.Toggles = map[entities.Toggle]bool{
			entities.ToggleDosing:     false,
			entities.ToggleRefill:     false,
			entities.ToggleIrrigation: true,
		}
		c.Hardware.PHChannel = -1
		c.Hardware.TDSChannel = -1
		c.Hardware.AirSensor = false
		c.Hardware.UltrasonicPort = ""
		c.Hardware.PZEMPort = ""
		return c, nil
	}
	return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalid, name)
}

// ===================== load / save =====================

// Path is CONFIG_PATH or DefaultPath.
func Path() string {
	if v := strings.TrimSpace(os.Getenv("CONFIG_PATH")); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads filename on top of the defaults. A missing file yields the
// defaults. Environment overrides are applied last, then the result is
// validated.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		// a preset key selects the base the file is merged onto
		var head struct {
			Preset string `yaml:"preset"`
		}
		if err := yaml.Unmarshal(data, &head); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		if cfg, err = Preset(head.Preset); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides broker credentials and the history endpoint. A token
// in the environment turns history on.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("MQTT_HOST", &c.Broker.Host)
	str("MQTT_USER", &c.Broker.User)
	str("MQTT_PASSWORD", &c.Broker.Password)
	str("INFLUX_URL", &c.History.URL)
	str("INFLUX_TOKEN", &c.History.Token)

	if v := strings.TrimSpace(getenv("MQTT_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MQTT_PORT %q: %v", ErrInvalid, v, err)
		}
		c.Broker.Port = port
	}
	if strings.TrimSpace(getenv("INFLUX_TOKEN")) != "" {
		c.History.Enabled = true
	}
	return nil
}

// ===================== validation =====================

func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(c.Instance.BaseTopic) == "" {
		bad("instance.base_topic is empty")
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		bad("broker.port %d", c.Broker.Port)
	}
	for name, d := range map[string]time.Duration{
		"tick":           c.Intervals.Tick,
		"sensor_publish": c.Intervals.SensorPublish,
		"heartbeat":      c.Intervals.Heartbeat,
		"auto_dose":      c.Intervals.AutoDose,
	} {
		if d <= 0 {
			bad("intervals.%s must be positive", name)
		}
	}
	if c.Thresholds.RefillTargetCm >= controller.SafetyCeilingCm {
		bad("thresholds.refill_target_cm %.1f must be below %.1f", c.Thresholds.RefillTargetCm, controller.SafetyCeilingCm)
	}
	if c.Thresholds.DosingML <= 0 {
		bad("thresholds.dosing_ml must be positive")
	}
	if c.Calibration.MsPerML <= 0 || c.Calibration.TDSK <= 0 || c.Calibration.ReservoirHeightCm <= 0 {
		bad("calibration constants must be positive")
	}
	if len(c.Pumps) == 0 {
		bad("no pumps")
	}
	lines := map[string]string{}
	slugs := map[string]bool{}
	for _, p := range c.Pumps {
		if p.Slug == "" || !p.Role.Valid() {
			bad("pump %q: slug and a valid role are required", p.Name)
			continue
		}
		if slugs[p.Slug] {
			bad("duplicate pump slug %s", p.Slug)
		}
		slugs[p.Slug] = true
		if other, dup := lines[p.Line]; dup && p.Line != "" {
			bad("line %s used by %s and %s", p.Line, other, p.Slug)
		}
		lines[p.Line] = p.Slug
	}
	if c.BuzzerLine != "" {
		if other, dup := lines[c.BuzzerLine]; dup {
			bad("buzzer line %s used by %s", c.BuzzerLine, other)
		}
	}
	for t := range c.Toggles {
		if !t.Valid() {
			bad("unknown toggle %q", t)
		}
	}
	switch c.Hardware.Driver {
	case "raspi", "sim":
	default:
		bad("hardware.driver %q (raspi|sim)", c.Hardware.Driver)
	}
	if c.History.Enabled && (c.History.URL == "" || c.History.Bucket == "") {
		bad("history enabled without url or bucket")
	}
	if c.Store.Path == "" {
		bad("store.path is empty")
	}
	return errors.Join(errs...)
}

// ===================== adapters =====================

// ControllerSettings maps the configuration onto the decision core.
func (c *Config) ControllerSettings() controller.Settings {
	toggles := make(map[entities.Toggle]bool, len(c.Toggles))
	for t, on := range c.Toggles {
		toggles[t] = on
	}
	return controller.Settings{
		MsPerML:            c.Calibration.MsPerML,
		DosingML:           c.Thresholds.DosingML,
		TDSLowerPpm:        c.Thresholds.TDSLowerPpm,
		CriticalLevelCm:    c.Thresholds.CriticalLevelCm,
		AutoDoseInterval:   c.Intervals.AutoDose,
		FirstDose:          c.Dose.First,
		SecondDose:         c.Dose.Second,
		RefillTargetCm:     c.Thresholds.RefillTargetCm,
		IrrigationInterval: c.Intervals.Irrigation,
		IrrigationDuration: c.Intervals.IrrigationRun,
		BuzzerLine:         c.BuzzerLine,
		Toggles:            toggles,
	}
}

// TDS returns the probe constants.
func (c *Config) TDS() calibration.TDS {
	return calibration.TDS{K: c.Calibration.TDSK, TempCoeff: c.Calibration.TDSTempCoeff}
}

// BrokerConfig builds the connection settings; the last will is the
// retained "Offline" on the availability topic.
func (c *Config) BrokerConfig(willTopic, willPayload string) *broker.Config {
	return &broker.Config{
		Host:           c.Broker.Host,
		Port:           c.Broker.Port,
		User:           c.Broker.User,
		Password:       c.Broker.Password,
		ClientID:       c.Instance.ClientID,
		WillTopic:      willTopic,
		WillPayload:    willPayload,
		WillRetained:   true,
		KeepAlive:      c.Broker.KeepAlive,
		ConnectTimeout: c.Broker.ConnectTimeout,
		MaxRetries:     c.Broker.MaxRetries,
	}
}

// Lines lists every output line the controller drives.
func (c *Config) Lines() []string {
	out := make([]string, 0, len(c.Pumps)+1)
	for _, p := range c.Pumps {
		out = append(out, p.Line)
	}
	if c.BuzzerLine != "" {
		out = append(out, c.BuzzerLine)
	}
	return out
}
