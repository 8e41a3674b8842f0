package sensors

import (
	"context"
	"fmt"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"
)

// ADC is the ADS1115 front end of the analog probes (pH, TDS).
type ADC struct {
	mu  sync.Mutex
	drv *i2c.ADS1x15Driver
}

// NewADC starts an ADS1115 on conn. bus/address < 0 keep the driver defaults.
func NewADC(conn i2c.Connector, bus, address int) (*ADC, error) {
	var opts []func(i2c.Config)
	if bus >= 0 {
		opts = append(opts, i2c.WithBus(bus))
	}
	if address >= 0 {
		opts = append(opts, i2c.WithAddress(address))
	}
	drv := i2c.NewADS1115Driver(conn, opts...)
	if err := drv.Start(); err != nil {
		return nil, fmt.Errorf("ads1115 start: %w", err)
	}
	return &ADC{drv: drv}, nil
}

// Channel returns a reader for one single-ended input, in volts.
func (a *ADC) Channel(ch int) ReadFunc {
	return func(context.Context) (float64, error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		v, err := a.drv.ReadWithDefaults(ch)
		if err != nil {
			return 0, fmt.Errorf("ads1115 A%d: %w", ch, err)
		}
		return v, nil
	}
}

func (a *ADC) Halt() error { return a.drv.Halt() }

// AirSensor reads air temperature and humidity from an SHT2x.
type AirSensor struct {
	mu  sync.Mutex
	drv *i2c.SHT2xDriver
}

func NewAirSensor(conn i2c.Connector, bus int) (*AirSensor, error) {
	var opts []func(i2c.Config)
	if bus >= 0 {
		opts = append(opts, i2c.WithBus(bus))
	}
	drv := i2c.NewSHT2xDriver(conn, opts...)
	if err := drv.Start(); err != nil {
		return nil, fmt.Errorf("sht2x start: %w", err)
	}
	return &AirSensor{drv: drv}, nil
}

func (s *AirSensor) Temperature(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.drv.Temperature()
	if err != nil {
		return 0, fmt.Errorf("sht2x temperature: %w", err)
	}
	return float64(t), nil
}

func (s *AirSensor) Humidity(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.drv.Humidity()
	if err != nil {
		return 0, fmt.Errorf("sht2x humidity: %w", err)
	}
	if h < 0 || h > 100 {
		return 0, fmt.Errorf("sht2x humidity %.1f%% out of range", h)
	}
	return float64(h), nil
}

func (s *AirSensor) Halt() error { return s.drv.Halt() }
