// Package sensors turns raw channel reads into one SensorSnapshot per cycle.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Channel names one raw acquisition.
type Channel string

const (
	ChannelDistance    Channel = "distance_cm"
	ChannelWaterTemp   Channel = "water_temp_c"
	ChannelAirTemp     Channel = "air_temp_c"
	ChannelAirHumidity Channel = "air_humidity_pct"
	ChannelTDSVolt     Channel = "tds_volt"
	ChannelPHVolt      Channel = "ph_volt"

	ChannelVoltage     Channel = "power_voltage_v"
	ChannelCurrent     Channel = "power_current_a"
	ChannelPower       Channel = "power_w"
	ChannelEnergyWh    Channel = "power_energy_wh"
	ChannelFrequency   Channel = "power_frequency_hz"
	ChannelPowerFactor Channel = "power_factor"
)

var (
	ErrNoChannel = errors.New("channel not wired")
	ErrCRC       = errors.New("checksum mismatch")
	ErrTimeout   = errors.New("device did not answer")
)

// RawReader acquires one raw value. An error means the reading is invalid
// for this cycle.
type RawReader interface {
	ReadRaw(ctx context.Context, ch Channel) (float64, error)
}

// ReadFunc acquires a single channel.
type ReadFunc func(ctx context.Context) (float64, error)

// Board dispatches channel reads to the device that serves them.
type Board struct {
	mu      sync.RWMutex
	readers map[Channel]ReadFunc
}

var _ RawReader = (*Board)(nil)

func NewBoard() *Board {
	return &Board{readers: map[Channel]ReadFunc{}}
}

// Wire binds ch to fn, replacing any previous reader.
func (b *Board) Wire(ch Channel, fn ReadFunc) *Board {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readers[ch] = fn
	return b
}

func (b *Board) Wired(ch Channel) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.readers[ch]
	return ok
}

func (b *Board) ReadRaw(ctx context.Context, ch Channel) (float64, error) {
	b.mu.RLock()
	fn, ok := b.readers[ch]
	b.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%s: %w", ch, ErrNoChannel)
	}
	return fn(ctx)
}
