package sensors

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/calibration"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

const defaultSampleDelay = 10 * time.Millisecond

// Aggregator produces one snapshot per Read. pH is averaged over a fixed
// window; every other channel is read once.
type Aggregator struct {
	src         RawReader
	tds         calibration.TDS
	reservoirCm float64
	phSamples   int
	sampleDelay time.Duration
	now         func() time.Time
}

type AggregatorOption func(*Aggregator)

func WithTDS(t calibration.TDS) AggregatorOption {
	return func(a *Aggregator) { a.tds = t }
}

func WithReservoirHeight(cm float64) AggregatorOption {
	return func(a *Aggregator) {
		if cm > 0 {
			a.reservoirCm = cm
		}
	}
}

func WithPHSamples(n int, delay time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.phSamples = n
		}
		if delay >= 0 {
			a.sampleDelay = delay
		}
	}
}

func WithNow(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(src RawReader, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		src:         src,
		tds:         calibration.DefaultTDS(),
		reservoirCm: calibration.ReservoirHeightCm,
		phSamples:   calibration.PHSamples,
		sampleDelay: defaultSampleDelay,
		now:         time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Read runs one acquisition cycle. It never fails: unreadable channels are
// Invalid in the returned snapshot.
func (a *Aggregator) Read(ctx context.Context) messages.SensorSnapshot {
	snap := messages.EmptySnapshot(a.now())

	if d, ok := a.read(ctx, ChannelDistance); ok {
		snap.WaterDistanceCm = d
		snap.WaterLevelCm = calibration.DistanceToLevel(d, a.reservoirCm)
		if !messages.Valid(snap.WaterLevelCm) {
			snap.WaterDistanceCm = messages.Invalid
		}
	}
	if c, ok := a.read(ctx, ChannelWaterTemp); ok {
		snap.WaterTempC = calibration.WaterTemperature(c)
	}
	if v, ok := a.read(ctx, ChannelAirTemp); ok {
		snap.AirTempC = v
	}
	if v, ok := a.read(ctx, ChannelAirHumidity); ok {
		snap.AirHumidity = v
	}

	// TDS needs a valid water temperature; no default is substituted.
	if messages.Valid(snap.WaterTempC) {
		if v, ok := a.read(ctx, ChannelTDSVolt); ok {
			snap.TDSPpm = a.tds.VoltageToTDS(v, snap.WaterTempC)
		}
	}

	if v, ok := a.averagePH(ctx); ok {
		snap.PH = calibration.VoltageToPH(v)
	}

	a.readPower(ctx, &snap)
	return snap
}

func (a *Aggregator) read(ctx context.Context, ch Channel) (float64, bool) {
	v, err := a.src.ReadRaw(ctx, ch)
	if err != nil {
		if !errors.Is(err, ErrNoChannel) {
			log.Printf("sensors: WARN: %s: %v", ch, err)
		}
		return messages.Invalid, false
	}
	if !messages.Valid(v) {
		return messages.Invalid, false
	}
	return v, true
}

// averagePH returns the mean voltage of the window; one bad sample voids
// the whole cycle.
func (a *Aggregator) averagePH(ctx context.Context) (float64, bool) {
	var sum float64
	for i := 0; i < a.phSamples; i++ {
		if i > 0 && a.sampleDelay > 0 {
			select {
			case <-ctx.Done():
				return messages.Invalid, false
			case <-time.After(a.sampleDelay):
			}
		}
		v, ok := a.read(ctx, ChannelPHVolt)
		if !ok {
			return messages.Invalid, false
		}
		sum += v
	}
	return sum / float64(a.phSamples), true
}

// readPower treats the meter as one unit: without a voltage reading every
// electrical field stays invalid.
func (a *Aggregator) readPower(ctx context.Context, snap *messages.SensorSnapshot) {
	v, ok := a.read(ctx, ChannelVoltage)
	if !ok {
		return
	}
	snap.Voltage = v
	if c, ok := a.read(ctx, ChannelCurrent); ok {
		snap.Current = c
	}
	if p, ok := a.read(ctx, ChannelPower); ok {
		snap.Power = p
	}
	if e, ok := a.read(ctx, ChannelEnergyWh); ok {
		snap.EnergyKWh = e / 1000.0
	}
	if f, ok := a.read(ctx, ChannelFrequency); ok {
		snap.Frequency = f
	}
	if pf, ok := a.read(ctx, ChannelPowerFactor); ok {
		snap.PowerFactor = pf
	}
}
