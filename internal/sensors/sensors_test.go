package sensors

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/calibration"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
)

// ---- fakes ----

type fakeReader struct {
	values map[Channel]float64
	errs   map[Channel]error
	calls  map[Channel]int
	seq    map[Channel][]float64
}

func newFakeReader(values map[Channel]float64) *fakeReader {
	return &fakeReader{values: values, errs: map[Channel]error{}, calls: map[Channel]int{}, seq: map[Channel][]float64{}}
}

func (f *fakeReader) ReadRaw(_ context.Context, ch Channel) (float64, error) {
	f.calls[ch]++
	if err, ok := f.errs[ch]; ok {
		return 0, err
	}
	if s := f.seq[ch]; len(s) > 0 {
		v := s[0]
		f.seq[ch] = s[1:]
		return v, nil
	}
	v, ok := f.values[ch]
	if !ok {
		return 0, ErrNoChannel
	}
	return v, nil
}

type fakePort struct {
	rx      []byte
	written []byte
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Close() error            { p.closed = true; return nil }
func (p *fakePort) ResetInputBuffer() error { return nil }

func fullRig() map[Channel]float64 {
	return map[Channel]float64{
		ChannelDistance:    30,
		ChannelWaterTemp:   25,
		ChannelAirTemp:     28.5,
		ChannelAirHumidity: 70,
		ChannelTDSVolt:     1.0,
		ChannelPHVolt:      calibration.PHNeutralVolt,
		ChannelVoltage:     221.3,
		ChannelCurrent:     0.412,
		ChannelPower:       55.1,
		ChannelEnergyWh:    1234,
		ChannelFrequency:   50,
		ChannelPowerFactor: 0.61,
	}
}

func newTestAggregator(src RawReader) *Aggregator {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return NewAggregator(src, WithPHSamples(calibration.PHSamples, 0), WithNow(func() time.Time { return at }))
}

// ---- aggregator ----

func TestAggregator_FullCycle(t *testing.T) {
	src := newFakeReader(fullRig())
	snap := newTestAggregator(src).Read(context.Background())

	assert.InDelta(t, 70.0, snap.WaterLevelCm, 1e-9)
	assert.InDelta(t, 30.0, snap.WaterDistanceCm, 1e-9)
	assert.InDelta(t, 25.0, snap.WaterTempC, 1e-9)
	assert.InDelta(t, 28.5, snap.AirTempC, 1e-9)
	assert.InDelta(t, 70.0, snap.AirHumidity, 1e-9)
	assert.InDelta(t, calibration.DefaultTDSK, snap.TDSPpm, 1e-9)
	assert.InDelta(t, calibration.PHNeutral, snap.PH, 1e-9)
	assert.InDelta(t, 1.234, snap.EnergyKWh, 1e-9)
	assert.InDelta(t, 0.61, snap.PowerFactor, 1e-9)
	assert.Equal(t, calibration.PHSamples, src.calls[ChannelPHVolt])
	assert.Equal(t, 1, src.calls[ChannelTDSVolt])
}

func TestAggregator_PHAveraging(t *testing.T) {
	src := newFakeReader(fullRig())
	src.seq[ChannelPHVolt] = []float64{2.4, 2.6, 2.4, 2.6, 2.4, 2.6, 2.4, 2.6, 2.4, 2.6}
	snap := newTestAggregator(src).Read(context.Background())
	assert.InDelta(t, calibration.VoltageToPH(2.5), snap.PH, 1e-9)
}

func TestAggregator_OneBadPHSampleVoidsCycle(t *testing.T) {
	src := newFakeReader(fullRig())
	src.seq[ChannelPHVolt] = []float64{2.5, 2.5, math.NaN()}
	snap := newTestAggregator(src).Read(context.Background())
	assert.False(t, messages.Valid(snap.PH))
}

func TestAggregator_TDSNeedsWaterTemp(t *testing.T) {
	for name, temp := range map[string]float64{
		"disconnected": calibration.DeviceDisconnectedC,
		"nan":          math.NaN(),
	} {
		t.Run(name, func(t *testing.T) {
			rig := fullRig()
			rig[ChannelWaterTemp] = temp
			src := newFakeReader(rig)
			snap := newTestAggregator(src).Read(context.Background())
			assert.False(t, messages.Valid(snap.WaterTempC))
			assert.False(t, messages.Valid(snap.TDSPpm))
			assert.Zero(t, src.calls[ChannelTDSVolt])
		})
	}
}

func TestAggregator_PowerMeterDown(t *testing.T) {
	src := newFakeReader(fullRig())
	src.errs[ChannelVoltage] = ErrTimeout
	snap := newTestAggregator(src).Read(context.Background())

	for _, v := range []float64{snap.Voltage, snap.Current, snap.Power, snap.EnergyKWh, snap.Frequency, snap.PowerFactor} {
		assert.False(t, messages.Valid(v))
	}
	assert.Zero(t, src.calls[ChannelCurrent])
	assert.True(t, messages.Valid(snap.PH))
}

func TestAggregator_EchoFailure(t *testing.T) {
	for _, d := range []float64{0, calibration.UltrasonicMaxDistanceCm, 250} {
		rig := fullRig()
		rig[ChannelDistance] = d
		snap := newTestAggregator(newFakeReader(rig)).Read(context.Background())
		assert.False(t, messages.Valid(snap.WaterLevelCm), d)
		assert.False(t, messages.Valid(snap.WaterDistanceCm), d)
	}
}

func TestAggregator_SeedlingRig(t *testing.T) {
	// no pH, TDS or power meter wired
	src := newFakeReader(map[Channel]float64{
		ChannelDistance:    12,
		ChannelAirTemp:     30,
		ChannelAirHumidity: 60,
	})
	snap := newTestAggregator(src).Read(context.Background())
	assert.InDelta(t, 88.0, snap.WaterLevelCm, 1e-9)
	assert.False(t, messages.Valid(snap.PH))
	assert.False(t, messages.Valid(snap.TDSPpm))
	assert.False(t, messages.Valid(snap.Voltage))
}

// ---- board ----

func TestBoard(t *testing.T) {
	b := NewBoard().Wire(ChannelAirTemp, func(context.Context) (float64, error) { return 21, nil })
	assert.True(t, b.Wired(ChannelAirTemp))

	v, err := b.ReadRaw(context.Background(), ChannelAirTemp)
	require.NoError(t, err)
	assert.Equal(t, 21.0, v)

	_, err = b.ReadRaw(context.Background(), ChannelPHVolt)
	assert.ErrorIs(t, err, ErrNoChannel)
}

// ---- DS18B20 ----

func TestParseW1Slave(t *testing.T) {
	v, err := parseW1Slave("72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n")
	require.NoError(t, err)
	assert.InDelta(t, 23.125, v, 1e-9)

	v, err = parseW1Slave("50 05 4b 46 7f ff 0c 10 1c : crc=1c YES\n50 05 4b 46 7f ff 0c 10 1c t=-1250\n")
	require.NoError(t, err)
	assert.InDelta(t, -1.25, v, 1e-9)

	_, err = parseW1Slave("72 01 4b 46 7f ff 0e 10 57 : crc=00 NO\n72 01 t=23125\n")
	assert.ErrorIs(t, err, ErrCRC)

	_, err = parseW1Slave("garbage")
	assert.Error(t, err)
}

func TestOneWireProbe_Discovery(t *testing.T) {
	root := t.TempDir()
	dev := filepath.Join(root, "28-0316a27971ff")
	require.NoError(t, os.MkdirAll(dev, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dev, "w1_slave"),
		[]byte("aa : crc=aa YES\naa t=19500\n"), 0o644))

	p, err := newOneWireProbe(root, "")
	require.NoError(t, err)
	v, err := p.Temperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 19.5, v, 1e-9)

	_, err = newOneWireProbe(t.TempDir(), "")
	assert.Error(t, err)
}

// ---- JSN-SR04T ----

func TestUltrasonic(t *testing.T) {
	// noise byte before the header, 0x0546 = 1350 mm
	port := &fakePort{rx: []byte{0x12, 0xFF, 0x05, 0x46, 0x4A}}
	u := NewUltrasonic(port, 50*time.Millisecond)

	d, err := u.Distance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 135.0, d, 1e-9)
	assert.Equal(t, []byte{sr04tTrigger}, port.written)
}

func TestUltrasonic_BadChecksum(t *testing.T) {
	port := &fakePort{rx: []byte{0xFF, 0x05, 0x46, 0x00}}
	_, err := NewUltrasonic(port, 50*time.Millisecond).Distance(context.Background())
	assert.ErrorIs(t, err, ErrCRC)
}

func TestUltrasonic_Timeout(t *testing.T) {
	_, err := NewUltrasonic(&fakePort{}, 5*time.Millisecond).Distance(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

// ---- PZEM-004T ----

func TestCRC16Modbus(t *testing.T) {
	assert.Equal(t, uint16(0x0A84), crc16Modbus([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}))
}

func pzemFrame(addr byte, regs [pzemRegisterCount]uint16) []byte {
	f := []byte{addr, pzemReadInput, 2 * pzemRegisterCount}
	for _, r := range regs {
		f = binary.BigEndian.AppendUint16(f, r)
	}
	return binary.LittleEndian.AppendUint16(f, crc16Modbus(f))
}

func TestPowerMeter(t *testing.T) {
	regs := [pzemRegisterCount]uint16{
		2213,       // 221.3 V
		412, 0,     // 0.412 A
		551, 0,     // 55.1 W
		0x86A0, 1,  // 100000 Wh
		500,        // 50.0 Hz
		61,         // 0.61
		0,          // no alarm
	}
	port := &fakePort{rx: pzemFrame(pzemDefaultAddr, regs)}
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	m := NewPowerMeter(port, 0, 50*time.Millisecond)
	m.now = func() time.Time { return now }

	r, err := m.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 221.3, r.Voltage, 1e-9)
	assert.InDelta(t, 0.412, r.Current, 1e-9)
	assert.InDelta(t, 55.1, r.Power, 1e-9)
	assert.InDelta(t, 100000, r.EnergyWh, 1e-9)
	assert.InDelta(t, 50.0, r.Frequency, 1e-9)
	assert.InDelta(t, 0.61, r.PowerFactor, 1e-9)
	assert.False(t, r.Alarm)
	assert.Equal(t, pzemRequest(pzemDefaultAddr), port.written)

	// the other channels of the cycle hit the cache
	b := NewBoard()
	m.Wire(b)
	f, err := b.ReadRaw(context.Background(), ChannelFrequency)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, f, 1e-9)
	assert.Len(t, port.written, 8)

	now = now.Add(2 * time.Second)
	_, err = m.Read(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDecodePZEM_Errors(t *testing.T) {
	var regs [pzemRegisterCount]uint16
	frame := pzemFrame(pzemDefaultAddr, regs)

	bad := append([]byte(nil), frame...)
	bad[5] ^= 0xFF
	_, err := decodePZEM(pzemDefaultAddr, bad)
	assert.ErrorIs(t, err, ErrCRC)

	_, err = decodePZEM(0x01, frame)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrCRC))

	_, err = decodePZEM(pzemDefaultAddr, frame[:10])
	assert.Error(t, err)
}
