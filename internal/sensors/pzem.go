package sensors

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

const (
	pzemDefaultAddr   = 0xF8
	pzemReadInput     = 0x04
	pzemRegisterCount = 10
)

// PowerReading is one PZEM-004T v3 measurement block.
type PowerReading struct {
	Voltage     float64 // V
	Current     float64 // A
	Power       float64 // W
	EnergyWh    float64 // Wh
	Frequency   float64 // Hz
	PowerFactor float64
	Alarm       bool
}

// PowerMeter polls a PZEM-004T over Modbus-RTU. One bus transaction serves
// all six channels of a cycle through a short-lived cache.
type PowerMeter struct {
	mu      sync.Mutex
	port    Port
	addr    byte
	timeout time.Duration
	maxAge  time.Duration
	now     func() time.Time

	last   PowerReading
	lastAt time.Time
	lastOK bool
}

func NewPowerMeter(port Port, addr byte, timeout time.Duration) *PowerMeter {
	if addr == 0 {
		addr = pzemDefaultAddr
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &PowerMeter{port: port, addr: addr, timeout: timeout, maxAge: time.Second, now: time.Now}
}

// Read returns a fresh or cached measurement block.
func (m *PowerMeter) Read(context.Context) (PowerReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastOK && now.Sub(m.lastAt) < m.maxAge {
		return m.last, nil
	}
	m.lastOK = false

	if err := m.port.ResetInputBuffer(); err != nil {
		return PowerReading{}, fmt.Errorf("pzem: %w", err)
	}
	if _, err := m.port.Write(pzemRequest(m.addr)); err != nil {
		return PowerReading{}, fmt.Errorf("pzem write: %w", err)
	}
	// addr, func, byte count, 20 data bytes, crc
	resp := make([]byte, 3+2*pzemRegisterCount+2)
	if err := readFrame(m.port, resp, m.timeout); err != nil {
		return PowerReading{}, fmt.Errorf("pzem: %w", err)
	}
	r, err := decodePZEM(m.addr, resp)
	if err != nil {
		return PowerReading{}, err
	}
	m.last, m.lastAt, m.lastOK = r, now, true
	return r, nil
}

// Channel exposes one field of the block as a ReadFunc.
func (m *PowerMeter) Channel(ch Channel) ReadFunc {
	return func(ctx context.Context) (float64, error) {
		r, err := m.Read(ctx)
		if err != nil {
			return 0, err
		}
		switch ch {
		case ChannelVoltage:
			return r.Voltage, nil
		case ChannelCurrent:
			return r.Current, nil
		case ChannelPower:
			return r.Power, nil
		case ChannelEnergyWh:
			return r.EnergyWh, nil
		case ChannelFrequency:
			return r.Frequency, nil
		case ChannelPowerFactor:
			return r.PowerFactor, nil
		}
		return 0, fmt.Errorf("pzem %s: %w", ch, ErrNoChannel)
	}
}

// Wire binds the six electrical channels on b.
func (m *PowerMeter) Wire(b *Board) {
	for _, ch := range []Channel{ChannelVoltage, ChannelCurrent, ChannelPower, ChannelEnergyWh, ChannelFrequency, ChannelPowerFactor} {
		b.Wire(ch, m.Channel(ch))
	}
}

func (m *PowerMeter) Close() error { return m.port.Close() }

func pzemRequest(addr byte) []byte {
	req := []byte{addr, pzemReadInput, 0x00, 0x00, 0x00, pzemRegisterCount}
	crc := crc16Modbus(req)
	return binary.LittleEndian.AppendUint16(req, crc)
}

func decodePZEM(addr byte, resp []byte) (PowerReading, error) {
	if len(resp) != 3+2*pzemRegisterCount+2 {
		return PowerReading{}, fmt.Errorf("pzem: short frame (%d bytes)", len(resp))
	}
	body, tail := resp[:len(resp)-2], resp[len(resp)-2:]
	if crc16Modbus(body) != binary.LittleEndian.Uint16(tail) {
		return PowerReading{}, fmt.Errorf("pzem: %w", ErrCRC)
	}
	if body[0] != addr || body[1] != pzemReadInput || body[2] != 2*pzemRegisterCount {
		return PowerReading{}, fmt.Errorf("pzem: unexpected header % x", body[:3])
	}

	reg := func(i int) uint32 { return uint32(binary.BigEndian.Uint16(body[3+2*i:])) }
	// 32-bit values are sent low word first
	reg32 := func(i int) uint32 { return reg(i) | reg(i+1)<<16 }

	return PowerReading{
		Voltage:     float64(reg(0)) / 10.0,
		Current:     float64(reg32(1)) / 1000.0,
		Power:       float64(reg32(3)) / 10.0,
		EnergyWh:    float64(reg32(5)),
		Frequency:   float64(reg(7)) / 10.0,
		PowerFactor: float64(reg(8)) / 100.0,
		Alarm:       reg(9) != 0,
	}, nil
}

// crc16Modbus is CRC-16/MODBUS (poly 0xA001 reflected, init 0xFFFF).
func crc16Modbus(b []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, x := range b {
		crc ^= uint16(x)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
