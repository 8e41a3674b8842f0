package sensors

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	sr04tHeader  = 0xFF
	sr04tTrigger = 0x55
)

// Ultrasonic drives a JSN-SR04T in UART controlled mode: each trigger byte
// yields one 4-byte frame FF H L SUM with the distance in millimetres.
type Ultrasonic struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
}

func NewUltrasonic(port Port, timeout time.Duration) *Ultrasonic {
	if timeout <= 0 {
		timeout = 150 * time.Millisecond
	}
	return &Ultrasonic{port: port, timeout: timeout}
}

// Distance returns centimetres.
func (u *Ultrasonic) Distance(context.Context) (float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.port.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("jsn-sr04t: %w", err)
	}
	if _, err := u.port.Write([]byte{sr04tTrigger}); err != nil {
		return 0, fmt.Errorf("jsn-sr04t trigger: %w", err)
	}

	// resync on the header byte
	var b [1]byte
	deadline := time.Now().Add(u.timeout)
	for {
		if err := readFrame(u.port, b[:], time.Until(deadline)); err != nil {
			return 0, fmt.Errorf("jsn-sr04t: %w", err)
		}
		if b[0] == sr04tHeader {
			break
		}
	}
	var rest [3]byte
	if err := readFrame(u.port, rest[:], time.Until(deadline)); err != nil {
		return 0, fmt.Errorf("jsn-sr04t: %w", err)
	}
	mm, err := decodeSR04T(rest)
	if err != nil {
		return 0, err
	}
	return float64(mm) / 10.0, nil
}

func decodeSR04T(f [3]byte) (uint16, error) {
	sum := byte(sr04tHeader + int(f[0]) + int(f[1]))
	if sum != f[2] {
		return 0, fmt.Errorf("jsn-sr04t: %w", ErrCRC)
	}
	return uint16(f[0])<<8 | uint16(f[1]), nil
}

func (u *Ultrasonic) Close() error { return u.port.Close() }
