package sensors

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the part of serial.Port the device drivers use.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

var _ Port = (serial.Port)(nil)

// OpenSerial opens an 8N1 port with a read timeout.
func OpenSerial(name string, baud int, timeout time.Duration) (serial.Port, error) {
	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set timeout %s: %w", name, err)
	}
	return p, nil
}

// readFrame reads exactly len(buf) bytes or gives up at the deadline. A
// serial read that times out returns 0 bytes and no error.
func readFrame(r io.Reader, buf []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	n := 0
	for n < len(buf) {
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		m, err := r.Read(buf[n:])
		if err != nil {
			return err
		}
		if m == 0 && time.Now().After(deadline) {
			return ErrTimeout
		}
		n += m
	}
	return nil
}
