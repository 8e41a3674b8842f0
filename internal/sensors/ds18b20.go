package sensors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const w1Devices = "/sys/bus/w1/devices"

// OneWireProbe reads a DS18B20 through the kernel w1_therm driver.
type OneWireProbe struct {
	path string
}

// NewOneWireProbe binds the probe with the given id (e.g. "28-0316a27971ff").
// An empty id picks the first 28-* device found.
func NewOneWireProbe(id string) (*OneWireProbe, error) {
	return newOneWireProbe(w1Devices, id)
}

func newOneWireProbe(root, id string) (*OneWireProbe, error) {
	if id == "" {
		matches, _ := filepath.Glob(filepath.Join(root, "28-*"))
		if len(matches) == 0 {
			return nil, fmt.Errorf("ds18b20: no probe under %s", root)
		}
		id = filepath.Base(matches[0])
	}
	return &OneWireProbe{path: filepath.Join(root, id, "w1_slave")}, nil
}

// Temperature returns degrees Celsius.
func (p *OneWireProbe) Temperature(context.Context) (float64, error) {
	b, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("ds18b20: %w", err)
	}
	return parseW1Slave(string(b))
}

// parseW1Slave decodes the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(s string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("ds18b20: short read")
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("ds18b20: %w", ErrCRC)
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("ds18b20: no temperature field")
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][i+2:]))
	if err != nil {
		return 0, fmt.Errorf("ds18b20: %w", err)
	}
	return float64(milli) / 1000.0, nil
}
