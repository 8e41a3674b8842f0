package main

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/actuators"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/config"
	sim "github.com/LeonardoBeccarini/hydroponic_project/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/sensors"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/services/controller"
)

// rig is what the controller runs against: output lines plus raw channels.
type rig struct {
	outputs controller.Outputs
	source  sensors.RawReader
	closers []func() error
}

func (r *rig) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

func openRig(cfg *config.Config) (*rig, error) {
	switch cfg.Hardware.Driver {
	case "sim":
		tank := sim.NewReservoir(cfg.Calibration.ReservoirHeightCm, cfg.Hardware.SimSeed)
		r := sim.NewRig(cfg.Pumps, tank, time.Now)
		log.Printf("hardware: simulated rig (seed %d)", cfg.Hardware.SimSeed)
		return &rig{outputs: r, source: r}, nil
	case "raspi":
		return openRaspi(cfg)
	}
	return nil, fmt.Errorf("unknown hardware driver %q", cfg.Hardware.Driver)
}

// openRaspi wires every fitted device. A probe that fails to open is left
// unwired: its channel reads as invalid instead of stopping the controller.
func openRaspi(cfg *config.Config) (*rig, error) {
	hw := cfg.Hardware
	adaptor, err := actuators.Adaptor()
	if err != nil {
		return nil, err
	}
	relays, err := actuators.NewRaspiRelays(adaptor, cfg.Lines(), hw.RelayActiveLow)
	if err != nil {
		_ = adaptor.Finalize()
		return nil, err
	}
	r := &rig{outputs: relays}
	r.closers = append(r.closers, adaptor.Finalize, relays.Close)

	board := sensors.NewBoard()
	r.source = board

	if hw.PHChannel >= 0 || hw.TDSChannel >= 0 {
		adc, err := sensors.NewADC(adaptor, hw.I2CBus, hw.ADS1115Address)
		if err != nil {
			log.Printf("hardware: WARN: ADS1115: %v", err)
		} else {
			r.closers = append(r.closers, adc.Halt)
			if hw.PHChannel >= 0 {
				board.Wire(sensors.ChannelPHVolt, adc.Channel(hw.PHChannel))
			}
			if hw.TDSChannel >= 0 {
				board.Wire(sensors.ChannelTDSVolt, adc.Channel(hw.TDSChannel))
			}
		}
	}

	if hw.AirSensor {
		air, err := sensors.NewAirSensor(adaptor, hw.I2CBus)
		if err != nil {
			log.Printf("hardware: WARN: air sensor: %v", err)
		} else {
			r.closers = append(r.closers, air.Halt)
			board.Wire(sensors.ChannelAirTemp, air.Temperature).
				Wire(sensors.ChannelAirHumidity, air.Humidity)
		}
	}

	if probe, err := sensors.NewOneWireProbe(hw.OneWireID); err != nil {
		log.Printf("hardware: WARN: water temperature probe: %v", err)
	} else {
		board.Wire(sensors.ChannelWaterTemp, probe.Temperature)
	}

	if hw.UltrasonicPort != "" {
		port, err := sensors.OpenSerial(hw.UltrasonicPort, 9600, 50*time.Millisecond)
		if err != nil {
			log.Printf("hardware: WARN: ultrasonic: %v", err)
		} else {
			us := sensors.NewUltrasonic(port, 0)
			r.closers = append(r.closers, us.Close)
			board.Wire(sensors.ChannelDistance, us.Distance)
		}
	}

	if hw.PZEMPort != "" {
		port, err := sensors.OpenSerial(hw.PZEMPort, 9600, 50*time.Millisecond)
		if err != nil {
			log.Printf("hardware: WARN: power meter: %v", err)
		} else {
			pm := sensors.NewPowerMeter(port, byte(hw.PZEMAddress), 0)
			r.closers = append(r.closers, pm.Close)
			pm.Wire(board)
		}
	}
	return r, nil
}
