// Package irsensor samples the two front-mounted IR edge detectors.
package irsensor

import (
	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
)

// adcFullScale is the 10-bit ADC ceiling.
const adcFullScale = 1023

// Config holds the wiring and threshold of the detector pair.
// The left detector is analog (through the SPI ADC) and compared against a
// voltage threshold; the right detector is already binary.
type Config struct {
	LeftADCChannel   int
	RightPin         int
	ThresholdVoltage float64 // blocked above this voltage
	ReferenceVoltage float64 // ADC full-scale voltage
}

// State is one stateless sample of both detectors. No memory of prior
// readings; callers needing stability must poll repeatedly themselves.
type State struct {
	LeftBlocked  bool
	RightBlocked bool
}

// Pair reads both detectors.
type Pair struct {
	gpio gpio.Driver
	cfg  Config
}

// New configures the digital input and returns the detector pair.
func New(g gpio.Driver, cfg Config) (*Pair, error) {
	if cfg.ThresholdVoltage == 0 {
		cfg.ThresholdVoltage = 0.45
	}
	if cfg.ReferenceVoltage == 0 {
		cfg.ReferenceVoltage = 3.3
	}
	if err := g.SetupPin(cfg.RightPin, gpio.Input); err != nil {
		return nil, err
	}
	return &Pair{gpio: g, cfg: cfg}, nil
}

// Read takes one fresh sample from each detector. Side-effect free beyond
// the hardware read. On error the zero State is returned alongside it.
func (p *Pair) Read() (State, error) {
	raw, err := p.gpio.ReadADC(p.cfg.LeftADCChannel)
	if err != nil {
		return State{}, err
	}
	voltage := float64(raw) / adcFullScale * p.cfg.ReferenceVoltage

	right, err := p.gpio.ReadPin(p.cfg.RightPin)
	if err != nil {
		return State{}, err
	}

	s := State{
		LeftBlocked:  voltage > p.cfg.ThresholdVoltage,
		RightBlocked: right == gpio.High,
	}
	debug.Trace("IR sample: left=%.2fV blocked=%v right=%v", voltage, s.LeftBlocked, s.RightBlocked)
	return s, nil
}
