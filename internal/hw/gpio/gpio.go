package gpio

import (
	"github.com/cjeanneret/RoverGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for the board peripherals the rover
// uses: digital lines, hardware PWM and the SPI-attached ADC.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// SetupPWM configures a hardware PWM pin. The effective PWM frequency is
	// freqHz; duty values passed to WritePWM range over [0, cycleLen].
	SetupPWM(pin int, freqHz int, cycleLen uint32) error
	WritePWM(pin int, duty uint32) error
	// ReadADC samples one channel of the SPI-attached ADC (10-bit, 0-1023).
	ReadADC(channel int) (uint16, error)
	Close() error
}

// MockDriver is a test implementation that simply logs actions.
// Pin and ADC values can be preloaded so sensor reads are scriptable.
type MockDriver struct {
	PinLevels map[int]Level
	ADCValues map[int]uint16
}

// NewDriver creates a driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real PiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK hardware driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewPiDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return m.PinLevels[pin], nil
}

func (m *MockDriver) SetupPWM(pin int, freqHz int, cycleLen uint32) error {
	debug.GPIO("SetupPWM", pin, freqHz)
	return nil
}

func (m *MockDriver) WritePWM(pin int, duty uint32) error {
	debug.GPIO("WritePWM", pin, duty)
	return nil
}

func (m *MockDriver) ReadADC(channel int) (uint16, error) {
	debug.GPIO("ReadADC", channel, m.ADCValues[channel])
	return m.ADCValues[channel], nil
}

func (m *MockDriver) Close() error {
	debug.Trace("Driver Close (mock)")
	return nil
}
