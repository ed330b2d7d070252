package gpio

import (
	"fmt"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// PiDriver is the real implementation for Raspberry Pi using go-rpio.
// The analog IR sensor is read through an MCP3008 on SPI0.
type PiDriver struct {
	pins   map[int]rpio.Pin
	cycles map[int]uint32 // PWM cycle length per pin
	spi    bool           // SPI0 claimed for the ADC
}

// NewPiDriver creates a real driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewPiDriver() (*PiDriver, error) {
	debug.Info("Initializing real hardware driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &PiDriver{
		pins:   make(map[int]rpio.Pin),
		cycles: make(map[int]uint32),
	}, nil
}

func (r *PiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	r.pins[pin] = p

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *PiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *PiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	state := p.Read()
	if state == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *PiDriver) SetupPWM(pin int, freqHz int, cycleLen uint32) error {
	debug.GPIO("SetupPWM", pin, freqHz)

	// Only BCM 12, 13, 18 and 19 carry hardware PWM on the Pi.
	switch pin {
	case 12, 13, 18, 19:
	default:
		return fmt.Errorf("pin %d has no hardware PWM", pin)
	}

	p := rpio.Pin(pin)
	r.pins[pin] = p
	r.cycles[pin] = cycleLen

	p.Mode(rpio.Pwm)
	// go-rpio's Freq sets the PWM clock; the output frequency is clock/cycle.
	p.Freq(freqHz * int(cycleLen))
	p.DutyCycle(0, cycleLen)
	return nil
}

func (r *PiDriver) WritePWM(pin int, duty uint32) error {
	debug.GPIO("WritePWM", pin, duty)

	cycle, ok := r.cycles[pin]
	if !ok {
		return fmt.Errorf("pin %d not configured for PWM", pin)
	}
	if duty > cycle {
		duty = cycle
	}
	r.pins[pin].DutyCycle(duty, cycle)
	return nil
}

func (r *PiDriver) ReadADC(channel int) (uint16, error) {
	if channel < 0 || channel > 7 {
		return 0, fmt.Errorf("ADC channel %d out of range (0-7)", channel)
	}

	if !r.spi {
		if err := rpio.SpiBegin(rpio.Spi0); err != nil {
			return 0, fmt.Errorf("failed to claim SPI0 for ADC: %w", err)
		}
		rpio.SpiSpeed(1_000_000)
		rpio.SpiChipSelect(0)
		r.spi = true
	}

	// MCP3008 single-ended read: start bit, SGL|channel, then two clock bytes.
	buf := []byte{0x01, byte(0x80 | channel<<4), 0x00}
	rpio.SpiExchange(buf)

	value := uint16(buf[1]&0x03)<<8 | uint16(buf[2])
	debug.GPIO("ReadADC", channel, value)
	return value, nil
}

func (r *PiDriver) Close() error {
	debug.Trace("Driver Close (real driver)")

	if r.spi {
		rpio.SpiEnd(rpio.Spi0)
	}

	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
