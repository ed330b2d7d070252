package motor

import (
	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
)

// Duty remapping constants. The H-bridge produces no motion below the
// minimum duty, so nonzero speeds are remapped onto [MinDuty, MaxDuty].
const (
	MinDuty = 85
	MaxDuty = 255

	// pwmCycle is the duty resolution (8-bit, duty values 0-255).
	pwmCycle uint32 = 256
)

// WheelConfig holds the H-bridge wiring for one wheel.
// Forward drives In1 low and In2 high; list the pins in whichever order
// matches the physical wiring so that "forward" is forward.
type WheelConfig struct {
	In1Pin    int
	In2Pin    int
	EnablePin int // hardware PWM pin carrying the duty cycle
}

// Config holds the hardware configuration for the two-wheel drive.
type Config struct {
	Left      WheelConfig
	Right     WheelConfig
	PWMFreqHz int // H-bridge PWM frequency; 0 defaults to 1 kHz
}

// Drive controls the two DC motors through an H-bridge. It owns the current
// commanded wheel speeds; out-of-range inputs are silently clamped, never
// rejected, and no operation reports an error.
type Drive struct {
	gpio  gpio.Driver
	cfg   Config
	left  int // -100..100, sign is direction
	right int
}

// NewDrive creates the drive with all lines forced to the stop state.
// The error covers hardware setup only; once constructed, actuation calls
// never fail.
func NewDrive(g gpio.Driver, cfg Config) (*Drive, error) {
	if cfg.PWMFreqHz <= 0 {
		cfg.PWMFreqHz = 1000
	}

	d := &Drive{gpio: g, cfg: cfg}

	for _, w := range []WheelConfig{cfg.Left, cfg.Right} {
		if err := g.SetupPin(w.In1Pin, gpio.Output); err != nil {
			return nil, err
		}
		if err := g.SetupPin(w.In2Pin, gpio.Output); err != nil {
			return nil, err
		}
		if err := g.WritePin(w.In1Pin, gpio.Low); err != nil {
			return nil, err
		}
		if err := g.WritePin(w.In2Pin, gpio.Low); err != nil {
			return nil, err
		}
		if err := g.SetupPWM(w.EnablePin, cfg.PWMFreqHz, pwmCycle); err != nil {
			return nil, err
		}
		if err := g.WritePWM(w.EnablePin, 0); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// SetSpeeds clamps both inputs to [-100, 100], stores them as the current
// commanded state and applies each wheel independently.
func (d *Drive) SetSpeeds(left, right int) {
	d.left = clamp(left, -100, 100)
	d.right = clamp(right, -100, 100)

	debug.Motor(d.left, d.right)

	d.applyWheel(d.cfg.Left, d.left)
	d.applyWheel(d.cfg.Right, d.right)
}

// Stop is SetSpeeds(0, 0).
func (d *Drive) Stop() {
	d.SetSpeeds(0, 0)
}

// Speeds returns the current commanded wheel speeds.
func (d *Drive) Speeds() (left, right int) {
	return d.left, d.right
}

// applyWheel drives one wheel: direction lines from the sign, duty from the
// magnitude. Zero means both lines low with zero duty (full stop), not the
// floor duty.
func (d *Drive) applyWheel(w WheelConfig, speed int) {
	switch {
	case speed > 0:
		_ = d.gpio.WritePin(w.In1Pin, gpio.Low)
		_ = d.gpio.WritePin(w.In2Pin, gpio.High)
		_ = d.gpio.WritePWM(w.EnablePin, DutyFor(speed))
	case speed < 0:
		_ = d.gpio.WritePin(w.In1Pin, gpio.High)
		_ = d.gpio.WritePin(w.In2Pin, gpio.Low)
		_ = d.gpio.WritePWM(w.EnablePin, DutyFor(-speed))
	default:
		_ = d.gpio.WritePin(w.In1Pin, gpio.Low)
		_ = d.gpio.WritePin(w.In2Pin, gpio.Low)
		_ = d.gpio.WritePWM(w.EnablePin, 0)
	}
}

// DutyFor remaps a speed magnitude in [1, 100] linearly onto
// [MinDuty, MaxDuty]. Zero yields zero duty.
func DutyFor(magnitude int) uint32 {
	if magnitude <= 0 {
		return 0
	}
	if magnitude > 100 {
		magnitude = 100
	}
	return uint32(MinDuty + (magnitude-1)*(MaxDuty-MinDuty)/99)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
