package servo

import (
	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
)

// Mechanical range restriction of the pan mount: the camera arm fouls the
// chassis below 60 degrees.
const (
	MinAngle = 60
	MaxAngle = 180
)

// Hobby-servo timing: 50 Hz frame, 500-2500 microsecond pulse over the
// 0-180 degree span. With a cycle of 20000 ticks one tick is one microsecond.
const (
	pwmFreqHz          = 50
	pwmCycle    uint32 = 20000
	minPulseUs         = 500
	pulseSpanUs        = 2000
)

// Config holds the hardware configuration for the pan servo.
type Config struct {
	Pin          int // BCM, must be a hardware PWM pin
	InitialAngle int
}

// Servo positions the camera pan servo. Out-of-range angles are silently
// clamped; no operation reports an error after construction.
type Servo struct {
	gpio  gpio.Driver
	cfg   Config
	angle int
}

// New configures the PWM pin and moves the servo to its initial angle.
func New(g gpio.Driver, cfg Config) (*Servo, error) {
	if err := g.SetupPWM(cfg.Pin, pwmFreqHz, pwmCycle); err != nil {
		return nil, err
	}

	s := &Servo{gpio: g, cfg: cfg}
	if cfg.InitialAngle == 0 {
		cfg.InitialAngle = 90
	}
	s.Set(cfg.InitialAngle)
	return s, nil
}

// Set clamps the angle to [MinAngle, MaxAngle], stores it and applies it.
func (s *Servo) Set(angle int) {
	if angle < MinAngle {
		angle = MinAngle
	}
	if angle > MaxAngle {
		angle = MaxAngle
	}
	s.angle = angle

	debug.Verbose("Servo: angle=%d pulse=%dus", angle, pulseUs(angle))
	_ = s.gpio.WritePWM(s.cfg.Pin, uint32(pulseUs(angle)))
}

// Angle returns the current commanded angle.
func (s *Servo) Angle() int {
	return s.angle
}

// pulseUs converts an angle in [0, 180] to a pulse width in microseconds.
func pulseUs(angle int) int {
	return minPulseUs + angle*pulseSpanUs/180
}
