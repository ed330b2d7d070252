// Package avoid implements the obstacle-avoidance maneuver state machine.
package avoid

import (
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/irsensor"
)

// State of the maneuver machine. Transitions are Idle → Braking →
// Maneuvering → Idle; once Braking starts the sequence always runs to
// completion.
type State int

const (
	Idle State = iota
	Braking
	Maneuvering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Braking:
		return "braking"
	case Maneuvering:
		return "maneuvering"
	default:
		return "unknown"
	}
}

// Alert kinds and sides, published once per triggered maneuver.
const (
	AlertNoForwardPath  = "no_forward_path"
	AlertNoSurfaceLeft  = "no_surface_left"
	AlertNoSurfaceRight = "no_surface_right"

	SideBoth  = "both"
	SideLeft  = "left"
	SideRight = "right"
)

// Braking constants: above the speed threshold the negated speeds get the
// high multiplier to counter momentum.
const (
	brakeSpeedThreshold = 65
	brakeMultHigh       = 1.5
	brakeMultLow        = 1.0
)

// Maneuver speeds.
const (
	retreatSpeed  = -60 // straight retreat when both sides blocked
	pivotFastSide = 60  // wheel on the clear side during a pivot
	pivotSlowSide = -40 // wheel on the blocked side during a pivot
	resumeSpeed   = 60  // forward resume after a pivot
)

// Timings holds every hold and the cooldown. Tests shrink them so maneuvers
// run in microseconds.
type Timings struct {
	Cooldown    time.Duration // minimum gap between maneuver starts
	BrakeHold   time.Duration // counter-drive duration
	SettleHold  time.Duration // mechanical settling after the stop
	RetreatHold time.Duration // straight retreat duration (both blocked)
	PivotHold   time.Duration // differential pivot duration
	ResumeHold  time.Duration // forward resume duration
}

// DefaultTimings returns the values tuned on the fleet chassis.
func DefaultTimings() Timings {
	return Timings{
		Cooldown:    1000 * time.Millisecond,
		BrakeHold:   100 * time.Millisecond,
		SettleHold:  70 * time.Millisecond,
		RetreatHold: 500 * time.Millisecond,
		PivotHold:   400 * time.Millisecond,
		ResumeHold:  400 * time.Millisecond,
	}
}

// Sensors is the sensing layer as the engine sees it.
type Sensors interface {
	Read() (irsensor.State, error)
}

// Drive is the actuation layer as the engine sees it.
type Drive interface {
	SetSpeeds(left, right int)
	Stop()
	Speeds() (left, right int)
}

// AlertFunc reports a triggered maneuver outward (sensor-alert channel).
type AlertFunc func(kind, side string)

// Engine consumes sensor state and drives scripted braking/turning
// sequences. The caller ticks it on a fixed cadence while autonomy is
// enabled; the engine itself enforces the cooldown between maneuvers.
type Engine struct {
	sensors Sensors
	drive   Drive
	alert   AlertFunc
	t       Timings

	state        State
	lastManeuver time.Time
}

// New creates an engine. alert may be nil when no alert channel exists.
func New(sensors Sensors, drive Drive, alert AlertFunc, t Timings) *Engine {
	if alert == nil {
		alert = func(string, string) {}
	}
	return &Engine{sensors: sensors, drive: drive, alert: alert, t: t}
}

// State returns the current maneuver state.
func (e *Engine) State() State {
	return e.state
}

// Tick runs one poll of the machine. The holds inside a maneuver are
// synchronous, so a triggering tick returns only after the full sequence;
// nothing can interrupt it.
func (e *Engine) Tick(now time.Time) {
	// Cooldown guard: no new maneuver until the gap since the start of the
	// last one has elapsed.
	if !e.lastManeuver.IsZero() && now.Sub(e.lastManeuver) < e.t.Cooldown {
		return
	}

	st, err := e.sensors.Read()
	if err != nil {
		debug.Error(err)
		return
	}
	if !st.LeftBlocked && !st.RightBlocked {
		return
	}

	// Arm the cooldown before any motion changes, so this maneuver cannot
	// re-trigger off its own corrective motion.
	e.lastManeuver = now

	e.state = Braking
	e.brake()

	e.state = Maneuvering
	switch {
	case st.LeftBlocked && st.RightBlocked:
		// Trapped: the only escape is straight retreat, no turn.
		debug.Maneuver(SideBoth)
		e.alert(AlertNoForwardPath, SideBoth)
		e.drive.SetSpeeds(retreatSpeed, retreatSpeed)
		time.Sleep(e.t.RetreatHold)
		e.drive.Stop()

	case st.LeftBlocked:
		debug.Maneuver(SideLeft)
		e.alert(AlertNoSurfaceLeft, SideLeft)
		e.pivotAndResume(pivotFastSide, pivotSlowSide)

	default: // right only
		debug.Maneuver(SideRight)
		e.alert(AlertNoSurfaceRight, SideRight)
		e.pivotAndResume(pivotSlowSide, pivotFastSide)
	}

	e.state = Idle
}

// brake counter-drives the wheels with a speed-proportional multiplier,
// stops, and holds for mechanical settling.
func (e *Engine) brake() {
	left, right := e.drive.Speeds()
	avg := (abs(left) + abs(right)) / 2

	mult := brakeMultLow
	if avg > brakeSpeedThreshold {
		mult = brakeMultHigh
	}

	e.drive.SetSpeeds(
		clamp(int(float64(-left)*mult), -100, 100),
		clamp(int(float64(-right)*mult), -100, 100),
	)
	time.Sleep(e.t.BrakeHold)
	e.drive.Stop()
	time.Sleep(e.t.SettleHold)
}

// pivotAndResume turns away from the blocked side, then resumes forward.
func (e *Engine) pivotAndResume(left, right int) {
	e.drive.SetSpeeds(left, right)
	time.Sleep(e.t.PivotHold)
	e.drive.Stop()

	e.drive.SetSpeeds(resumeSpeed, resumeSpeed)
	time.Sleep(e.t.ResumeHold)
	e.drive.Stop()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
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
