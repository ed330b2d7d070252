package avoid

import (
	"testing"
	"time"

	"github.com/cjeanneret/RoverGo/internal/hw/irsensor"
)

// fakeSensors returns a scripted sample.
type fakeSensors struct {
	st    irsensor.State
	err   error
	reads int
}

func (f *fakeSensors) Read() (irsensor.State, error) {
	f.reads++
	return f.st, f.err
}

// seqDrive records the full sequence of applied wheel commands.
type seqDrive struct {
	left, right int
	seq         [][2]int
}

func (d *seqDrive) SetSpeeds(left, right int) {
	d.left, d.right = left, right
	d.seq = append(d.seq, [2]int{left, right})
}

func (d *seqDrive) Stop() {
	d.SetSpeeds(0, 0)
}

func (d *seqDrive) Speeds() (int, int) {
	return d.left, d.right
}

// alertRecorder captures emitted alerts.
type alertRecorder struct {
	kinds []string
	sides []string
}

func (a *alertRecorder) record(kind, side string) {
	a.kinds = append(a.kinds, kind)
	a.sides = append(a.sides, side)
}

// tinyTimings keeps maneuvers in the microsecond range so tests are fast;
// the cooldown stays long because ticks carry explicit times.
func tinyTimings() Timings {
	return Timings{
		Cooldown:    1000 * time.Millisecond,
		BrakeHold:   time.Microsecond,
		SettleHold:  time.Microsecond,
		RetreatHold: time.Microsecond,
		PivotHold:   time.Microsecond,
		ResumeHold:  time.Microsecond,
	}
}

func assertSeq(t *testing.T, got, want [][2]int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("sequence length %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTick_ClearSensorsIdle(t *testing.T) {
	drive := &seqDrive{}
	e := New(&fakeSensors{}, drive, nil, tinyTimings())

	e.Tick(time.Now())

	if len(drive.seq) != 0 {
		t.Errorf("no maneuver expected with clear sensors, got %v", drive.seq)
	}
	if e.State() != Idle {
		t.Errorf("state = %v, want Idle", e.State())
	}
}

func TestTick_BothBlockedHighSpeed(t *testing.T) {
	sensors := &fakeSensors{st: irsensor.State{LeftBlocked: true, RightBlocked: true}}
	drive := &seqDrive{}
	alerts := &alertRecorder{}
	e := New(sensors, drive, alerts.record, tinyTimings())

	// avgSpeed 80 > 65: braking multiplier 1.5 on the negated speeds,
	// clamped. Then straight retreat, no turn.
	drive.SetSpeeds(80, 80)
	drive.seq = nil

	e.Tick(time.Now())

	assertSeq(t, drive.seq, [][2]int{
		{-100, -100}, // brake: -80*1.5 clamped
		{0, 0},       // stop after brake hold
		{-60, -60},   // straight retreat
		{0, 0},       // final stop
	})
	if len(alerts.kinds) != 1 || alerts.kinds[0] != AlertNoForwardPath || alerts.sides[0] != SideBoth {
		t.Errorf("alerts = %v/%v, want one %s/%s", alerts.kinds, alerts.sides, AlertNoForwardPath, SideBoth)
	}
}

func TestTick_LeftBlockedLowSpeed(t *testing.T) {
	sensors := &fakeSensors{st: irsensor.State{LeftBlocked: true}}
	drive := &seqDrive{}
	alerts := &alertRecorder{}
	e := New(sensors, drive, alerts.record, tinyTimings())

	// avgSpeed 40 <= 65: multiplier 1.0, then pivot away and resume.
	drive.SetSpeeds(40, 40)
	drive.seq = nil

	e.Tick(time.Now())

	assertSeq(t, drive.seq, [][2]int{
		{-40, -40}, // brake 1.0x
		{0, 0},
		{60, -40}, // pivot away from the left
		{0, 0},
		{60, 60}, // resume forward
		{0, 0},
	})
	if len(alerts.kinds) != 1 || alerts.kinds[0] != AlertNoSurfaceLeft || alerts.sides[0] != SideLeft {
		t.Errorf("alerts = %v/%v, want one %s/%s", alerts.kinds, alerts.sides, AlertNoSurfaceLeft, SideLeft)
	}
}

func TestTick_RightBlockedSymmetric(t *testing.T) {
	sensors := &fakeSensors{st: irsensor.State{RightBlocked: true}}
	drive := &seqDrive{}
	alerts := &alertRecorder{}
	e := New(sensors, drive, alerts.record, tinyTimings())

	drive.SetSpeeds(40, 40)
	drive.seq = nil

	e.Tick(time.Now())

	assertSeq(t, drive.seq, [][2]int{
		{-40, -40},
		{0, 0},
		{-40, 60}, // pivot away from the right
		{0, 0},
		{60, 60},
		{0, 0},
	})
	if len(alerts.kinds) != 1 || alerts.kinds[0] != AlertNoSurfaceRight || alerts.sides[0] != SideRight {
		t.Errorf("alerts = %v/%v, want one %s/%s", alerts.kinds, alerts.sides, AlertNoSurfaceRight, SideRight)
	}
}

func TestTick_CooldownBlocksRetrigger(t *testing.T) {
	sensors := &fakeSensors{st: irsensor.State{LeftBlocked: true, RightBlocked: true}}
	drive := &seqDrive{}
	alerts := &alertRecorder{}
	e := New(sensors, drive, alerts.record, tinyTimings())

	t0 := time.Now()
	e.Tick(t0)
	if len(alerts.kinds) != 1 {
		t.Fatalf("expected one maneuver, got %d", len(alerts.kinds))
	}

	// Within the cooldown window nothing runs, not even a sensor read.
	readsAfterFirst := sensors.reads
	for _, dt := range []time.Duration{100, 500, 999} {
		e.Tick(t0.Add(dt * time.Millisecond))
	}
	if sensors.reads != readsAfterFirst {
		t.Error("sensors must not be read during cooldown")
	}
	if len(alerts.kinds) != 1 {
		t.Errorf("maneuver retriggered during cooldown: %d alerts", len(alerts.kinds))
	}

	// Once the cooldown elapses the persistent condition triggers again.
	e.Tick(t0.Add(1000 * time.Millisecond))
	if len(alerts.kinds) != 2 {
		t.Errorf("expected second maneuver after cooldown, got %d alerts", len(alerts.kinds))
	}
}

func TestTick_CooldownUnderSensorFlapping(t *testing.T) {
	sensors := &fakeSensors{st: irsensor.State{LeftBlocked: true}}
	drive := &seqDrive{}
	alerts := &alertRecorder{}
	e := New(sensors, drive, alerts.record, tinyTimings())

	// Flap the sensor every 100ms tick over 2s of simulated time: maneuver
	// starts must never be less than the cooldown apart.
	t0 := time.Now()
	for i := 0; i < 20; i++ {
		sensors.st.LeftBlocked = i%2 == 0
		e.Tick(t0.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	if len(alerts.kinds) > 2 {
		t.Errorf("expected at most 2 maneuvers in 2s with a 1s cooldown, got %d", len(alerts.kinds))
	}
}

func TestTick_SensorErrorSkipsTick(t *testing.T) {
	sensors := &fakeSensors{
		st:  irsensor.State{LeftBlocked: true},
		err: errReadFailed,
	}
	drive := &seqDrive{}
	e := New(sensors, drive, nil, tinyTimings())

	e.Tick(time.Now())

	if len(drive.seq) != 0 {
		t.Error("a failed sensor read must not start a maneuver")
	}
}

var errReadFailed = &readError{}

type readError struct{}

func (*readError) Error() string { return "read failed" }
