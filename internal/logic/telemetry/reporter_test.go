package telemetry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/cjeanneret/RoverGo/internal/hw/irsensor"
)

// fakePublisher captures published messages.
type fakePublisher struct {
	connected bool
	failNext  error
	topics    []string
	payloads  [][]byte
}

func (f *fakePublisher) Connected() bool { return f.connected }

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeDrive struct{ left, right int }

func (f *fakeDrive) Speeds() (int, int) { return f.left, f.right }

type fakeServo struct{ angle int }

func (f *fakeServo) Angle() int { return f.angle }

type fakeSensors struct{ st irsensor.State }

func (f *fakeSensors) Read() (irsensor.State, error) { return f.st, nil }

func newTestReporter(pub *fakePublisher) *Reporter {
	return New(pub,
		&fakeDrive{left: 30, right: -30},
		&fakeServo{angle: 120},
		&fakeSensors{st: irsensor.State{LeftBlocked: true}},
		func() bool { return true },
		func() int { return 72 },
		"rover_test", "bot/status", "bot/sensors")
}

func TestPublishStatus_Fields(t *testing.T) {
	pub := &fakePublisher{connected: true}
	r := newTestReporter(pub)

	r.PublishStatus()

	if len(pub.payloads) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.payloads))
	}
	if pub.topics[0] != "bot/status" {
		t.Errorf("topic = %s, want bot/status", pub.topics[0])
	}

	var st Status
	if err := json.Unmarshal(pub.payloads[0], &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.DeviceID != "rover_test" || st.Status != "online" {
		t.Errorf("identity fields wrong: %+v", st)
	}
	if st.LeftSpeed != 30 || st.RightSpeed != -30 {
		t.Errorf("speeds = (%d,%d), want (30,-30)", st.LeftSpeed, st.RightSpeed)
	}
	if st.ServoAngle != 120 {
		t.Errorf("servo angle = %d, want 120", st.ServoAngle)
	}
	if !st.AutonomousMode {
		t.Error("autonomous_mode should be true")
	}
	if !st.IRLeftBlocked || st.IRRightBlocked {
		t.Errorf("sensor flags = (%v,%v), want (true,false)", st.IRLeftBlocked, st.IRRightBlocked)
	}
	if st.Signal != 72 {
		t.Errorf("signal = %d, want 72", st.Signal)
	}
}

func TestPublishStatus_SkippedWhenDisconnected(t *testing.T) {
	pub := &fakePublisher{connected: false}
	r := newTestReporter(pub)

	r.PublishStatus()

	if len(pub.payloads) != 0 {
		t.Error("no publish expected while disconnected")
	}
}

func TestPublishStatus_FailureIsSkippedNotQueued(t *testing.T) {
	pub := &fakePublisher{connected: true, failNext: errors.New("broker away")}
	r := newTestReporter(pub)

	r.PublishStatus() // fails, skipped
	r.PublishStatus() // next tick publishes one message only

	if len(pub.payloads) != 1 {
		t.Errorf("expected 1 publish after a skipped failure, got %d", len(pub.payloads))
	}
}

func TestPublishAlert(t *testing.T) {
	pub := &fakePublisher{connected: true}
	r := newTestReporter(pub)

	r.PublishAlert("no_surface_left", "left")

	if len(pub.payloads) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.payloads))
	}
	if pub.topics[0] != "bot/sensors" {
		t.Errorf("topic = %s, want bot/sensors", pub.topics[0])
	}

	var a Alert
	if err := json.Unmarshal(pub.payloads[0], &a); err != nil {
		t.Fatalf("unmarshal alert: %v", err)
	}
	if a.AlertType != "no_surface_left" || a.Side != "left" {
		t.Errorf("alert = %+v", a)
	}
	if a.Timestamp < 0 {
		t.Errorf("timestamp = %d, want >= 0", a.Timestamp)
	}
}

func TestPublishAlert_SkippedWhenDisconnected(t *testing.T) {
	pub := &fakePublisher{connected: false}
	r := newTestReporter(pub)

	r.PublishAlert("no_forward_path", "both")

	if len(pub.payloads) != 0 {
		t.Error("no publish expected while disconnected")
	}
}
