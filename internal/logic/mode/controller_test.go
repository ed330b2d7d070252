package mode

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cjeanneret/RoverGo/internal/config"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
	"github.com/cjeanneret/RoverGo/internal/hw/irsensor"
	"github.com/cjeanneret/RoverGo/internal/hw/motor"
	"github.com/cjeanneret/RoverGo/internal/hw/servo"
	"github.com/cjeanneret/RoverGo/internal/logic/avoid"
	"github.com/cjeanneret/RoverGo/internal/net/wifi"
	"github.com/cjeanneret/RoverGo/internal/store"
)

// fakeWifi scripts the join outcome.
type fakeWifi struct {
	joinErr error
	joins   int
}

func (f *fakeWifi) Join(ssid, password string) error {
	f.joins++
	return f.joinErr
}

func (f *fakeWifi) Scan() ([]wifi.Network, error) { return nil, nil }

func (f *fakeWifi) Quality() int { return 80 }

// fakeChannel is an in-memory channel.
type fakeChannel struct {
	connectErr error
	connects   int
	connected  bool
	inbox      chan []byte
	topics     []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{inbox: make(chan []byte, 16)}
}

func (f *fakeChannel) Connect() error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeChannel) Connected() bool { return f.connected }

func (f *fakeChannel) Publish(topic string, payload []byte) error {
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeChannel) Incoming() <-chan []byte { return f.inbox }

func (f *fakeChannel) Close() error {
	f.connected = false
	return nil
}

// fakeProvisioner blocks until ctx cancellation, like the real setup server.
type fakeProvisioner struct {
	ran bool
}

func (f *fakeProvisioner) Run(ctx context.Context) error {
	f.ran = true
	<-ctx.Done()
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Wifi: config.WifiConfig{Interface: "wlan0", MaxAttempts: 3, RetryDelayMs: 1},
		Channel: config.ChannelConfig{
			StatusTopic: "bot/status",
			SensorTopic: "bot/sensors",
		},
		Defaults: config.DefaultsConfig{
			DeviceID:         "rover_test",
			StatusIntervalMs: 5,
			AvoidIntervalMs:  1,
			LoopDelayMs:      1,
		},
	}
}

func tinyTimings() avoid.Timings {
	return avoid.Timings{
		Cooldown:    time.Second,
		BrakeHold:   time.Microsecond,
		SettleHold:  time.Microsecond,
		RetreatHold: time.Microsecond,
		PivotHold:   time.Microsecond,
		ResumeHold:  time.Microsecond,
	}
}

type harness struct {
	ctrl  *Controller
	wifi  *fakeWifi
	ch    *fakeChannel
	prov  *fakeProvisioner
	drive *motor.Drive
	pan   *servo.Servo
}

func newHarness(t *testing.T, creds *store.Store, wm *fakeWifi, ch *fakeChannel) *harness {
	t.Helper()

	drv := &gpio.MockDriver{}
	drive, err := motor.NewDrive(drv, motor.Config{
		Left:  motor.WheelConfig{In1Pin: 14, In2Pin: 15, EnablePin: 12},
		Right: motor.WheelConfig{In1Pin: 23, In2Pin: 24, EnablePin: 13},
	})
	if err != nil {
		t.Fatalf("NewDrive: %v", err)
	}
	pan, err := servo.New(drv, servo.Config{Pin: 18, InitialAngle: 90})
	if err != nil {
		t.Fatalf("servo.New: %v", err)
	}
	sensors, err := irsensor.New(drv, irsensor.Config{RightPin: 4})
	if err != nil {
		t.Fatalf("irsensor.New: %v", err)
	}

	prov := &fakeProvisioner{}
	ctrl := NewController(testConfig(), creds, wm, ch, drive, pan, sensors, prov, tinyTimings())
	return &harness{ctrl: ctrl, wifi: wm, ch: ch, prov: prov, drive: drive, pan: pan}
}

func loadStore(t *testing.T, provisioned bool) *store.Store {
	t.Helper()
	s, err := store.Load(filepath.Join(t.TempDir(), "credentials.yaml"))
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	if provisioned {
		if err := s.SaveNetwork("homenet", "pw"); err != nil {
			t.Fatalf("SaveNetwork: %v", err)
		}
	}
	return s
}

func runBriefly(t *testing.T, h *harness, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := h.ctrl.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRun_NoCredentialsIsProvisioning(t *testing.T) {
	h := newHarness(t, loadStore(t, false), &fakeWifi{}, newFakeChannel())

	runBriefly(t, h, 20*time.Millisecond)

	if h.ctrl.Mode() != ModeProvisioning {
		t.Errorf("mode = %v, want provisioning", h.ctrl.Mode())
	}
	if !h.prov.ran {
		t.Error("provisioner should run")
	}
	if h.wifi.joins != 0 {
		t.Errorf("no join attempt expected without credentials, got %d", h.wifi.joins)
	}
}

func TestRun_JoinExhaustionIsTerminalProvisioning(t *testing.T) {
	wm := &fakeWifi{joinErr: errors.New("no ap")}
	h := newHarness(t, loadStore(t, true), wm, newFakeChannel())

	runBriefly(t, h, 50*time.Millisecond)

	if h.ctrl.Mode() != ModeProvisioning {
		t.Errorf("mode = %v, want provisioning", h.ctrl.Mode())
	}
	if wm.joins != 3 {
		t.Errorf("join attempts = %d, want 3 (bounded retries)", wm.joins)
	}
	if h.ch.connects != 0 {
		t.Error("channel must not be connected after join exhaustion")
	}
	if !h.prov.ran {
		t.Error("provisioner should run after exhaustion")
	}
}

func TestRun_OperationalServicesCommands(t *testing.T) {
	ch := newFakeChannel()
	ch.inbox <- []byte(`{"password":"1234","autonomous":true,"servo":140}`)
	h := newHarness(t, loadStore(t, true), &fakeWifi{}, ch)

	runBriefly(t, h, 50*time.Millisecond)

	if h.ctrl.Mode() != ModeOperational {
		t.Fatalf("mode = %v, want operational", h.ctrl.Mode())
	}
	if !h.ctrl.Autonomy() {
		t.Error("autonomy should be set by the command")
	}
	if h.pan.Angle() != 140 {
		t.Errorf("servo angle = %d, want 140", h.pan.Angle())
	}
	if h.prov.ran {
		t.Error("provisioner must not run in operational mode")
	}
}

func TestRun_OperationalPublishesStatus(t *testing.T) {
	ch := newFakeChannel()
	h := newHarness(t, loadStore(t, true), &fakeWifi{}, ch)

	runBriefly(t, h, 50*time.Millisecond)

	var statuses int
	for _, topic := range ch.topics {
		if topic == "bot/status" {
			statuses++
		}
	}
	if statuses == 0 {
		t.Error("expected at least one status publish")
	}
}

func TestRun_ChannelFailureToleratedAndRetried(t *testing.T) {
	ch := newFakeChannel()
	ch.connectErr = errors.New("broker away")
	h := newHarness(t, loadStore(t, true), &fakeWifi{}, ch)

	runBriefly(t, h, 50*time.Millisecond)

	if h.ctrl.Mode() != ModeOperational {
		t.Errorf("mode = %v, want operational despite channel failure", h.ctrl.Mode())
	}
	if ch.connects < 2 {
		t.Errorf("connects = %d, want repeated reconnect attempts", ch.connects)
	}
}

func TestRun_StopsMotorsOnShutdown(t *testing.T) {
	ch := newFakeChannel()
	ch.inbox <- []byte(`{"password":"1234","left":60,"right":60}`)
	h := newHarness(t, loadStore(t, true), &fakeWifi{}, ch)

	runBriefly(t, h, 30*time.Millisecond)

	if l, r := h.drive.Speeds(); l != 0 || r != 0 {
		t.Errorf("speeds after shutdown = (%d, %d), want stopped", l, r)
	}
	if ch.connected {
		t.Error("channel should be closed on shutdown")
	}
}
