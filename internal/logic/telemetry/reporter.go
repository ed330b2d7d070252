// Package telemetry serializes rover state outward on the status and
// sensor-alert channels.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/irsensor"
)

// Status is the periodic outbound report.
type Status struct {
	DeviceID       string `json:"device_id"`
	Status         string `json:"status"`
	LeftSpeed      int    `json:"left_speed"`
	RightSpeed     int    `json:"right_speed"`
	ServoAngle     int    `json:"servo_angle"`
	AutonomousMode bool   `json:"autonomous_mode"`
	IRLeftBlocked  bool   `json:"ir_left_blocked"`
	IRRightBlocked bool   `json:"ir_right_blocked"`
	Signal         int    `json:"signal"` // wifi link quality percent
	Uptime         int64  `json:"uptime"` // seconds since boot
}

// Alert is emitted once per triggered avoidance maneuver.
type Alert struct {
	AlertType string `json:"alert_type"`
	Side      string `json:"side"`
	Timestamp int64  `json:"timestamp"` // milliseconds since boot
}

// Publisher is the outbound side of the message channel.
type Publisher interface {
	Connected() bool
	Publish(topic string, payload []byte) error
}

// Drive exposes the current commanded wheel speeds.
type Drive interface {
	Speeds() (left, right int)
}

// Servo exposes the current commanded angle.
type Servo interface {
	Angle() int
}

// Sensors takes a fresh sample for the report.
type Sensors interface {
	Read() (irsensor.State, error)
}

// Reporter publishes one status message per cadence tick and one alert per
// maneuver trigger. Publish failures are skipped, never queued or retried;
// the next tick simply tries again.
type Reporter struct {
	pub         Publisher
	drive       Drive
	servo       Servo
	sensors     Sensors
	autonomy    func() bool
	quality     func() int
	deviceID    string
	statusTopic string
	sensorTopic string
	started     time.Time
}

// New creates a reporter; started anchors the uptime and alert timestamps.
func New(pub Publisher, drive Drive, servo Servo, sensors Sensors,
	autonomy func() bool, quality func() int,
	deviceID, statusTopic, sensorTopic string) *Reporter {
	return &Reporter{
		pub:         pub,
		drive:       drive,
		servo:       servo,
		sensors:     sensors,
		autonomy:    autonomy,
		quality:     quality,
		deviceID:    deviceID,
		statusTopic: statusTopic,
		sensorTopic: sensorTopic,
		started:     time.Now(),
	}
}

// PublishStatus samples actuation, sensing and connectivity state and
// publishes one status message. A no-op while the channel is down.
func (r *Reporter) PublishStatus() {
	if !r.pub.Connected() {
		return
	}

	left, right := r.drive.Speeds()
	st, err := r.sensors.Read()
	if err != nil {
		debug.Error(err)
	}

	msg := Status{
		DeviceID:       r.deviceID,
		Status:         "online",
		LeftSpeed:      left,
		RightSpeed:     right,
		ServoAngle:     r.servo.Angle(),
		AutonomousMode: r.autonomy(),
		IRLeftBlocked:  st.LeftBlocked,
		IRRightBlocked: st.RightBlocked,
		Signal:         r.quality(),
		Uptime:         int64(time.Since(r.started).Seconds()),
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := r.pub.Publish(r.statusTopic, raw); err != nil {
		debug.Verbose("Status publish skipped: %v", err)
	}
}

// PublishAlert emits one sensor alert. Like status, a failed publish is
// simply dropped.
func (r *Reporter) PublishAlert(kind, side string) {
	if !r.pub.Connected() {
		return
	}

	raw, err := json.Marshal(Alert{
		AlertType: kind,
		Side:      side,
		Timestamp: time.Since(r.started).Milliseconds(),
	})
	if err != nil {
		return
	}
	if err := r.pub.Publish(r.sensorTopic, raw); err != nil {
		debug.Verbose("Alert publish skipped: %v", err)
	}
}
