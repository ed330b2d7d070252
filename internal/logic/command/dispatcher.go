// Package command parses and applies inbound control messages.
package command

import (
	"encoding/json"

	"github.com/cjeanneret/RoverGo/internal/debug"
)

// defaultSpeed is the magnitude used by discrete direction commands when the
// message carries no speed field.
const defaultSpeed = 50

// Drive is the part of the actuation layer the dispatcher commands.
type Drive interface {
	SetSpeeds(left, right int)
	Stop()
}

// Servo positions the pan servo.
type Servo interface {
	Set(angle int)
}

// message is the wire shape of a command. Optional fields are pointers so
// absence is distinguishable from the zero value.
type message struct {
	Password   string `json:"password"`
	Autonomous *bool  `json:"autonomous"`
	Servo      *int   `json:"servo"`
	Left       *int   `json:"left"`
	Right      *int   `json:"right"`
	Cmd        string `json:"cmd"`
	Speed      *int   `json:"speed"`
}

// Dispatcher authenticates and applies command messages. Malformed or
// unauthorized payloads are dropped silently with no side effects; at the
// channel boundary both are simply non-events.
type Dispatcher struct {
	secret      func() string
	drive       Drive
	servo       Servo
	setAutonomy func(bool)
}

// New creates a dispatcher. secret is read per message so a re-provisioned
// control secret takes effect without restarting the dispatcher.
func New(secret func() string, drive Drive, servo Servo, setAutonomy func(bool)) *Dispatcher {
	return &Dispatcher{
		secret:      secret,
		drive:       drive,
		servo:       servo,
		setAutonomy: setAutonomy,
	}
}

// Handle processes one raw payload. Authorization is checked once per
// message; authorized fields are then applied in a fixed order. Direct wheel
// speeds and the discrete direction command are alternatives, never combined.
func (d *Dispatcher) Handle(payload []byte) {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		debug.Verbose("Dropping unparseable command")
		return
	}

	if msg.Password != d.secret() {
		debug.Verbose("Dropping unauthorized command")
		return
	}

	// 1. Autonomy toggle
	if msg.Autonomous != nil {
		debug.Live("Autonomy set to %v", *msg.Autonomous)
		d.setAutonomy(*msg.Autonomous)
	}

	// 2. Servo angle
	if msg.Servo != nil {
		d.servo.Set(*msg.Servo)
	}

	// 3. Direct wheel control, exclusive of the discrete command below
	if msg.Left != nil && msg.Right != nil {
		d.drive.SetSpeeds(*msg.Left, *msg.Right)
		return
	}

	// 4. Discrete direction command
	if msg.Cmd == "" {
		return
	}
	speed := defaultSpeed
	if msg.Speed != nil {
		speed = *msg.Speed
	}

	switch msg.Cmd {
	case "F":
		d.drive.SetSpeeds(speed, speed)
	case "B":
		d.drive.SetSpeeds(-speed, -speed)
	case "L":
		d.drive.SetSpeeds(-speed, speed)
	case "R":
		d.drive.SetSpeeds(speed, -speed)
	case "S":
		d.drive.Stop()
	default:
		// Unrecognized direction is a no-op.
		debug.Verbose("Ignoring unknown command %q", msg.Cmd)
	}
}
