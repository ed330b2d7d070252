// Package mode holds the top-level operating-mode state machine and the
// cooperative control loop that services the channel, the avoidance engine
// and the status reporter.
package mode

import (
	"context"
	"time"

	"github.com/cjeanneret/RoverGo/internal/channel"
	"github.com/cjeanneret/RoverGo/internal/config"
	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/irsensor"
	"github.com/cjeanneret/RoverGo/internal/logic/avoid"
	"github.com/cjeanneret/RoverGo/internal/logic/command"
	"github.com/cjeanneret/RoverGo/internal/logic/telemetry"
	"github.com/cjeanneret/RoverGo/internal/net/wifi"
	"github.com/cjeanneret/RoverGo/internal/store"
)

// OperatingMode is the top-level state gating which subsystems run.
type OperatingMode int

const (
	ModeBoot OperatingMode = iota
	// ModeProvisioning runs only the local setup server; all bot behavior
	// is suspended. Terminal for the run once entered.
	ModeProvisioning
	// ModeOperational runs the command channel, the avoidance engine and
	// the status reporter.
	ModeOperational
)

func (m OperatingMode) String() string {
	switch m {
	case ModeBoot:
		return "boot"
	case ModeProvisioning:
		return "provisioning"
	case ModeOperational:
		return "operational"
	default:
		return "unknown"
	}
}

// Provisioner is the local configuration surface activated in provisioning
// mode (the web setup server).
type Provisioner interface {
	Run(ctx context.Context) error
}

// Drive is the slice of the actuation layer the controller needs directly.
type Drive interface {
	SetSpeeds(left, right int)
	Stop()
	Speeds() (left, right int)
}

// Servo is the slice of the servo the controller wires through.
type Servo interface {
	Set(angle int)
	Angle() int
}

// Sensors is the sensing layer.
type Sensors interface {
	Read() (irsensor.State, error)
}

// Controller owns all process-lifetime mutable state (mode, autonomy flag,
// wheel state via the drive) and mutates it only from the control-loop
// goroutine, so no locking is needed.
type Controller struct {
	cfg   *config.Config
	creds *store.Store
	wifi  wifi.Manager
	ch    channel.Channel
	drive Drive
	prov  Provisioner

	dispatcher *command.Dispatcher
	engine     *avoid.Engine
	reporter   *telemetry.Reporter

	mode     OperatingMode
	autonomy bool
}

// NewController wires the dispatcher, avoidance engine and reporter around
// the given hardware and channel. timings lets tests shrink maneuver holds;
// pass avoid.DefaultTimings() in production.
func NewController(cfg *config.Config, creds *store.Store, wm wifi.Manager,
	ch channel.Channel, drive Drive, srv Servo, sensors Sensors,
	prov Provisioner, timings avoid.Timings) *Controller {

	c := &Controller{
		cfg:   cfg,
		creds: creds,
		wifi:  wm,
		ch:    ch,
		drive: drive,
		prov:  prov,
		mode:  ModeBoot,
	}

	c.reporter = telemetry.New(ch, drive, srv, sensors,
		c.Autonomy, wm.Quality,
		cfg.Defaults.DeviceID, cfg.Channel.StatusTopic, cfg.Channel.SensorTopic)

	c.dispatcher = command.New(creds.ControlSecret, drive, srv, c.setAutonomy)

	c.engine = avoid.New(sensors, drive, c.reporter.PublishAlert, timings)

	return c
}

// Mode returns the current operating mode.
func (c *Controller) Mode() OperatingMode {
	return c.mode
}

// Autonomy returns the autonomy flag.
func (c *Controller) Autonomy() bool {
	return c.autonomy
}

func (c *Controller) setAutonomy(on bool) {
	c.autonomy = on
}

// Run decides the operating mode once, then services it until ctx is
// cancelled. The provisioning decision is one-way: there is no return to
// operational without a restart.
func (c *Controller) Run(ctx context.Context) error {
	next := c.decideMode(ctx)
	debug.Mode(c.mode.String(), next.String())
	c.mode = next

	if c.mode == ModeProvisioning {
		c.drive.Stop()
		return c.prov.Run(ctx)
	}
	return c.loop(ctx)
}

// decideMode implements the boot transition: absent credentials go straight
// to provisioning with no connection attempt; otherwise the network join is
// tried a bounded number of times and exhaustion is terminal.
func (c *Controller) decideMode(ctx context.Context) OperatingMode {
	if c.creds.SSID() == "" {
		debug.Info("No stored network credentials")
		return ModeProvisioning
	}

	for attempt := 1; attempt <= c.cfg.Wifi.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ModeProvisioning
		}
		err := c.wifi.Join(c.creds.SSID(), c.creds.Password())
		if err == nil {
			// A channel that will not come up is tolerated; the loop
			// keeps retrying it at its own cadence.
			if cerr := c.ch.Connect(); cerr != nil {
				debug.Info("Channel connect failed, will retry in loop: %v", cerr)
			}
			return ModeOperational
		}
		debug.Info("Wifi join attempt %d/%d failed: %v", attempt, c.cfg.Wifi.MaxAttempts, err)
		if attempt < c.cfg.Wifi.MaxAttempts {
			time.Sleep(c.cfg.WifiRetryDelay())
		}
	}

	debug.Info("Wifi retries exhausted, falling back to provisioning")
	return ModeProvisioning
}

// loop is the single-threaded cooperative scheduler: one pass services
// channel I/O, then the avoidance engine on its cadence, then the status
// reporter on its cadence, with a small idle delay between passes.
func (c *Controller) loop(ctx context.Context) error {
	lastAvoid := time.Now()
	lastStatus := time.Now()

	for {
		select {
		case <-ctx.Done():
			c.drive.Stop()
			if err := c.ch.Close(); err != nil {
				debug.Error(err)
			}
			return nil
		default:
		}

		if !c.ch.Connected() {
			if err := c.ch.Connect(); err != nil {
				debug.Verbose("Channel reconnect failed: %v", err)
			}
		}

	drain:
		for {
			select {
			case payload := <-c.ch.Incoming():
				c.dispatcher.Handle(payload)
			default:
				break drain
			}
		}

		now := time.Now()
		if c.autonomy && now.Sub(lastAvoid) >= c.cfg.AvoidInterval() {
			c.engine.Tick(now)
			lastAvoid = now
		}
		if now.Sub(lastStatus) >= c.cfg.StatusInterval() {
			c.reporter.PublishStatus()
			lastStatus = now
		}

		time.Sleep(c.cfg.LoopDelay())
	}
}
