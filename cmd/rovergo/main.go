package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cjeanneret/RoverGo/internal/channel"
	"github.com/cjeanneret/RoverGo/internal/config"
	"github.com/cjeanneret/RoverGo/internal/debug"
	"github.com/cjeanneret/RoverGo/internal/hw/gpio"
	"github.com/cjeanneret/RoverGo/internal/hw/irsensor"
	"github.com/cjeanneret/RoverGo/internal/hw/motor"
	"github.com/cjeanneret/RoverGo/internal/hw/servo"
	"github.com/cjeanneret/RoverGo/internal/logic/avoid"
	"github.com/cjeanneret/RoverGo/internal/logic/mode"
	"github.com/cjeanneret/RoverGo/internal/net/wifi"
	"github.com/cjeanneret/RoverGo/internal/store"
	"github.com/cjeanneret/RoverGo/internal/web"
)

func main() {
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	storePath := flag.String("store", "/var/lib/rovergo/credentials.yaml", "path to the credentials store")
	forceProvision := flag.Bool("provision", false, "force provisioning mode regardless of stored credentials")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Summary("RoverGo starting")
	debug.Value("Config path", *cfgPath)
	debug.Value("Device id", cfg.Defaults.DeviceID)
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)

	debug.Step(1, "Initializing hardware driver")
	driver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init hardware driver failed: %v", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Printf("closing hardware driver failed: %v", err)
		}
	}()

	// Actuation is secured before anything network-facing runs: NewDrive
	// forces every direction line low and arms the PWM at zero duty.
	debug.Step(2, "Securing motor outputs")
	drive, err := motor.NewDrive(driver, motor.Config{
		Left: motor.WheelConfig{
			In1Pin:    cfg.Motors.Left.In1Pin,
			In2Pin:    cfg.Motors.Left.In2Pin,
			EnablePin: cfg.Motors.Left.EnablePin,
		},
		Right: motor.WheelConfig{
			In1Pin:    cfg.Motors.Right.In1Pin,
			In2Pin:    cfg.Motors.Right.In2Pin,
			EnablePin: cfg.Motors.Right.EnablePin,
		},
		PWMFreqHz: cfg.Motors.PWMFreqHz,
	})
	if err != nil {
		log.Fatalf("init motors failed: %v", err)
	}
	defer drive.Stop()

	debug.Step(3, "Initializing servo")
	pan, err := servo.New(driver, servo.Config{
		Pin:          cfg.Servo.Pin,
		InitialAngle: cfg.Servo.InitialAngle,
	})
	if err != nil {
		log.Fatalf("init servo failed: %v", err)
	}

	debug.Step(4, "Initializing IR sensors")
	sensors, err := irsensor.New(driver, irsensor.Config{
		LeftADCChannel:   cfg.Sensors.LeftADCChannel,
		RightPin:         cfg.Sensors.RightPin,
		ThresholdVoltage: cfg.Sensors.ThresholdVoltage,
		ReferenceVoltage: cfg.Sensors.ReferenceVoltage,
	})
	if err != nil {
		log.Fatalf("init IR sensors failed: %v", err)
	}

	debug.Step(5, "Loading credentials")
	creds, err := store.Load(*storePath)
	if err != nil {
		log.Fatalf("load credentials failed: %v", err)
	}
	if *forceProvision {
		if err := creds.Clear(); err != nil {
			log.Fatalf("clear credentials failed: %v", err)
		}
		debug.Info("Provisioning forced, credentials cleared")
	}

	wm := wifi.NewNmcli(cfg.Wifi.Interface)

	debug.Step(6, "Setting up command channel")
	ch, err := channel.New(channel.Config{
		Transport:    cfg.Channel.Transport,
		BrokerURL:    cfg.Channel.BrokerURL,
		WebsocketURL: cfg.Channel.WebsocketURL,
		Username:     cfg.Channel.Username,
		Password:     cfg.Channel.Password,
		ClientPrefix: cfg.Channel.ClientPrefix,
		CommandTopic: cfg.Channel.CommandTopic,
		StatusTopic:  cfg.Channel.StatusTopic,
		SensorTopic:  cfg.Channel.SensorTopic,
	})
	if err != nil {
		log.Fatalf("init channel failed: %v", err)
	}

	setup := web.NewServer(cfg.Defaults.ProvisionAddr, creds, wm)

	ctrl := mode.NewController(cfg, creds, wm, ch, drive, pan, sensors, setup, avoid.DefaultTimings())

	if err := ctrl.Run(ctx); err != nil {
		log.Fatalf("controller: %v", err)
	}
	debug.Summary("RoverGo stopped")
}
