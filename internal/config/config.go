package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MotorConfig holds the H-bridge wiring for one wheel.
type MotorConfig struct {
	In1Pin    int `yaml:"in1_pin"`    // direction line 1 (BCM)
	In2Pin    int `yaml:"in2_pin"`    // direction line 2 (BCM)
	EnablePin int `yaml:"enable_pin"` // PWM duty pin (BCM, hardware PWM)
}

// MotorsConfig holds both wheels plus shared PWM parameters.
type MotorsConfig struct {
	Left      MotorConfig `yaml:"left"`
	Right     MotorConfig `yaml:"right"`
	PWMFreqHz int         `yaml:"pwm_freq_hz"` // H-bridge PWM frequency
}

// ServoConfig describes the pan servo.
type ServoConfig struct {
	Pin          int `yaml:"pin"`           // BCM, hardware PWM
	InitialAngle int `yaml:"initial_angle"` // applied at startup
}

// SensorsConfig describes the two IR edge detectors.
type SensorsConfig struct {
	LeftADCChannel   int     `yaml:"left_adc_channel"`  // MCP3008 channel for the analog sensor
	RightPin         int     `yaml:"right_pin"`         // BCM digital input
	ThresholdVoltage float64 `yaml:"threshold_voltage"` // blocked above this voltage
	ReferenceVoltage float64 `yaml:"reference_voltage"` // ADC full-scale voltage
}

// ChannelConfig selects and parameterizes the command/status transport.
type ChannelConfig struct {
	Transport    string `yaml:"transport"`     // "mqtt" or "websocket"
	BrokerURL    string `yaml:"broker_url"`    // mqtt: tcp://host:port
	WebsocketURL string `yaml:"websocket_url"` // websocket: ws://host:port/path
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	ClientPrefix string `yaml:"client_prefix"` // client id prefix, uuid suffix appended
	CommandTopic string `yaml:"command_topic"`
	StatusTopic  string `yaml:"status_topic"`
	SensorTopic  string `yaml:"sensor_topic"`
}

// WifiConfig bounds the boot-time network join.
type WifiConfig struct {
	Interface    string `yaml:"interface"`
	MaxAttempts  int    `yaml:"max_attempts"`
	RetryDelayMs int    `yaml:"retry_delay_ms"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DeviceID         string `yaml:"device_id"`
	DebugLevel       int    `yaml:"debug_level"` // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO         bool   `yaml:"mock_gpio"`   // use mock driver (true=dev/test, false=real Raspberry Pi)
	StatusIntervalMs int    `yaml:"status_interval_ms"`
	AvoidIntervalMs  int    `yaml:"avoid_interval_ms"`
	LoopDelayMs      int    `yaml:"loop_delay_ms"`
	ProvisionAddr    string `yaml:"provision_addr"` // listen address of the setup server
}

// Config aggregates all application configuration.
type Config struct {
	Motors   MotorsConfig   `yaml:"motors"`
	Servo    ServoConfig    `yaml:"servo"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Channel  ChannelConfig  `yaml:"channel"`
	Wifi     WifiConfig     `yaml:"wifi"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	switch cfg.Channel.Transport {
	case "", "mqtt":
		cfg.Channel.Transport = "mqtt"
	case "websocket":
		if cfg.Channel.WebsocketURL == "" {
			return nil, fmt.Errorf("channel.websocket_url is required for the websocket transport")
		}
	default:
		return nil, fmt.Errorf("channel.transport must be \"mqtt\" or \"websocket\", got %q", cfg.Channel.Transport)
	}
	if cfg.Sensors.ThresholdVoltage < 0 {
		return nil, fmt.Errorf("sensors.threshold_voltage must be >= 0, got %.2f", cfg.Sensors.ThresholdVoltage)
	}

	// Fleet defaults, applied for any field left unset.
	if cfg.Motors.PWMFreqHz <= 0 {
		cfg.Motors.PWMFreqHz = 1000
	}
	if cfg.Servo.Pin == 0 {
		cfg.Servo.Pin = 18
	}
	if cfg.Servo.InitialAngle == 0 {
		cfg.Servo.InitialAngle = 90
	}
	if cfg.Sensors.ThresholdVoltage == 0 {
		cfg.Sensors.ThresholdVoltage = 0.45
	}
	if cfg.Sensors.ReferenceVoltage == 0 {
		cfg.Sensors.ReferenceVoltage = 3.3
	}
	if cfg.Channel.BrokerURL == "" {
		cfg.Channel.BrokerURL = "tcp://broker.emqx.io:1883"
	}
	if cfg.Channel.ClientPrefix == "" {
		cfg.Channel.ClientPrefix = "rovergo_"
	}
	if cfg.Channel.CommandTopic == "" {
		cfg.Channel.CommandTopic = "carbot/command"
	}
	if cfg.Channel.StatusTopic == "" {
		cfg.Channel.StatusTopic = "carbot/status"
	}
	if cfg.Channel.SensorTopic == "" {
		cfg.Channel.SensorTopic = "carbot/sensors"
	}
	if cfg.Wifi.Interface == "" {
		cfg.Wifi.Interface = "wlan0"
	}
	if cfg.Wifi.MaxAttempts <= 0 {
		cfg.Wifi.MaxAttempts = 5
	}
	if cfg.Wifi.RetryDelayMs <= 0 {
		cfg.Wifi.RetryDelayMs = 1000
	}
	if cfg.Defaults.DeviceID == "" {
		cfg.Defaults.DeviceID = "rovergo_carbot"
	}
	if cfg.Defaults.StatusIntervalMs <= 0 {
		cfg.Defaults.StatusIntervalMs = 2000
	}
	if cfg.Defaults.AvoidIntervalMs <= 0 {
		cfg.Defaults.AvoidIntervalMs = 100
	}
	if cfg.Defaults.LoopDelayMs <= 0 {
		cfg.Defaults.LoopDelayMs = 10
	}
	if cfg.Defaults.ProvisionAddr == "" {
		cfg.Defaults.ProvisionAddr = ":8080"
	}

	return &cfg, nil
}

// StatusInterval returns the cadence of the status reporter.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Defaults.StatusIntervalMs) * time.Millisecond
}

// AvoidInterval returns the cadence of the obstacle-avoidance engine.
func (c *Config) AvoidInterval() time.Duration {
	return time.Duration(c.Defaults.AvoidIntervalMs) * time.Millisecond
}

// LoopDelay returns the idle delay between control-loop passes.
func (c *Config) LoopDelay() time.Duration {
	return time.Duration(c.Defaults.LoopDelayMs) * time.Millisecond
}

// WifiRetryDelay returns the delay between boot-time join attempts.
func (c *Config) WifiRetryDelay() time.Duration {
	return time.Duration(c.Wifi.RetryDelayMs) * time.Millisecond
}

// ValidateConfigPath rejects paths outside the configs directory or without
// a .yaml extension. Keeps file access from user-supplied flags contained.
func ValidateConfigPath(path string) error {
	if !strings.HasSuffix(path, ".yaml") {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("config path must not contain '..': %s", path)
	}
	return nil
}
