package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"omniscroll/internal/gesture"
)

// Config is the top-level YAML configuration for the omniscroll daemon.
//
// Defaults and validation live here so the rest of the daemon can assume a
// well-formed config. Flags only override individual fields.
type Config struct {
	// Classifier tuning (fixed for the life of the daemon)
	Classifier ClassifierConfig `yaml:"classifier"`

	// Linux evdev sample source
	Input InputConfig `yaml:"input"`

	// Serial sample source
	Serial SerialConfig `yaml:"serial"`

	// IPC (sample injection, omniscroll-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// HTTP server (websocket event stream, /state, /healthz)
	HTTP HTTPConfig `yaml:"http"`

	// MQTT bridge (event sink and optional sample source)
	MQTT MQTTConfig `yaml:"mqtt"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ClassifierConfig mirrors gesture.Config in YAML form.
// Biases are fixed point: 10 means x1.0.
type ClassifierConfig struct {
	Threshold         int `yaml:"threshold"`
	VerticalBias      int `yaml:"vertical_bias"`
	HorizontalBias    int `yaml:"horizontal_bias"`
	Smoothing         int `yaml:"smoothing"`
	DiagonalThreshold int `yaml:"diagonal_threshold"`
}

type InputConfig struct {
	Devices []string `yaml:"devices,omitempty"`

	// ActivationKey is an EV_KEY code (e.g. 274 for BTN_MIDDLE). While set, samples
	// are classified only while the key is held; releasing it resets the classifier.
	// Zero means the gesture is always active.
	ActivationKey int `yaml:"activation_key"`

	// ReleaseTimeoutMS is the idle time after which an always-active gesture is
	// treated as released. Zero disables the implicit release.
	ReleaseTimeoutMS int `yaml:"release_timeout_ms"`

	// Epoll selects the single-goroutine epoll reader for all devices.
	Epoll bool `yaml:"epoll"`
}

type SerialConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port int `yaml:"port"` // 0 disables the HTTP server
}

type MQTTConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id,omitempty"` // derived from the instance id when empty
	Topic        string `yaml:"topic"`
	SamplesTopic string `yaml:"samples_topic,omitempty"`
	QoS          int    `yaml:"qos"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format,omitempty"` // "text" (default) or "json"
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	g := gesture.DefaultConfig()
	return Config{
		Classifier: ClassifierConfig{
			Threshold:         g.Threshold,
			VerticalBias:      g.VerticalBias,
			HorizontalBias:    g.HorizontalBias,
			Smoothing:         g.Smoothing,
			DiagonalThreshold: g.DiagonalThreshold,
		},
		Input: InputConfig{
			ReleaseTimeoutMS: defaultReleaseTimeoutMS,
		},
		Serial: SerialConfig{
			BaudRate: defaultSerialBaudRate,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocketPath,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		MQTT: MQTTConfig{
			Broker: "tcp://localhost:1883",
			Topic:  defaultMQTTTopic,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil // empty file
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries flag values that were explicitly set on the command line.
// Each non-nil pointer is applied, even if it holds a zero value.
type FlagOverrides struct {
	InputDevice      *string
	ActivationKey    *int
	ReleaseTimeoutMS *int

	Threshold         *int
	VerticalBias      *int
	HorizontalBias    *int
	Smoothing         *int
	DiagonalThreshold *int

	SerialPort     *string
	SerialBaudRate *int

	IPCSocketPath *string
	HTTPPort      *int

	MQTTBroker *string
	MQTTTopic  *string

	LogLevel  *string
	LogFormat *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.ActivationKey != nil {
		cfg.Input.ActivationKey = *o.ActivationKey
	}
	if o.ReleaseTimeoutMS != nil {
		cfg.Input.ReleaseTimeoutMS = *o.ReleaseTimeoutMS
	}

	if o.Threshold != nil {
		cfg.Classifier.Threshold = *o.Threshold
	}
	if o.VerticalBias != nil {
		cfg.Classifier.VerticalBias = *o.VerticalBias
	}
	if o.HorizontalBias != nil {
		cfg.Classifier.HorizontalBias = *o.HorizontalBias
	}
	if o.Smoothing != nil {
		cfg.Classifier.Smoothing = *o.Smoothing
	}
	if o.DiagonalThreshold != nil {
		cfg.Classifier.DiagonalThreshold = *o.DiagonalThreshold
	}

	// Naming a serial port implies the serial source.
	if o.SerialPort != nil {
		cfg.Serial.Port = *o.SerialPort
		cfg.Serial.Enabled = *o.SerialPort != ""
	}
	if o.SerialBaudRate != nil {
		cfg.Serial.BaudRate = *o.SerialBaudRate
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}

	if o.MQTTBroker != nil {
		cfg.MQTT.Broker = *o.MQTTBroker
		cfg.MQTT.Enabled = *o.MQTTBroker != ""
	}
	if o.MQTTTopic != nil {
		cfg.MQTT.Topic = *o.MQTTTopic
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if err := c.ToClassifierConfig().Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if c.Input.ActivationKey < 0 || c.Input.ActivationKey > 0x2ff {
		return errors.New("input.activation_key must be between 0 and 767 (KEY_MAX)")
	}
	if c.Input.ReleaseTimeoutMS < 0 {
		return errors.New("input.release_timeout_ms must be >= 0")
	}

	if c.Serial.Enabled {
		if c.Serial.Port == "" {
			return errors.New("serial.enabled is true but serial.port is empty")
		}
		if c.Serial.BaudRate <= 0 {
			return errors.New("serial.baud_rate must be > 0")
		}
	}

	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.enabled is true but mqtt.broker is empty")
		}
		if c.MQTT.Topic == "" {
			return errors.New("mqtt.topic must not be empty")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return errors.New("mqtt.qos must be 0, 1 or 2")
		}
	}

	if len(c.Input.Devices) == 0 && !c.Serial.Enabled && c.IPC.SocketPath == "" &&
		!(c.MQTT.Enabled && c.MQTT.SamplesTopic != "") {
		return errors.New("no sample source configured (input.devices, serial, ipc.socket_path or mqtt.samples_topic)")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be %q or %q", "text", "json")
	}

	return nil
}

// ToClassifierConfig converts the YAML classifier section into the core config.
func (c *Config) ToClassifierConfig() gesture.Config {
	return gesture.Config{
		Threshold:         c.Classifier.Threshold,
		VerticalBias:      c.Classifier.VerticalBias,
		HorizontalBias:    c.Classifier.HorizontalBias,
		Smoothing:         c.Classifier.Smoothing,
		DiagonalThreshold: c.Classifier.DiagonalThreshold,
	}
}

// ToLifecycleConfig extracts the reducer's gesture lifecycle policy.
func (c *Config) ToLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		ActivationKey:  c.Input.ActivationKey != 0,
		ReleaseTimeout: time.Duration(c.Input.ReleaseTimeoutMS) * time.Millisecond,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
