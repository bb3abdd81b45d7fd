package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"i4.energy/across/raingauge/rg15"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the HTTP API listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the gauge's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the serial rate the gauge is configured for
	BaudRate int `yaml:"baud_rate"`
	// Unit is "metric" or "imperial"
	Unit string `yaml:"unit"`
	// HighResolution selects the high resolution bucket setting
	HighResolution bool `yaml:"high_resolution"`
	// PollInterval is the time between two polls
	PollInterval time.Duration `yaml:"poll_interval"`

	MaxAttempts     int           `yaml:"max_attempts"`
	CleanTimeout    time.Duration `yaml:"clean_timeout"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	SkipFirstClean  bool          `yaml:"skip_first_clean"`

	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// LogFormat is "json" or "text"
	LogFormat string `yaml:"log_format"`

	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id"`
	MQTTUsername string `yaml:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password"`

	MDNSEnable bool   `yaml:"mdns_enable"`
	MDNSName   string `yaml:"mdns_name"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = rg15.DefaultBaudRate
		c.Unit = "metric"
		c.HighResolution = true
		c.PollInterval = time.Minute
		c.MaxAttempts = 5
		c.CleanTimeout = 500 * time.Millisecond
		c.ResponseTimeout = time.Second
		c.LogLevel = "info"
		c.LogFormat = "json"
		c.MQTTTopic = "rg15/measurement"
		return nil
	}
}

// WithFile loads a YAML configuration file. An empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		var errs []error
		str := func(key string, dst *string) {
			if v := os.Getenv(key); v != "" {
				*dst = v
			}
		}
		integer := func(key string, dst *int) {
			if v := os.Getenv(key); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", key, err))
					return
				}
				*dst = n
			}
		}
		boolean := func(key string, dst *bool) {
			if v := os.Getenv(key); v != "" {
				b, err := strconv.ParseBool(v)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", key, err))
					return
				}
				*dst = b
			}
		}
		duration := func(key string, dst *time.Duration) {
			if v := os.Getenv(key); v != "" {
				d, err := time.ParseDuration(v)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", key, err))
					return
				}
				*dst = d
			}
		}

		str("BIND_ADDRESS", &c.BindAddress)
		str("SERIAL_PORT", &c.SerialPort)
		integer("BAUD_RATE", &c.BaudRate)
		str("UNIT", &c.Unit)
		boolean("HIGH_RESOLUTION", &c.HighResolution)
		duration("POLL_INTERVAL", &c.PollInterval)
		integer("MAX_ATTEMPTS", &c.MaxAttempts)
		duration("CLEAN_TIMEOUT", &c.CleanTimeout)
		duration("RESPONSE_TIMEOUT", &c.ResponseTimeout)
		boolean("SKIP_FIRST_CLEAN", &c.SkipFirstClean)
		str("LOG_LEVEL", &c.LogLevel)
		str("LOG_FORMAT", &c.LogFormat)
		str("MQTT_BROKER", &c.MQTTBroker)
		str("MQTT_TOPIC", &c.MQTTTopic)
		str("MQTT_CLIENT_ID", &c.MQTTClientID)
		str("MQTT_USERNAME", &c.MQTTUsername)
		str("MQTT_PASSWORD", &c.MQTTPassword)
		boolean("MDNS_ENABLE", &c.MDNSEnable)
		str("MDNS_NAME", &c.MDNSName)

		if len(errs) > 0 {
			return fmt.Errorf("environment override: %w", errors.Join(errs...))
		}
		return nil
	}
}

// WithFlags loads configuration from command-line flags that were set
// explicitly.
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var errs []error
		fSet.Visit(func(f *flag.Flag) {
			v := f.Value.String()
			var err error
			switch f.Name {
			case "bind-address":
				c.BindAddress = v
			case "serial-port":
				c.SerialPort = v
			case "baud-rate":
				c.BaudRate, err = strconv.Atoi(v)
			case "unit":
				c.Unit = v
			case "high-resolution":
				c.HighResolution, err = strconv.ParseBool(v)
			case "poll-interval":
				c.PollInterval, err = time.ParseDuration(v)
			case "max-attempts":
				c.MaxAttempts, err = strconv.Atoi(v)
			case "clean-timeout":
				c.CleanTimeout, err = time.ParseDuration(v)
			case "response-timeout":
				c.ResponseTimeout, err = time.ParseDuration(v)
			case "skip-first-clean":
				c.SkipFirstClean, err = strconv.ParseBool(v)
			case "log-level":
				c.LogLevel = v
			case "log-format":
				c.LogFormat = v
			case "mqtt-broker":
				c.MQTTBroker = v
			case "mqtt-topic":
				c.MQTTTopic = v
			case "mqtt-client-id":
				c.MQTTClientID = v
			case "mdns-enable":
				c.MDNSEnable, err = strconv.ParseBool(v)
			case "mdns-name":
				c.MDNSName = v
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("-%s: %w", f.Name, err))
			}
		})
		return errors.Join(errs...)
	}
}

// Validate performs semantic validation of the configuration. It does not
// open devices or listeners.
func (c *Config) Validate() error {
	if c.SerialPort == "" {
		return errors.New("serial-port is required")
	}
	if _, ok := rg15.BaudCode(c.BaudRate); !ok {
		return fmt.Errorf("baud-rate %d is not supported by the gauge (supported: %v)", c.BaudRate, rg15.BaudRates)
	}
	if _, err := rg15.ParseUnit(c.Unit); err != nil {
		return fmt.Errorf("invalid unit: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be > 0 (got %s)", c.PollInterval)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max-attempts must be > 0 (got %d)", c.MaxAttempts)
	}
	if c.CleanTimeout < 0 {
		return fmt.Errorf("clean-timeout must be >= 0 (got %s)", c.CleanTimeout)
	}
	if c.ResponseTimeout <= 0 {
		return fmt.Errorf("response-timeout must be > 0 (got %s)", c.ResponseTimeout)
	}
	if worst := time.Duration(c.MaxAttempts) * (c.CleanTimeout + c.ResponseTimeout); worst >= c.PollInterval {
		return fmt.Errorf("poll-interval %s must exceed the worst case poll duration %s", c.PollInterval, worst)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.LogFormat)
	}
	return nil
}
