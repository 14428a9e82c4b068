package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClientConfig holds the Device Client's configuration.
type ClientConfig struct {
	ConfigFile string `yaml:"-"`

	ServerAddr string `yaml:"server_addr"`
	DeviceID   string `yaml:"device_id"`

	InboundDelimiter  string `yaml:"inbound_delimiter"`
	OutboundDelimiter string `yaml:"outbound_delimiter"`

	LogLevel string `yaml:"log_level"`

	Discover    bool   `yaml:"discover"`
	ServiceName string `yaml:"service_name"`

	Interactive bool `yaml:"-"`
}

// ParseClientFlags parses args into a ClientConfig, applying a -config
// YAML overlay (if any) with flags still taking precedence, then
// validating the result.
func ParseClientFlags(args []string) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	fs := flag.NewFlagSet("device-client", flag.ContinueOnError)
	registerClientFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		if err := loadClientConfigFile(cfg.ConfigFile, cfg); err != nil {
			return nil, err
		}
		fs2 := flag.NewFlagSet("device-client", flag.ContinueOnError)
		registerClientFlags(fs2, cfg)
		if err := fs2.Parse(args); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func registerClientFlags(fs *flag.FlagSet, cfg *ClientConfig) {
	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML configuration file overlay")
	registerClientFlagsWithDefaults(fs, cfg)
}

func registerClientFlagsWithDefaults(fs *flag.FlagSet, cfg *ClientConfig) {
	fs.StringVar(&cfg.ServerAddr, "server-addr", cfg.ServerAddr, "Device Server address (host:port)")
	fs.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "This device's id, announced on connect")
	fs.StringVar(&cfg.InboundDelimiter, "inbound-delimiter", cfg.InboundDelimiter, "Inbound line delimiter (default \\r)")
	fs.StringVar(&cfg.OutboundDelimiter, "outbound-delimiter", cfg.OutboundDelimiter, "Outbound line delimiter (default \\r)")
	fs.StringVar(&cfg.LogLevel, "log-level", valueOr(cfg.LogLevel, "info"), "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Discover, "discover", cfg.Discover, "Discover the Device Server over mDNS instead of using -server-addr")
	fs.StringVar(&cfg.ServiceName, "service-name", valueOr(cfg.ServiceName, "devicehub"), "mDNS instance name shown when -discover is set (the first devicehub service found is used)")
	fs.BoolVar(&cfg.Interactive, "interactive", cfg.Interactive, "Enable an interactive REPL for controlling this simulated device")
}

// Validate rejects a ClientConfig missing required fields.
func (c *ClientConfig) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("config: device-id is required")
	}
	if !c.Discover && c.ServerAddr == "" {
		return fmt.Errorf("config: server-addr is required unless -discover is set")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

func (c *ClientConfig) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ServiceName == "" {
		c.ServiceName = "devicehub"
	}
}

func loadClientConfigFile(path string, cfg *ClientConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
