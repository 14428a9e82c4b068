package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the Device Server's configuration.
type ServerConfig struct {
	ConfigFile string `yaml:"-"`

	DeviceAddr string `yaml:"device_addr"`
	HTTPAddr   string `yaml:"http_addr"`

	MacroFile string `yaml:"macro_file"`

	InboundDelimiter  string `yaml:"inbound_delimiter"`
	OutboundDelimiter string `yaml:"outbound_delimiter"`

	LogLevel        string `yaml:"log_level"`
	ProtocolLogFile string `yaml:"protocol_log_file"`

	Advertise   bool   `yaml:"advertise"`
	ServiceName string `yaml:"service_name"`
}

// ParseServerFlags parses args into a ServerConfig, applying any -config
// YAML overlay before defaults, then validating the result. Flags take
// precedence over the overlay file: the overlay is applied first and
// flag.Parse runs again over it so an explicitly-passed flag still wins.
func ParseServerFlags(args []string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	fs := flag.NewFlagSet("device-server", flag.ContinueOnError)
	registerServerFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		if err := loadServerConfigFile(cfg.ConfigFile, cfg); err != nil {
			return nil, err
		}
		// Re-apply flags so an explicit command-line value overrides the
		// file it named.
		fs2 := flag.NewFlagSet("device-server", flag.ContinueOnError)
		registerServerFlags(fs2, cfg)
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

func registerServerFlags(fs *flag.FlagSet, cfg *ServerConfig) {
	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML configuration file overlay")
	registerServerFlagsWithDefaults(fs, cfg)
}

func registerServerFlagsWithDefaults(fs *flag.FlagSet, cfg *ServerConfig) {
	fs.StringVar(&cfg.DeviceAddr, "device-addr", valueOr(cfg.DeviceAddr, ":8007"), "Device Client listen address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", valueOr(cfg.HTTPAddr, ":8080"), "Control Server listen address")
	fs.StringVar(&cfg.MacroFile, "macro-file", cfg.MacroFile, "Macro definitions JSON file")
	fs.StringVar(&cfg.InboundDelimiter, "inbound-delimiter", cfg.InboundDelimiter, "Inbound line delimiter (default \\r)")
	fs.StringVar(&cfg.OutboundDelimiter, "outbound-delimiter", cfg.OutboundDelimiter, "Outbound line delimiter (default \\r)")
	fs.StringVar(&cfg.LogLevel, "log-level", valueOr(cfg.LogLevel, "info"), "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.ProtocolLogFile, "protocol-log", cfg.ProtocolLogFile, "File path for protocol event logging (CBOR format)")
	fs.BoolVar(&cfg.Advertise, "advertise", cfg.Advertise, "Advertise the Device Server over mDNS")
	fs.StringVar(&cfg.ServiceName, "service-name", valueOr(cfg.ServiceName, "devicehub"), "mDNS instance name")
}

// Validate rejects a ServerConfig missing required fields or carrying
// contradictory settings.
func (c *ServerConfig) Validate() error {
	if c.DeviceAddr == "" {
		return fmt.Errorf("config: device-addr is required")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("config: http-addr is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return nil
}

func (c *ServerConfig) applyDefaults() {
	if c.DeviceAddr == "" {
		c.DeviceAddr = ":8007"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ServiceName == "" {
		c.ServiceName = "devicehub"
	}
}

func loadServerConfigFile(path string, cfg *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
