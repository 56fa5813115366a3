package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/converge/pkg/mailman"
)

const (
	// DefaultPath is read when --config is not given and the file exists
	DefaultPath = "/etc/converge/config.yaml"

	// DefaultDataDir holds the run journal
	DefaultDataDir = "/var/lib/converge"

	// DefaultHistoryKeep is the number of runs kept in the journal
	DefaultHistoryKeep = 100
)

var envVar = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// Config is the process-wide configuration, resolved once at start
type Config struct {
	Log     LogConfig     `yaml:"log"`
	DataDir string        `yaml:"data_dir"`
	Exec    ExecConfig    `yaml:"exec"`
	Mailman MailmanConfig `yaml:"mailman"`
	LVM     LVMConfig     `yaml:"lvm"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ExecConfig bounds external tool invocations
type ExecConfig struct {
	Timeout Duration `yaml:"timeout"` // 0 = no timeout
}

// MailmanConfig locates the Mailman installation
type MailmanConfig struct {
	BinDir         string `yaml:"bin_dir"`
	ListsDir       string `yaml:"lists_dir"`
	DefaultOwner   string `yaml:"default_owner"`
	PasswordLength int    `yaml:"password_length"`
}

// LVMConfig contains LVM tool settings
type LVMConfig struct {
	// CommandPrefix is prepended to every LVM command, e.g. nsenter into PID 1
	CommandPrefix []string `yaml:"command_prefix"`
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	// Textfile is written after every apply for the node_exporter textfile
	// collector; empty disables it
	Textfile string `yaml:"textfile"`
}

// HistoryConfig contains run journal settings
type HistoryConfig struct {
	Keep int `yaml:"keep"` // runs kept in the journal (default: 100)
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads and parses the configuration file. ${VAR} and ${VAR:default}
// are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}

	if c.History.Keep <= 0 {
		c.History.Keep = DefaultHistoryKeep
	}

	if c.Mailman.BinDir == "" {
		c.Mailman.BinDir = mailman.DefaultBinDir
	}
	if c.Mailman.ListsDir == "" {
		c.Mailman.ListsDir = mailman.DefaultListsDir
	}
	if c.Mailman.DefaultOwner == "" {
		c.Mailman.DefaultOwner = mailman.DefaultOwner
	}
	if c.Mailman.PasswordLength <= 0 {
		c.Mailman.PasswordLength = mailman.DefaultPasswordLength
	}
}

// expandEnvVars expands ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVar.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVar.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
}
