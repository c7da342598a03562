package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Unisphere  UnisphereConfig  `yaml:"unisphere"`
	Probe      ProbeConfig      `yaml:"probe"`
	DeleteWait DeleteWaitConfig `yaml:"delete_wait"`
	Log        LogConfig        `yaml:"log"`
	Ledger     LedgerConfig     `yaml:"ledger"`
}

// UnisphereConfig contains management endpoint connection settings
type UnisphereConfig struct {
	URL          string   `yaml:"url"`
	User         string   `yaml:"user"`
	Password     Secret   `yaml:"password"`
	SymmID       string   `yaml:"symm_id"`
	APIVersion   string   `yaml:"api_version"` // Optional, e.g. "84" -> /univmax/restapi/84
	Insecure     *bool    `yaml:"insecure"`    // Skip TLS verification (default: true)
	Timeout      Duration `yaml:"timeout"`     // HTTP timeout per request
	RateLimitRPS float64  `yaml:"rate_limit_rps"`
}

// ProbeConfig controls the connectivity probe issued before any resource call
type ProbeConfig struct {
	Skip           bool `yaml:"skip"`
	ExpectedStatus int  `yaml:"expected_status"` // Status the bare API base path answers with (default: 500)
}

// DeleteWaitConfig bounds the poll that follows an accepted delete
type DeleteWaitConfig struct {
	MaxAttempts     int      `yaml:"max_attempts"`
	InitialInterval Duration `yaml:"initial_interval"`
	MaxInterval     Duration `yaml:"max_interval"`
	Multiplier      float64  `yaml:"multiplier"`
	Timeout         Duration `yaml:"timeout"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the configured level, lowercased
func (c LogConfig) GetLevel() string {
	return strings.ToLower(c.Level)
}

// LedgerConfig contains run history settings. An empty path disables the ledger.
type LedgerConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// InsecureTLS reports whether certificate verification is disabled
func (c *UnisphereConfig) InsecureTLS() bool {
	if c.Insecure == nil {
		return true
	}
	return *c.Insecure
}

// Secret is a string that never prints its value
type Secret string

// String implements fmt.Stringer
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "******"
}

// GoString implements fmt.GoStringer
func (s Secret) GoString() string {
	return s.String()
}

// Reveal returns the underlying value
func (s Secret) Reveal() string {
	return string(s)
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

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := UnmarshalExpanded(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Unisphere defaults
	if cfg.Unisphere.URL == "" {
		cfg.Unisphere.URL = "https://127.0.0.1:8443"
	}
	if cfg.Unisphere.Timeout == 0 {
		cfg.Unisphere.Timeout = Duration(30 * time.Second)
	}
	if cfg.Unisphere.RateLimitRPS == 0 {
		cfg.Unisphere.RateLimitRPS = 10.0
	}

	// The bare base path answers 500 on a reachable, authenticated endpoint
	if cfg.Probe.ExpectedStatus == 0 {
		cfg.Probe.ExpectedStatus = 500
	}

	// Delete wait defaults
	if cfg.DeleteWait.MaxAttempts == 0 {
		cfg.DeleteWait.MaxAttempts = 5
	}
	if cfg.DeleteWait.InitialInterval == 0 {
		cfg.DeleteWait.InitialInterval = Duration(1 * time.Second)
	}
	if cfg.DeleteWait.MaxInterval == 0 {
		cfg.DeleteWait.MaxInterval = Duration(10 * time.Second)
	}
	if cfg.DeleteWait.Multiplier == 0 {
		cfg.DeleteWait.Multiplier = 2.0
	}
	if cfg.DeleteWait.Timeout == 0 {
		cfg.DeleteWait.Timeout = Duration(2 * time.Minute)
	}

	// Ledger defaults
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}
}

// ExpandEnv expands environment variables in the format ${VAR} or ${VAR:default}
func ExpandEnv(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// UnmarshalExpanded parses YAML and then expands environment variables inside
// scalar values, so substituted text is never parsed as YAML itself.
func UnmarshalExpanded(data []byte, out any) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root.Kind == 0 {
		return nil // empty document
	}
	expandNode(&root)
	return root.Decode(out)
}

func expandNode(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		expanded := ExpandEnv(n.Value)
		if expanded == n.Value {
			return
		}
		n.Value = expanded
		// Let the substituted value resolve its own type (10 -> int, 30s -> str)
		if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
			n.Tag = ""
		}
	case yaml.MappingNode:
		// Keys are left alone
		for i := 1; i < len(n.Content); i += 2 {
			expandNode(n.Content[i])
		}
	default:
		for _, c := range n.Content {
			expandNode(c)
		}
	}
}
