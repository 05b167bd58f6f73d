package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"icalfilter/internal/atomicfile"
	appLog "icalfilter/internal/log"
)

const (
	FormatICS  = "ics"
	FormatJSON = "json"
)

const (
	defaultListen   = "0.0.0.0:3000"
	defaultTimeout  = "15s"
	defaultRefresh  = "*/15 * * * *"
	defaultLogLevel = "info"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP endpoint.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Source is where the input document is fetched from: an http(s) URL,
	// a file:// URL or a local path.
	Source string `yaml:"source" json:"source"`

	// Blacklist holds FIELD=PATTERN rules. An event is dropped when one of
	// its FIELD properties matches PATTERN.
	Blacklist []string `yaml:"blacklist" json:"blacklist"`

	// Dedup drops later events with the same DTSTART, DTEND and SUMMARY.
	Dedup bool `yaml:"dedup" json:"dedup"`

	// Listen is the HTTP listen address for serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// MetricsListen, if set, makes watch mode serve /metrics on this address.
	MetricsListen string `yaml:"metrics_listen,omitempty" json:"metrics_listen,omitempty"`

	// Timeout bounds a single source fetch (Go duration syntax).
	Timeout string `yaml:"timeout" json:"timeout"`

	// Refresh is the cron schedule used by watch mode.
	Refresh string `yaml:"refresh" json:"refresh"`

	// Output is the file written by watch mode, and by run mode when set.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// Format selects the output rendering: "ics" or "json".
	Format string `yaml:"format" json:"format"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Blacklist: []string{},
		Listen:    defaultListen,
		Timeout:   defaultTimeout,
		Refresh:   defaultRefresh,
		Format:    FormatICS,
		LogLevel:  defaultLogLevel,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	c.Source = strings.TrimSpace(c.Source)
	if c.Blacklist == nil {
		c.Blacklist = []string{}
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout
	}
	if c.Refresh == "" {
		c.Refresh = defaultRefresh
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = FormatICS
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("config: source is required")
	}
	switch c.Format {
	case FormatICS, FormatJSON:
	default:
		return fmt.Errorf("config: unknown format %q", c.Format)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// TimeoutDuration parses Timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config: invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: timeout must be positive, got %q", c.Timeout)
	}
	return d, nil
}

// Load reads configuration from the given YAML path. Unknown keys are
// rejected so that typos do not silently disable a rule.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path with 0600
// permissions, replacing any existing file atomically.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return atomicfile.Write(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Environment variables read by ApplyEnv.
const (
	EnvSource    = "ICALFILTER_SOURCE"
	EnvBlacklist = "ICALFILTER_BLACKLIST"
	EnvDedup     = "ICALFILTER_DEDUP"
	EnvListen    = "ICALFILTER_LISTEN"
	EnvLogLevel  = "ICALFILTER_LOG_LEVEL"
)

// ApplyEnv overrides fields from the environment. Blacklist rules are
// separated by newlines. Unset or empty variables leave the field alone.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvSource); v != "" {
		c.Source = v
	}
	if v := getenv(EnvBlacklist); v != "" {
		rules := make([]string, 0)
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				rules = append(rules, line)
			}
		}
		c.Blacklist = rules
	}
	if v := getenv(EnvDedup); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvDedup, err)
		}
		c.Dedup = b
	}
	if v := getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Flag names understood by ApplyFlags.
const (
	FlagBlacklist     = "blacklist"
	FlagDedup         = "dedup"
	FlagListen        = "listen"
	FlagMetricsListen = "metrics-listen"
	FlagTimeout       = "timeout"
	FlagRefresh       = "refresh"
	FlagOutput        = "output"
	FlagFormat        = "format"
	FlagLogLevel      = "log-level"
)

// ApplyFlags overrides fields with flags that were set explicitly on the
// command line. Flags missing from fs are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}

	str := func(name string, dst *string) error {
		if !fs.Changed(name) {
			return nil
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}

	if fs.Changed(FlagBlacklist) {
		v, err := fs.GetStringArray(FlagBlacklist)
		if err != nil {
			return err
		}
		c.Blacklist = v
	}
	if fs.Changed(FlagDedup) {
		v, err := fs.GetBool(FlagDedup)
		if err != nil {
			return err
		}
		c.Dedup = v
	}

	for name, dst := range map[string]*string{
		FlagListen:        &c.Listen,
		FlagMetricsListen: &c.MetricsListen,
		FlagTimeout:       &c.Timeout,
		FlagRefresh:       &c.Refresh,
		FlagOutput:        &c.Output,
		FlagFormat:        &c.Format,
		FlagLogLevel:      &c.LogLevel,
	} {
		if err := str(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// Loader resolves the effective configuration from, in increasing order of
// precedence: defaults, the YAML file at Path, the environment, explicitly
// set flags and the positional Source argument.
type Loader struct {
	Path   string
	Flags  *pflag.FlagSet
	Source string
	Getenv func(string) string
}

// Load resolves and validates the configuration. It reads the file again on
// every call.
func (l Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	if l.Path != "" {
		loaded, err := Load(l.Path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(l.Flags); err != nil {
		return nil, err
	}
	if l.Source != "" {
		cfg.Source = l.Source
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
