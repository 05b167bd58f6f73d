package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringArrayP(FlagBlacklist, "b", nil, "")
	fs.BoolP(FlagDedup, "d", false, "")
	fs.String(FlagListen, "", "")
	fs.String(FlagMetricsListen, "", "")
	fs.String(FlagFormat, "", "")
	return fs
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
source: https://example.com/cal.ics
blacklist:
  - SUMMARY=^1:1$
  - LOCATION=Remote
dedup: true
timeout: 5s
basic_auth:
  username: admin
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/cal.ics", cfg.Source)
	assert.Equal(t, []string{"SUMMARY=^1:1$", "LOCATION=Remote"}, cfg.Blacklist)
	assert.True(t, cfg.Dedup)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, FormatICS, cfg.Format)
	require.NotNil(t, cfg.BasicAuth)
	assert.Equal(t, "admin", cfg.BasicAuth.Username)

	d, err := cfg.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "source: x\nblacklst:\n  - SUMMARY=x\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load("")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Source = "/tmp/cal.ics"
	cfg.Blacklist = []string{"SUMMARY=x"}

	require.NoError(t, cfg.Save(path))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvSource:    "https://example.com/a.ics",
		EnvBlacklist: "SUMMARY=a\r\n\nLOCATION=b",
		EnvDedup:     "true",
		EnvLogLevel:  "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/a.ics", cfg.Source)
	assert.Equal(t, []string{"SUMMARY=a", "LOCATION=b"}, cfg.Blacklist)
	assert.True(t, cfg.Dedup)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, defaultListen, cfg.Listen)

	assert.Error(t, cfg.ApplyEnv(envMap(map[string]string{EnvDedup: "maybe"})))
}

func TestApplyFlagsOnlyChanged(t *testing.T) {
	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"-b", "SUMMARY=x", "--blacklist", "SUMMARY=y,z", "--format", "json"}))

	cfg := DefaultConfig()
	cfg.Dedup = true
	cfg.Listen = "127.0.0.1:9999"
	require.NoError(t, cfg.ApplyFlags(fs))

	assert.Equal(t, []string{"SUMMARY=x", "SUMMARY=y,z"}, cfg.Blacklist)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.Dedup, "unset flag must not override")
	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
}

func TestApplyFlagsMetricsListen(t *testing.T) {
	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--metrics-listen", "127.0.0.1:9100"}))

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyFlags(fs))
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsListen)
	assert.Equal(t, "0.0.0.0:3000", cfg.Listen)
}

func TestLoaderPrecedence(t *testing.T) {
	path := writeFile(t, "source: from-file.ics\ndedup: false\nlisten: 127.0.0.1:1\n")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"-d"}))

	l := Loader{
		Path:   path,
		Flags:  fs,
		Getenv: envMap(map[string]string{EnvListen: "127.0.0.1:2", EnvSource: "from-env.ics"}),
	}

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env.ics", cfg.Source)
	assert.Equal(t, "127.0.0.1:2", cfg.Listen)
	assert.True(t, cfg.Dedup)

	l.Source = "from-arg.ics"
	cfg, err = l.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-arg.ics", cfg.Source)
}

func TestLoaderRereadsFile(t *testing.T) {
	path := writeFile(t, "source: a.ics\n")
	l := Loader{Path: path, Getenv: envMap(nil)}

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "a.ics", cfg.Source)

	require.NoError(t, os.WriteFile(path, []byte("source: b.ics\ndedup: true\n"), 0o600))
	cfg, err = l.Load()
	require.NoError(t, err)
	assert.Equal(t, "b.ics", cfg.Source)
	assert.True(t, cfg.Dedup)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing source", func(c *Config) { c.Source = "" }, false},
		{"bad format", func(c *Config) { c.Format = "xml" }, false},
		{"bad timeout", func(c *Config) { c.Timeout = "soon" }, false},
		{"negative timeout", func(c *Config) { c.Timeout = "-1s" }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Source = "cal.ics"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
