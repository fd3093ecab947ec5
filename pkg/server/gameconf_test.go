package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mud.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.Pulse)
	assert.Equal(t, 10*time.Millisecond, cfg.Yield)
	assert.Equal(t, "bcrypt", cfg.PasswordHash)
	assert.Equal(t, DefaultBcryptCost, cfg.BcryptCost)
	assert.Less(t, cfg.BcryptCost, bcrypt.DefaultCost, "logins hash on the scheduler goroutine")
	assert.Equal(t, "127.0.0.1:5000", cfg.Addr())
	assert.Empty(t, cfg.Admins)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
port: 4300
pulse: 500ms
admins: [Root, Wizard]
password_hash: des
metrics_addr: ":9100"
`)
	cfg, err := LoadConfig(newFlags(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, 4300, cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Pulse)
	assert.Equal(t, []string{"Root", "Wizard"}, cfg.Admins)
	assert.Equal(t, "des", cfg.PasswordHash)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "127.0.0.1", cfg.Host, "unset keys keep their defaults")
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, "port: 4300\nhost: 0.0.0.0\n")
	t.Setenv("MUD_PORT", "4100")
	t.Setenv("MUD_PULSE", "2s")

	cfg, err := LoadConfig(newFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Port, "environment beats the file")
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 2*time.Second, cfg.Pulse)

	cfg, err = LoadConfig(newFlags(t, "--config", path, "--port", "4200"))
	require.NoError(t, err)
	assert.Equal(t, 4200, cfg.Port, "flags beat the environment")
}

func TestLoadConfigEnvAdmins(t *testing.T) {
	t.Setenv("MUD_ADMINS", "Root,Wizard")
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Root", "Wizard"}, cfg.Admins)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.ErrorContains(t, err, "read config failed")

	_, err = LoadConfig(newFlags(t, "--password-hash", "md5"))
	assert.ErrorContains(t, err, "invalid config")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"ephemeral port", func(c *Config) { c.Port = 0 }, true},
		{"negative port", func(c *Config) { c.Port = -1 }, false},
		{"port too big", func(c *Config) { c.Port = 70000 }, false},
		{"zero pulse", func(c *Config) { c.Pulse = 0 }, false},
		{"zero yield", func(c *Config) { c.Yield = 0 }, false},
		{"negative rate", func(c *Config) { c.AcceptRate = -1 }, false},
		{"rate without burst", func(c *Config) { c.InputBurst = 0 }, false},
		{"unlimited input", func(c *Config) { c.InputRate, c.InputBurst = 0, 0 }, true},
		{"des", func(c *Config) { c.PasswordHash = "des" }, true},
		{"unknown hash", func(c *Config) { c.PasswordHash = "md5" }, false},
		{"library bcrypt cost", func(c *Config) { c.BcryptCost = 0 }, true},
		{"bcrypt cost too low", func(c *Config) { c.BcryptCost = 2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
