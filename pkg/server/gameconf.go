package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/crystal-mush/gotinymud/pkg/crypt"
)

// EnvPrefix prefixes environment overrides, e.g. MUD_PORT=4000.
const EnvPrefix = "MUD"

// DefaultBcryptCost is the bcrypt cost for new passwords. Login hashing runs
// on the scheduler goroutine and holds up the heartbeat while it does.
const DefaultBcryptCost = 8

// Config holds server configuration. Values come from defaults, an optional
// YAML file, MUD_* environment variables and command-line flags, in
// increasing order of precedence.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// --- Scheduler ---
	Pulse time.Duration `mapstructure:"pulse"` // interval between heartbeats
	Yield time.Duration `mapstructure:"yield"` // longest idle wait between loop iterations

	// --- Game ---
	Admins    []string `mapstructure:"admins"`
	WorldFile string   `mapstructure:"world_file"` // empty = built-in world
	TextDir   string   `mapstructure:"text_dir"`   // connect.txt, motd.txt

	// --- Passwords ---
	PasswordHash string `mapstructure:"password_hash"` // bcrypt or des
	BcryptCost   int    `mapstructure:"bcrypt_cost"`   // 0 = library default (10)

	// --- Flood control ---
	InputRate  float64 `mapstructure:"input_rate"`  // lines per second per connection, 0 = unlimited
	InputBurst int     `mapstructure:"input_burst"` // lines allowed in a burst
	AcceptRate int     `mapstructure:"accept_rate"` // accepted connections per second, 0 = unlimited

	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// --- Observability ---
	MetricsAddr string `mapstructure:"metrics_addr"` // empty = disabled
	LogFile     string `mapstructure:"log_file"`
	Debug       bool   `mapstructure:"debug"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         5000,
		Pulse:        1500 * time.Millisecond,
		Yield:        10 * time.Millisecond,
		PasswordHash: "bcrypt",
		BcryptCost:   DefaultBcryptCost,
		InputRate:    20,
		InputBurst:   40,
		AcceptRate:   50,
		WriteTimeout: 5 * time.Second,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.Pulse <= 0:
		return errors.New("pulse must be positive")
	case c.Yield <= 0:
		return errors.New("yield must be positive")
	case c.InputRate < 0 || c.InputBurst < 0 || c.AcceptRate < 0:
		return errors.New("rate limits must not be negative")
	case c.InputRate > 0 && c.InputBurst == 0:
		return errors.New("input_burst must be positive when input_rate is set")
	}
	if _, err := crypt.New(c.PasswordHash, c.BcryptCost); err != nil {
		return err
	}
	return nil
}

// flagKeys maps config keys to flag names.
var flagKeys = map[string]string{
	"host":          "host",
	"port":          "port",
	"pulse":         "pulse",
	"yield":         "yield",
	"admins":        "admins",
	"world_file":    "world",
	"text_dir":      "text-dir",
	"password_hash": "password-hash",
	"bcrypt_cost":   "bcrypt-cost",
	"input_rate":    "input-rate",
	"input_burst":   "input-burst",
	"accept_rate":   "accept-rate",
	"write_timeout": "write-timeout",
	"metrics_addr":  "metrics-addr",
	"log_file":      "log-file",
	"debug":         "debug",
}

// AddFlags registers the command-line flags LoadConfig understands.
func AddFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("config", "", "YAML config file")
	fs.String("host", d.Host, "listen host")
	fs.Int("port", d.Port, "listen port")
	fs.Duration("pulse", d.Pulse, "heartbeat interval")
	fs.Duration("yield", d.Yield, "scheduler idle wait")
	fs.StringSlice("admins", d.Admins, "admin player names")
	fs.String("world", d.WorldFile, "world YAML file (default: built-in world)")
	fs.String("text-dir", d.TextDir, "directory with connect.txt and motd.txt")
	fs.String("password-hash", d.PasswordHash, "password hash for new players: bcrypt or des")
	fs.Int("bcrypt-cost", d.BcryptCost, "bcrypt cost (0 = library default)")
	fs.Float64("input-rate", d.InputRate, "input lines per second per connection (0 = unlimited)")
	fs.Int("input-burst", d.InputBurst, "input line burst per connection")
	fs.Int("accept-rate", d.AcceptRate, "accepted connections per second (0 = unlimited)")
	fs.Duration("write-timeout", d.WriteTimeout, "socket write timeout")
	fs.String("metrics-addr", d.MetricsAddr, "Prometheus metrics listen address (empty = disabled)")
	fs.String("log-file", d.LogFile, "rolling log file (empty = stderr only)")
	fs.Bool("debug", d.Debug, "enable debug logging")
}

// LoadConfig resolves the configuration. fs may be nil; if it carries a
// "config" flag with a value, that file is read.
func LoadConfig(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("pulse", d.Pulse)
	v.SetDefault("yield", d.Yield)
	v.SetDefault("admins", []string{})
	v.SetDefault("world_file", d.WorldFile)
	v.SetDefault("text_dir", d.TextDir)
	v.SetDefault("password_hash", d.PasswordHash)
	v.SetDefault("bcrypt_cost", d.BcryptCost)
	v.SetDefault("input_rate", d.InputRate)
	v.SetDefault("input_burst", d.InputBurst)
	v.SetDefault("accept_rate", d.AcceptRate)
	v.SetDefault("write_timeout", d.WriteTimeout)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("debug", d.Debug)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for key, name := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config failed: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
