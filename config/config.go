/*
Package config loads the server and CLI configuration.

SOURCES (later wins):
  1. Defaults()
  2. YAML file (--config flag)
  3. Environment variables prefixed with MATCH_, e.g. MATCH_STORE_DRIVER
  4. Explicit CLI flags (applied by cmd/server)

EXAMPLE:
  http:
    addr: ":8080"
    allowed_origins: ["http://localhost:5173"]
  store:
    driver: sqlite            # sqlite | rest | memory
    sqlite_path: ./data/match.db
  engine:
    timeout: 10s
    rematch_timeout: 5s
  notify:
    webhook_url: https://hooks.example.com/match
  pricing:
    rates_file: ./rates.json
  log:
    level: info               # debug | info | warn | error
    format: text              # text | json
*/
package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const EnvPrefix = "MATCH"

type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Engine  EngineConfig  `yaml:"engine"`
	Notify  NotifyConfig  `yaml:"notify"`
	Pricing PricingConfig `yaml:"pricing"`
	Log     LogConfig     `yaml:"log"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	RESTURL    string `yaml:"rest_url"`
	RESTAPIKey string `yaml:"rest_api_key"`
}

type EngineConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	RematchTimeout time.Duration `yaml:"rematch_timeout"`
}

type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type PricingConfig struct {
	RatesFile string `yaml:"rates_file"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverREST   = "rest"
	DriverMemory = "memory"
)

func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Store: StoreConfig{
			Driver:     DriverSQLite,
			SQLitePath: "./data/match.db",
		},
		Engine: EngineConfig{
			Timeout:        10 * time.Second,
			RematchTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (optional) over the defaults, then applies MATCH_*
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(NewLoader(EnvPrefix))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(l Loader) {
	c.HTTP.Addr = l.String("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.AllowedOrigins = l.List("HTTP_ALLOWED_ORIGINS", c.HTTP.AllowedOrigins)
	c.Store.Driver = l.String("STORE_DRIVER", c.Store.Driver)
	c.Store.SQLitePath = l.String("STORE_SQLITE_PATH", c.Store.SQLitePath)
	c.Store.RESTURL = l.String("STORE_REST_URL", c.Store.RESTURL)
	c.Store.RESTAPIKey = l.String("STORE_REST_API_KEY", c.Store.RESTAPIKey)
	c.Engine.Timeout = l.Duration("ENGINE_TIMEOUT", c.Engine.Timeout)
	c.Engine.RematchTimeout = l.Duration("ENGINE_REMATCH_TIMEOUT", c.Engine.RematchTimeout)
	c.Notify.WebhookURL = l.String("NOTIFY_WEBHOOK_URL", c.Notify.WebhookURL)
	c.Pricing.RatesFile = l.String("PRICING_RATES_FILE", c.Pricing.RatesFile)
	c.Log.Level = l.String("LOG_LEVEL", c.Log.Level)
	c.Log.Format = l.String("LOG_FORMAT", c.Log.Format)
}

// Validate checks the combination of settings is usable.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case DriverREST:
		if c.Store.RESTURL == "" {
			return fmt.Errorf("store.rest_url is required for the rest driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive")
	}
	if c.Engine.RematchTimeout <= 0 || c.Engine.RematchTimeout > c.Engine.Timeout {
		return fmt.Errorf("engine.rematch_timeout must be positive and at most engine.timeout")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// =============================================================================
// LOGGING
// =============================================================================

// Logger builds the process logger. Validate has already checked the level.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log.level %q", s)
	}
	return level, nil
}

// =============================================================================
// ENVIRONMENT LOADER
// =============================================================================

// Loader reads configuration values scoped by a common environment variable
// prefix.
type Loader struct {
	Prefix string
}

// NewLoader constructs a loader with the provided prefix. The prefix is
// suffixed with an underscore when missing.
func NewLoader(prefix string) Loader {
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return Loader{Prefix: prefix}
}

// String returns the environment variable value or the provided default.
func (l Loader) String(key, def string) string {
	if val := os.Getenv(l.Prefix + key); val != "" {
		return val
	}
	return def
}

// List splits a comma separated variable, dropping empty items.
func (l Loader) List(key string, def []string) []string {
	val := os.Getenv(l.Prefix + key)
	if val == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Duration accepts Go durations ("750ms") or plain seconds ("2.5").
func (l Loader) Duration(key string, def time.Duration) time.Duration {
	val := os.Getenv(l.Prefix + key)
	if val == "" {
		return def
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}
