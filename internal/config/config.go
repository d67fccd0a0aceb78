// Package config loads runtime settings from the environment.
//
// An optional .env file is read first; variables already set in the process
// environment win over it. Every variable carries the SHOWRUNNER_ prefix.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "SHOWRUNNER_"

// Config holds every runtime setting.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":4001"`
	RundownPath string `env:"RUNDOWN"`
	DBPath      string `env:"DB_PATH" envDefault:"showrunner.db"`
	Version     string `env:"VERSION"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`

	TickInterval    time.Duration `env:"TICK_INTERVAL" envDefault:"32ms"`
	TickTolerance   time.Duration `env:"TICK_TOLERANCE" envDefault:"100ms"`
	QueueSize       int           `env:"QUEUE_SIZE" envDefault:"64"`
	AuxTimers       int           `env:"AUX_TIMERS" envDefault:"1"`
	ChangeWindow    time.Duration `env:"CHANGE_WINDOW" envDefault:"20ms"`
	RestoreInterval time.Duration `env:"RESTORE_INTERVAL" envDefault:"1s"`

	Mirror Mirror `envPrefix:"MIRROR_"`
}

// Mirror configures the outbound state mirror. A sink is enabled when its
// address is set.
type Mirror struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"200ms"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"2s"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisKey     string `env:"REDIS_KEY" envDefault:"showrunner:state"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"showrunner:changes"`

	MQTTBroker   string `env:"MQTT_BROKER"`
	MQTTTopic    string `env:"MQTT_TOPIC" envDefault:"showrunner/state"`
	MQTTClientID string `env:"MQTT_CLIENT_ID" envDefault:"showrunner"`
}

// Enabled reports whether any sink is configured.
func (m Mirror) Enabled() bool {
	return m.RedisAddr != "" || m.MQTTBroker != ""
}

// Load reads the given .env files (".env" when none are named) and parses
// the environment. A missing .env file is not an error.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", p, err)
		}
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	positive("tick interval", c.TickInterval)
	positive("change window", c.ChangeWindow)
	positive("restore interval", c.RestoreInterval)
	positive("mirror interval", c.Mirror.Interval)
	positive("mirror timeout", c.Mirror.Timeout)
	if c.TickTolerance < 0 {
		errs = append(errs, fmt.Errorf("tick tolerance must not be negative, got %s", c.TickTolerance))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue size must be positive, got %d", c.QueueSize))
	}
	if c.AuxTimers < 1 {
		errs = append(errs, fmt.Errorf("aux timer count must be at least 1, got %d", c.AuxTimers))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
