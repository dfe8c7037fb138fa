// Package config loads pool, logging and metrics settings from YAML or JSON
// files and turns them into pool options.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/Swind/go-task-bridge/core"
)

// Config is the file layout.
type Config struct {
	Pool    PoolConfig    `yaml:"pool" json:"pool"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// PoolConfig holds worker pool settings. Zero values keep the pool defaults.
// Durations use time.ParseDuration syntax.
type PoolConfig struct {
	ID              string `yaml:"id" json:"id"`
	Floor           int    `yaml:"floor" json:"floor"`
	MaxWorkers      int    `yaml:"max_workers" json:"max_workers"`
	SampleInterval  string `yaml:"sample_interval" json:"sample_interval"`
	IdleTimeout     string `yaml:"idle_timeout" json:"idle_timeout"`
	GrowThreshold   int    `yaml:"grow_threshold" json:"grow_threshold"`
	GrowStep        int    `yaml:"grow_step" json:"grow_step"`
	HistoryCapacity int    `yaml:"history_capacity" json:"history_capacity"`
	ShutdownTimeout string `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json or console
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Namespace    string `yaml:"namespace" json:"namespace"`
	Listen       string `yaml:"listen" json:"listen"`
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			ID:              "taskbridge",
			ShutdownTimeout: "10s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Namespace:    "taskbridge",
			Listen:       ":9090",
			PollInterval: "1s",
		},
	}
}

// LoadFile reads path as YAML (.yaml, .yml) or JSON (.json) on top of Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and duration syntax.
func (c *Config) Validate() error {
	p := c.Pool
	var errs []error

	if p.Floor < 0 {
		errs = append(errs, errors.New("pool.floor must be non-negative"))
	}
	if p.MaxWorkers < 0 {
		errs = append(errs, errors.New("pool.max_workers must be non-negative"))
	}
	if p.MaxWorkers > 0 && p.Floor > p.MaxWorkers {
		errs = append(errs, errors.New("pool.max_workers must not be below pool.floor"))
	}
	if p.GrowThreshold < 0 {
		errs = append(errs, errors.New("pool.grow_threshold must be non-negative"))
	}
	if p.GrowStep < 0 {
		errs = append(errs, errors.New("pool.grow_step must be non-negative"))
	}
	if p.HistoryCapacity < 0 {
		errs = append(errs, errors.New("pool.history_capacity must be non-negative"))
	}

	for name, v := range map[string]string{
		"pool.sample_interval":  p.SampleInterval,
		"pool.idle_timeout":     p.IdleTimeout,
		"pool.shutdown_timeout": p.ShutdownTimeout,
		"metrics.poll_interval": c.Metrics.PollInterval,
	} {
		if _, err := parseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
		}
	}

	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("invalid log.level: %w", err))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unsupported log.format: %s", c.Log.Format))
	}

	return errors.Join(errs...)
}

// PoolOptions converts the pool and log sections into pool options. The
// logger is built by Logger(os.Stderr).
func (c *Config) PoolOptions() ([]core.PoolOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p := c.Pool
	opts := []core.PoolOption{core.WithLogger(c.Logger(os.Stderr))}

	if p.Floor > 0 {
		opts = append(opts, core.WithFloor(p.Floor))
	}
	if p.MaxWorkers > 0 {
		opts = append(opts, core.WithMaxWorkers(p.MaxWorkers))
	}
	if d, _ := parseDuration(p.SampleInterval); d > 0 {
		opts = append(opts, core.WithSampleInterval(d))
	}
	if d, _ := parseDuration(p.IdleTimeout); d > 0 {
		opts = append(opts, core.WithIdleTimeout(d))
	}
	if p.GrowThreshold > 0 {
		opts = append(opts, core.WithGrowThreshold(p.GrowThreshold))
	}
	if p.GrowStep > 0 {
		opts = append(opts, core.WithGrowStep(p.GrowStep))
	}
	if p.HistoryCapacity > 0 {
		opts = append(opts, core.WithHistoryCapacity(p.HistoryCapacity))
	}
	return opts, nil
}

// ShutdownTimeout returns the configured drain timeout, zero meaning wait
// forever.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := parseDuration(c.Pool.ShutdownTimeout)
	return d
}

// PollInterval returns the metrics snapshot interval.
func (c *Config) PollInterval() time.Duration {
	d, _ := parseDuration(c.Metrics.PollInterval)
	if d <= 0 {
		return time.Second
	}
	return d
}

// Logger builds a zerolog-backed logger writing to w.
func (c *Config) Logger(w io.Writer) core.Logger {
	level := zerolog.InfoLevel
	if c.Log.Level != "" {
		if l, err := zerolog.ParseLevel(c.Log.Level); err == nil {
			level = l
		}
	}
	if strings.EqualFold(c.Log.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	zl := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", "taskbridge").
		Logger()
	return core.NewZerologLogger(zl)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
