// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the effective demo configuration. Values come from defaults,
// the YAML config file, FRAMEDEMO_* environment variables and flags, in
// increasing priority.
type Config struct {
	Windows      int           `mapstructure:"windows" yaml:"windows"`
	Width        int           `mapstructure:"width" yaml:"width"`
	Height       int           `mapstructure:"height" yaml:"height"`
	Scale        float64       `mapstructure:"scale" yaml:"scale"`
	Frames       int           `mapstructure:"frames" yaml:"frames"`
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	Workers      int           `mapstructure:"workers" yaml:"workers"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	Backend      string        `mapstructure:"backend" yaml:"backend"`
	WaitStrategy string        `mapstructure:"wait_strategy" yaml:"wait_strategy"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	ClearColor   string        `mapstructure:"clear_color" yaml:"clear_color"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
}

// Wait strategies.
const (
	waitDevice = "device"
	waitPoll   = "poll"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("windows", 2)
	v.SetDefault("width", 320)
	v.SetDefault("height", 200)
	v.SetDefault("scale", 2.0)
	v.SetDefault("frames", 120)
	v.SetDefault("tick_interval", 16*time.Millisecond)
	v.SetDefault("workers", 0)
	v.SetDefault("wait_timeout", 5*time.Second)
	v.SetDefault("backend", "headless")
	v.SetDefault("wait_strategy", waitDevice)
	v.SetDefault("pool_size", 64)
	v.SetDefault("clear_color", "#202028")
	v.SetDefault("log_level", "warn")
}

// newViper returns a viper instance with defaults and environment
// overrides. file, when set, is read as YAML.
func newViper(file string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FRAMEDEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file == "" {
		return v, nil
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", file, err)
	}
	return v, nil
}

// loadConfig decodes and validates the configuration held by v.
func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch {
	case c.Windows < 1:
		return fmt.Errorf("windows must be at least 1, got %d", c.Windows)
	case c.Width < 1 || c.Height < 1:
		return fmt.Errorf("window size must be positive, got %dx%d", c.Width, c.Height)
	case c.Scale <= 0:
		return fmt.Errorf("scale must be positive, got %g", c.Scale)
	case c.Frames < 0:
		return fmt.Errorf("frames must not be negative, got %d", c.Frames)
	case c.TickInterval <= 0:
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	case c.PoolSize < 1:
		return fmt.Errorf("pool_size must be at least 1, got %d", c.PoolSize)
	case c.WaitStrategy != waitDevice && c.WaitStrategy != waitPoll:
		return fmt.Errorf("wait_strategy must be %q or %q, got %q", waitDevice, waitPoll, c.WaitStrategy)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// YAML renders the configuration as a YAML document.
func (c Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
