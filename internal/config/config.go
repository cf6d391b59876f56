// SPDX-License-Identifier: EPL-2.0

// Package config holds the player settings shared by the CLI commands.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable Load reads.
const EnvPrefix = "AUDPLAY_"

var ErrInvalidConfig = errors.New("config: invalid value")

// Config is the output format, buffering and loudness settings of a player.
type Config struct {
	SampleRate   int           `env:"SAMPLE_RATE"`
	Channels     int           `env:"CHANNELS"`
	Quantum      int           `env:"QUANTUM"`
	DeviceBuffer time.Duration `env:"DEVICE_BUFFER"`

	// BufferDuration is how much audio one file read covers.
	BufferDuration time.Duration `env:"BUFFER_DURATION"`
	// SustainedBuffer sizes the ring buffer between producer and sink.
	SustainedBuffer time.Duration `env:"BUFFER_SUSTAINED"`

	// Fade is the length of the pause fade out and the resume fade in.
	// Zero disables both.
	Fade time.Duration `env:"FADE_DURATION"`

	Normalize       bool          `env:"LOUDNESS_NORMALIZE"`
	LoudnessHistory time.Duration `env:"LOUDNESS_HISTORY"`
	// TrimSilence drops blocks measured as entirely silent.
	TrimSilence bool `env:"LOUDNESS_TRIM_SILENCE"`

	LogLevel string `env:"LOG_LEVEL"`
}

func Default() *Config {
	return &Config{
		SampleRate:      48000,
		Channels:        2,
		Quantum:         128,
		DeviceBuffer:    50 * time.Millisecond,
		BufferDuration:  400 * time.Millisecond,
		SustainedBuffer: 2400 * time.Millisecond,
		Fade:            400 * time.Millisecond,
		Normalize:       true,
		LoudnessHistory: 8 * time.Second,
		LogLevel:        "info",
	}
}

// Load starts from Default, applies the keys set in v, then the AUDPLAY_
// environment, and validates the result. v may be nil.
func Load(v *viper.Viper) (*Config, error) {
	return load(v, nil)
}

// load reads environ instead of the process environment when it is not nil.
func load(v *viper.Viper, environ map[string]string) (*Config, error) {
	cfg := Default()
	if v != nil {
		cfg.apply(v)
	}

	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(v *viper.Viper) {
	if v.IsSet("output.sample_rate") {
		c.SampleRate = v.GetInt("output.sample_rate")
	}
	if v.IsSet("output.channels") {
		c.Channels = v.GetInt("output.channels")
	}
	if v.IsSet("output.quantum") {
		c.Quantum = v.GetInt("output.quantum")
	}
	if v.IsSet("output.device_buffer") {
		c.DeviceBuffer = v.GetDuration("output.device_buffer")
	}
	if v.IsSet("buffer.duration") {
		c.BufferDuration = v.GetDuration("buffer.duration")
	}
	if v.IsSet("buffer.sustained") {
		c.SustainedBuffer = v.GetDuration("buffer.sustained")
	}
	if v.IsSet("fade.duration") {
		c.Fade = v.GetDuration("fade.duration")
	}
	if v.IsSet("loudness.normalize") {
		c.Normalize = v.GetBool("loudness.normalize")
	}
	if v.IsSet("loudness.history") {
		c.LoudnessHistory = v.GetDuration("loudness.history")
	}
	if v.IsSet("loudness.trim_silence") {
		c.TrimSilence = v.GetBool("loudness.trim_silence")
	}
	if v.IsSet("log.level") {
		c.LogLevel = v.GetString("log.level")
	}
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		ok   bool
	}{
		{"output.sample_rate", c.SampleRate > 0},
		{"output.channels", c.Channels > 0},
		{"output.quantum", c.Quantum > 0},
		{"output.device_buffer", c.DeviceBuffer > 0},
		{"buffer.duration", c.BufferDuration > 0},
		{"buffer.sustained", c.SustainedBuffer > 0},
		{"loudness.history", c.LoudnessHistory > 0},
	}
	for _, p := range positive {
		if !p.ok {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, p.name)
		}
	}

	if c.Fade < 0 {
		return fmt.Errorf("%w: fade.duration must not be negative", ErrInvalidConfig)
	}
	if c.SustainedBuffer < c.BufferDuration {
		return fmt.Errorf("%w: buffer.sustained %v is shorter than buffer.duration %v",
			ErrInvalidConfig, c.SustainedBuffer, c.BufferDuration)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Level is the parsed LogLevel. It is only meaningful after Validate.
func (c *Config) Level() log.Level {
	l, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return l
}
