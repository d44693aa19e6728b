// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package visbuffer

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("visbuffer: invalid config")

// Config configures a Plugin. It decodes from TOML:
//
//	workers = 4
//	log_level = "info"
//
//	[render]
//	multi_draw_indirect = true
//	indirect_draw = true
//	msaa = 4
//
//	[shaders]
//	dir = "assets/shaders"
//	hot_reload = true
type Config struct {
	// Workers is the size of the encoding worker pool. 0 uses GOMAXPROCS.
	Workers int `toml:"workers"`

	// LogLevel is a slog level name: debug, info, warn or error.
	LogLevel string `toml:"log_level"`

	Render  RenderConfig `toml:"render"`
	Shaders ShaderConfig `toml:"shaders"`
}

// RenderConfig selects renderer features. Device features that are
// requested but unsupported are turned off at startup.
type RenderConfig struct {
	MultiDrawIndirect      bool   `toml:"multi_draw_indirect"`
	IndirectDraw           bool   `toml:"indirect_draw"`
	MSAA                   uint32 `toml:"msaa"`
	DepthClipControl       bool   `toml:"depth_clip_control"`
	Bindless               bool   `toml:"bindless"`
	SkinsUseUniformBuffers bool   `toml:"skins_use_uniform_buffers"`
}

// ShaderConfig locates shader overrides on disk.
type ShaderConfig struct {
	// Dir holds WGSL files that replace the built-in shaders by name.
	Dir string `toml:"dir"`

	// HotReload watches Dir and reloads changed shaders between frames.
	HotReload bool `toml:"hot_reload"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Render: RenderConfig{
			MultiDrawIndirect: true,
			IndirectDraw:      true,
			MSAA:              1,
			DepthClipControl:  true,
		},
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	switch c.Render.MSAA {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: msaa must be 1, 2, 4 or 8, got %d", ErrInvalidConfig, c.Render.MSAA)
	}
	if c.Render.MultiDrawIndirect && !c.Render.IndirectDraw {
		return fmt.Errorf("%w: multi_draw_indirect requires indirect_draw", ErrInvalidConfig)
	}
	if c.Shaders.HotReload && c.Shaders.Dir == "" {
		return fmt.Errorf("%w: hot_reload requires a shader dir", ErrInvalidConfig)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SlogLevel parses LogLevel. An empty level is Info.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, err
	}
	return level, nil
}

// ParseConfig decodes TOML over DefaultConfig and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
