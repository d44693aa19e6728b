// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package visbuffer

// Option adjusts the Config of a Plugin during creation. Options are
// applied in order over DefaultConfig.
//
// Example:
//
//	p, err := visbuffer.New(backend,
//	    visbuffer.WithConfig(cfg),
//	    visbuffer.WithMSAA(4),
//	)
type Option func(*Config)

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithWorkers sets the encoding worker count. 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithMultiDraw enables or disables multi-draw-indirect. Enabling it also
// enables indirect draws.
func WithMultiDraw(enabled bool) Option {
	return func(c *Config) {
		c.Render.MultiDrawIndirect = enabled
		if enabled {
			c.Render.IndirectDraw = true
		}
	}
}

// WithIndirectDraw enables or disables indirect draws. Disabling them
// also disables multi-draw-indirect.
func WithIndirectDraw(enabled bool) Option {
	return func(c *Config) {
		c.Render.IndirectDraw = enabled
		if !enabled {
			c.Render.MultiDrawIndirect = false
		}
	}
}

// WithMSAA sets the sample count of the prepass targets.
func WithMSAA(samples uint32) Option {
	return func(c *Config) {
		c.Render.MSAA = samples
	}
}

// WithShaderDir loads shader overrides from dir, watching it for changes
// when hotReload is set.
func WithShaderDir(dir string, hotReload bool) Option {
	return func(c *Config) {
		c.Shaders.Dir = dir
		c.Shaders.HotReload = hotReload
	}
}
