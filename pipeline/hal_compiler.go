// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"fmt"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// HALDevice is the part of hal.Device the compiler needs.
type HALDevice interface {
	CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error)
	DestroyShaderModule(module hal.ShaderModule)
	CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error)
	DestroyPipelineLayout(layout hal.PipelineLayout)
	CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error)
	DestroyRenderPipeline(pipeline hal.RenderPipeline)
}

// LayoutProvider resolves bind group layout names used in descriptors.
type LayoutProvider interface {
	BindGroupLayout(name string) (hal.BindGroupLayout, bool)
}

// LayoutMap is a fixed LayoutProvider.
type LayoutMap map[string]hal.BindGroupLayout

// BindGroupLayout returns the layout registered under name.
func (m LayoutMap) BindGroupLayout(name string) (hal.BindGroupLayout, bool) {
	l, ok := m[name]
	return l, ok
}

// HALCompiler compiles descriptors into hal render pipelines.
//
// Shader sources come from a ShaderRegistry and are preprocessed with the
// stage's definitions, then translated from WGSL to SPIR-V with naga.
type HALCompiler struct {
	device  HALDevice
	shaders *ShaderRegistry
	layouts LayoutProvider

	// translate converts WGSL to SPIR-V bytes.
	translate func(wgsl string) ([]byte, error)
}

// NewHALCompiler creates a compiler for device.
func NewHALCompiler(device HALDevice, shaders *ShaderRegistry, layouts LayoutProvider) *HALCompiler {
	return &HALCompiler{
		device:    device,
		shaders:   shaders,
		layouts:   layouts,
		translate: naga.Compile,
	}
}

// Compile implements Compiler.
func (c *HALCompiler) Compile(desc *Descriptor) (Compiled, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	out := &halPipeline{device: c.device}
	ok := false
	defer func() {
		if !ok {
			out.Destroy()
		}
	}()

	vs, err := c.module(desc.Label+"_vs", &desc.Vertex)
	if err != nil {
		return nil, fmt.Errorf("vertex stage: %w", err)
	}
	out.modules = append(out.modules, vs)

	var fragment *hal.FragmentState
	if desc.Fragment != nil {
		fs := vs
		if desc.Fragment.Shader != desc.Vertex.Shader || !slices.Equal(desc.Fragment.Defs, desc.Vertex.Defs) {
			fs, err = c.module(desc.Label+"_fs", desc.Fragment)
			if err != nil {
				return nil, fmt.Errorf("fragment stage: %w", err)
			}
			out.modules = append(out.modules, fs)
		}
		fragment = &hal.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    desc.Targets,
		}
	}

	groups := make([]hal.BindGroupLayout, 0, len(desc.Layouts))
	for _, name := range desc.Layouts {
		l, found := c.layouts.BindGroupLayout(name)
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLayout, name)
		}
		groups = append(groups, l)
	}
	out.layout, err = c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_layout",
		BindGroupLayouts: groups,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	out.pipeline, err = c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: out.layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment:     fragment,
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample:  desc.Multisample,
	})
	if err != nil {
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}

	ok = true
	return out, nil
}

func (c *HALCompiler) module(label string, stage *ShaderStage) (hal.ShaderModule, error) {
	wgsl, err := c.shaders.Resolve(stage.Shader, stage.Defs)
	if err != nil {
		return nil, err
	}
	spirv, err := c.translate(wgsl)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", stage.Shader, err)
	}
	module, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirvWords(spirv)},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}
	return module, nil
}

// spirvWords converts little-endian SPIR-V bytes to 32-bit words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

// halPipeline owns the hal objects behind one compiled pipeline.
type halPipeline struct {
	device   HALDevice
	pipeline hal.RenderPipeline
	layout   hal.PipelineLayout
	modules  []hal.ShaderModule
}

// Destroy releases the pipeline, its layout and its shader modules.
func (p *halPipeline) Destroy() {
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.layout != nil {
		p.device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	for _, m := range p.modules {
		if m != nil {
			p.device.DestroyShaderModule(m)
		}
	}
	p.modules = nil
}

// HALRenderPipeline returns the hal pipeline behind p, if p was compiled by
// a HALCompiler.
func HALRenderPipeline(p *Pipeline) (hal.RenderPipeline, bool) {
	if p == nil {
		return nil, false
	}
	hp, ok := p.raw.(*halPipeline)
	if !ok || hp.pipeline == nil {
		return nil, false
	}
	return hp.pipeline, true
}
