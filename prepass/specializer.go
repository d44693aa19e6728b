// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package prepass

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/pipeline"
)

// Shader entry points of the prepass.
const (
	VertexEntryPoint   = "vertex"
	FragmentEntryPoint = "fragment"
)

// PipelineLabel labels every prepass pipeline.
const PipelineLabel = "visbuffer_pipeline"

// Vertex attribute locations read by the prepass vertex stage.
const (
	PositionLocation = 0
	UVALocation      = 1
	UVBLocation      = 2
)

// Features are device and renderer features that change how pipelines
// are specialized.
type Features struct {
	// DepthClipControl enables native unclipped depth. Without it,
	// unclipped depth is emulated in the shader.
	DepthClipControl bool

	// Bindless selects bindless material arrays.
	Bindless bool

	// SkinsUseUniformBuffers stores joint matrices in uniform buffers
	// instead of storage buffers.
	SkinsUseUniformBuffers bool
}

// MaterialSpecializer lets a material adjust a prepass descriptor. It runs
// last and may reject the key.
type MaterialSpecializer interface {
	SpecializeMaterial(desc *pipeline.Descriptor, key pipeline.Key) error
}

// MaterialSpecializerFunc adapts a function to MaterialSpecializer.
type MaterialSpecializerFunc func(desc *pipeline.Descriptor, key pipeline.Key) error

// SpecializeMaterial implements MaterialSpecializer.
func (f MaterialSpecializerFunc) SpecializeMaterial(desc *pipeline.Descriptor, key pipeline.Key) error {
	return f(desc, key)
}

// Specializer builds prepass pipeline descriptors. It implements
// pipeline.Specializer and is safe for concurrent use once configured.
type Specializer struct {
	Features Features

	// Material is an optional per-material hook.
	Material MaterialSpecializer

	// MaterialLayout names the material bind group layout (group 2).
	MaterialLayout string

	// VertexShader overrides the vertex stage shader. Empty selects
	// PrepassShader.
	VertexShader pipeline.ShaderHandle
}

var _ pipeline.Specializer = (*Specializer)(nil)

// NewSpecializer returns a specializer with the default material layout.
func NewSpecializer(features Features) *Specializer {
	return &Specializer{Features: features, MaterialLayout: MaterialLayout}
}

// Specialize implements pipeline.Specializer.
func (s *Specializer) Specialize(key pipeline.Key) (*pipeline.Descriptor, error) {
	defs := []pipeline.ShaderDef{
		pipeline.Def("VISBUFFER_PREPASS"),
		pipeline.Def("PREPASS_PIPELINE"),
		pipeline.Def("VERTEX_OUTPUT_INSTANCE_INDEX"),
	}
	if key.Mesh.Has(pipeline.MeshKeyMayDiscard) {
		defs = append(defs, pipeline.Def("MAY_DISCARD"))
	}
	if s.Features.Bindless {
		defs = append(defs, pipeline.Def("BINDLESS"))
	}

	var attrs []pipeline.AttributeLocation
	if key.Layout.Has(pipeline.AttributePosition) {
		defs = append(defs, pipeline.Def("VERTEX_POSITIONS"))
		attrs = append(attrs, pipeline.AttributeLocation{Attribute: pipeline.AttributePosition, Location: PositionLocation})
	}
	if key.Layout&(pipeline.AttributeUV0|pipeline.AttributeUV1) != 0 {
		defs = append(defs, pipeline.Def("VERTEX_UVS"))
	}
	if key.Layout.Has(pipeline.AttributeUV0) {
		defs = append(defs, pipeline.Def("VERTEX_UVS_A"))
		attrs = append(attrs, pipeline.AttributeLocation{Attribute: pipeline.AttributeUV0, Location: UVALocation})
	}
	if key.Layout.Has(pipeline.AttributeUV1) {
		defs = append(defs, pipeline.Def("VERTEX_UVS_B"))
		attrs = append(attrs, pipeline.AttributeLocation{Attribute: pipeline.AttributeUV1, Location: UVBLocation})
	}

	skinned := key.Mesh.Has(pipeline.MeshKeySkinned)
	morphed := key.Mesh.Has(pipeline.MeshKeyMorphTargets)
	if skinned {
		defs = append(defs, pipeline.Def("SKINNED"))
		if s.Features.SkinsUseUniformBuffers {
			defs = append(defs, pipeline.Def("SKINS_USE_UNIFORM_BUFFERS"))
		}
	}
	if morphed {
		defs = append(defs, pipeline.Def("MORPH_TARGETS"))
	}

	var unclipped bool
	if key.Mesh.Has(pipeline.MeshKeyUnclippedDepthOrtho) {
		if s.Features.DepthClipControl {
			unclipped = true
		} else {
			defs = append(defs, pipeline.Def("UNCLIPPED_DEPTH_ORTHO_EMULATION"))
		}
	}

	vertexBuffer, err := key.Layout.BufferLayout(attrs...)
	if err != nil {
		return nil, fmt.Errorf("prepass: vertex layout %s: %w", key.Layout, err)
	}

	shader := s.VertexShader
	if shader == "" {
		shader = PrepassShader
	}
	materialLayout := s.MaterialLayout
	if materialLayout == "" {
		materialLayout = MaterialLayout
	}

	desc := &pipeline.Descriptor{
		Label:   PipelineLabel,
		Layouts: []string{ViewLayout, materialLayout},
		Vertex: pipeline.ShaderStage{
			Shader:     shader,
			EntryPoint: VertexEntryPoint,
			Defs:       defs,
		},
		VertexBuffers: []gputypes.VertexBufferLayout{vertexBuffer},
		Fragment: &pipeline.ShaderStage{
			Shader:     PrepassShader,
			EntryPoint: FragmentEntryPoint,
			Defs:       defs,
		},
		Targets: TargetDescriptors(),
		// No culling: back faces of double-sided materials must still
		// write their ids. Material hooks may opt into culling.
		Primitive: gputypes.PrimitiveState{
			Topology:       key.Mesh.Topology(),
			CullMode:       gputypes.CullModeNone,
			UnclippedDepth: unclipped,
		},
		DepthStencil: DepthStencilState(),
		Multisample: gputypes.MultisampleState{
			Count: key.Mesh.MSAASamples(),
			Mask:  0xFFFFFFFF,
		},
	}
	desc.InsertLayout(1, meshLayout(skinned, morphed))

	if s.Material != nil {
		if err := s.Material.SpecializeMaterial(desc, key); err != nil {
			return nil, fmt.Errorf("prepass: material %d: %w", key.Material, err)
		}
	}
	return desc, nil
}

func meshLayout(skinned, morphed bool) string {
	switch {
	case skinned && morphed:
		return MeshSkinnedMorphLayout
	case skinned:
		return MeshSkinnedLayout
	case morphed:
		return MeshMorphedLayout
	default:
		return MeshLayout
	}
}
