// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/gogpu/gputypes"
)

// MeshKey is a compact set of per-mesh and per-view pipeline variations.
//
// The low byte holds boolean flags. Primitive topology and the MSAA sample
// count are packed into fixed bit ranges above it.
type MeshKey uint32

// Mesh key flags.
const (
	// MeshKeyMayDiscard marks materials whose fragment stage can discard.
	MeshKeyMayDiscard MeshKey = 1 << iota

	// MeshKeyUnclippedDepthOrtho requests unclipped depth for orthographic views.
	MeshKeyUnclippedDepthOrtho

	// MeshKeyDepthPrepass marks pipelines rendered during a depth prepass.
	MeshKeyDepthPrepass

	// MeshKeySkinned marks skinned meshes.
	MeshKeySkinned

	// MeshKeyMorphTargets marks meshes with morph targets.
	MeshKeyMorphTargets

	// MeshKeyAlphaMask marks alpha-masked materials.
	MeshKeyAlphaMask
)

const (
	meshKeyFlagBits = 0xFF

	meshKeyTopologyShift = 8
	meshKeyTopologyMask  = 0xF

	meshKeyMSAAShift = 12
	meshKeyMSAAMask  = 0x7
)

// Has reports whether all flags in f are set.
func (k MeshKey) Has(f MeshKey) bool {
	return k&f == f
}

// Flags returns only the boolean flag bits.
func (k MeshKey) Flags() MeshKey {
	return k & meshKeyFlagBits
}

// WithTopology returns k with the primitive topology replaced.
func (k MeshKey) WithTopology(t gputypes.PrimitiveTopology) MeshKey {
	k &^= meshKeyTopologyMask << meshKeyTopologyShift
	return k | (MeshKey(t)&meshKeyTopologyMask)<<meshKeyTopologyShift
}

// Topology returns the packed primitive topology.
func (k MeshKey) Topology() gputypes.PrimitiveTopology {
	return gputypes.PrimitiveTopology((k >> meshKeyTopologyShift) & meshKeyTopologyMask)
}

// WithMSAA returns k with the sample count replaced. Counts are rounded down
// to a power of two; 0 is treated as 1.
func (k MeshKey) WithMSAA(samples uint32) MeshKey {
	if samples == 0 {
		samples = 1
	}
	log2 := MeshKey(bits.Len32(samples) - 1)
	k &^= meshKeyMSAAMask << meshKeyMSAAShift
	return k | (log2&meshKeyMSAAMask)<<meshKeyMSAAShift
}

// MSAASamples returns the packed sample count.
func (k MeshKey) MSAASamples() uint32 {
	return 1 << ((k >> meshKeyMSAAShift) & meshKeyMSAAMask)
}

var meshKeyNames = []struct {
	flag MeshKey
	name string
}{
	{MeshKeyMayDiscard, "MAY_DISCARD"},
	{MeshKeyUnclippedDepthOrtho, "UNCLIPPED_DEPTH_ORTHO"},
	{MeshKeyDepthPrepass, "DEPTH_PREPASS"},
	{MeshKeySkinned, "SKINNED"},
	{MeshKeyMorphTargets, "MORPH_TARGETS"},
	{MeshKeyAlphaMask, "ALPHA_MASK"},
}

func (k MeshKey) String() string {
	var names []string
	for _, n := range meshKeyNames {
		if k.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	names = append(names,
		fmt.Sprintf("topology=%d", uint32(k.Topology())),
		fmt.Sprintf("msaa=%d", k.MSAASamples()))
	return strings.Join(names, "|")
}

// VertexAttribute is a set of vertex attributes a mesh provides. Attributes
// are stored interleaved in a single vertex buffer, in declaration order.
type VertexAttribute uint32

// Vertex attributes.
const (
	AttributePosition VertexAttribute = 1 << iota
	AttributeNormal
	AttributeUV0
	AttributeUV1
	AttributeTangent
	AttributeColor
)

var vertexAttributeInfo = []struct {
	attr   VertexAttribute
	name   string
	format gputypes.VertexFormat
	size   uint64
}{
	{AttributePosition, "position", gputypes.VertexFormatFloat32x3, 12},
	{AttributeNormal, "normal", gputypes.VertexFormatFloat32x3, 12},
	{AttributeUV0, "uv0", gputypes.VertexFormatFloat32x2, 8},
	{AttributeUV1, "uv1", gputypes.VertexFormatFloat32x2, 8},
	{AttributeTangent, "tangent", gputypes.VertexFormatFloat32x4, 16},
	{AttributeColor, "color", gputypes.VertexFormatFloat32x4, 16},
}

// Has reports whether every attribute in a is present.
func (v VertexAttribute) Has(a VertexAttribute) bool {
	return v&a == a
}

// Stride returns the size in bytes of one interleaved vertex.
func (v VertexAttribute) Stride() uint64 {
	var stride uint64
	for _, info := range vertexAttributeInfo {
		if v.Has(info.attr) {
			stride += info.size
		}
	}
	return stride
}

// AttributeLocation binds a vertex attribute to a shader location.
type AttributeLocation struct {
	Attribute VertexAttribute
	Location  uint32
}

// BufferLayout builds the vertex buffer layout for the requested attributes.
// It fails with ErrMissingAttribute if the mesh does not provide one of them.
func (v VertexAttribute) BufferLayout(wanted ...AttributeLocation) (gputypes.VertexBufferLayout, error) {
	layout := gputypes.VertexBufferLayout{
		ArrayStride: v.Stride(),
		StepMode:    gputypes.VertexStepModeVertex,
	}
	for _, w := range wanted {
		if !v.Has(w.Attribute) {
			return gputypes.VertexBufferLayout{}, fmt.Errorf("%w: %s", ErrMissingAttribute, w.Attribute)
		}
		var offset uint64
		for _, info := range vertexAttributeInfo {
			if info.attr == w.Attribute {
				layout.Attributes = append(layout.Attributes, gputypes.VertexAttribute{
					Format:         info.format,
					Offset:         offset,
					ShaderLocation: w.Location,
				})
				break
			}
			if v.Has(info.attr) {
				offset += info.size
			}
		}
	}
	return layout, nil
}

func (v VertexAttribute) String() string {
	var names []string
	for _, info := range vertexAttributeInfo {
		if v.Has(info.attr) {
			names = append(names, info.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// Key selects one specialized variant of a pipeline. Keys are comparable
// and are used directly as cache keys.
type Key struct {
	Mesh     MeshKey
	Layout   VertexAttribute
	Material uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%08x/%08x/%016x", uint32(k.Mesh), uint32(k.Layout), k.Material)
}
