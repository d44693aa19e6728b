// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
	"slices"
	"strconv"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ShaderDef is a preprocessor definition. An empty Value defines a flag.
type ShaderDef struct {
	Name  string
	Value string
}

// Def returns a flag definition.
func Def(name string) ShaderDef {
	return ShaderDef{Name: name}
}

// DefUint returns a definition with a numeric value.
func DefUint(name string, v uint32) ShaderDef {
	return ShaderDef{Name: name, Value: strconv.FormatUint(uint64(v), 10)}
}

// ShaderStage selects a shader, its entry point and the definitions applied
// before compilation.
type ShaderStage struct {
	Shader     ShaderHandle
	EntryPoint string
	Defs       []ShaderDef
}

// HasDef reports whether the stage defines name.
func (s *ShaderStage) HasDef(name string) bool {
	return slices.ContainsFunc(s.Defs, func(d ShaderDef) bool { return d.Name == name })
}

// Descriptor describes a render pipeline before compilation.
//
// Specializers build a fresh Descriptor per key. Descriptors with equal
// Hash values are compiled once and shared between keys.
type Descriptor struct {
	Label string

	// Layouts names the bind group layouts in group order. Names are
	// resolved by the compiler's LayoutProvider.
	Layouts []string

	Vertex        ShaderStage
	VertexBuffers []gputypes.VertexBufferLayout

	// Fragment is nil for depth-only pipelines.
	Fragment *ShaderStage
	Targets  []gputypes.ColorTargetState

	// Primitive.UnclippedDepth must only be set when the device supports
	// depth clip control.
	Primitive gputypes.PrimitiveState

	DepthStencil *hal.DepthStencilState
	Multisample  gputypes.MultisampleState
}

// Validate checks the fields every compiler relies on.
func (d *Descriptor) Validate() error {
	if d == nil {
		return ErrNilDescriptor
	}
	if d.Vertex.Shader == "" || d.Vertex.EntryPoint == "" {
		return ErrMissingVertexShader
	}
	return nil
}

// InsertLayout inserts a bind group layout name at index, shifting later
// groups up.
func (d *Descriptor) InsertLayout(index int, name string) {
	index = min(max(index, 0), len(d.Layouts))
	d.Layouts = slices.Insert(d.Layouts, index, name)
}

// Hash computes an FNV-1a hash over every field that affects the compiled
// pipeline.
func (d *Descriptor) Hash() uint64 {
	h := fnv.New64a()

	hashWriteString(h, d.Label)

	hashWriteUint32(h, uint32(len(d.Layouts))) //nolint:gosec // G115: at most 4 bind groups
	for _, l := range d.Layouts {
		hashWriteString(h, l)
	}

	hashStage(h, &d.Vertex)

	hashWriteUint32(h, uint32(len(d.VertexBuffers))) //nolint:gosec // G115: bounded by GPU limits
	for i := range d.VertexBuffers {
		layout := &d.VertexBuffers[i]
		hashWriteUint64(h, uint64(layout.ArrayStride))
		hashWriteUint32(h, uint32(layout.StepMode))
		hashWriteUint32(h, uint32(len(layout.Attributes))) //nolint:gosec // G115: bounded by GPU limits
		for j := range layout.Attributes {
			attr := &layout.Attributes[j]
			hashWriteUint32(h, uint32(attr.ShaderLocation))
			hashWriteUint32(h, uint32(attr.Format))
			hashWriteUint64(h, uint64(attr.Offset))
		}
	}

	hashWriteBool(h, d.Fragment != nil)
	if d.Fragment != nil {
		hashStage(h, d.Fragment)
	}
	hashWriteUint32(h, uint32(len(d.Targets))) //nolint:gosec // G115: bounded by GPU limits
	for i := range d.Targets {
		target := &d.Targets[i]
		hashWriteUint32(h, uint32(target.Format))
		hashWriteUint32(h, uint32(target.WriteMask))
		hashWriteBool(h, target.Blend != nil)
		if b := target.Blend; b != nil {
			hashBlendComponent(h, &b.Color)
			hashBlendComponent(h, &b.Alpha)
		}
	}

	hashWriteUint32(h, uint32(d.Primitive.Topology))
	hashWriteBool(h, d.Primitive.StripIndexFormat != nil)
	if f := d.Primitive.StripIndexFormat; f != nil {
		hashWriteUint32(h, uint32(*f))
	}
	hashWriteUint32(h, uint32(d.Primitive.FrontFace))
	hashWriteUint32(h, uint32(d.Primitive.CullMode))
	hashWriteBool(h, d.Primitive.UnclippedDepth)

	hashWriteBool(h, d.DepthStencil != nil)
	if ds := d.DepthStencil; ds != nil {
		hashWriteUint32(h, uint32(ds.Format))
		hashWriteBool(h, ds.DepthWriteEnabled)
		hashWriteUint32(h, uint32(ds.DepthCompare))
		hashStencilFace(h, &ds.StencilFront)
		hashStencilFace(h, &ds.StencilBack)
		hashWriteUint32(h, uint32(ds.StencilReadMask))
		hashWriteUint32(h, uint32(ds.StencilWriteMask))
		hashWriteUint32(h, uint32(ds.DepthBias)) //nolint:gosec // G115: bit pattern only
		hashWriteUint32(h, math.Float32bits(ds.DepthBiasSlopeScale))
		hashWriteUint32(h, math.Float32bits(ds.DepthBiasClamp))
	}

	hashWriteUint32(h, uint32(d.Multisample.Count))
	hashWriteUint64(h, uint64(d.Multisample.Mask))
	hashWriteBool(h, d.Multisample.AlphaToCoverageEnabled)

	return h.Sum64()
}

func hashStage(h hash.Hash64, s *ShaderStage) {
	hashWriteString(h, string(s.Shader))
	hashWriteString(h, s.EntryPoint)
	hashWriteUint32(h, uint32(len(s.Defs))) //nolint:gosec // G115: def lists are short
	for _, def := range s.Defs {
		hashWriteString(h, def.Name)
		hashWriteString(h, def.Value)
	}
}

func hashBlendComponent(h hash.Hash64, c *gputypes.BlendComponent) {
	hashWriteUint32(h, uint32(c.SrcFactor))
	hashWriteUint32(h, uint32(c.DstFactor))
	hashWriteUint32(h, uint32(c.Operation))
}

func hashStencilFace(h hash.Hash64, f *hal.StencilFaceState) {
	hashWriteUint32(h, uint32(f.Compare))
	hashWriteUint32(h, uint32(f.FailOp))
	hashWriteUint32(h, uint32(f.DepthFailOp))
	hashWriteUint32(h, uint32(f.PassOp))
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

//nolint:gosec // G115: labels, names and entry points are short
func hashWriteString(h hash.Hash64, s string) {
	hashWriteUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}
