// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package phase

import (
	"fmt"

	"github.com/gogpu/visbuffer/pipeline"
)

// Entity identifies a drawable in the render world and in the main world it
// was extracted from.
type Entity struct {
	Render uint64
	Main   uint64
}

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.Render, e.Main)
}

// DrawFunctionID selects a registered draw function.
type DrawFunctionID uint32

// MeshID identifies a mesh allocation in the host's mesh allocator.
type MeshID uint32

// BatchSetKey groups draws that can share one multi-draw call: same
// pipeline, same draw function, same material bind group and the same
// vertex and index slabs.
type BatchSetKey struct {
	DrawFunction      DrawFunctionID
	Pipeline          pipeline.ID
	MaterialBindGroup uint32
	VertexSlab        uint32
	IndexSlab         uint32
	Indexed           bool
}

// BinKey groups draws inside a batch set that can share one instanced draw.
type BinKey struct {
	Mesh MeshID
}

// Kind is the closed set of phases this package schedules.
type Kind uint8

const (
	// Opaque draws write depth and visibility unconditionally.
	Opaque Kind = iota

	// AlphaMask draws may discard fragments.
	AlphaMask

	kindCount
)

// Kinds lists every phase kind in render order.
var Kinds = [kindCount]Kind{Opaque, AlphaMask}

func (k Kind) String() string {
	switch k {
	case Opaque:
		return "opaque"
	case AlphaMask:
		return "alpha_mask"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// BinMode states how a candidate may be batched.
type BinMode uint8

const (
	// Multidrawable candidates may be merged into one multi-draw call per
	// batch set.
	Multidrawable BinMode = iota

	// Batchable candidates share an instanced draw per bin.
	Batchable

	// Unbatchable candidates are drawn one at a time.
	Unbatchable
)

func (m BinMode) String() string {
	switch m {
	case Multidrawable:
		return "multidrawable"
	case Batchable:
		return "batchable"
	case Unbatchable:
		return "unbatchable"
	default:
		return fmt.Sprintf("BinMode(%d)", int(m))
	}
}

// BatchRange is a half-open range [Start, End) of instances.
type BatchRange struct {
	Start uint32
	End   uint32
}

// Len returns the number of instances in the range.
func (r BatchRange) Len() uint32 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// IsEmpty reports whether the range covers no instances.
func (r BatchRange) IsEmpty() bool { return r.Len() == 0 }

// ExtraIndexKind discriminates ExtraIndex.
type ExtraIndexKind uint8

const (
	// ExtraIndexNone means the draw has no extra index.
	ExtraIndexNone ExtraIndexKind = iota

	// ExtraIndexDynamicOffset carries a dynamic uniform offset.
	ExtraIndexDynamicOffset

	// ExtraIndexIndirect carries a range of indirect parameter slots.
	ExtraIndexIndirect
)

// ExtraIndex is the optional second index of a draw: a dynamic offset for
// uniform-based meshes or the indirect parameter slots for GPU-driven draws.
type ExtraIndex struct {
	Kind   ExtraIndexKind
	Offset uint32
	Slots  BatchRange
}

// NoExtraIndex returns the empty extra index.
func NoExtraIndex() ExtraIndex { return ExtraIndex{} }

// DynamicOffset returns an extra index carrying a dynamic uniform offset.
func DynamicOffset(offset uint32) ExtraIndex {
	return ExtraIndex{Kind: ExtraIndexDynamicOffset, Offset: offset}
}

// IndirectSlots returns an extra index covering indirect slots [start, end).
func IndirectSlots(start, end uint32) ExtraIndex {
	return ExtraIndex{Kind: ExtraIndexIndirect, Slots: BatchRange{Start: start, End: end}}
}

// Item is the capability set every phase item exposes to the emitter.
type Item interface {
	RepresentativeEntity() Entity
	DrawFunction() DrawFunctionID
	BatchRange() BatchRange
	ExtraIndex() ExtraIndex
	CachedPipeline() pipeline.ID
}

// DrawItem is one emitted draw. It is immutable once produced by Bin and
// lives for one frame.
type DrawItem struct {
	Kind     Kind
	BatchSet BatchSetKey
	Bin      BinKey
	Entity   Entity
	Range    BatchRange
	Extra    ExtraIndex
}

var _ Item = DrawItem{}

// RepresentativeEntity returns the entity whose per-draw data is bound.
func (d DrawItem) RepresentativeEntity() Entity { return d.Entity }

// DrawFunction returns the draw function that encodes this item.
func (d DrawItem) DrawFunction() DrawFunctionID { return d.BatchSet.DrawFunction }

// BatchRange returns the instance range covered by the draw.
func (d DrawItem) BatchRange() BatchRange { return d.Range }

// ExtraIndex returns the draw's extra index.
func (d DrawItem) ExtraIndex() ExtraIndex { return d.Extra }

// CachedPipeline returns the pipeline bound for the draw.
func (d DrawItem) CachedPipeline() pipeline.ID { return d.BatchSet.Pipeline }
