// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/phase"
	"github.com/gogpu/visbuffer/pipeline"
)

// MeshBuffers locates a mesh inside the host's vertex and index slabs.
type MeshBuffers struct {
	Vertex       *Buffer
	VertexOffset uint64
	VertexCount  uint32
	FirstVertex  uint32

	// Index is nil for non-indexed meshes.
	Index       *Buffer
	IndexFormat gputypes.IndexFormat
	IndexOffset uint64
	IndexCount  uint32
	FirstIndex  uint32
	BaseVertex  int32
}

// Indexed reports whether the mesh has an index buffer.
func (m *MeshBuffers) Indexed() bool { return m.Index != nil }

// Resources supplies the per-draw GPU resources owned by the host.
// Implementations must be safe for concurrent reads: several views encode
// at the same time.
type Resources interface {
	MeshLookup

	// MeshBindGroup returns the mesh uniform bind group of an entity.
	MeshBindGroup(entity phase.Entity) (*BindGroup, bool)

	// MaterialBindGroup returns a material bind group by slot.
	MaterialBindGroup(slot uint32) (*BindGroup, bool)

	// IndirectBuffer returns the indirect parameter buffer of the frame,
	// or nil when indirect draws are disabled.
	IndirectBuffer() *Buffer
}

// ViewBinding is the per-view bind group and its dynamic offsets.
type ViewBinding struct {
	BindGroup      *BindGroup
	DynamicOffsets []uint32
}

// PipelineResolver looks up compiled pipelines by ID. *pipeline.Cache
// implements it.
type PipelineResolver interface {
	Get(id pipeline.ID) (*pipeline.Pipeline, bool)
}

var _ PipelineResolver = (*pipeline.Cache)(nil)

// MapResources is a map-backed Resources. It is filled before encoding
// and read-only afterwards.
type MapResources struct {
	Meshes         map[phase.MeshID]MeshBuffers
	MeshGroups     map[phase.Entity]*BindGroup
	MaterialGroups map[uint32]*BindGroup
	Indirect       *Buffer

	// DefaultMeshGroup is used for entities without their own mesh bind
	// group, the usual case for a shared dynamic-offset uniform buffer.
	DefaultMeshGroup *BindGroup
}

// NewMapResources returns empty resources.
func NewMapResources() *MapResources {
	return &MapResources{
		Meshes:         make(map[phase.MeshID]MeshBuffers),
		MeshGroups:     make(map[phase.Entity]*BindGroup),
		MaterialGroups: make(map[uint32]*BindGroup),
	}
}

// Mesh implements Resources.
func (r *MapResources) Mesh(id phase.MeshID) (MeshBuffers, bool) {
	m, ok := r.Meshes[id]
	return m, ok
}

// MeshBindGroup implements Resources.
func (r *MapResources) MeshBindGroup(entity phase.Entity) (*BindGroup, bool) {
	if g, ok := r.MeshGroups[entity]; ok {
		return g, true
	}
	return r.DefaultMeshGroup, r.DefaultMeshGroup != nil
}

// MaterialBindGroup implements Resources.
func (r *MapResources) MaterialBindGroup(slot uint32) (*BindGroup, bool) {
	g, ok := r.MaterialGroups[slot]
	return g, ok
}

// IndirectBuffer implements Resources.
func (r *MapResources) IndirectBuffer() *Buffer { return r.Indirect }
