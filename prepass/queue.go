// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package prepass

import (
	"errors"

	"github.com/google/uuid"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/internal/logging"
	"github.com/gogpu/visbuffer/phase"
	"github.com/gogpu/visbuffer/pipeline"
)

// DrawFunctionName is the name the prepass draw function is registered
// under.
const DrawFunctionName = "draw_visbuffer"

// Candidate is one extracted mesh instance that may draw in the prepass.
type Candidate struct {
	Entity phase.Entity
	Mesh   phase.MeshID

	// Layout lists the vertex attributes the mesh provides.
	Layout pipeline.VertexAttribute

	// MeshFlags carries per-mesh key flags such as MeshKeySkinned.
	MeshFlags pipeline.MeshKey

	// Topology defaults to a triangle list when unset.
	Topology gputypes.PrimitiveTopology

	// Material is the material's pipeline variant key.
	Material          uint64
	MaterialBindGroup uint32

	// AlphaMask routes the candidate to the alpha-mask phase.
	AlphaMask bool

	VertexSlab uint32
	IndexSlab  uint32
	Indexed    bool

	// Batchable is false for meshes that must be drawn one at a time.
	Batchable bool
}

// ViewKey holds the per-view parts of the pipeline key.
type ViewKey struct {
	MSAA                uint32
	UnclippedDepthOrtho bool
}

// QueueReport summarizes one QueueView call.
type QueueReport struct {
	Queued  int
	Dropped int
	Errors  []error
}

// Err joins the specialization errors, or returns nil.
func (r *QueueReport) Err() error { return errors.Join(r.Errors...) }

// Queue moves candidates into the opaque and alpha-mask phases.
type Queue struct {
	cache     *pipeline.Cache
	drawFn    phase.DrawFunctionID
	opaque    *phase.ViewPhases
	alphaMask *phase.ViewPhases
	multiDraw bool
}

// NewQueue creates a queue. With multiDraw set, batchable candidates are
// queued as multidrawable.
func NewQueue(cache *pipeline.Cache, drawFn phase.DrawFunctionID, opaque, alphaMask *phase.ViewPhases, multiDraw bool) *Queue {
	return &Queue{
		cache:     cache,
		drawFn:    drawFn,
		opaque:    opaque,
		alphaMask: alphaMask,
		multiDraw: multiDraw,
	}
}

// Key returns the pipeline key of c in a view.
func (q *Queue) Key(view ViewKey, c *Candidate) pipeline.Key {
	mesh := c.MeshFlags.Flags()
	if c.AlphaMask {
		mesh |= pipeline.MeshKeyAlphaMask | pipeline.MeshKeyMayDiscard
	}
	if view.UnclippedDepthOrtho {
		mesh |= pipeline.MeshKeyUnclippedDepthOrtho
	}
	topology := c.Topology
	if topology == 0 {
		topology = gputypes.PrimitiveTopologyTriangleList
	}
	mesh = mesh.WithTopology(topology).WithMSAA(view.MSAA)
	return pipeline.Key{Mesh: mesh, Layout: c.Layout, Material: c.Material}
}

// QueueView specializes a pipeline for every candidate and adds it to the
// phase of its kind for view. The view's phases must have been prepared
// for the frame. Candidates whose pipeline fails to specialize are
// dropped, logged with their key, and reported.
func (q *Queue) QueueView(view uuid.UUID, key ViewKey, candidates []Candidate) QueueReport {
	opaque := q.opaque.GetOrCreate(view)
	alphaMask := q.alphaMask.GetOrCreate(view)

	var rep QueueReport
	for i := range candidates {
		c := &candidates[i]
		pk := q.Key(key, c)
		p, err := q.cache.Specialize(pk)
		if err != nil {
			rep.Dropped++
			rep.Errors = append(rep.Errors, err)
			logging.Logger().Warn("prepass: item dropped",
				"view", view, "entity", c.Entity, "key", pk, "err", err)
			continue
		}

		set := phase.BatchSetKey{
			DrawFunction:      q.drawFn,
			Pipeline:          p.ID(),
			MaterialBindGroup: c.MaterialBindGroup,
			VertexSlab:        c.VertexSlab,
			IndexSlab:         c.IndexSlab,
			Indexed:           c.Indexed,
		}
		target := opaque
		if c.AlphaMask {
			target = alphaMask
		}
		target.Add(set, phase.BinKey{Mesh: c.Mesh}, c.Entity, q.mode(c))
		rep.Queued++
	}
	return rep
}

func (q *Queue) mode(c *Candidate) phase.BinMode {
	switch {
	case !c.Batchable:
		return phase.Unbatchable
	case q.multiDraw:
		return phase.Multidrawable
	default:
		return phase.Batchable
	}
}
