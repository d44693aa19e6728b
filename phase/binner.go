// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package phase

import (
	"cmp"
	"slices"
)

// Capabilities describes the draw features of the device.
type Capabilities struct {
	// MultiDrawIndirect allows one call to issue several indirect draws.
	MultiDrawIndirect bool

	// IndirectDraw allows draws whose parameters live in a GPU buffer.
	IndirectDraw bool
}

// IndirectSlot describes one indexed indirect draw. The host writes one
// DrawIndexedIndirect record per slot, in slot order.
type IndirectSlot struct {
	BatchSet      BatchSetKey
	Mesh          MeshID
	FirstInstance uint32
	InstanceCount uint32
}

// BinnedPhase is the output of Bin: the draws of one phase for one view,
// split into the three emission tiers.
type BinnedPhase struct {
	Kind Kind

	// Multidrawable holds one draw per batch set. Its Extra covers the
	// indirect slots of every bin in the set.
	Multidrawable []DrawItem

	// Batchable holds one instanced draw per bin. Extra covers a single
	// indirect slot when indirect draws are available.
	Batchable []DrawItem

	// Unbatchable holds one draw per candidate.
	Unbatchable []DrawItem

	// Instances maps instance indices to entities, in upload order.
	Instances []Entity

	// IndirectSlots lists the indirect draws referenced by the tiers.
	IndirectSlots []IndirectSlot
}

// IsEmpty reports whether the phase produces no draws.
func (b *BinnedPhase) IsEmpty() bool {
	return b == nil || len(b.Multidrawable)+len(b.Batchable)+len(b.Unbatchable) == 0
}

// DrawCount returns the number of draw calls the phase will issue. A
// multi-draw call counts once.
func (b *BinnedPhase) DrawCount() int {
	if b == nil {
		return 0
	}
	return len(b.Multidrawable) + len(b.Batchable) + len(b.Unbatchable)
}

// Bin groups the candidates of vp into emission tiers.
//
// Batch sets are ordered by pipeline, then draw function, then first
// insertion; bins within a set by first insertion. Empty bins produce no
// draws. Without multi-draw-indirect support, multidrawable bins are
// emitted as batchable bins.
func Bin(vp *ViewPhase, caps Capabilities) *BinnedPhase {
	vp.mu.Lock()
	defer vp.mu.Unlock()

	out := &BinnedPhase{Kind: vp.kind}

	sets := make([]*batchSetEntry, 0, len(vp.sets))
	for _, s := range vp.sets {
		sets = append(sets, s)
	}
	slices.SortFunc(sets, func(a, b *batchSetEntry) int {
		return cmp.Or(
			cmp.Compare(a.key.Pipeline, b.key.Pipeline),
			cmp.Compare(a.key.DrawFunction, b.key.DrawFunction),
			cmp.Compare(a.first, b.first),
		)
	})

	tiers := make([][][]*binEntry, len(sets))
	for i, s := range sets {
		tiers[i] = splitTiers(s, caps)
	}

	for i, s := range sets {
		out.emitMultidraw(s, tiers[i][Multidrawable])
	}
	for i, s := range sets {
		for _, b := range tiers[i][Batchable] {
			out.emitBatch(s, b, caps.IndirectDraw)
		}
	}
	for i, s := range sets {
		for _, b := range tiers[i][Unbatchable] {
			out.emitSingles(s, b)
		}
	}
	return out
}

// splitTiers returns the non-empty bins of s, ordered by insertion and
// indexed by effective BinMode.
func splitTiers(s *batchSetEntry, caps Capabilities) [][]*binEntry {
	bins := make([]*binEntry, 0, len(s.bins))
	for _, b := range s.bins {
		if len(b.entities) > 0 {
			bins = append(bins, b)
		}
	}
	slices.SortFunc(bins, func(a, b *binEntry) int { return cmp.Compare(a.first, b.first) })

	tiers := make([][]*binEntry, Unbatchable+1)
	for _, b := range bins {
		mode := b.mode
		if mode == Multidrawable && !caps.MultiDrawIndirect {
			mode = Batchable
		}
		tiers[mode] = append(tiers[mode], b)
	}
	return tiers
}

//nolint:gosec // G115: instance and slot counts fit in uint32 for any real frame
func (out *BinnedPhase) emitMultidraw(s *batchSetEntry, bins []*binEntry) {
	if len(bins) == 0 {
		return
	}
	firstSlot := uint32(len(out.IndirectSlots))
	firstInstance := uint32(len(out.Instances))
	for _, b := range bins {
		out.IndirectSlots = append(out.IndirectSlots, IndirectSlot{
			BatchSet:      s.key,
			Mesh:          b.key.Mesh,
			FirstInstance: uint32(len(out.Instances)),
			InstanceCount: uint32(len(b.entities)),
		})
		out.Instances = append(out.Instances, b.entities...)
	}
	out.Multidrawable = append(out.Multidrawable, DrawItem{
		Kind:     out.Kind,
		BatchSet: s.key,
		Bin:      bins[0].key,
		Entity:   bins[0].entities[0],
		Range:    BatchRange{Start: firstInstance, End: uint32(len(out.Instances))},
		Extra:    IndirectSlots(firstSlot, uint32(len(out.IndirectSlots))),
	})
}

//nolint:gosec // G115: instance and slot counts fit in uint32 for any real frame
func (out *BinnedPhase) emitBatch(s *batchSetEntry, b *binEntry, indirect bool) {
	start := uint32(len(out.Instances))
	out.Instances = append(out.Instances, b.entities...)
	r := BatchRange{Start: start, End: uint32(len(out.Instances))}

	extra := NoExtraIndex()
	if indirect {
		slot := uint32(len(out.IndirectSlots))
		out.IndirectSlots = append(out.IndirectSlots, IndirectSlot{
			BatchSet:      s.key,
			Mesh:          b.key.Mesh,
			FirstInstance: r.Start,
			InstanceCount: r.Len(),
		})
		extra = IndirectSlots(slot, slot+1)
	}
	out.Batchable = append(out.Batchable, DrawItem{
		Kind:     out.Kind,
		BatchSet: s.key,
		Bin:      b.key,
		Entity:   b.entities[0],
		Range:    r,
		Extra:    extra,
	})
}

//nolint:gosec // G115: instance counts fit in uint32 for any real frame
func (out *BinnedPhase) emitSingles(s *batchSetEntry, b *binEntry) {
	for _, e := range b.entities {
		idx := uint32(len(out.Instances))
		out.Instances = append(out.Instances, e)
		out.Unbatchable = append(out.Unbatchable, DrawItem{
			Kind:     out.Kind,
			BatchSet: s.key,
			Bin:      b.key,
			Entity:   e,
			Range:    BatchRange{Start: idx, End: idx + 1},
		})
	}
}
