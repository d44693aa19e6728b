// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package phase

import (
	"sync"

	"github.com/google/uuid"
)

type binEntry struct {
	key      BinKey
	first    int
	mode     BinMode
	entities []Entity
}

type batchSetEntry struct {
	key   BatchSetKey
	first int
	bins  map[BinKey]*binEntry
}

// ViewPhase holds the draw candidates of one phase kind for one view for
// one frame.
//
// Add may be called from several extraction goroutines. Bin and Clear must
// not run concurrently with Add.
type ViewPhase struct {
	kind Kind

	mu    sync.Mutex
	sets  map[BatchSetKey]*batchSetEntry
	seq   int
	count int
}

// NewViewPhase creates an empty phase of the given kind.
func NewViewPhase(kind Kind) *ViewPhase {
	return &ViewPhase{
		kind: kind,
		sets: make(map[BatchSetKey]*batchSetEntry),
	}
}

// Kind returns the phase kind.
func (vp *ViewPhase) Kind() Kind { return vp.kind }

// Add records a draw candidate. Candidates may arrive in any order.
//
// When the same bin receives candidates with different modes, the bin
// keeps the most restrictive one.
func (vp *ViewPhase) Add(set BatchSetKey, bin BinKey, entity Entity, mode BinMode) {
	vp.mu.Lock()
	defer vp.mu.Unlock()

	s, ok := vp.sets[set]
	if !ok {
		s = &batchSetEntry{key: set, first: vp.seq, bins: make(map[BinKey]*binEntry)}
		vp.sets[set] = s
	}
	b, ok := s.bins[bin]
	if !ok {
		b = &binEntry{key: bin, first: vp.seq, mode: mode}
		s.bins[bin] = b
	}
	b.mode = max(b.mode, mode)
	b.entities = append(b.entities, entity)
	vp.seq++
	vp.count++
}

// Remove drops one candidate previously added for entity. The bin stays
// registered even when it becomes empty; Bin skips empty bins.
func (vp *ViewPhase) Remove(set BatchSetKey, bin BinKey, entity Entity) bool {
	vp.mu.Lock()
	defer vp.mu.Unlock()

	s, ok := vp.sets[set]
	if !ok {
		return false
	}
	b, ok := s.bins[bin]
	if !ok {
		return false
	}
	for i, e := range b.entities {
		if e == entity {
			b.entities = append(b.entities[:i], b.entities[i+1:]...)
			vp.count--
			return true
		}
	}
	return false
}

// Len returns the number of candidates currently held.
func (vp *ViewPhase) Len() int {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	return vp.count
}

// IsEmpty reports whether the phase has no candidates. A view whose
// phases are all empty opens no render pass.
func (vp *ViewPhase) IsEmpty() bool {
	return vp.Len() == 0
}

// Clear drops every candidate.
func (vp *ViewPhase) Clear() {
	vp.mu.Lock()
	defer vp.mu.Unlock()
	clear(vp.sets)
	vp.seq = 0
	vp.count = 0
}

// ViewPhases maps retained views to their phase of one kind.
//
// ViewPhases is safe for concurrent use.
type ViewPhases struct {
	kind Kind

	mu     sync.RWMutex
	phases map[uuid.UUID]*ViewPhase
}

// NewViewPhases creates an empty set of phases of the given kind.
func NewViewPhases(kind Kind) *ViewPhases {
	return &ViewPhases{
		kind:   kind,
		phases: make(map[uuid.UUID]*ViewPhase),
	}
}

// Kind returns the phase kind.
func (p *ViewPhases) Kind() Kind { return p.kind }

// Prepare starts a frame: phases of listed views are created or cleared,
// phases of views no longer listed are dropped.
func (p *ViewPhases) Prepare(views []uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	live := make(map[uuid.UUID]*ViewPhase, len(views))
	for _, v := range views {
		vp, ok := p.phases[v]
		if ok {
			vp.Clear()
		} else {
			vp = NewViewPhase(p.kind)
		}
		live[v] = vp
	}
	p.phases = live
}

// Get returns the phase for view.
func (p *ViewPhases) Get(view uuid.UUID) (*ViewPhase, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	vp, ok := p.phases[view]
	return vp, ok
}

// GetOrCreate returns the phase for view, creating it if needed.
func (p *ViewPhases) GetOrCreate(view uuid.UUID) *ViewPhase {
	if vp, ok := p.Get(view); ok {
		return vp
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if vp, ok := p.phases[view]; ok {
		return vp
	}
	vp := NewViewPhase(p.kind)
	p.phases[view] = vp
	return vp
}

// Len returns the number of views with a phase.
func (p *ViewPhases) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.phases)
}
