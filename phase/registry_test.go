// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package phase

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestViewPhase_AddAndClear(t *testing.T) {
	vp := NewViewPhase(Opaque)
	if !vp.IsEmpty() {
		t.Fatal("new phase should be empty")
	}

	set := BatchSetKey{Pipeline: 1}
	vp.Add(set, BinKey{Mesh: 1}, Entity{Render: 1}, Batchable)
	vp.Add(set, BinKey{Mesh: 1}, Entity{Render: 2}, Batchable)

	if vp.Len() != 2 {
		t.Errorf("Len() = %d, want 2", vp.Len())
	}
	vp.Clear()
	if !vp.IsEmpty() {
		t.Error("phase should be empty after Clear")
	}
}

func TestViewPhase_Remove(t *testing.T) {
	vp := NewViewPhase(Opaque)
	set := BatchSetKey{Pipeline: 1}
	vp.Add(set, BinKey{Mesh: 1}, Entity{Render: 1}, Batchable)

	if vp.Remove(set, BinKey{Mesh: 2}, Entity{Render: 1}) {
		t.Error("Remove from unknown bin should fail")
	}
	if !vp.Remove(set, BinKey{Mesh: 1}, Entity{Render: 1}) {
		t.Error("Remove of added entity should succeed")
	}
	if vp.Remove(set, BinKey{Mesh: 1}, Entity{Render: 1}) {
		t.Error("second Remove should fail")
	}
	if !vp.IsEmpty() {
		t.Error("phase should be empty after removing its only entity")
	}
}

func TestViewPhase_MostRestrictiveMode(t *testing.T) {
	vp := NewViewPhase(Opaque)
	set := BatchSetKey{Pipeline: 1}
	vp.Add(set, BinKey{Mesh: 1}, Entity{Render: 1}, Multidrawable)
	vp.Add(set, BinKey{Mesh: 1}, Entity{Render: 2}, Unbatchable)

	out := Bin(vp, Capabilities{MultiDrawIndirect: true, IndirectDraw: true})
	if len(out.Multidrawable) != 0 || len(out.Unbatchable) != 2 {
		t.Errorf("tiers = %d/%d/%d, want bin demoted to unbatchable",
			len(out.Multidrawable), len(out.Batchable), len(out.Unbatchable))
	}
}

func TestViewPhase_ConcurrentAdd(t *testing.T) {
	vp := NewViewPhase(AlphaMask)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				vp.Add(BatchSetKey{Pipeline: 1}, BinKey{Mesh: MeshID(i % 4)},
					Entity{Render: uint64(w*100 + i)}, Batchable)
			}
		}()
	}
	wg.Wait()

	if vp.Len() != 800 {
		t.Errorf("Len() = %d, want 800", vp.Len())
	}
}

func TestViewPhases_Prepare(t *testing.T) {
	phases := NewViewPhases(Opaque)
	a, b := uuid.New(), uuid.New()

	phases.Prepare([]uuid.UUID{a, b})
	vpA, ok := phases.Get(a)
	if !ok {
		t.Fatal("prepared view missing")
	}
	vpA.Add(BatchSetKey{}, BinKey{}, Entity{Render: 1}, Batchable)

	phases.Prepare([]uuid.UUID{a})
	if phases.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after dropping a view", phases.Len())
	}
	again, _ := phases.Get(a)
	if again != vpA {
		t.Error("retained view should keep its phase")
	}
	if !again.IsEmpty() {
		t.Error("retained phase should be cleared by Prepare")
	}
	if _, ok := phases.Get(b); ok {
		t.Error("dropped view should have no phase")
	}

	c := uuid.New()
	if phases.GetOrCreate(c) != phases.GetOrCreate(c) {
		t.Error("GetOrCreate should return a stable phase")
	}
	if phases.GetOrCreate(c).Kind() != Opaque {
		t.Error("created phase should inherit the kind")
	}
}

func TestKind_String(t *testing.T) {
	if Opaque.String() != "opaque" || AlphaMask.String() != "alpha_mask" {
		t.Errorf("Kind strings = %q, %q", Opaque, AlphaMask)
	}
	if len(Kinds) != 2 || Kinds[0] != Opaque {
		t.Errorf("Kinds = %v, want opaque first", Kinds)
	}
}
