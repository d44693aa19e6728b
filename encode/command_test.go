// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"testing"
)

func TestDrawFunctions(t *testing.T) {
	fns := NewDrawFunctions()

	id := fns.Add("draw_visbuffer", DrawVisbuffer...)
	if id != 1 {
		t.Fatalf("first ID = %d, want 1", id)
	}
	if again := fns.Add("draw_visbuffer", DrawMesh{}); again != id {
		t.Errorf("re-adding returned %d, want %d", again, id)
	}
	other := fns.Add("draw_only", DrawMesh{})
	if other != 2 {
		t.Errorf("second ID = %d, want 2", other)
	}

	cmds, ok := fns.Get(id)
	if !ok || len(cmds) != len(DrawVisbuffer) {
		t.Fatalf("Get() = %d commands, %v; want %d, true", len(cmds), ok, len(DrawVisbuffer))
	}
	if _, ok := fns.Get(0); ok {
		t.Error("Get(0) should fail")
	}
	if _, ok := fns.Get(3); ok {
		t.Error("Get(3) should fail")
	}
	if got, ok := fns.ID("draw_only"); !ok || got != other {
		t.Errorf("ID() = %d, %v", got, ok)
	}
	if fns.Name(id) != "draw_visbuffer" || fns.Name(9) != "" {
		t.Errorf("Name() = %q / %q", fns.Name(id), fns.Name(9))
	}
}

func TestRenderCommand_String(t *testing.T) {
	want := []string{
		"SetItemPipeline",
		"SetViewBindGroup(0)",
		"SetMeshBindGroup(1)",
		"SetMaterialBindGroup(2)",
		"DrawMesh",
	}
	for i, cmd := range DrawVisbuffer {
		if got := cmd.String(); got != want[i] {
			t.Errorf("command %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestRecorder_ResetAndOps(t *testing.T) {
	rec := NewRecorder("ops")
	defer rec.Release()

	rec.Draw(3, 1, 0, 0)
	rec.DrawIndexed(6, 2, 0, -1, 4)
	rec.End()
	if rec.DrawCalls() != 2 || !rec.Ended() {
		t.Fatalf("DrawCalls() = %d, Ended() = %v", rec.DrawCalls(), rec.Ended())
	}
	if got := rec.Commands()[1].String(); got != "DrawIndexed(6, 2, 0, -1, 4)" {
		t.Errorf("String() = %q", got)
	}

	rec.Reset()
	if rec.Len() != 0 || rec.Ended() {
		t.Errorf("after Reset Len() = %d, Ended() = %v", rec.Len(), rec.Ended())
	}
	if OpEnd.IsDraw() || !OpMultiDrawIndexedIndirect.IsDraw() {
		t.Error("IsDraw() classification is wrong")
	}
	if Op(200).String() != "Op(200)" {
		t.Errorf("Op(200).String() = %q", Op(200).String())
	}
}
