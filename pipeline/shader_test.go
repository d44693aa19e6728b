// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"strings"
	"testing"
)

func TestShaderRegistry_Reload(t *testing.T) {
	r := NewShaderRegistry()
	r.Register("prepass.wgsl", "v1")

	var notified []ShaderHandle
	r.OnReload(func(h ShaderHandle) { notified = append(notified, h) })

	if err := r.Reload("prepass.wgsl", "v1"); err != nil {
		t.Fatal(err)
	}
	if len(notified) != 0 {
		t.Error("unchanged source should not notify")
	}

	if err := r.Reload("prepass.wgsl", "v2"); err != nil {
		t.Fatal(err)
	}
	if len(notified) != 1 || notified[0] != "prepass.wgsl" {
		t.Errorf("notified = %v, want [prepass.wgsl]", notified)
	}
	if src, _ := r.Source("prepass.wgsl"); src != "v2" {
		t.Errorf("Source() = %q, want v2", src)
	}
	if r.Version("prepass.wgsl") != 2 {
		t.Errorf("Version() = %d, want 2", r.Version("prepass.wgsl"))
	}

	if err := r.Reload("unknown.wgsl", "x"); !errors.Is(err, ErrUnknownShader) {
		t.Errorf("Reload(unknown) error = %v, want ErrUnknownShader", err)
	}
}

func TestShaderRegistry_Resolve(t *testing.T) {
	r := NewShaderRegistry()
	r.Register("io.wgsl", "struct Io {}")
	r.Register("main.wgsl", "#import \"io.wgsl\"\n#ifdef FLAG\nflagged\n#endif")

	out, err := r.Resolve("main.wgsl", []ShaderDef{Def("FLAG")})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "struct Io") || !strings.Contains(out, "flagged") {
		t.Errorf("Resolve() = %q", out)
	}

	if _, err := r.Resolve("nope.wgsl", nil); !errors.Is(err, ErrUnknownShader) {
		t.Errorf("Resolve(unknown) error = %v", err)
	}

	handles := r.Handles()
	if len(handles) != 2 || handles[0] != "io.wgsl" {
		t.Errorf("Handles() = %v", handles)
	}
}

func TestShaderRegistry_ResolveCache(t *testing.T) {
	r := NewShaderRegistry()
	r.Register("io.wgsl", "struct Io { a: f32 }")
	r.Register("main.wgsl", "#import \"io.wgsl\"\n#ifdef FLAG\nflagged\n#endif")

	defs := []ShaderDef{Def("FLAG")}
	first, err := r.Resolve("main.wgsl", defs)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve("main.wgsl", defs); err != nil {
		t.Fatal(err)
	}
	if s := r.ResolveStats(); s.Hits != 1 || s.Len != 1 {
		t.Errorf("after repeat: stats = %+v, want 1 hit and 1 entry", s)
	}

	// Other defs are a separate entry.
	plain, err := r.Resolve("main.wgsl", nil)
	if err != nil {
		t.Fatal(err)
	}
	if plain == first || strings.Contains(plain, "flagged") {
		t.Errorf("Resolve(no defs) = %q", plain)
	}

	// Reloading an import must not serve the stale output.
	if err := r.Reload("io.wgsl", "struct Io { b: u32 }"); err != nil {
		t.Fatal(err)
	}
	out, err := r.Resolve("main.wgsl", defs)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "b: u32") {
		t.Errorf("Resolve after import reload = %q", out)
	}
}
