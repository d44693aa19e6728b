// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package visbuffer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/visbuffer/pipeline"
)

const testShader pipeline.ShaderHandle = "test.wgsl"

func newWatchedRegistry(t *testing.T) (string, *pipeline.ShaderRegistry, map[string]pipeline.ShaderHandle) {
	t.Helper()
	dir := t.TempDir()
	registry := pipeline.NewShaderRegistry()
	registry.Register(testShader, "// v1\n")
	return dir, registry, map[string]pipeline.ShaderHandle{"test.wgsl": testShader}
}

func TestLoadShaderDir(t *testing.T) {
	dir, registry, files := newWatchedRegistry(t)

	n, err := LoadShaderDir(dir, files, registry)
	if err != nil || n != 0 {
		t.Fatalf("LoadShaderDir(empty) = %d, %v; want 0, nil", n, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "test.wgsl"), []byte("// override\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	n, err = LoadShaderDir(dir, files, registry)
	if err != nil || n != 1 {
		t.Fatalf("LoadShaderDir() = %d, %v; want 1, nil", n, err)
	}
	if src, _ := registry.Source(testShader); src != "// override\n" {
		t.Errorf("source = %q, want override", src)
	}
}

func TestShaderWatcher_ApplyPending(t *testing.T) {
	dir, registry, files := newWatchedRegistry(t)
	w, err := NewShaderWatcher(dir, files, registry)
	if err != nil {
		t.Fatalf("NewShaderWatcher() error = %v", err)
	}
	defer w.Close()

	var reloaded []pipeline.ShaderHandle
	registry.OnReload(func(h pipeline.ShaderHandle) { reloaded = append(reloaded, h) })

	if err := os.WriteFile(filepath.Join(dir, "test.wgsl"), []byte("// v2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	w.mark("test.wgsl")
	w.mark("unrelated.txt")

	if got := w.Pending(); len(got) != 1 || got[0] != "test.wgsl" {
		t.Fatalf("Pending() = %v, want [test.wgsl]", got)
	}
	n, err := w.Apply()
	if err != nil || n != 1 {
		t.Fatalf("Apply() = %d, %v; want 1, nil", n, err)
	}
	if len(reloaded) != 1 || reloaded[0] != testShader {
		t.Errorf("reload listeners got %v", reloaded)
	}
	if len(w.Pending()) != 0 {
		t.Error("Apply left pending shaders")
	}
}

func TestShaderWatcher_FileEvent(t *testing.T) {
	dir, registry, files := newWatchedRegistry(t)
	w, err := NewShaderWatcher(dir, files, registry)
	if err != nil {
		t.Fatalf("NewShaderWatcher() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "test.wgsl"), []byte("// v3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for len(w.Pending()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no file event within 5s")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := w.Apply(); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if src, _ := registry.Source(testShader); src != "// v3\n" {
		t.Errorf("source = %q, want reloaded content", src)
	}
}

func TestShaderWatcher_Close(t *testing.T) {
	dir, registry, files := newWatchedRegistry(t)
	w, err := NewShaderWatcher(dir, files, registry)
	if err != nil {
		t.Fatalf("NewShaderWatcher() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := w.Apply(); err != ErrWatcherClosed {
		t.Errorf("Apply() after Close = %v, want ErrWatcherClosed", err)
	}
}
