// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeCompiled records whether the cache destroyed it.
type fakeCompiled struct {
	label     string
	destroyed atomic.Bool
}

func (f *fakeCompiled) Destroy() { f.destroyed.Store(true) }

// countingCompiler counts Compile calls and optionally fails or blocks.
type countingCompiler struct {
	calls atomic.Int32
	delay time.Duration
	fail  error

	mu       sync.Mutex
	compiled []*fakeCompiled
}

func (c *countingCompiler) Compile(desc *Descriptor) (Compiled, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.fail != nil {
		return nil, c.fail
	}
	f := &fakeCompiled{label: desc.Label}
	c.mu.Lock()
	c.compiled = append(c.compiled, f)
	c.mu.Unlock()
	return f, nil
}

// labelSpecializer builds a descriptor whose label encodes the material id,
// so keys that differ only in MeshKey flags share a descriptor.
func labelSpecializer(calls *atomic.Int32) SpecializerFunc {
	return func(key Key) (*Descriptor, error) {
		if calls != nil {
			calls.Add(1)
		}
		return &Descriptor{
			Label:  "test_" + key.String()[18:],
			Vertex: ShaderStage{Shader: "test.wgsl", EntryPoint: "vertex"},
		}, nil
	}
}

// =============================================================================
// Specialize Tests
// =============================================================================

func TestCache_SpecializeOnce(t *testing.T) {
	compiler := &countingCompiler{}
	cache := NewCache(labelSpecializer(nil), compiler)

	key := Key{Mesh: MeshKeyMayDiscard, Layout: AttributePosition, Material: 1}
	p1, err := cache.Specialize(key)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	p2, err := cache.Specialize(key)
	if err != nil {
		t.Fatalf("second Specialize() error = %v", err)
	}

	if p1 != p2 {
		t.Error("identical keys should return the same pipeline")
	}
	if got := compiler.calls.Load(); got != 1 {
		t.Errorf("Compile called %d times, want 1", got)
	}
	if p1.ID() == 0 {
		t.Error("pipeline ID should be non-zero")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Compiles != 1 {
		t.Errorf("Stats() = %+v, want 1 hit, 1 miss, 1 compile", stats)
	}
	if stats.HitRate() != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", stats.HitRate())
	}
}

func TestCache_ConcurrentMissCompilesOnce(t *testing.T) {
	compiler := &countingCompiler{delay: 20 * time.Millisecond}
	cache := NewCache(labelSpecializer(nil), compiler)
	key := Key{Material: 9}

	const goroutines = 32
	results := make([]*Pipeline, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := range goroutines {
		go func() {
			defer wg.Done()
			p, err := cache.Specialize(key)
			if err != nil {
				t.Errorf("Specialize() error = %v", err)
				return
			}
			results[i] = p
		}()
	}
	wg.Wait()

	if got := compiler.calls.Load(); got != 1 {
		t.Errorf("Compile called %d times, want 1", got)
	}
	for i, p := range results {
		if p != results[0] {
			t.Errorf("results[%d] differs from results[0]", i)
		}
	}
}

func TestCache_SharedDescriptor(t *testing.T) {
	compiler := &countingCompiler{}
	cache := NewCache(labelSpecializer(nil), compiler)

	// Same material, different flags: the specializer ignores the flags.
	a, err := cache.Specialize(Key{Mesh: MeshKeyMayDiscard, Material: 3})
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.Specialize(Key{Mesh: MeshKeySkinned, Material: 3})
	if err != nil {
		t.Fatal(err)
	}

	if a != b {
		t.Error("keys with equal descriptors should share a pipeline")
	}
	if got := compiler.calls.Load(); got != 1 {
		t.Errorf("Compile called %d times, want 1", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestCache_WindingSeparatesPipelines(t *testing.T) {
	compiler := &countingCompiler{}
	specializer := SpecializerFunc(func(key Key) (*Descriptor, error) {
		desc := &Descriptor{
			Label:  "test",
			Vertex: ShaderStage{Shader: "test.wgsl", EntryPoint: "vertex"},
		}
		if key.Mesh.Has(MeshKeySkinned) {
			desc.Primitive.FrontFace = gputypes.FrontFaceCW
		}
		return desc, nil
	})
	cache := NewCache(specializer, compiler)

	ccw, err := cache.Specialize(Key{Material: 1})
	if err != nil {
		t.Fatal(err)
	}
	cw, err := cache.Specialize(Key{Mesh: MeshKeySkinned, Material: 1})
	if err != nil {
		t.Fatal(err)
	}

	if ccw.ID() == cw.ID() {
		t.Errorf("CCW and CW descriptors share pipeline %d", ccw.ID())
	}
	if got := compiler.calls.Load(); got != 2 {
		t.Errorf("Compile called %d times, want 2", got)
	}
}

func TestCache_SpecializeFailureMemoized(t *testing.T) {
	errNoMaterial := errors.New("material not loaded")
	var calls atomic.Int32
	specializer := SpecializerFunc(func(Key) (*Descriptor, error) {
		calls.Add(1)
		return nil, errNoMaterial
	})
	compiler := &countingCompiler{}
	cache := NewCache(specializer, compiler)

	key := Key{Material: 5}
	for range 3 {
		p, err := cache.Specialize(key)
		if p != nil {
			t.Error("failed specialization should not return a pipeline")
		}
		if !errors.Is(err, ErrSpecializationFailed) {
			t.Errorf("error = %v, want ErrSpecializationFailed", err)
		}
		if !errors.Is(err, errNoMaterial) {
			t.Errorf("error = %v, want wrapped cause", err)
		}
		var se *SpecializationError
		if !errors.As(err, &se) {
			t.Fatalf("error type = %T, want *SpecializationError", err)
		}
		if se.Key != key || se.Stage != StageSpecialize {
			t.Errorf("SpecializationError = {%v %v}, want {%v specialize}", se.Key, se.Stage, key)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("specializer called %d times, want 1", calls.Load())
	}
	if compiler.calls.Load() != 0 {
		t.Error("compiler should not run when specialization fails")
	}
	if cache.Stats().Failures != 1 {
		t.Errorf("Failures = %d, want 1", cache.Stats().Failures)
	}
}

func TestCache_CompileFailure(t *testing.T) {
	compiler := &countingCompiler{fail: errors.New("bad shader")}
	cache := NewCache(labelSpecializer(nil), compiler)

	_, err := cache.Specialize(Key{Material: 1})
	var se *SpecializationError
	if !errors.As(err, &se) || se.Stage != StageCompile {
		t.Fatalf("error = %v, want compile-stage SpecializationError", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d after failed compile, want 0", cache.Len())
	}
}

func TestCache_InvalidDescriptor(t *testing.T) {
	specializer := SpecializerFunc(func(Key) (*Descriptor, error) {
		return &Descriptor{Label: "no_shader"}, nil
	})
	cache := NewCache(specializer, &countingCompiler{})

	_, err := cache.Specialize(Key{})
	if !errors.Is(err, ErrMissingVertexShader) {
		t.Errorf("error = %v, want ErrMissingVertexShader", err)
	}
}

// =============================================================================
// Lookup and Lifecycle Tests
// =============================================================================

func TestCache_Get(t *testing.T) {
	cache := NewCache(labelSpecializer(nil), &countingCompiler{})

	p, err := cache.Specialize(Key{Material: 2})
	if err != nil {
		t.Fatal(err)
	}
	got, ok := cache.Get(p.ID())
	if !ok || got != p {
		t.Errorf("Get(%d) = %v, %v; want cached pipeline", p.ID(), got, ok)
	}
	if _, ok := cache.Get(p.ID() + 100); ok {
		t.Error("Get() with unknown ID should fail")
	}
}

func TestCache_InvalidateAppliedAtFrameBoundary(t *testing.T) {
	compiler := &countingCompiler{}
	cache := NewCache(labelSpecializer(nil), compiler)
	key := Key{Material: 4}

	old, err := cache.Specialize(key)
	if err != nil {
		t.Fatal(err)
	}

	cache.Invalidate()

	// Mid-frame lookups still see the old pipeline.
	mid, _ := cache.Specialize(key)
	if mid != old {
		t.Error("Invalidate should not take effect before BeginFrame")
	}

	if !cache.BeginFrame() {
		t.Fatal("BeginFrame() = false, want reset")
	}
	if cache.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", cache.Generation())
	}
	oldRaw := old.Raw().(*fakeCompiled)
	if oldRaw.destroyed.Load() {
		t.Error("retired pipeline destroyed too early")
	}

	fresh, err := cache.Specialize(key)
	if err != nil {
		t.Fatal(err)
	}
	if fresh == old {
		t.Error("Specialize after reset should rebuild")
	}
	if compiler.calls.Load() != 2 {
		t.Errorf("Compile called %d times, want 2", compiler.calls.Load())
	}

	if cache.BeginFrame() {
		t.Error("BeginFrame() without Invalidate should not reset")
	}
	if !oldRaw.destroyed.Load() {
		t.Error("retired pipeline should be destroyed at the following frame")
	}
}

func TestCache_FailureClearedByInvalidate(t *testing.T) {
	fail := true
	specializer := SpecializerFunc(func(Key) (*Descriptor, error) {
		if fail {
			return nil, errors.New("not ready")
		}
		return &Descriptor{Label: "ok", Vertex: ShaderStage{Shader: "s", EntryPoint: "vertex"}}, nil
	})
	cache := NewCache(specializer, &countingCompiler{})

	if _, err := cache.Specialize(Key{}); err == nil {
		t.Fatal("expected failure")
	}
	fail = false
	cache.Invalidate()
	cache.BeginFrame()

	if _, err := cache.Specialize(Key{}); err != nil {
		t.Errorf("Specialize after invalidation error = %v", err)
	}
}

func TestCache_Close(t *testing.T) {
	compiler := &countingCompiler{}
	cache := NewCache(labelSpecializer(nil), compiler)

	p, err := cache.Specialize(Key{Material: 8})
	if err != nil {
		t.Fatal(err)
	}
	cache.Close()
	cache.Close()

	if !p.Raw().(*fakeCompiled).destroyed.Load() {
		t.Error("Close should destroy cached pipelines")
	}
	if _, err := cache.Specialize(Key{Material: 8}); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Specialize after Close error = %v, want ErrCacheClosed", err)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkCache_Hit(b *testing.B) {
	cache := NewCache(labelSpecializer(nil), &countingCompiler{})
	key := Key{Material: 1}
	if _, err := cache.Specialize(key); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = cache.Specialize(key)
		}
	})
}
