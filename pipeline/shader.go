// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gogpu/visbuffer/internal/cache"
)

// resolvedCapacity bounds the number of preprocessed sources kept by a
// registry.
const resolvedCapacity = 256

// ShaderHandle names a shader source in a ShaderRegistry.
type ShaderHandle string

type shaderEntry struct {
	source  string
	version uint64
}

// resolveKey identifies one preprocessed output. generation changes on
// every Register or Reload, so imports never serve stale text.
type resolveKey struct {
	shader     ShaderHandle
	generation uint64
	defs       string
}

// ShaderRegistry owns WGSL sources by handle.
//
// A registry is created once at startup and passed by reference to the
// specializers and compilers that need it. Reload replaces a source at
// runtime and notifies listeners, which typically invalidate a Cache.
//
// ShaderRegistry is safe for concurrent use.
type ShaderRegistry struct {
	mu         sync.RWMutex
	shaders    map[ShaderHandle]shaderEntry
	generation uint64
	listeners  []func(ShaderHandle)

	resolved *cache.Cache[resolveKey, string]
}

// NewShaderRegistry creates an empty registry.
func NewShaderRegistry() *ShaderRegistry {
	return &ShaderRegistry{
		shaders:  make(map[ShaderHandle]shaderEntry),
		resolved: cache.New[resolveKey, string](resolvedCapacity),
	}
}

// Register adds or replaces a source without notifying listeners.
func (r *ShaderRegistry) Register(h ShaderHandle, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shaders[h] = shaderEntry{source: source, version: r.shaders[h].version + 1}
	r.generation++
}

// Reload replaces an existing source and notifies listeners.
// Unchanged sources are ignored.
func (r *ShaderRegistry) Reload(h ShaderHandle, source string) error {
	r.mu.Lock()
	e, ok := r.shaders[h]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownShader, h)
	}
	if e.source == source {
		r.mu.Unlock()
		return nil
	}
	r.shaders[h] = shaderEntry{source: source, version: e.version + 1}
	r.generation++
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(h)
	}
	return nil
}

// OnReload registers fn to be called after every effective Reload.
func (r *ShaderRegistry) OnReload(fn func(ShaderHandle)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Source returns the raw source for h.
func (r *ShaderRegistry) Source(h ShaderHandle) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.shaders[h]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownShader, h)
	}
	return e.source, nil
}

// Version returns how many times h has been registered or reloaded.
func (r *ShaderRegistry) Version(h ShaderHandle) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.shaders[h].version
}

// Handles returns the registered handles in sorted order.
func (r *ShaderRegistry) Handles() []ShaderHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]ShaderHandle, 0, len(r.shaders))
	for h := range r.shaders {
		handles = append(handles, h)
	}
	slices.Sort(handles)
	return handles
}

// Resolve returns the preprocessed source of h with defs applied and
// imports inlined. Results are cached until the next Register or Reload.
func (r *ShaderRegistry) Resolve(h ShaderHandle, defs []ShaderDef) (string, error) {
	r.mu.RLock()
	key := resolveKey{shader: h, generation: r.generation, defs: defsKey(defs)}
	r.mu.RUnlock()
	if out, ok := r.resolved.Get(key); ok {
		return out, nil
	}

	src, err := r.Source(h)
	if err != nil {
		return "", err
	}
	out, err := Preprocess(src, defs, r.Source)
	if err != nil {
		return "", fmt.Errorf("%s: %w", h, err)
	}
	r.resolved.Set(key, out)
	return out, nil
}

// ResolveStats reports hit and miss counts of the preprocessed source
// cache.
func (r *ShaderRegistry) ResolveStats() cache.Stats {
	return r.resolved.Stats()
}

func defsKey(defs []ShaderDef) string {
	var b strings.Builder
	for _, d := range defs {
		b.WriteString(d.Name)
		b.WriteByte('=')
		b.WriteString(d.Value)
		b.WriteByte(';')
	}
	return b.String()
}
