// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/visbuffer/internal/logging"
)

// ID identifies a compiled pipeline. The zero ID is never assigned.
type ID uint32

// Compiled is a backend pipeline object owned by the cache.
type Compiled interface {
	Destroy()
}

// Specializer builds a pipeline descriptor for a key.
type Specializer interface {
	Specialize(key Key) (*Descriptor, error)
}

// SpecializerFunc adapts a function to the Specializer interface.
type SpecializerFunc func(key Key) (*Descriptor, error)

// Specialize calls f(key).
func (f SpecializerFunc) Specialize(key Key) (*Descriptor, error) { return f(key) }

// Compiler turns a descriptor into a backend pipeline.
type Compiler interface {
	Compile(desc *Descriptor) (Compiled, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(desc *Descriptor) (Compiled, error)

// Compile calls f(desc).
func (f CompilerFunc) Compile(desc *Descriptor) (Compiled, error) { return f(desc) }

// Pipeline is a compiled, cached pipeline. Pipelines are immutable and may
// be shared by several keys whose descriptors hash equal.
type Pipeline struct {
	id    ID
	label string
	hash  uint64
	raw   Compiled
}

// ID returns the pipeline's cache identifier.
func (p *Pipeline) ID() ID { return p.id }

// Label returns the descriptor label.
func (p *Pipeline) Label() string { return p.label }

// Hash returns the descriptor hash the pipeline was compiled from.
func (p *Pipeline) Hash() uint64 { return p.hash }

// Raw returns the backend pipeline object.
func (p *Pipeline) Raw() Compiled { return p.raw }

func (p *Pipeline) destroy() {
	if p.raw != nil {
		p.raw.Destroy()
	}
}

type cacheEntry struct {
	pipeline *Pipeline
	err      error
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Compiles  uint64
	Failures  uint64
	Pipelines int
}

// HitRate returns hits / (hits + misses), or 0 with no requests.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache memoizes specialized pipelines by Key.
//
// Lookups that hit never take a lock. A miss runs Specializer and Compiler
// at most once per key even under concurrent requests; other goroutines
// asking for the same key wait for that result. Failures are memoized too,
// so a broken key costs one compile attempt per generation.
//
// Invalidate only marks the cache stale. The reset happens in BeginFrame,
// which the frame driver calls at the frame boundary when no encoding is in
// flight. Pipelines dropped by a reset are destroyed at the following
// BeginFrame.
//
// Thread Safety:
// Specialize and Get are safe for concurrent use. BeginFrame and Close must
// not run concurrently with encoding.
type Cache struct {
	specializer Specializer
	compiler    Compiler

	byKey sync.Map // Key -> *cacheEntry
	byID  sync.Map // ID -> *Pipeline
	group singleflight.Group

	// mu guards byHash and retired.
	mu      sync.Mutex
	byHash  map[uint64]*Pipeline
	retired []*Pipeline

	nextID     atomic.Uint32
	generation atomic.Uint64
	stale      atomic.Bool
	closed     atomic.Bool

	hits     atomic.Uint64
	misses   atomic.Uint64
	compiles atomic.Uint64
	failures atomic.Uint64
}

// NewCache creates a cache that builds pipelines with s and c.
func NewCache(s Specializer, c Compiler) *Cache {
	return &Cache{
		specializer: s,
		compiler:    c,
		byHash:      make(map[uint64]*Pipeline),
	}
}

// Specialize returns the pipeline for key, building it on first use.
// A failed build returns a *SpecializationError, the same one on every
// call until the cache is invalidated.
func (c *Cache) Specialize(key Key) (*Pipeline, error) {
	if v, ok := c.byKey.Load(key); ok {
		c.hits.Add(1)
		e := v.(*cacheEntry)
		return e.pipeline, e.err
	}
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	c.misses.Add(1)

	v, _, _ := c.group.Do(key.String(), func() (any, error) {
		if v, ok := c.byKey.Load(key); ok {
			return v, nil
		}
		e := c.build(key)
		c.byKey.Store(key, e)
		return e, nil
	})
	e := v.(*cacheEntry)
	return e.pipeline, e.err
}

func (c *Cache) build(key Key) *cacheEntry {
	desc, err := c.specializer.Specialize(key)
	if err == nil {
		err = desc.Validate()
	}
	if err != nil {
		c.failures.Add(1)
		return &cacheEntry{err: &SpecializationError{Key: key, Stage: StageSpecialize, Err: err}}
	}

	hash := desc.Hash()
	c.mu.Lock()
	shared, ok := c.byHash[hash]
	c.mu.Unlock()
	if ok {
		return &cacheEntry{pipeline: shared}
	}

	raw, err := c.compiler.Compile(desc)
	if err != nil {
		c.failures.Add(1)
		logging.Logger().Warn("pipeline: compile failed", "label", desc.Label, "key", key.String(), "err", err)
		return &cacheEntry{err: &SpecializationError{Key: key, Stage: StageCompile, Err: err}}
	}
	c.compiles.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another key with an identical descriptor may have compiled meanwhile.
	if shared, ok := c.byHash[hash]; ok {
		if raw != nil {
			raw.Destroy()
		}
		return &cacheEntry{pipeline: shared}
	}
	p := &Pipeline{
		id:    ID(c.nextID.Add(1)),
		label: desc.Label,
		hash:  hash,
		raw:   raw,
	}
	c.byHash[hash] = p
	c.byID.Store(p.id, p)
	logging.Logger().Debug("pipeline: compiled", "id", p.id, "label", p.label, "key", key.String())
	return &cacheEntry{pipeline: p}
}

// Get returns a cached pipeline by ID without locking.
func (c *Cache) Get(id ID) (*Pipeline, bool) {
	v, ok := c.byID.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Pipeline), true
}

// Invalidate marks every cached pipeline stale. The reset is applied by the
// next BeginFrame.
func (c *Cache) Invalidate() {
	c.stale.Store(true)
}

// BeginFrame applies a pending invalidation and destroys pipelines retired
// at the previous frame boundary. It reports whether the cache was reset.
func (c *Cache) BeginFrame() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.retired {
		p.destroy()
	}
	c.retired = nil

	if !c.stale.Swap(false) {
		return false
	}
	for _, p := range c.byHash {
		c.retired = append(c.retired, p)
	}
	c.byHash = make(map[uint64]*Pipeline)
	c.byKey.Clear()
	c.byID.Clear()
	gen := c.generation.Add(1)
	logging.Logger().Info("pipeline: cache invalidated", "generation", gen, "retired", len(c.retired))
	return true
}

// Generation returns how many resets have been applied.
func (c *Cache) Generation() uint64 {
	return c.generation.Load()
}

// Len returns the number of distinct compiled pipelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byHash)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Compiles:  c.compiles.Load(),
		Failures:  c.failures.Load(),
		Pipelines: c.Len(),
	}
}

// Close destroys every pipeline. Specialize fails with ErrCacheClosed
// afterwards. Close is safe to call multiple times.
func (c *Cache) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.retired {
		p.destroy()
	}
	for _, p := range c.byHash {
		p.destroy()
	}
	c.retired = nil
	c.byHash = make(map[uint64]*Pipeline)
	c.byKey.Clear()
	c.byID.Clear()
}
