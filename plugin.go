// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package visbuffer

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/visbuffer/encode"
	"github.com/gogpu/visbuffer/graph"
	"github.com/gogpu/visbuffer/internal/logging"
	"github.com/gogpu/visbuffer/internal/parallel"
	"github.com/gogpu/visbuffer/phase"
	"github.com/gogpu/visbuffer/pipeline"
	"github.com/gogpu/visbuffer/prepass"
)

// ErrIncompleteBackend is returned by New when a required backend field
// is nil.
var ErrIncompleteBackend = errors.New("visbuffer: incomplete backend")

// Backend is the host side of the plugin: how pipelines are compiled,
// where passes are encoded and submitted, and where per-draw resources
// come from.
type Backend struct {
	// NewCompiler builds the pipeline compiler once the plugin's shader
	// registry exists.
	NewCompiler func(shaders *pipeline.ShaderRegistry) pipeline.Compiler

	Device     graph.Device
	Queue      graph.SubmissionQueue
	BindGroups prepass.BindGroupFactory
	Resources  encode.Resources

	// Indirect uploads indirect records per phase. Optional.
	Indirect prepass.IndirectUploader

	// Capabilities are the draw capabilities of Device. Features disabled
	// in the config are masked off.
	Capabilities phase.Capabilities

	// DepthClipControl reports native unclipped depth support.
	DepthClipControl bool
}

// HALBackend builds a Backend on a gogpu device provider. layouts must
// resolve every layout name the prepass uses, including prepass.ViewLayout.
// Indirect draws are left disabled; set Capabilities and Indirect on the
// result to enable them.
func HALBackend(provider gpucontext.DeviceProvider, layouts pipeline.LayoutProvider, resources encode.Resources) (Backend, error) {
	device, queue, err := pipeline.HALFromProvider(provider)
	if err != nil {
		return Backend{}, err
	}
	viewLayout, ok := layouts.BindGroupLayout(prepass.ViewLayout)
	if !ok {
		return Backend{}, fmt.Errorf("%w: %s", pipeline.ErrUnknownLayout, prepass.ViewLayout)
	}
	halDevice := graph.NewHALDevice(device, queue)
	return Backend{
		NewCompiler: func(shaders *pipeline.ShaderRegistry) pipeline.Compiler {
			return pipeline.NewHALCompiler(device, shaders, layouts)
		},
		Device:     halDevice,
		Queue:      halDevice,
		BindGroups: prepass.NewHALBindGroupFactory(device, viewLayout),
		Resources:  resources,
	}, nil
}

func (b *Backend) validate() error {
	switch {
	case b.NewCompiler == nil:
		return fmt.Errorf("%w: compiler", ErrIncompleteBackend)
	case b.Device == nil || b.Queue == nil:
		return fmt.Errorf("%w: device and queue", ErrIncompleteBackend)
	case b.BindGroups == nil:
		return fmt.Errorf("%w: bind group factory", ErrIncompleteBackend)
	case b.Resources == nil:
		return fmt.Errorf("%w: resources", ErrIncompleteBackend)
	}
	return nil
}

// ExtractedView is one view of a frame with its draw candidates.
type ExtractedView struct {
	View *graph.View

	// Key.MSAA zero means the configured sample count.
	Key        prepass.ViewKey
	Candidates []prepass.Candidate
}

// FrameReport summarizes one RenderFrame call.
type FrameReport struct {
	graph.FrameReport

	// Queued and Dropped count candidates across all views.
	Queued  int
	Dropped int

	// QueueErrors holds one specialization error per dropped candidate.
	QueueErrors []error

	// Reloaded counts shaders reloaded at the start of the frame.
	Reloaded int

	// CacheReset reports whether the pipeline cache was invalidated.
	CacheReset bool
}

// Plugin wires the visibility prepass into a host renderer: a shader
// registry, a pipeline cache, per-view phases, the prepass node and a
// frame runner on a worker pool.
//
// Thread Safety:
// RenderFrame must not be called concurrently with itself or Close.
type Plugin struct {
	cfg  Config
	caps phase.Capabilities

	shaders    *pipeline.ShaderRegistry
	cache      *pipeline.Cache
	functions  *encode.DrawFunctions
	drawFn     phase.DrawFunctionID
	opaque     *phase.ViewPhases
	alphaMask  *phase.ViewPhases
	queue      *prepass.Queue
	bindGroups *prepass.ViewBindGroups
	pool       *parallel.WorkerPool
	runner     *graph.Runner
	watcher    *ShaderWatcher
}

// New creates a plugin on backend.
func New(backend Backend, opts ...Option) (*Plugin, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := backend.validate(); err != nil {
		return nil, err
	}

	caps := phase.Capabilities{
		MultiDrawIndirect: cfg.Render.MultiDrawIndirect && backend.Capabilities.MultiDrawIndirect,
		IndirectDraw:      cfg.Render.IndirectDraw && backend.Capabilities.IndirectDraw,
	}
	if cfg.Render.MultiDrawIndirect && !caps.MultiDrawIndirect {
		logging.Logger().Info("visbuffer: multi-draw-indirect unsupported, batching instead")
	}

	shaders := pipeline.NewShaderRegistry()
	prepass.RegisterShaders(shaders)
	if cfg.Shaders.Dir != "" {
		n, err := LoadShaderDir(cfg.Shaders.Dir, prepass.ShaderFiles(), shaders)
		if err != nil {
			return nil, err
		}
		logging.Logger().Info("visbuffer: shader overrides loaded", "dir", cfg.Shaders.Dir, "count", n)
	}

	specializer := prepass.NewSpecializer(prepass.Features{
		DepthClipControl:       cfg.Render.DepthClipControl && backend.DepthClipControl,
		Bindless:               cfg.Render.Bindless,
		SkinsUseUniformBuffers: cfg.Render.SkinsUseUniformBuffers,
	})
	cache := pipeline.NewCache(specializer, backend.NewCompiler(shaders))
	shaders.OnReload(func(pipeline.ShaderHandle) { cache.Invalidate() })

	functions := encode.NewDrawFunctions()
	drawFn := functions.Add(prepass.DrawFunctionName, encode.DrawVisbuffer...)

	p := &Plugin{
		cfg:        cfg,
		caps:       caps,
		shaders:    shaders,
		cache:      cache,
		functions:  functions,
		drawFn:     drawFn,
		opaque:     phase.NewViewPhases(phase.Opaque),
		alphaMask:  phase.NewViewPhases(phase.AlphaMask),
		bindGroups: prepass.NewViewBindGroups(backend.BindGroups),
	}
	p.queue = prepass.NewQueue(cache, drawFn, p.opaque, p.alphaMask, caps.MultiDrawIndirect)

	node := prepass.NewNode(prepass.NodeConfig{
		Opaque:       p.opaque,
		AlphaMask:    p.alphaMask,
		Capabilities: caps,
		Functions:    functions,
		Pipelines:    cache,
		Resources:    backend.Resources,
		BindGroups:   p.bindGroups,
		Indirect:     backend.Indirect,
	})

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p.pool = parallel.NewWorkerPool(workers)
	p.runner = graph.NewRunner(p.pool, backend.Device, backend.Queue, node)

	if cfg.Shaders.HotReload {
		w, err := NewShaderWatcher(cfg.Shaders.Dir, prepass.ShaderFiles(), shaders)
		if err != nil {
			p.pool.Close()
			cache.Close()
			return nil, err
		}
		p.watcher = w
	}

	logging.Logger().Info("visbuffer: plugin created",
		"workers", workers, "multi_draw", caps.MultiDrawIndirect,
		"indirect", caps.IndirectDraw, "msaa", cfg.Render.MSAA)
	return p, nil
}

// NewHAL creates a plugin on a gogpu device provider. See HALBackend.
func NewHAL(provider gpucontext.DeviceProvider, layouts pipeline.LayoutProvider, resources encode.Resources, opts ...Option) (*Plugin, error) {
	backend, err := HALBackend(provider, layouts, resources)
	if err != nil {
		return nil, err
	}
	return New(backend, opts...)
}

// Config returns the effective configuration.
func (p *Plugin) Config() Config { return p.cfg }

// Capabilities returns the draw capabilities in use.
func (p *Plugin) Capabilities() phase.Capabilities { return p.caps }

// Shaders returns the shader registry.
func (p *Plugin) Shaders() *pipeline.ShaderRegistry { return p.shaders }

// Cache returns the pipeline cache.
func (p *Plugin) Cache() *pipeline.Cache { return p.cache }

// DrawFunctions returns the draw function registry. Hosts may add their
// own draw functions before the first frame.
func (p *Plugin) DrawFunctions() *encode.DrawFunctions { return p.functions }

// DrawFunction returns the ID of the prepass draw function.
func (p *Plugin) DrawFunction() phase.DrawFunctionID { return p.drawFn }

// Runner returns the frame runner, for adding nodes after the prepass.
func (p *Plugin) Runner() *graph.Runner { return p.runner }

// RenderFrame renders the prepass of every view:
//
//  1. pending shader reloads are applied and the pipeline cache crosses
//     its frame boundary
//  2. phases and view bind groups are prepared for the listed views
//  3. each view's candidates are queued in parallel
//  4. the runner encodes all views and submits once
//
// ctx is checked before the frame starts.
func (p *Plugin) RenderFrame(ctx context.Context, views []ExtractedView) (FrameReport, error) {
	if err := ctx.Err(); err != nil {
		return FrameReport{}, fmt.Errorf("render frame: %w", err)
	}

	var rep FrameReport
	if p.watcher != nil {
		n, err := p.watcher.Apply()
		if err != nil {
			logging.Logger().Warn("visbuffer: shader reload failed", "err", err)
		}
		rep.Reloaded = n
	}
	rep.CacheReset = p.cache.BeginFrame()

	ids := make([]uuid.UUID, len(views))
	graphViews := make([]*graph.View, len(views))
	for i := range views {
		ids[i] = views[i].View.ID
		graphViews[i] = views[i].View
	}
	p.opaque.Prepare(ids)
	p.alphaMask.Prepare(ids)
	if err := p.bindGroups.Prepare(graphViews); err != nil {
		logging.Logger().Warn("visbuffer: view bind groups incomplete", "err", err)
	}

	reports := make([]prepass.QueueReport, len(views))
	work := make([]func(), len(views))
	for i := range views {
		v := &views[i]
		key := v.Key
		if key.MSAA == 0 {
			key.MSAA = p.cfg.Render.MSAA
		}
		work[i] = func() {
			reports[i] = p.queue.QueueView(v.View.ID, key, v.Candidates)
		}
	}
	p.pool.ExecuteAll(work)
	for i := range reports {
		rep.Queued += reports[i].Queued
		rep.Dropped += reports[i].Dropped
		rep.QueueErrors = append(rep.QueueErrors, reports[i].Errors...)
	}

	frame, err := p.runner.RunFrame(ctx, graphViews)
	rep.FrameReport = frame
	return rep, err
}

// Close stops the watcher and worker pool and releases cached GPU objects.
func (p *Plugin) Close() error {
	var err error
	if p.watcher != nil {
		err = p.watcher.Close()
	}
	p.runner.Close()
	p.pool.Close()
	p.bindGroups.Close()
	p.cache.Close()
	return err
}
