// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/visbuffer/internal/logging"
	"github.com/gogpu/visbuffer/internal/parallel"
)

// FrameReport summarizes one RunFrame call.
type FrameReport struct {
	Frame uint64
	Views int

	// Passes counts node runs that completed.
	Passes int

	// Skipped counts node runs skipped for a missing resource.
	Skipped int

	// Submitted counts command buffers handed to the queue.
	Submitted int

	// Errors holds node and task failures other than skipped passes.
	Errors []error
}

// Err joins the frame errors, or returns nil if none occurred.
func (r *FrameReport) Err() error { return errors.Join(r.Errors...) }

// Runner runs the render graph for a frame.
//
// Thread Safety:
// RunFrame must not be called concurrently with itself. Nodes and hooks
// must be added before the first frame.
type Runner struct {
	pool   *parallel.WorkerPool
	device Device
	queue  SubmissionQueue

	mu     sync.Mutex
	nodes  []Node
	hooks  []func()
	frame  atomic.Uint64
	closed atomic.Bool
}

// NewRunner creates a runner. The runner does not own pool.
func NewRunner(pool *parallel.WorkerPool, device Device, queue SubmissionQueue, nodes ...Node) *Runner {
	return &Runner{
		pool:   pool,
		device: device,
		queue:  queue,
		nodes:  nodes,
	}
}

// AddNode appends a node. Nodes run in the order added.
func (r *Runner) AddNode(n Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, n)
}

// OnBeginFrame registers a hook that runs before the nodes of each frame.
func (r *Runner) OnBeginFrame(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Frame returns the number of the last frame started.
func (r *Runner) Frame() uint64 { return r.frame.Load() }

// Close makes further RunFrame calls fail.
func (r *Runner) Close() { r.closed.Store(true) }

// RunFrame renders views. ctx is checked once before the frame starts;
// once encoding begins the frame runs to completion.
func (r *Runner) RunFrame(ctx context.Context, views []*View) (FrameReport, error) {
	if r.closed.Load() {
		return FrameReport{}, ErrRunnerClosed
	}
	if err := ctx.Err(); err != nil {
		return FrameReport{}, fmt.Errorf("run frame: %w", err)
	}

	r.mu.Lock()
	nodes := r.nodes
	hooks := r.hooks
	r.mu.Unlock()

	frame := r.frame.Add(1)
	rep := FrameReport{Frame: frame, Views: len(views)}
	for _, hook := range hooks {
		hook()
	}

	contexts := make([]*Context, len(views))
	outcomes := make([]nodeOutcome, len(views))
	work := make([]func(), len(views))
	for i, view := range views {
		contexts[i] = &Context{device: r.device, view: view, frame: frame}
		work[i] = func() {
			outcomes[i] = runNodes(nodes, contexts[i], view)
		}
	}
	r.pool.ExecuteAll(work)

	var futures []*parallel.Future[CommandBuffer]
	for i, c := range contexts {
		rep.Passes += outcomes[i].passes
		rep.Skipped += outcomes[i].skipped
		rep.Errors = append(rep.Errors, outcomes[i].errs...)
		for _, t := range c.tasks {
			device := r.device
			futures = append(futures, parallel.Go(r.pool, func() (CommandBuffer, error) {
				cb, err := t.fn(device)
				if err != nil {
					return nil, fmt.Errorf("graph: task %s/%s for view %s: %w", t.node, t.label, c.view, err)
				}
				return cb, nil
			}))
		}
	}

	// Join barrier: nothing is submitted until every task has finished.
	buffers, err := parallel.Join(futures)
	if err != nil {
		rep.Errors = append(rep.Errors, err)
	}
	ready := buffers[:0]
	for _, cb := range buffers {
		if cb != nil {
			ready = append(ready, cb)
		}
	}
	if len(ready) > 0 {
		if err := r.queue.Submit(ready); err != nil {
			return rep, fmt.Errorf("submit frame %d: %w", frame, err)
		}
	}
	rep.Submitted = len(ready)

	logging.Logger().Debug("graph: frame submitted",
		"frame", frame, "views", rep.Views, "passes", rep.Passes,
		"skipped", rep.Skipped, "buffers", rep.Submitted)
	return rep, nil
}

type nodeOutcome struct {
	passes  int
	skipped int
	errs    []error
}

// runNodes runs every node for one view. A failing node's tasks are
// dropped so the pass is either fully encoded or not at all.
func runNodes(nodes []Node, ctx *Context, view *View) nodeOutcome {
	var out nodeOutcome
	for _, n := range nodes {
		mark := len(ctx.tasks)
		ctx.node = n.Name()
		err := runNode(n, ctx, view)
		if err == nil {
			out.passes++
			continue
		}
		ctx.tasks = ctx.tasks[:mark]
		if errors.Is(err, ErrResourceMissing) {
			out.skipped++
			logging.Logger().Warn("graph: pass skipped", "node", n.Name(), "view", view.String(), "err", err)
			continue
		}
		out.errs = append(out.errs, fmt.Errorf("graph: node %s for view %s: %w", n.Name(), view, err))
	}
	return out
}

func runNode(n Node, ctx *Context, view *View) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("node panicked: %v", p)
		}
	}()
	return n.Run(ctx, view)
}
