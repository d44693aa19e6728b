// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package graph drives one frame of render nodes over a set of views.
//
// A Runner calls every Node once per view. Views run in parallel on a
// worker pool; the nodes of one view run in order on one worker. Nodes do
// not encode directly: they register command-buffer tasks on their Context.
// After all nodes have run, the tasks execute on the same pool, and the
// Runner waits for every one of them before submitting the buffers in
// (view, registration) order.
//
// # Failure Model
//
// A node that returns an error wrapping ErrResourceMissing skips its pass
// for that view: tasks it registered are dropped and a warning is logged.
// The frame continues. Any other node or task error is reported in the
// FrameReport; buffers of healthy tasks are still submitted.
//
// # Frame Boundaries
//
// Hooks registered with OnBeginFrame run before any node, while no
// encoding is in flight. Caches use them to apply deferred invalidation.
package graph
