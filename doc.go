// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package visbuffer schedules binned multi-pass draw phases on the GPU and
// renders a visibility buffer prepass with them.
//
// # Overview
//
// A frame flows through four stages:
//
//  1. Queue: extracted mesh instances are specialized into pipelines and
//     added to per-view opaque and alpha-mask phases.
//  2. Bin: each phase groups its items by pipeline, draw function and
//     mesh into multidrawable, batchable and unbatchable tiers.
//  3. Encode: every view encodes its phases into one render pass on a
//     worker pool, skipping redundant state changes.
//  4. Submit: the command buffers of all views are submitted once, in
//     view order.
//
// # Quick Start
//
//	p, err := visbuffer.New(visbuffer.Backend{
//	    Compiler:   compiler,
//	    Device:     device,
//	    Queue:      queue,
//	    BindGroups: factory,
//	    Resources:  resources,
//	}, visbuffer.WithMSAA(4))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	rep, err := p.RenderFrame(ctx, []visbuffer.ExtractedView{{
//	    View:       view,
//	    Key:        prepass.ViewKey{MSAA: 4},
//	    Candidates: candidates,
//	}})
//
// NewHAL builds the same plugin on a gogpu device provider.
//
// # Sub-packages
//
//   - phase: phase items, per-view registries and the binner
//   - pipeline: pipeline keys, descriptors, the specialization cache and shaders
//   - encode: render commands, redundancy tracking and encoding sessions
//   - graph: views, nodes and the frame runner
//   - prepass: the visibility buffer prepass
//
// # Logging
//
// Nothing is logged by default. SetLogger installs a *slog.Logger for this
// package and every sub-package.
package visbuffer
