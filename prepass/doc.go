// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package prepass renders the visibility buffer prepass.
//
// The prepass writes depth and an 8-bit visibility value per pixel for
// every opaque and alpha-masked mesh, in one render pass per view: opaque
// draws first, then alpha-masked draws.
//
// # Pipeline
//
// Specializer turns a pipeline.Key into a Descriptor: one R8Unorm color
// target with a red-only write mask, a Depth32Float depth target compared
// with GreaterEqual (reverse-Z), and shader definitions derived from the
// mesh layout and key flags. Bind groups are laid out as view (0), mesh
// (1) and material (2).
//
// # Frame Flow
//
//  1. Queue.QueueView specializes a pipeline per candidate and adds it to
//     the opaque or alpha-mask phase. Candidates whose pipeline fails to
//     specialize are dropped and reported.
//  2. ViewBindGroups.Prepare builds the view bind group of each view that
//     has view uniforms, globals and visibility ranges.
//  3. Node bins both phases and registers one command-buffer task per
//     view. Views with nothing to draw get no pass at all.
package prepass
