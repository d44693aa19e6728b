// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package phase collects per-view draw candidates and bins them into the
// three emission tiers consumed by package encode.
//
// A frame goes through the package in three steps:
//
//  1. Extraction adds candidates to a ViewPhase with Add. Candidates carry a
//     BatchSetKey (what may share one multi-draw call) and a BinKey (what
//     may share one instanced draw).
//  2. Bin groups the candidates by batch set and bin, orders them
//     deterministically and assigns instance ranges and indirect slots.
//  3. The resulting BinnedPhase is encoded, and the ViewPhase is cleared
//     for the next frame.
//
// Bin falls back per tier when the device lacks multi-draw-indirect or
// indirect draw support, so the same ViewPhase renders on every backend.
package phase
