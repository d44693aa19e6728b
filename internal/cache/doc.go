// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides a bounded LRU cache for derived values that can
// be recomputed on a miss, such as preprocessed shader sources.
//
// Evicted values are dropped without notice, so the cache must not own
// GPU objects that need an explicit Destroy.
package cache
