// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"fmt"
)

// Pipeline errors.
var (
	// ErrSpecializationFailed is matched by every *SpecializationError.
	ErrSpecializationFailed = errors.New("pipeline: specialization failed")

	// ErrNilDescriptor is returned when a specializer produces no descriptor.
	ErrNilDescriptor = errors.New("pipeline: descriptor is nil")

	// ErrMissingVertexShader is returned for a descriptor without a vertex stage.
	ErrMissingVertexShader = errors.New("pipeline: vertex shader is required")

	// ErrUnknownShader is returned when a shader handle is not registered.
	ErrUnknownShader = errors.New("pipeline: unknown shader")

	// ErrUnknownLayout is returned when a bind group layout name cannot be resolved.
	ErrUnknownLayout = errors.New("pipeline: unknown bind group layout")

	// ErrMissingAttribute is returned when a mesh lacks a vertex attribute the
	// pipeline reads.
	ErrMissingAttribute = errors.New("pipeline: mesh is missing a required vertex attribute")

	// ErrCacheClosed is returned by Specialize after Close.
	ErrCacheClosed = errors.New("pipeline: cache is closed")
)

// Stage identifies where specialization failed.
type Stage int

const (
	// StageSpecialize covers descriptor construction from the key.
	StageSpecialize Stage = iota

	// StageCompile covers shader preprocessing and backend pipeline creation.
	StageCompile
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageSpecialize:
		return "specialize"
	case StageCompile:
		return "compile"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// SpecializationError reports a pipeline that could not be built for a key.
// The cache memoizes it until the next invalidation.
type SpecializationError struct {
	Key   Key
	Stage Stage
	Err   error
}

func (e *SpecializationError) Error() string {
	return fmt.Sprintf("pipeline: %s failed for key %s: %v", e.Stage, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SpecializationError) Unwrap() error { return e.Err }

// Is reports ErrSpecializationFailed as a match.
func (e *SpecializationError) Is(target error) bool {
	return target == ErrSpecializationFailed
}
