// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"errors"
	"fmt"

	"github.com/gogpu/visbuffer/phase"
)

// Pass errors.
var (
	// ErrPassEnded is returned when commands are recorded into an ended pass.
	ErrPassEnded = errors.New("encode: render pass has already ended")

	// ErrNilBindGroup is returned when SetBindGroup is called with nil.
	ErrNilBindGroup = errors.New("encode: bind group is nil")

	// ErrBindGroupIndexOutOfRange is returned when a bind group index exceeds maximum.
	ErrBindGroupIndexOutOfRange = errors.New("encode: bind group index exceeds maximum (3)")

	// ErrNilBuffer is returned when a vertex, index or indirect buffer is nil.
	ErrNilBuffer = errors.New("encode: buffer is nil")

	// ErrIndirectOffsetNotAligned is returned when an indirect offset is not 4-byte aligned.
	ErrIndirectOffsetNotAligned = errors.New("encode: indirect offset must be 4-byte aligned")

	// ErrIndirectUnsupported is returned for indirect draws on a pass without indirect support.
	ErrIndirectUnsupported = errors.New("encode: pass does not support indirect draws")
)

// Session errors.
var (
	// ErrSessionState is returned when a session method is called in the wrong state.
	ErrSessionState = errors.New("encode: invalid session state")

	// ErrSessionSubmitted is returned for any use of a session after End.
	ErrSessionSubmitted = errors.New("encode: session already submitted")
)

// Draw errors. All of them are reported wrapped in a *DrawError.
var (
	// ErrDrawFailure is matched by every *DrawError.
	ErrDrawFailure = errors.New("encode: draw failed")

	// ErrUnknownDrawFunction is returned for items whose draw function is not registered.
	ErrUnknownDrawFunction = errors.New("encode: unknown draw function")

	// ErrMissingPipeline is returned when an item's pipeline is not in the cache.
	ErrMissingPipeline = errors.New("encode: pipeline not cached")

	// ErrMissingMesh is returned when mesh buffers are not available.
	ErrMissingMesh = errors.New("encode: mesh buffers missing")

	// ErrIndexedMismatch is returned when a batch set and its mesh disagree
	// on indexed drawing.
	ErrIndexedMismatch = errors.New("encode: batch set and mesh disagree on indexing")

	// ErrMissingBindGroup is returned when a required bind group is not available.
	ErrMissingBindGroup = errors.New("encode: bind group missing")
)

// DrawError reports one item that was skipped. The rest of the phase is
// still encoded.
type DrawError struct {
	Entity  phase.Entity
	Command string
	Err     error
}

func (e *DrawError) Error() string {
	return fmt.Sprintf("encode: draw %s failed at %s: %v", e.Entity, e.Command, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DrawError) Unwrap() error { return e.Err }

// Is reports ErrDrawFailure as a match.
func (e *DrawError) Is(target error) bool { return target == ErrDrawFailure }
