// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import "errors"

var (
	// ErrResourceMissing is returned by nodes when a required view resource
	// is absent. The pass is skipped for that view.
	ErrResourceMissing = errors.New("graph: required view resource missing")

	// ErrAttachmentBackend is returned when an attachment's Raw handle does
	// not belong to the device's backend.
	ErrAttachmentBackend = errors.New("graph: attachment has no backend view")

	// ErrForeignCommandBuffer is returned when a queue receives a buffer
	// created by another device.
	ErrForeignCommandBuffer = errors.New("graph: command buffer from another device")

	// ErrSubmitTimeout is returned when the GPU does not signal completion
	// in time.
	ErrSubmitTimeout = errors.New("graph: timed out waiting for GPU")

	// ErrRunnerClosed is returned by RunFrame after Close.
	ErrRunnerClosed = errors.New("graph: runner is closed")
)
