// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/encode"
)

// ColorAttachment binds an attachment as a color target.
type ColorAttachment struct {
	Target *Attachment
	Load   gputypes.LoadOp
	Store  gputypes.StoreOp
	Clear  gputypes.Color
}

// DepthAttachment binds an attachment as the depth target. Cleared depth
// is 0: the renderer uses reverse-Z.
type DepthAttachment struct {
	Target *Attachment
	Load   gputypes.LoadOp
	Store  gputypes.StoreOp
}

// RenderPassDescriptor describes the targets of one render pass.
type RenderPassDescriptor struct {
	Label string
	Color []ColorAttachment
	Depth *DepthAttachment
}

// Device creates command encoders. Implementations must be safe for
// concurrent use: each view encodes on its own goroutine.
type Device interface {
	CreateCommandEncoder(label string) (CommandEncoder, error)
}

// CommandEncoder records passes into one command buffer.
//
// Lifecycle:
//  1. Created by Device.CreateCommandEncoder
//  2. BeginRenderPass, record, End the pass (repeatable)
//  3. Finish, or Discard on error
type CommandEncoder interface {
	BeginRenderPass(desc *RenderPassDescriptor) (encode.PassEncoder, error)
	Finish() (CommandBuffer, error)
	Discard()
}

// CommandBuffer is a finished, submittable command buffer.
type CommandBuffer interface {
	Label() string
}

// SubmissionQueue accepts finished command buffers in submission order.
type SubmissionQueue interface {
	Submit(buffers []CommandBuffer) error
}
