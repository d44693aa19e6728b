// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package encode turns binned phases into render pass commands.
//
// Encoding goes through a Session, which wraps the host's PassEncoder in a
// TrackedPass so that consecutive draws sharing a pipeline, bind group or
// buffer do not rebind it. Each item is encoded by its registered draw
// function, a fixed list of RenderCommands. A failing item is logged and
// skipped; the remaining items are still encoded.
package encode

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/pipeline"
)

// maxBindGroups is the WebGPU bind group limit.
const maxBindGroups = 4

// maxVertexBuffers bounds the vertex buffer slots tracked for redundancy.
const maxVertexBuffers = 8

// BindGroup is a host bind group. Raw carries the backend object.
type BindGroup struct {
	Label string
	Raw   any
}

// Buffer is a host GPU buffer. Raw carries the backend object.
type Buffer struct {
	Label string
	Size  uint64
	Raw   any
}

// Viewport is a render pass viewport in pixels.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// PassEncoder is the render pass interface of the host's GPU layer.
type PassEncoder interface {
	SetPipeline(p *pipeline.Pipeline)
	SetBindGroup(index uint32, group *BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buffer *Buffer, offset uint64)
	SetIndexBuffer(buffer *Buffer, format gputypes.IndexFormat, offset uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End()
}

// IndirectEncoder is implemented by passes that support indirect draws.
type IndirectEncoder interface {
	DrawIndirect(buffer *Buffer, offset uint64)
	DrawIndexedIndirect(buffer *Buffer, offset uint64)
}

// MultiDrawEncoder is implemented by passes that support multi-draw-indirect.
type MultiDrawEncoder interface {
	MultiDrawIndexedIndirect(buffer *Buffer, offset uint64, count uint32)
}

// ViewportSetter is implemented by passes that accept a viewport.
type ViewportSetter interface {
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
}
