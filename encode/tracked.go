// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/pipeline"
)

// PassStats counts commands forwarded to and elided from the raw pass.
type PassStats struct {
	PipelineBinds  int
	PipelineSkips  int
	BindGroupBinds int
	BindGroupSkips int
	BufferBinds    int
	BufferSkips    int
	Draws          int
}

type boundGroup struct {
	group   *BindGroup
	offsets []uint32
}

type boundBuffer struct {
	buffer *Buffer
	offset uint64
}

type boundIndex struct {
	buffer *Buffer
	format gputypes.IndexFormat
	offset uint64
}

// TrackedPass wraps a PassEncoder and drops state changes that would
// rebind what is already bound.
//
// Thread Safety:
// TrackedPass is NOT safe for concurrent use. One view encodes into one
// pass from a single goroutine.
//
// State Machine:
//
//	Recording -> End() -> Ended
type TrackedPass struct {
	raw      PassEncoder
	indirect IndirectEncoder
	multi    MultiDrawEncoder

	pipeline   pipeline.ID
	bindGroups [maxBindGroups]boundGroup
	vertex     [maxVertexBuffers]boundBuffer
	index      boundIndex

	stats PassStats
	ended bool
}

// NewTrackedPass wraps raw. Indirect and multi-draw support is detected
// from the optional interfaces raw implements.
func NewTrackedPass(raw PassEncoder) *TrackedPass {
	t := &TrackedPass{raw: raw}
	t.indirect, _ = raw.(IndirectEncoder)
	t.multi, _ = raw.(MultiDrawEncoder)
	return t
}

// Stats returns the command counters.
func (t *TrackedPass) Stats() PassStats { return t.stats }

// IsEnded reports whether End has been called.
func (t *TrackedPass) IsEnded() bool { return t.ended }

// SupportsIndirect reports whether the raw pass accepts indirect draws.
func (t *TrackedPass) SupportsIndirect() bool { return t.indirect != nil }

// SupportsMultiDraw reports whether the raw pass accepts multi-draw-indirect.
func (t *TrackedPass) SupportsMultiDraw() bool { return t.multi != nil }

// SetPipeline binds p unless it is already bound.
func (t *TrackedPass) SetPipeline(p *pipeline.Pipeline) error {
	if t.ended {
		return fmt.Errorf("set pipeline: %w", ErrPassEnded)
	}
	if t.pipeline == p.ID() {
		t.stats.PipelineSkips++
		return nil
	}
	t.raw.SetPipeline(p)
	t.pipeline = p.ID()
	t.stats.PipelineBinds++
	return nil
}

// SetBindGroup binds group at index unless the same group with the same
// dynamic offsets is already bound there.
func (t *TrackedPass) SetBindGroup(index uint32, group *BindGroup, dynamicOffsets []uint32) error {
	if t.ended {
		return fmt.Errorf("set bind group: %w", ErrPassEnded)
	}
	if index >= maxBindGroups {
		return ErrBindGroupIndexOutOfRange
	}
	if group == nil {
		return ErrNilBindGroup
	}
	cur := &t.bindGroups[index]
	if cur.group == group && slices.Equal(cur.offsets, dynamicOffsets) {
		t.stats.BindGroupSkips++
		return nil
	}
	t.raw.SetBindGroup(index, group, dynamicOffsets)
	cur.group = group
	cur.offsets = slices.Clone(dynamicOffsets)
	t.stats.BindGroupBinds++
	return nil
}

// SetVertexBuffer binds buffer at slot unless it is already bound there.
func (t *TrackedPass) SetVertexBuffer(slot uint32, buffer *Buffer, offset uint64) error {
	if t.ended {
		return fmt.Errorf("set vertex buffer: %w", ErrPassEnded)
	}
	if buffer == nil {
		return ErrNilBuffer
	}
	if slot < maxVertexBuffers {
		cur := &t.vertex[slot]
		if cur.buffer == buffer && cur.offset == offset {
			t.stats.BufferSkips++
			return nil
		}
		cur.buffer, cur.offset = buffer, offset
	}
	t.raw.SetVertexBuffer(slot, buffer, offset)
	t.stats.BufferBinds++
	return nil
}

// SetIndexBuffer binds buffer unless it is already bound with the same
// format and offset.
func (t *TrackedPass) SetIndexBuffer(buffer *Buffer, format gputypes.IndexFormat, offset uint64) error {
	if t.ended {
		return fmt.Errorf("set index buffer: %w", ErrPassEnded)
	}
	if buffer == nil {
		return ErrNilBuffer
	}
	next := boundIndex{buffer: buffer, format: format, offset: offset}
	if t.index == next {
		t.stats.BufferSkips++
		return nil
	}
	t.raw.SetIndexBuffer(buffer, format, offset)
	t.index = next
	t.stats.BufferBinds++
	return nil
}

// SetViewport forwards the viewport if the raw pass supports it.
func (t *TrackedPass) SetViewport(v Viewport) bool {
	vs, ok := t.raw.(ViewportSetter)
	if !ok || t.ended {
		return false
	}
	vs.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	return true
}

// Draw issues a non-indexed draw.
func (t *TrackedPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if t.ended {
		return fmt.Errorf("draw: %w", ErrPassEnded)
	}
	t.raw.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	t.stats.Draws++
	return nil
}

// DrawIndexed issues an indexed draw.
func (t *TrackedPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	if t.ended {
		return fmt.Errorf("draw indexed: %w", ErrPassEnded)
	}
	t.raw.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	t.stats.Draws++
	return nil
}

func (t *TrackedPass) checkIndirect(buffer *Buffer, offset uint64) error {
	if t.ended {
		return ErrPassEnded
	}
	if t.indirect == nil {
		return ErrIndirectUnsupported
	}
	if buffer == nil {
		return ErrNilBuffer
	}
	if offset%4 != 0 {
		return fmt.Errorf("%w: offset %d", ErrIndirectOffsetNotAligned, offset)
	}
	return nil
}

// DrawIndirect issues a non-indexed draw with parameters read from buffer.
func (t *TrackedPass) DrawIndirect(buffer *Buffer, offset uint64) error {
	if err := t.checkIndirect(buffer, offset); err != nil {
		return fmt.Errorf("draw indirect: %w", err)
	}
	t.indirect.DrawIndirect(buffer, offset)
	t.stats.Draws++
	return nil
}

// DrawIndexedIndirect issues an indexed draw with parameters read from buffer.
func (t *TrackedPass) DrawIndexedIndirect(buffer *Buffer, offset uint64) error {
	if err := t.checkIndirect(buffer, offset); err != nil {
		return fmt.Errorf("draw indexed indirect: %w", err)
	}
	t.indirect.DrawIndexedIndirect(buffer, offset)
	t.stats.Draws++
	return nil
}

// MultiDrawIndexedIndirect issues count indexed indirect draws stored
// IndirectArgsStride bytes apart. Passes without multi-draw support get one
// DrawIndexedIndirect per record.
func (t *TrackedPass) MultiDrawIndexedIndirect(buffer *Buffer, offset uint64, count uint32) error {
	if err := t.checkIndirect(buffer, offset); err != nil {
		return fmt.Errorf("multi draw indexed indirect: %w", err)
	}
	if count == 0 {
		return nil
	}
	if t.multi != nil {
		t.multi.MultiDrawIndexedIndirect(buffer, offset, count)
		t.stats.Draws++
		return nil
	}
	for i := range uint64(count) {
		t.indirect.DrawIndexedIndirect(buffer, offset+i*IndirectArgsStride)
		t.stats.Draws++
	}
	return nil
}

// End ends the raw pass. End is idempotent.
func (t *TrackedPass) End() {
	if t.ended {
		return
	}
	t.ended = true
	t.raw.End()
}
