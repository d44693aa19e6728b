// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/visbuffer/internal/logging"
	"github.com/gogpu/visbuffer/pipeline"
)

// halViewport is the viewport method of backends that expose it.
type halViewport interface {
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
}

// halIndirect is the indirect draw subset of backends that expose it.
type halIndirect interface {
	DrawIndirect(buffer hal.Buffer, offset uint64)
	DrawIndexedIndirect(buffer hal.Buffer, offset uint64)
}

// HALPass adapts a hal.RenderPassEncoder to PassEncoder. BindGroup.Raw
// must hold a hal.BindGroup and Buffer.Raw a hal.Buffer; pipelines must be
// compiled by pipeline.HALCompiler. Mismatched handles are logged and the
// command is dropped.
type HALPass struct {
	raw hal.RenderPassEncoder
}

// NewHALPass wraps raw. The result also implements IndirectEncoder and
// ViewportSetter when the backend supports them.
func NewHALPass(raw hal.RenderPassEncoder) PassEncoder {
	p := &HALPass{raw: raw}
	_, indirect := raw.(halIndirect)
	_, viewport := raw.(halViewport)
	switch {
	case indirect && viewport:
		return &halPassFull{HALPass: p}
	case indirect:
		return &halPassIndirect{HALPass: p}
	case viewport:
		return &halPassViewport{HALPass: p}
	default:
		return p
	}
}

// SetPipeline implements PassEncoder.
func (p *HALPass) SetPipeline(pl *pipeline.Pipeline) {
	rp, ok := pipeline.HALRenderPipeline(pl)
	if !ok {
		logging.Logger().Warn("encode: pipeline has no HAL backing", "pipeline", pl.Label())
		return
	}
	p.raw.SetPipeline(rp)
}

// SetBindGroup implements PassEncoder.
func (p *HALPass) SetBindGroup(index uint32, group *BindGroup, dynamicOffsets []uint32) {
	bg, ok := group.Raw.(hal.BindGroup)
	if !ok {
		logging.Logger().Warn("encode: bind group has no HAL backing", "label", group.Label)
		return
	}
	p.raw.SetBindGroup(index, bg, dynamicOffsets)
}

// SetVertexBuffer implements PassEncoder.
func (p *HALPass) SetVertexBuffer(slot uint32, buffer *Buffer, offset uint64) {
	if b, ok := halBuffer(buffer); ok {
		p.raw.SetVertexBuffer(slot, b, offset)
	}
}

// SetIndexBuffer implements PassEncoder.
func (p *HALPass) SetIndexBuffer(buffer *Buffer, format gputypes.IndexFormat, offset uint64) {
	if b, ok := halBuffer(buffer); ok {
		p.raw.SetIndexBuffer(b, format, offset)
	}
}

// Draw implements PassEncoder.
func (p *HALPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.raw.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed implements PassEncoder.
func (p *HALPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.raw.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// End implements PassEncoder.
func (p *HALPass) End() {
	p.raw.End()
}

func halBuffer(buffer *Buffer) (hal.Buffer, bool) {
	b, ok := buffer.Raw.(hal.Buffer)
	if !ok {
		logging.Logger().Warn("encode: buffer has no HAL backing", "label", buffer.Label)
	}
	return b, ok
}

type halPassIndirect struct{ *HALPass }

func (p *halPassIndirect) DrawIndirect(buffer *Buffer, offset uint64) {
	if b, ok := halBuffer(buffer); ok {
		p.raw.(halIndirect).DrawIndirect(b, offset) //nolint:errcheck,forcetypeassert // checked in NewHALPass
	}
}

func (p *halPassIndirect) DrawIndexedIndirect(buffer *Buffer, offset uint64) {
	if b, ok := halBuffer(buffer); ok {
		p.raw.(halIndirect).DrawIndexedIndirect(b, offset) //nolint:errcheck,forcetypeassert // checked in NewHALPass
	}
}

type halPassViewport struct{ *HALPass }

func (p *halPassViewport) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.raw.(halViewport).SetViewport(x, y, width, height, minDepth, maxDepth) //nolint:errcheck,forcetypeassert // checked in NewHALPass
}

type halPassFull struct{ *HALPass }

func (p *halPassFull) DrawIndirect(buffer *Buffer, offset uint64) {
	(&halPassIndirect{p.HALPass}).DrawIndirect(buffer, offset)
}

func (p *halPassFull) DrawIndexedIndirect(buffer *Buffer, offset uint64) {
	(&halPassIndirect{p.HALPass}).DrawIndexedIndirect(buffer, offset)
}

func (p *halPassFull) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	(&halPassViewport{p.HALPass}).SetViewport(x, y, width, height, minDepth, maxDepth)
}
