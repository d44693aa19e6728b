// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/phase"
	"github.com/gogpu/visbuffer/pipeline"
)

// Op identifies a recorded pass command.
type Op uint8

const (
	OpSetPipeline Op = iota
	OpSetBindGroup
	OpSetVertexBuffer
	OpSetIndexBuffer
	OpSetViewport
	OpDraw
	OpDrawIndexed
	OpDrawIndirect
	OpDrawIndexedIndirect
	OpMultiDrawIndexedIndirect
	OpEnd
)

var opNames = [...]string{
	OpSetPipeline:              "SetPipeline",
	OpSetBindGroup:             "SetBindGroup",
	OpSetVertexBuffer:          "SetVertexBuffer",
	OpSetIndexBuffer:           "SetIndexBuffer",
	OpSetViewport:              "SetViewport",
	OpDraw:                     "Draw",
	OpDrawIndexed:              "DrawIndexed",
	OpDrawIndirect:             "DrawIndirect",
	OpDrawIndexedIndirect:      "DrawIndexedIndirect",
	OpMultiDrawIndexedIndirect: "MultiDrawIndexedIndirect",
	OpEnd:                      "End",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsDraw reports whether o issues a draw call.
func (o Op) IsDraw() bool { return o >= OpDraw && o <= OpMultiDrawIndexedIndirect }

// Command is one recorded pass command. Only the fields used by Op are set.
type Command struct {
	Op        Op
	Pipeline  pipeline.ID
	Index     uint32
	BindGroup *BindGroup
	Offsets   []uint32
	Buffer    *Buffer
	Offset    uint64
	Format    gputypes.IndexFormat
	Viewport  Viewport

	// Args holds the draw parameters in API order: count, instances,
	// first, first instance for Draw; index count, instances, first index,
	// first instance for DrawIndexed (BaseVertex separately); draw count
	// for MultiDrawIndexedIndirect.
	Args       [4]uint32
	BaseVertex int32
}

func (c Command) String() string {
	switch c.Op {
	case OpSetPipeline:
		return fmt.Sprintf("%s(%d)", c.Op, c.Pipeline)
	case OpSetBindGroup:
		return fmt.Sprintf("%s(%d, %s, %v)", c.Op, c.Index, c.BindGroup.Label, c.Offsets)
	case OpSetVertexBuffer:
		return fmt.Sprintf("%s(%d, %s, %d)", c.Op, c.Index, c.Buffer.Label, c.Offset)
	case OpSetIndexBuffer, OpDrawIndirect, OpDrawIndexedIndirect:
		return fmt.Sprintf("%s(%s, %d)", c.Op, c.Buffer.Label, c.Offset)
	case OpMultiDrawIndexedIndirect:
		return fmt.Sprintf("%s(%s, %d, %d)", c.Op, c.Buffer.Label, c.Offset, c.Args[0])
	case OpDraw:
		return fmt.Sprintf("%s(%d, %d, %d, %d)", c.Op, c.Args[0], c.Args[1], c.Args[2], c.Args[3])
	case OpDrawIndexed:
		return fmt.Sprintf("%s(%d, %d, %d, %d, %d)", c.Op, c.Args[0], c.Args[1], c.Args[2], c.BaseVertex, c.Args[3])
	default:
		return c.Op.String()
	}
}

// Recorder is a PassEncoder that records commands instead of sending them
// to a GPU. It implements every optional pass interface; use Pass to expose
// only the features of a given device.
//
// Thread Safety:
// Recorder is NOT safe for concurrent use.
type Recorder struct {
	label    string
	commands []Command
	ended    bool
}

var recorderPool = sync.Pool{
	New: func() any { return &Recorder{commands: make([]Command, 0, 64)} },
}

// NewRecorder returns an empty recorder from the pool.
func NewRecorder(label string) *Recorder {
	r := recorderPool.Get().(*Recorder) //nolint:errcheck // pool only holds *Recorder
	r.label = label
	return r
}

// Release resets r and returns it to the pool. r must not be used after.
func (r *Recorder) Release() {
	r.Reset()
	r.label = ""
	recorderPool.Put(r)
}

// Reset clears recorded commands, keeping capacity.
func (r *Recorder) Reset() {
	clear(r.commands)
	r.commands = r.commands[:0]
	r.ended = false
}

// Label returns the recorder label.
func (r *Recorder) Label() string { return r.label }

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []Command { return slices.Clone(r.commands) }

// Len returns the number of recorded commands.
func (r *Recorder) Len() int { return len(r.commands) }

// Ended reports whether End was recorded.
func (r *Recorder) Ended() bool { return r.ended }

// Count returns how many commands of op were recorded.
func (r *Recorder) Count(op Op) int {
	n := 0
	for i := range r.commands {
		if r.commands[i].Op == op {
			n++
		}
	}
	return n
}

// DrawCalls returns the number of recorded draw calls. A multi-draw counts
// once.
func (r *Recorder) DrawCalls() int {
	n := 0
	for i := range r.commands {
		if r.commands[i].Op.IsDraw() {
			n++
		}
	}
	return n
}

// Pass returns r restricted to the features in caps.
func (r *Recorder) Pass(caps phase.Capabilities) PassEncoder {
	switch {
	case caps.MultiDrawIndirect:
		return r
	case caps.IndirectDraw:
		return indirectPass{directPass{r}}
	default:
		return directPass{r}
	}
}

func (r *Recorder) push(c Command) { r.commands = append(r.commands, c) }

// SetPipeline implements PassEncoder.
func (r *Recorder) SetPipeline(p *pipeline.Pipeline) {
	r.push(Command{Op: OpSetPipeline, Pipeline: p.ID()})
}

// SetBindGroup implements PassEncoder.
func (r *Recorder) SetBindGroup(index uint32, group *BindGroup, dynamicOffsets []uint32) {
	r.push(Command{Op: OpSetBindGroup, Index: index, BindGroup: group, Offsets: slices.Clone(dynamicOffsets)})
}

// SetVertexBuffer implements PassEncoder.
func (r *Recorder) SetVertexBuffer(slot uint32, buffer *Buffer, offset uint64) {
	r.push(Command{Op: OpSetVertexBuffer, Index: slot, Buffer: buffer, Offset: offset})
}

// SetIndexBuffer implements PassEncoder.
func (r *Recorder) SetIndexBuffer(buffer *Buffer, format gputypes.IndexFormat, offset uint64) {
	r.push(Command{Op: OpSetIndexBuffer, Buffer: buffer, Format: format, Offset: offset})
}

// SetViewport implements ViewportSetter.
func (r *Recorder) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	r.push(Command{Op: OpSetViewport, Viewport: Viewport{
		X: x, Y: y, Width: width, Height: height, MinDepth: minDepth, MaxDepth: maxDepth,
	}})
}

// Draw implements PassEncoder.
func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.push(Command{Op: OpDraw, Args: [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance}})
}

// DrawIndexed implements PassEncoder.
func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.push(Command{
		Op:         OpDrawIndexed,
		Args:       [4]uint32{indexCount, instanceCount, firstIndex, firstInstance},
		BaseVertex: baseVertex,
	})
}

// DrawIndirect implements IndirectEncoder.
func (r *Recorder) DrawIndirect(buffer *Buffer, offset uint64) {
	r.push(Command{Op: OpDrawIndirect, Buffer: buffer, Offset: offset})
}

// DrawIndexedIndirect implements IndirectEncoder.
func (r *Recorder) DrawIndexedIndirect(buffer *Buffer, offset uint64) {
	r.push(Command{Op: OpDrawIndexedIndirect, Buffer: buffer, Offset: offset})
}

// MultiDrawIndexedIndirect implements MultiDrawEncoder.
func (r *Recorder) MultiDrawIndexedIndirect(buffer *Buffer, offset uint64, count uint32) {
	r.push(Command{Op: OpMultiDrawIndexedIndirect, Buffer: buffer, Offset: offset, Args: [4]uint32{count}})
}

// End implements PassEncoder.
func (r *Recorder) End() {
	r.ended = true
	r.push(Command{Op: OpEnd})
}

// directPass hides the indirect interfaces of a Recorder.
type directPass struct{ r *Recorder }

func (p directPass) SetPipeline(pl *pipeline.Pipeline) { p.r.SetPipeline(pl) }
func (p directPass) SetBindGroup(index uint32, group *BindGroup, offsets []uint32) {
	p.r.SetBindGroup(index, group, offsets)
}
func (p directPass) SetVertexBuffer(slot uint32, buffer *Buffer, offset uint64) {
	p.r.SetVertexBuffer(slot, buffer, offset)
}
func (p directPass) SetIndexBuffer(buffer *Buffer, format gputypes.IndexFormat, offset uint64) {
	p.r.SetIndexBuffer(buffer, format, offset)
}
func (p directPass) SetViewport(x, y, w, h, minDepth, maxDepth float32) {
	p.r.SetViewport(x, y, w, h, minDepth, maxDepth)
}
func (p directPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.r.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}
func (p directPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.r.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}
func (p directPass) End() { p.r.End() }

// indirectPass hides multi-draw-indirect.
type indirectPass struct{ directPass }

func (p indirectPass) DrawIndirect(buffer *Buffer, offset uint64) { p.r.DrawIndirect(buffer, offset) }
func (p indirectPass) DrawIndexedIndirect(buffer *Buffer, offset uint64) {
	p.r.DrawIndexedIndirect(buffer, offset)
}

var (
	_ PassEncoder      = (*Recorder)(nil)
	_ IndirectEncoder  = (*Recorder)(nil)
	_ MultiDrawEncoder = (*Recorder)(nil)
	_ ViewportSetter   = (*Recorder)(nil)
	_ IndirectEncoder  = indirectPass{}
)
