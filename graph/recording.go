// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/visbuffer/encode"
	"github.com/gogpu/visbuffer/phase"
)

var errEncoderFinished = errors.New("graph: encoder already finished")

// RecordedPass is one pass captured by a RecordingDevice.
type RecordedPass struct {
	Descriptor RenderPassDescriptor
	Commands   []encode.Command
}

// DrawCalls returns the number of draw calls in the pass.
func (p *RecordedPass) DrawCalls() int {
	n := 0
	for i := range p.Commands {
		if p.Commands[i].Op.IsDraw() {
			n++
		}
	}
	return n
}

// RecordedBuffer is a command buffer produced by a RecordingDevice.
type RecordedBuffer struct {
	label  string
	Passes []RecordedPass
}

// Label implements CommandBuffer.
func (b *RecordedBuffer) Label() string { return b.label }

// DrawCalls returns the number of draw calls across all passes.
func (b *RecordedBuffer) DrawCalls() int {
	n := 0
	for i := range b.Passes {
		n += b.Passes[i].DrawCalls()
	}
	return n
}

// RecordingDevice is a Device and SubmissionQueue that records instead of
// executing. It backs tests and headless tools.
//
// Thread Safety:
// RecordingDevice is safe for concurrent use.
type RecordingDevice struct {
	caps phase.Capabilities

	encoders atomic.Int64

	mu        sync.Mutex
	submitted []*RecordedBuffer
	batches   int
}

// NewRecordingDevice returns a device whose passes expose the draw features
// in caps.
func NewRecordingDevice(caps phase.Capabilities) *RecordingDevice {
	return &RecordingDevice{caps: caps}
}

// Capabilities returns the draw features of the device's passes.
func (d *RecordingDevice) Capabilities() phase.Capabilities { return d.caps }

// CreateCommandEncoder implements Device.
func (d *RecordingDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	d.encoders.Add(1)
	return &recordingEncoder{device: d, buffer: &RecordedBuffer{label: label}}, nil
}

// Submit implements SubmissionQueue.
func (d *RecordingDevice) Submit(buffers []CommandBuffer) error {
	recorded := make([]*RecordedBuffer, 0, len(buffers))
	for _, b := range buffers {
		rb, ok := b.(*RecordedBuffer)
		if !ok {
			return ErrForeignCommandBuffer
		}
		recorded = append(recorded, rb)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted = append(d.submitted, recorded...)
	d.batches++
	return nil
}

// Submitted returns every submitted buffer in submission order.
func (d *RecordingDevice) Submitted() []*RecordedBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.submitted)
}

// Batches returns how many Submit calls were made.
func (d *RecordingDevice) Batches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.batches
}

// EncodersCreated returns how many command encoders were created.
func (d *RecordingDevice) EncodersCreated() int {
	return int(d.encoders.Load())
}

// Reset forgets submitted buffers.
func (d *RecordingDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted = nil
	d.batches = 0
	d.encoders.Store(0)
}

var (
	_ Device          = (*RecordingDevice)(nil)
	_ SubmissionQueue = (*RecordingDevice)(nil)
)

type recordingEncoder struct {
	device   *RecordingDevice
	buffer   *RecordedBuffer
	open     *encode.Recorder
	openDesc RenderPassDescriptor
	finished bool
}

func (e *recordingEncoder) BeginRenderPass(desc *RenderPassDescriptor) (encode.PassEncoder, error) {
	if e.finished {
		return nil, errEncoderFinished
	}
	e.closePass()
	e.open = encode.NewRecorder(desc.Label)
	e.openDesc = *desc
	e.openDesc.Color = slices.Clone(desc.Color)
	return e.open.Pass(e.device.caps), nil
}

// closePass moves the open recorder into the buffer.
func (e *recordingEncoder) closePass() {
	if e.open == nil {
		return
	}
	e.buffer.Passes = append(e.buffer.Passes, RecordedPass{
		Descriptor: e.openDesc,
		Commands:   e.open.Commands(),
	})
	e.open.Release()
	e.open = nil
}

func (e *recordingEncoder) Finish() (CommandBuffer, error) {
	if e.finished {
		return nil, errEncoderFinished
	}
	e.closePass()
	e.finished = true
	return e.buffer, nil
}

func (e *recordingEncoder) Discard() {
	if e.open != nil {
		e.open.Release()
		e.open = nil
	}
	e.finished = true
}
