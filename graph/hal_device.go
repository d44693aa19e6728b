// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/visbuffer/encode"
)

// DefaultSubmitTimeout bounds how long Submit waits for the GPU.
const DefaultSubmitTimeout = 5 * time.Second

const submitPollInterval = 100 * time.Microsecond

// HALDevice implements Device and SubmissionQueue over wgpu/hal.
//
// Attachments must carry a hal.TextureView in Raw.
type HALDevice struct {
	device  hal.Device
	queue   hal.Queue
	timeout time.Duration
}

// NewHALDevice wraps a HAL device and its queue.
func NewHALDevice(device hal.Device, queue hal.Queue) *HALDevice {
	return &HALDevice{device: device, queue: queue, timeout: DefaultSubmitTimeout}
}

// SetSubmitTimeout changes how long Submit waits for the GPU.
func (d *HALDevice) SetSubmitTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// CreateCommandEncoder implements Device.
func (d *HALDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label,
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return &halEncoder{label: label, raw: encoder}, nil
}

// Submit implements SubmissionQueue. It blocks until the GPU has executed
// the buffers, then frees them.
func (d *HALDevice) Submit(buffers []CommandBuffer) error {
	if len(buffers) == 0 {
		return nil
	}
	raw := make([]hal.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		hb, ok := b.(*halCommandBuffer)
		if !ok {
			return fmt.Errorf("%w: %s", ErrForeignCommandBuffer, b.Label())
		}
		raw = append(raw, hb.raw)
	}
	// Buffers the GPU may still read are leaked on timeout rather than freed.
	inFlight := false
	defer func() {
		if inFlight {
			return
		}
		for _, cb := range raw {
			d.device.FreeCommandBuffer(cb)
		}
	}()

	index, err := d.queue.Submit(raw)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	deadline := time.Now().Add(d.timeout)
	for d.queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			inFlight = true
			return ErrSubmitTimeout
		}
		time.Sleep(submitPollInterval)
	}
	return nil
}

var (
	_ Device          = (*HALDevice)(nil)
	_ SubmissionQueue = (*HALDevice)(nil)
)

type halEncoder struct {
	label string
	raw   hal.CommandEncoder
}

func (e *halEncoder) BeginRenderPass(desc *RenderPassDescriptor) (encode.PassEncoder, error) {
	rpDesc := &hal.RenderPassDescriptor{Label: desc.Label}
	for _, c := range desc.Color {
		view, ok := c.Target.Raw.(hal.TextureView)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentBackend, c.Target.Label)
		}
		rpDesc.ColorAttachments = append(rpDesc.ColorAttachments, hal.RenderPassColorAttachment{
			View:       view,
			LoadOp:     c.Load,
			StoreOp:    c.Store,
			ClearValue: c.Clear,
		})
	}
	if d := desc.Depth; d != nil {
		view, ok := d.Target.Raw.(hal.TextureView)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentBackend, d.Target.Label)
		}
		rpDesc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              view,
			DepthLoadOp:       d.Load,
			DepthStoreOp:      d.Store,
			DepthClearValue:   0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		}
	}
	return encode.NewHALPass(e.raw.BeginRenderPass(rpDesc)), nil
}

func (e *halEncoder) Finish() (CommandBuffer, error) {
	cb, err := e.raw.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return &halCommandBuffer{label: e.label, raw: cb}, nil
}

func (e *halEncoder) Discard() {
	e.raw.DiscardEncoding()
}

type halCommandBuffer struct {
	label string
	raw   hal.CommandBuffer
}

func (b *halCommandBuffer) Label() string { return b.label }
