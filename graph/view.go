// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/encode"
)

// Attachment is a texture view a pass renders into. Raw carries the
// backend view: a hal.TextureView for HALDevice.
type Attachment struct {
	Label  string
	Format gputypes.TextureFormat
	Width  uint32
	Height uint32
	Raw    any
}

// View is one camera for one frame, with the targets and uniforms the
// render graph prepared for it.
type View struct {
	// ID is the retained view identity, stable across frames.
	ID   uuid.UUID
	Name string

	// Viewport restricts rendering to part of the targets. Nil covers
	// the full attachment.
	Viewport *encode.Viewport

	// UniformOffset is the dynamic offset of this view's entry in the
	// shared view uniform buffer.
	UniformOffset uint32

	Attachments map[string]*Attachment
	Buffers     map[string]*encode.Buffer
}

// NewView returns a view with empty resource maps and a fresh ID.
func NewView(name string) *View {
	return &View{
		ID:          uuid.New(),
		Name:        name,
		Attachments: make(map[string]*Attachment),
		Buffers:     make(map[string]*encode.Buffer),
	}
}

func (v *View) String() string {
	if v.Name != "" {
		return v.Name
	}
	return v.ID.String()
}

// Attachment returns a named attachment or an error wrapping
// ErrResourceMissing.
func (v *View) Attachment(name string) (*Attachment, error) {
	if a, ok := v.Attachments[name]; ok && a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("%w: view %s attachment %q", ErrResourceMissing, v, name)
}

// Buffer returns a named buffer or an error wrapping ErrResourceMissing.
func (v *View) Buffer(name string) (*encode.Buffer, error) {
	if b, ok := v.Buffers[name]; ok && b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("%w: view %s buffer %q", ErrResourceMissing, v, name)
}
