// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package prepass

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/visbuffer/encode"
	"github.com/gogpu/visbuffer/graph"
	"github.com/gogpu/visbuffer/internal/logging"
)

// ViewUniformSize is the size of one view entry in the view uniform
// buffer, bound with a dynamic offset.
const ViewUniformSize uint64 = 96

// Bindings of the view bind group.
const (
	ViewUniformsBinding     = 0
	GlobalsBinding          = 1
	VisibilityRangesBinding = 14
)

// ViewBuffers are the buffers the view bind group is built from.
type ViewBuffers struct {
	ViewUniforms     *encode.Buffer
	Globals          *encode.Buffer
	VisibilityRanges *encode.Buffer
}

// BindGroupFactory creates and destroys view bind groups.
type BindGroupFactory interface {
	CreateViewBindGroup(label string, buffers ViewBuffers) (*encode.BindGroup, error)
	DestroyBindGroup(group *encode.BindGroup)
}

type viewGroup struct {
	buffers ViewBuffers
	group   *encode.BindGroup
}

// ViewBindGroups holds the prepass view bind group of every view.
//
// Groups are rebuilt only when a view's buffers change, and destroyed
// when a view disappears. ViewBindGroups is safe for concurrent reads
// during encoding; Prepare must not overlap with them.
type ViewBindGroups struct {
	factory BindGroupFactory

	mu     sync.RWMutex
	groups map[uuid.UUID]viewGroup
}

// NewViewBindGroups creates an empty store.
func NewViewBindGroups(factory BindGroupFactory) *ViewBindGroups {
	return &ViewBindGroups{
		factory: factory,
		groups:  make(map[uuid.UUID]viewGroup),
	}
}

// Prepare builds the bind groups for views. A view gets a group only when
// its view uniforms, globals and visibility ranges all exist; views
// missing one of them are left without a group and the node skips them.
func (s *ViewBindGroups) Prepare(views []*graph.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	live := make(map[uuid.UUID]viewGroup, len(views))
	for _, v := range views {
		buffers, ok := viewBuffers(v)
		if !ok {
			continue
		}
		if old, ok := s.groups[v.ID]; ok && old.buffers == buffers {
			live[v.ID] = old
			continue
		}
		group, err := s.factory.CreateViewBindGroup("visbuffer_prepass_view_bind_group", buffers)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepass: view %s bind group: %w", v, err))
			logging.Logger().Warn("prepass: view bind group failed", "view", v, "err", err)
			continue
		}
		live[v.ID] = viewGroup{buffers: buffers, group: group}
	}

	for id, old := range s.groups {
		if cur, ok := live[id]; ok && cur.group == old.group {
			continue
		}
		s.factory.DestroyBindGroup(old.group)
	}
	s.groups = live
	return errors.Join(errs...)
}

// Get returns the bind group of a view.
func (s *ViewBindGroups) Get(view uuid.UUID) (*encode.BindGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[view]
	return g.group, ok
}

// Len returns the number of prepared groups.
func (s *ViewBindGroups) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

// Close destroys every group.
func (s *ViewBindGroups) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		s.factory.DestroyBindGroup(g.group)
	}
	clear(s.groups)
}

func viewBuffers(v *graph.View) (ViewBuffers, bool) {
	uniforms, err1 := v.Buffer(ViewUniformsBuffer)
	globals, err2 := v.Buffer(GlobalsBuffer)
	ranges, err3 := v.Buffer(VisibilityRangesBuffer)
	if err1 != nil || err2 != nil || err3 != nil {
		return ViewBuffers{}, false
	}
	return ViewBuffers{ViewUniforms: uniforms, Globals: globals, VisibilityRanges: ranges}, true
}

// HALBindGroupFactory creates view bind groups on a HAL device.
type HALBindGroupFactory struct {
	device hal.Device
	layout hal.BindGroupLayout
}

var _ BindGroupFactory = (*HALBindGroupFactory)(nil)

// NewHALBindGroupFactory returns a factory for layout, the bind group
// layout registered as ViewLayout.
func NewHALBindGroupFactory(device hal.Device, layout hal.BindGroupLayout) *HALBindGroupFactory {
	return &HALBindGroupFactory{device: device, layout: layout}
}

// CreateViewBindGroup implements BindGroupFactory.
func (f *HALBindGroupFactory) CreateViewBindGroup(label string, buffers ViewBuffers) (*encode.BindGroup, error) {
	uniforms, ok1 := buffers.ViewUniforms.Raw.(hal.Buffer)
	globals, ok2 := buffers.Globals.Raw.(hal.Buffer)
	ranges, ok3 := buffers.VisibilityRanges.Raw.(hal.Buffer)
	if !ok1 || !ok2 || !ok3 {
		return nil, errors.New("prepass: view buffers are not HAL buffers")
	}
	raw, err := f.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label,
		Layout: f.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: ViewUniformsBinding, Resource: gputypes.BufferBinding{
				Buffer: uniforms.NativeHandle(), Offset: 0, Size: ViewUniformSize,
			}},
			{Binding: GlobalsBinding, Resource: gputypes.BufferBinding{
				Buffer: globals.NativeHandle(), Offset: 0, Size: buffers.Globals.Size,
			}},
			{Binding: VisibilityRangesBinding, Resource: gputypes.BufferBinding{
				Buffer: ranges.NativeHandle(), Offset: 0, Size: buffers.VisibilityRanges.Size,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create view bind group: %w", err)
	}
	return &encode.BindGroup{Label: label, Raw: raw}, nil
}

// DestroyBindGroup implements BindGroupFactory.
func (f *HALBindGroupFactory) DestroyBindGroup(group *encode.BindGroup) {
	if group == nil {
		return
	}
	if raw, ok := group.Raw.(hal.BindGroup); ok && raw != nil {
		f.device.DestroyBindGroup(raw)
	}
}
