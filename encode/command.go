// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"fmt"
	"sync"

	"github.com/gogpu/visbuffer/phase"
)

// drawContext is what a RenderCommand sees while encoding one item.
type drawContext struct {
	pass      *TrackedPass
	item      *phase.DrawItem
	view      *ViewBinding
	pipelines PipelineResolver
	resources Resources
}

// RenderCommand is one step of a draw function. The set is closed: only
// the commands declared in this package exist.
type RenderCommand interface {
	fmt.Stringer
	render(ctx *drawContext) error
}

// SetItemPipeline binds the item's cached pipeline.
type SetItemPipeline struct{}

func (SetItemPipeline) String() string { return "SetItemPipeline" }

func (SetItemPipeline) render(ctx *drawContext) error {
	id := ctx.item.CachedPipeline()
	p, ok := ctx.pipelines.Get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrMissingPipeline, id)
	}
	return ctx.pass.SetPipeline(p)
}

// SetViewBindGroup binds the view bind group at Index.
type SetViewBindGroup struct{ Index uint32 }

func (c SetViewBindGroup) String() string { return fmt.Sprintf("SetViewBindGroup(%d)", c.Index) }

func (c SetViewBindGroup) render(ctx *drawContext) error {
	if ctx.view == nil || ctx.view.BindGroup == nil {
		return fmt.Errorf("%w: view", ErrMissingBindGroup)
	}
	return ctx.pass.SetBindGroup(c.Index, ctx.view.BindGroup, ctx.view.DynamicOffsets)
}

// SetMeshBindGroup binds the mesh uniform bind group at Index, with the
// item's dynamic offset if it has one.
type SetMeshBindGroup struct{ Index uint32 }

func (c SetMeshBindGroup) String() string { return fmt.Sprintf("SetMeshBindGroup(%d)", c.Index) }

func (c SetMeshBindGroup) render(ctx *drawContext) error {
	entity := ctx.item.RepresentativeEntity()
	group, ok := ctx.resources.MeshBindGroup(entity)
	if !ok || group == nil {
		return fmt.Errorf("%w: mesh of %s", ErrMissingBindGroup, entity)
	}
	var offsets []uint32
	if extra := ctx.item.ExtraIndex(); extra.Kind == phase.ExtraIndexDynamicOffset {
		offsets = []uint32{extra.Offset}
	}
	return ctx.pass.SetBindGroup(c.Index, group, offsets)
}

// SetMaterialBindGroup binds the batch set's material bind group at Index.
type SetMaterialBindGroup struct{ Index uint32 }

func (c SetMaterialBindGroup) String() string {
	return fmt.Sprintf("SetMaterialBindGroup(%d)", c.Index)
}

func (c SetMaterialBindGroup) render(ctx *drawContext) error {
	slot := ctx.item.BatchSet.MaterialBindGroup
	group, ok := ctx.resources.MaterialBindGroup(slot)
	if !ok || group == nil {
		return fmt.Errorf("%w: material slot %d", ErrMissingBindGroup, slot)
	}
	return ctx.pass.SetBindGroup(c.Index, group, nil)
}

// DrawMesh binds the mesh buffers and issues the draw: a multi-draw for an
// indirect slot range, an indirect draw for a single slot, and a direct
// instanced draw otherwise.
type DrawMesh struct{}

func (DrawMesh) String() string { return "DrawMesh" }

func (DrawMesh) render(ctx *drawContext) error {
	item := ctx.item
	mesh, ok := ctx.resources.Mesh(item.Bin.Mesh)
	if !ok {
		return fmt.Errorf("%w: mesh %d", ErrMissingMesh, item.Bin.Mesh)
	}
	if mesh.Vertex == nil {
		return fmt.Errorf("%w: mesh %d has no vertex buffer", ErrMissingMesh, item.Bin.Mesh)
	}
	indexed := mesh.Indexed()
	if item.BatchSet.Indexed != indexed {
		return fmt.Errorf("%w: mesh %d indexed=%t, batch set indexed=%t",
			ErrIndexedMismatch, item.Bin.Mesh, indexed, item.BatchSet.Indexed)
	}

	if err := ctx.pass.SetVertexBuffer(0, mesh.Vertex, mesh.VertexOffset); err != nil {
		return err
	}
	if indexed {
		if err := ctx.pass.SetIndexBuffer(mesh.Index, mesh.IndexFormat, mesh.IndexOffset); err != nil {
			return err
		}
	}

	extra := item.ExtraIndex()
	if extra.Kind != phase.ExtraIndexIndirect {
		r := item.BatchRange()
		if indexed {
			return ctx.pass.DrawIndexed(mesh.IndexCount, r.Len(), mesh.FirstIndex, mesh.BaseVertex, r.Start)
		}
		return ctx.pass.Draw(mesh.VertexCount, r.Len(), mesh.FirstVertex, r.Start)
	}

	buf := ctx.resources.IndirectBuffer()
	if buf == nil {
		return fmt.Errorf("%w: indirect parameters", ErrNilBuffer)
	}
	offset := SlotOffset(extra.Slots.Start)
	switch {
	case indexed && extra.Slots.Len() > 1:
		return ctx.pass.MultiDrawIndexedIndirect(buf, offset, extra.Slots.Len())
	case indexed:
		return ctx.pass.DrawIndexedIndirect(buf, offset)
	default:
		for i := range uint64(extra.Slots.Len()) {
			if err := ctx.pass.DrawIndirect(buf, offset+i*IndirectArgsStride); err != nil {
				return err
			}
		}
		return nil
	}
}

// DrawVisbuffer is the draw function of both visibility prepass phases.
var DrawVisbuffer = []RenderCommand{
	SetItemPipeline{},
	SetViewBindGroup{Index: 0},
	SetMeshBindGroup{Index: 1},
	SetMaterialBindGroup{Index: 2},
	DrawMesh{},
}

type drawFunction struct {
	name     string
	commands []RenderCommand
}

// DrawFunctions is the registry of draw functions. IDs start at 1; the zero
// ID is never assigned.
//
// Thread Safety:
// DrawFunctions is safe for concurrent use.
type DrawFunctions struct {
	mu     sync.RWMutex
	fns    []drawFunction
	byName map[string]phase.DrawFunctionID
}

// NewDrawFunctions creates an empty registry.
func NewDrawFunctions() *DrawFunctions {
	return &DrawFunctions{byName: make(map[string]phase.DrawFunctionID)}
}

// Add registers commands under name and returns its ID. Adding an existing
// name returns the existing ID and keeps the first commands.
func (d *DrawFunctions) Add(name string, commands ...RenderCommand) phase.DrawFunctionID {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.byName[name]; ok {
		return id
	}
	d.fns = append(d.fns, drawFunction{name: name, commands: commands})
	id := phase.DrawFunctionID(len(d.fns)) //nolint:gosec // G115: registry size is tiny
	d.byName[name] = id
	return id
}

// ID returns the ID registered for name.
func (d *DrawFunctions) ID(name string) (phase.DrawFunctionID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	return id, ok
}

// Get returns the commands of a draw function.
func (d *DrawFunctions) Get(id phase.DrawFunctionID) ([]RenderCommand, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id == 0 || int(id) > len(d.fns) {
		return nil, false
	}
	return d.fns[id-1].commands, true
}

// Name returns the name of a draw function.
func (d *DrawFunctions) Name(id phase.DrawFunctionID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if id == 0 || int(id) > len(d.fns) {
		return ""
	}
	return d.fns[id-1].name
}
