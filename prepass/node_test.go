// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package prepass

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/encode"
	"github.com/gogpu/visbuffer/graph"
	"github.com/gogpu/visbuffer/internal/parallel"
	"github.com/gogpu/visbuffer/phase"
	"github.com/gogpu/visbuffer/pipeline"
)

// =============================================================================
// Test Helpers
// =============================================================================

const badMaterial = 99

var errBadMaterial = errors.New("material cannot be specialized")

type nopCompiled struct{}

func (nopCompiled) Destroy() {}

// testFactory creates labeled bind groups and counts destroys.
type testFactory struct {
	mu        sync.Mutex
	created   int
	destroyed int
	fail      bool
}

func (f *testFactory) CreateViewBindGroup(label string, _ ViewBuffers) (*encode.BindGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("out of descriptors")
	}
	f.created++
	return &encode.BindGroup{Label: label}, nil
}

func (f *testFactory) DestroyBindGroup(*encode.BindGroup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
}

// testUploader records indirect uploads per phase kind.
type testUploader struct {
	mu      sync.Mutex
	uploads map[phase.Kind][]byte
}

func (u *testUploader) UploadIndirect(_ *graph.View, kind phase.Kind, args []byte) (*encode.Buffer, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.uploads == nil {
		u.uploads = make(map[phase.Kind][]byte)
	}
	u.uploads[kind] = args
	return &encode.Buffer{Label: kind.String() + "_indirect", Size: uint64(len(args))}, nil
}

type fixture struct {
	cache      *pipeline.Cache
	opaque     *phase.ViewPhases
	alphaMask  *phase.ViewPhases
	queue      *Queue
	bindGroups *ViewBindGroups
	factory    *testFactory
	resources  *encode.MapResources
	uploader   *testUploader
	runner     *graph.Runner
	device     *graph.RecordingDevice
}

func newFixture(t *testing.T, caps phase.Capabilities) *fixture {
	t.Helper()

	specializer := NewSpecializer(Features{})
	specializer.Material = MaterialSpecializerFunc(func(_ *pipeline.Descriptor, key pipeline.Key) error {
		if key.Material == badMaterial {
			return errBadMaterial
		}
		return nil
	})
	cache := pipeline.NewCache(specializer, pipeline.CompilerFunc(func(*pipeline.Descriptor) (pipeline.Compiled, error) {
		return nopCompiled{}, nil
	}))
	t.Cleanup(cache.Close)

	functions := encode.NewDrawFunctions()
	drawFn := functions.Add(DrawFunctionName, encode.DrawVisbuffer...)

	f := &fixture{
		cache:     cache,
		opaque:    phase.NewViewPhases(phase.Opaque),
		alphaMask: phase.NewViewPhases(phase.AlphaMask),
		factory:   &testFactory{},
		resources: encode.NewMapResources(),
		uploader:  &testUploader{},
		device:    graph.NewRecordingDevice(caps),
	}
	f.queue = NewQueue(cache, drawFn, f.opaque, f.alphaMask, caps.MultiDrawIndirect)
	f.bindGroups = NewViewBindGroups(f.factory)

	for _, id := range []phase.MeshID{10, 20, 30} {
		f.resources.Meshes[id] = encode.MeshBuffers{
			Vertex:      &encode.Buffer{Label: "vertex"},
			VertexCount: 24,
			Index:       &encode.Buffer{Label: "index"},
			IndexFormat: gputypes.IndexFormatUint32,
			IndexCount:  36,
		}
	}
	f.resources.DefaultMeshGroup = &encode.BindGroup{Label: "mesh"}
	f.resources.MaterialGroups[0] = &encode.BindGroup{Label: "material0"}
	f.resources.MaterialGroups[1] = &encode.BindGroup{Label: "material1"}

	node := NewNode(NodeConfig{
		Opaque:       f.opaque,
		AlphaMask:    f.alphaMask,
		Capabilities: caps,
		Functions:    functions,
		Pipelines:    cache,
		Resources:    f.resources,
		BindGroups:   f.bindGroups,
		Indirect:     f.uploader,
	})

	pool := parallel.NewWorkerPool(2)
	t.Cleanup(pool.Close)
	f.runner = graph.NewRunner(pool, f.device, f.device, node)
	return f
}

func newPrepassView(name string) *graph.View {
	v := graph.NewView(name)
	v.Attachments[VisbufferAttachment] = &graph.Attachment{Label: name + "_visbuffer", Format: VisbufferFormat, Width: 64, Height: 64}
	v.Attachments[DepthAttachment] = &graph.Attachment{Label: name + "_depth", Format: DepthFormat, Width: 64, Height: 64}
	v.Buffers[ViewUniformsBuffer] = &encode.Buffer{Label: "view_uniforms", Size: ViewUniformSize}
	v.Buffers[GlobalsBuffer] = &encode.Buffer{Label: "globals", Size: 16}
	v.Buffers[VisibilityRangesBuffer] = &encode.Buffer{Label: "visibility_ranges", Size: 256}
	return v
}

func candidate(render uint64, mesh phase.MeshID, batchable bool) Candidate {
	return Candidate{
		Entity:    phase.Entity{Render: render, Main: render},
		Mesh:      mesh,
		Layout:    pipeline.AttributePosition | pipeline.AttributeUV0,
		Indexed:   true,
		Batchable: batchable,
	}
}

// frame prepares the phases and bind groups, queues candidates for every
// view and runs one frame.
func (f *fixture) frame(t *testing.T, views []*graph.View, candidates []Candidate) (QueueReport, graph.FrameReport) {
	t.Helper()
	ids := make([]uuid.UUID, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	f.opaque.Prepare(ids)
	f.alphaMask.Prepare(ids)
	if err := f.bindGroups.Prepare(views); err != nil {
		t.Fatalf("bind groups Prepare() error = %v", err)
	}

	var qrep QueueReport
	for _, v := range views {
		r := f.queue.QueueView(v.ID, ViewKey{MSAA: 1}, candidates)
		qrep.Queued += r.Queued
		qrep.Dropped += r.Dropped
		qrep.Errors = append(qrep.Errors, r.Errors...)
	}

	frep, err := f.runner.RunFrame(context.Background(), views)
	if err != nil {
		t.Fatalf("RunFrame() error = %v", err)
	}
	return qrep, frep
}

func countOps(b *graph.RecordedBuffer, op encode.Op) int {
	n := 0
	for i := range b.Passes {
		for j := range b.Passes[i].Commands {
			if b.Passes[i].Commands[j].Op == op {
				n++
			}
		}
	}
	return n
}

// =============================================================================
// Queue Tests
// =============================================================================

func TestQueue_Key(t *testing.T) {
	q := NewQueue(nil, 1, phase.NewViewPhases(phase.Opaque), phase.NewViewPhases(phase.AlphaMask), false)

	c := candidate(1, 10, true)
	c.AlphaMask = true
	c.MeshFlags = pipeline.MeshKeySkinned
	key := q.Key(ViewKey{MSAA: 4, UnclippedDepthOrtho: true}, &c)

	for _, flag := range []pipeline.MeshKey{
		pipeline.MeshKeyAlphaMask, pipeline.MeshKeyMayDiscard,
		pipeline.MeshKeySkinned, pipeline.MeshKeyUnclippedDepthOrtho,
	} {
		if !key.Mesh.Has(flag) {
			t.Errorf("key %s missing flag %s", key.Mesh, flag)
		}
	}
	if key.Mesh.MSAASamples() != 4 {
		t.Errorf("MSAASamples() = %d, want 4", key.Mesh.MSAASamples())
	}
	if key.Mesh.Topology() != gputypes.PrimitiveTopologyTriangleList {
		t.Errorf("Topology() = %v, want triangle list default", key.Mesh.Topology())
	}
	if key.Layout != c.Layout {
		t.Errorf("Layout = %s, want %s", key.Layout, c.Layout)
	}
}

func TestQueue_RoutesByKind(t *testing.T) {
	f := newFixture(t, phase.Capabilities{})
	view := uuid.New()
	f.opaque.Prepare([]uuid.UUID{view})
	f.alphaMask.Prepare([]uuid.UUID{view})

	masked := candidate(3, 30, true)
	masked.AlphaMask = true
	rep := f.queue.QueueView(view, ViewKey{MSAA: 1}, []Candidate{
		candidate(1, 10, true), candidate(2, 20, false), masked,
	})
	if rep.Queued != 3 || rep.Dropped != 0 {
		t.Fatalf("report = %+v, want 3 queued", rep)
	}

	opaque, _ := f.opaque.Get(view)
	alpha, _ := f.alphaMask.Get(view)
	if opaque.Len() != 2 || alpha.Len() != 1 {
		t.Errorf("opaque/alpha = %d/%d, want 2/1", opaque.Len(), alpha.Len())
	}
}

func TestQueue_DropsFailedSpecialization(t *testing.T) {
	f := newFixture(t, phase.Capabilities{})
	view := uuid.New()
	f.opaque.Prepare([]uuid.UUID{view})
	f.alphaMask.Prepare([]uuid.UUID{view})

	bad := candidate(3, 30, true)
	bad.Material = badMaterial
	rep := f.queue.QueueView(view, ViewKey{MSAA: 1}, []Candidate{candidate(1, 10, true), bad})

	if rep.Queued != 1 || rep.Dropped != 1 {
		t.Fatalf("report = %+v, want 1 queued, 1 dropped", rep)
	}
	err := rep.Err()
	if !errors.Is(err, pipeline.ErrSpecializationFailed) {
		t.Errorf("Err() = %v, want ErrSpecializationFailed", err)
	}
	if !errors.Is(err, errBadMaterial) {
		t.Errorf("Err() = %v, want it to wrap the material error", err)
	}
	var se *pipeline.SpecializationError
	if !errors.As(err, &se) || se.Key.Material != badMaterial {
		t.Errorf("SpecializationError = %+v, want key of the dropped item", se)
	}
}

// =============================================================================
// Node Tests
// =============================================================================

func TestNode_ThreeItems(t *testing.T) {
	tests := []struct {
		name      string
		caps      phase.Capabilities
		meshes    [3]phase.MeshID
		multiDraw int
		indexed   int
		uploads   int
	}{
		{
			// Two batchable items share one bin; the third draws alone.
			name:    "direct",
			caps:    phase.Capabilities{},
			meshes:  [3]phase.MeshID{10, 10, 30},
			indexed: 2,
		},
		{
			// Two batchable meshes merge into one multi-draw.
			name:      "multi-draw",
			caps:      phase.Capabilities{MultiDrawIndirect: true, IndirectDraw: true},
			meshes:    [3]phase.MeshID{10, 20, 30},
			multiDraw: 1,
			indexed:   1,
			uploads:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.caps)
			view := newPrepassView("main")

			_, frep := f.frame(t, []*graph.View{view}, []Candidate{
				candidate(1, tt.meshes[0], true),
				candidate(2, tt.meshes[1], true),
				candidate(3, tt.meshes[2], false),
			})
			if frep.Submitted != 1 {
				t.Fatalf("submitted = %d, want 1", frep.Submitted)
			}

			b := f.device.Submitted()[0]
			if got := countOps(b, encode.OpMultiDrawIndexedIndirect); got != tt.multiDraw {
				t.Errorf("multi-draws = %d, want %d", got, tt.multiDraw)
			}
			if got := countOps(b, encode.OpDrawIndexed); got != tt.indexed {
				t.Errorf("indexed draws = %d, want %d", got, tt.indexed)
			}
			if b.DrawCalls() != 2 {
				t.Errorf("DrawCalls() = %d, want 2", b.DrawCalls())
			}
			if got := len(f.uploader.uploads); got != tt.uploads {
				t.Errorf("indirect uploads = %d, want %d", got, tt.uploads)
			}
			if tt.uploads > 0 {
				if args := f.uploader.uploads[phase.Opaque]; len(args) != 2*encode.IndirectArgsStride {
					t.Errorf("opaque indirect args = %d bytes, want %d", len(args), 2*encode.IndirectArgsStride)
				}
			}
		})
	}
}

func TestNode_FailedSpecializationDrawsRest(t *testing.T) {
	f := newFixture(t, phase.Capabilities{})
	view := newPrepassView("main")

	bad := candidate(3, 30, false)
	bad.Material = badMaterial
	qrep, _ := f.frame(t, []*graph.View{view}, []Candidate{
		candidate(1, 10, false), candidate(2, 20, false), bad,
	})
	if qrep.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", qrep.Dropped)
	}

	submitted := f.device.Submitted()
	if len(submitted) != 1 {
		t.Fatalf("len(Submitted()) = %d, want 1", len(submitted))
	}
	if got := submitted[0].DrawCalls(); got != 2 {
		t.Errorf("DrawCalls() = %d, want 2", got)
	}
	if got := countOps(submitted[0], encode.OpSetPipeline); got != 1 {
		t.Errorf("pipeline binds = %d, want 1", got)
	}
}

func TestNode_OpaqueBeforeAlphaMask(t *testing.T) {
	f := newFixture(t, phase.Capabilities{})
	view := newPrepassView("main")

	masked := candidate(1, 10, false)
	masked.AlphaMask = true
	masked.MaterialBindGroup = 1
	f.frame(t, []*graph.View{view}, []Candidate{masked, candidate(2, 20, false)})

	submitted := f.device.Submitted()
	if len(submitted) != 1 || len(submitted[0].Passes) != 1 {
		t.Fatalf("want one buffer with one pass, got %d buffers", len(submitted))
	}
	pass := submitted[0].Passes[0]
	if pass.Descriptor.Label != "visbuffer_prepass" {
		t.Errorf("pass label = %q", pass.Descriptor.Label)
	}

	var materials []string
	for _, c := range pass.Commands {
		if c.Op == encode.OpSetBindGroup && c.Index == 2 {
			materials = append(materials, c.BindGroup.Label)
		}
	}
	if len(materials) != 2 || materials[0] != "material0" || materials[1] != "material1" {
		t.Errorf("material binds = %v, want [material0 material1]", materials)
	}
}

func TestNode_ViewBinding(t *testing.T) {
	f := newFixture(t, phase.Capabilities{})
	view := newPrepassView("main")
	view.UniformOffset = 256
	view.Viewport = &encode.Viewport{Width: 32, Height: 32, MaxDepth: 1}

	f.frame(t, []*graph.View{view}, []Candidate{candidate(1, 10, false)})

	submitted := f.device.Submitted()
	if len(submitted) != 1 {
		t.Fatalf("len(Submitted()) = %d, want 1", len(submitted))
	}
	pass := submitted[0].Passes[0]

	var sawViewport, sawView bool
	for _, c := range pass.Commands {
		switch {
		case c.Op == encode.OpSetViewport:
			sawViewport = true
		case c.Op == encode.OpSetBindGroup && c.Index == 0:
			sawView = true
			if len(c.Offsets) != 1 || c.Offsets[0] != 256 {
				t.Errorf("view bind group offsets = %v, want [256]", c.Offsets)
			}
		}
	}
	if !sawViewport {
		t.Error("viewport not applied")
	}
	if !sawView {
		t.Error("view bind group not set")
	}

	color := pass.Descriptor.Color
	if len(color) != 1 || color[0].Load != gputypes.LoadOpClear || color[0].Store != gputypes.StoreOpStore {
		t.Errorf("color attachment = %+v, want clear/store", color)
	}
	if d := pass.Descriptor.Depth; d == nil || d.Load != gputypes.LoadOpClear || d.Target.Label != "main_depth" {
		t.Errorf("depth attachment = %+v, want cleared main_depth", d)
	}
}

func TestNode_EmptyPhasesOpenNoPass(t *testing.T) {
	f := newFixture(t, phase.Capabilities{})
	view := newPrepassView("main")

	_, frep := f.frame(t, []*graph.View{view}, nil)
	if frep.Submitted != 0 || f.device.EncodersCreated() != 0 {
		t.Errorf("submitted %d, encoders %d; want none", frep.Submitted, f.device.EncodersCreated())
	}
}

func TestNode_MissingResourcesSkipView(t *testing.T) {
	tests := []struct {
		name  string
		strip func(v *graph.View)
	}{
		{"visbuffer attachment", func(v *graph.View) { delete(v.Attachments, VisbufferAttachment) }},
		{"depth attachment", func(v *graph.View) { delete(v.Attachments, DepthAttachment) }},
		{"globals", func(v *graph.View) { delete(v.Buffers, GlobalsBuffer) }},
		{"visibility ranges", func(v *graph.View) { delete(v.Buffers, VisibilityRangesBuffer) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, phase.Capabilities{})
			broken := newPrepassView("broken")
			tt.strip(broken)
			ok := newPrepassView("ok")

			_, frep := f.frame(t, []*graph.View{broken, ok}, []Candidate{candidate(1, 10, false)})
			if frep.Skipped != 1 {
				t.Errorf("skipped = %d, want 1", frep.Skipped)
			}
			if frep.Err() != nil {
				t.Errorf("Err() = %v, want nil for a missing resource", frep.Err())
			}
			submitted := f.device.Submitted()
			if len(submitted) != 1 || submitted[0].DrawCalls() != 1 {
				t.Fatalf("want one buffer with one draw for the intact view, got %d buffers", len(submitted))
			}
		})
	}
}

func TestNode_Name(t *testing.T) {
	if got := NewNode(NodeConfig{}).Name(); got != NodeName {
		t.Errorf("Name() = %q, want %q", got, NodeName)
	}
}
