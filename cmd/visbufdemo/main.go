// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command visbufdemo runs the visibility prepass headless on a recording
// device and prints what each frame would submit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer"
	"github.com/gogpu/visbuffer/encode"
	"github.com/gogpu/visbuffer/graph"
	"github.com/gogpu/visbuffer/phase"
	"github.com/gogpu/visbuffer/pipeline"
	"github.com/gogpu/visbuffer/prepass"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		frames     = flag.Int("frames", 3, "frames to render")
		views      = flag.Int("views", 2, "number of views")
		meshes     = flag.Int("meshes", 8, "distinct meshes")
		instances  = flag.Int("instances", 64, "mesh instances per view")
		multiDraw  = flag.Bool("multidraw", true, "device supports multi-draw-indirect")
		seed       = flag.Uint64("seed", 1, "scene seed")
	)
	flag.Parse()

	cfg := visbuffer.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = visbuffer.LoadConfig(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "visbufdemo",
	})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	visbuffer.SetLogger(slog.New(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, demoOptions{
		frames:    *frames,
		views:     *views,
		meshes:    *meshes,
		instances: *instances,
		multiDraw: *multiDraw,
		seed:      *seed,
	}); err != nil {
		logger.Error("demo failed", "err", err)
		os.Exit(1)
	}
}

type demoOptions struct {
	frames    int
	views     int
	meshes    int
	instances int
	multiDraw bool
	seed      uint64
}

// indirectCounter stands in for a GPU upload of indirect records.
type indirectCounter struct{}

func (indirectCounter) UploadIndirect(view *graph.View, kind phase.Kind, args []byte) (*encode.Buffer, error) {
	return &encode.Buffer{
		Label: fmt.Sprintf("%s_%s_indirect", view, kind),
		Size:  uint64(len(args)),
	}, nil
}

type demoBindGroups struct{}

func (demoBindGroups) CreateViewBindGroup(label string, _ prepass.ViewBuffers) (*encode.BindGroup, error) {
	return &encode.BindGroup{Label: label}, nil
}

func (demoBindGroups) DestroyBindGroup(*encode.BindGroup) {}

type demoCompiled struct{}

func (demoCompiled) Destroy() {}

func run(ctx context.Context, cfg visbuffer.Config, opts demoOptions) error {
	caps := phase.Capabilities{MultiDrawIndirect: opts.multiDraw, IndirectDraw: true}
	device := graph.NewRecordingDevice(caps)

	resources := encode.NewMapResources()
	for i := range opts.meshes {
		resources.Meshes[phase.MeshID(i)] = encode.MeshBuffers{
			Vertex:      &encode.Buffer{Label: fmt.Sprintf("mesh%d_vertex", i)},
			VertexCount: 24,
			Index:       &encode.Buffer{Label: fmt.Sprintf("mesh%d_index", i)},
			IndexFormat: gputypes.IndexFormatUint32,
			IndexCount:  36,
		}
	}
	resources.DefaultMeshGroup = &encode.BindGroup{Label: "mesh"}
	resources.MaterialGroups[0] = &encode.BindGroup{Label: "opaque_material"}
	resources.MaterialGroups[1] = &encode.BindGroup{Label: "masked_material"}

	p, err := visbuffer.New(visbuffer.Backend{
		NewCompiler: func(shaders *pipeline.ShaderRegistry) pipeline.Compiler {
			// Preprocess every variant so shader errors surface without a GPU.
			return pipeline.CompilerFunc(func(desc *pipeline.Descriptor) (pipeline.Compiled, error) {
				if _, err := shaders.Resolve(desc.Vertex.Shader, desc.Vertex.Defs); err != nil {
					return nil, err
				}
				return demoCompiled{}, nil
			})
		},
		Device:       device,
		Queue:        device,
		BindGroups:   demoBindGroups{},
		Resources:    resources,
		Indirect:     indirectCounter{},
		Capabilities: caps,
	}, visbuffer.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer p.Close()

	extracted := make([]visbuffer.ExtractedView, opts.views)
	for i := range extracted {
		v := graph.NewView(fmt.Sprintf("view%d", i))
		v.UniformOffset = uint32(i) * 256 //nolint:gosec // G115: small view counts
		v.Attachments[prepass.VisbufferAttachment] = &graph.Attachment{Label: v.Name + "_visbuffer", Format: prepass.VisbufferFormat}
		v.Attachments[prepass.DepthAttachment] = &graph.Attachment{Label: v.Name + "_depth", Format: prepass.DepthFormat}
		for _, b := range []string{prepass.ViewUniformsBuffer, prepass.GlobalsBuffer, prepass.VisibilityRangesBuffer} {
			v.Buffers[b] = &encode.Buffer{Label: b, Size: 256}
		}
		extracted[i] = visbuffer.ExtractedView{
			View:       v,
			Key:        prepass.ViewKey{MSAA: cfg.Render.MSAA},
			Candidates: scene(opts, uint64(i)),
		}
	}

	for frame := range opts.frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		device.Reset()
		rep, err := p.RenderFrame(ctx, extracted)
		if err != nil {
			return err
		}
		draws := 0
		for _, b := range device.Submitted() {
			draws += b.DrawCalls()
		}
		stats := p.Cache().Stats()
		fmt.Printf("frame %d: queued=%d dropped=%d buffers=%d draws=%d skipped=%d pipelines=%d hit-rate=%.2f\n",
			frame+1, rep.Queued, rep.Dropped, rep.Submitted, draws, rep.Skipped, stats.Pipelines, stats.HitRate())
		if err := rep.Err(); err != nil {
			fmt.Printf("  errors: %v\n", err)
		}
	}
	resolved := p.Shaders().ResolveStats()
	slog.Info("shader sources", "resolved", resolved.Len, "hits", resolved.Hits, "misses", resolved.Misses)
	return nil
}

// scene returns a reproducible mix of opaque and alpha-masked instances.
func scene(opts demoOptions, view uint64) []prepass.Candidate {
	rng := rand.New(rand.NewPCG(opts.seed, view))
	out := make([]prepass.Candidate, opts.instances)
	for i := range out {
		masked := rng.IntN(4) == 0
		c := prepass.Candidate{
			Entity:    phase.Entity{Render: uint64(i), Main: uint64(i)}, //nolint:gosec // G115: non-negative index
			Mesh:      phase.MeshID(rng.IntN(opts.meshes)),              //nolint:gosec // G115: bounded by flag
			Layout:    pipeline.AttributePosition | pipeline.AttributeNormal | pipeline.AttributeUV0,
			AlphaMask: masked,
			Indexed:   true,
			Batchable: rng.IntN(8) != 0,
		}
		if masked {
			c.MaterialBindGroup = 1
			c.Material = 1
		}
		out[i] = c
	}
	return out
}
