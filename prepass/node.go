// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package prepass

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/visbuffer/encode"
	"github.com/gogpu/visbuffer/graph"
	"github.com/gogpu/visbuffer/internal/logging"
	"github.com/gogpu/visbuffer/phase"
)

// IndirectUploader uploads the indirect records of one binned phase and
// returns the buffer holding them. Each phase numbers its slots from 0, so
// each gets its own buffer.
type IndirectUploader interface {
	UploadIndirect(view *graph.View, kind phase.Kind, args []byte) (*encode.Buffer, error)
}

type phaseResources struct {
	encode.Resources
	indirect *encode.Buffer
}

func (r phaseResources) IndirectBuffer() *encode.Buffer { return r.indirect }

// NodeName is the graph name of the prepass node.
const NodeName = "visbuffer_prepass"

// Node renders the prepass of one view: opaque items, then alpha-masked
// items, into the visibility and depth attachments.
type Node struct {
	opaque     *phase.ViewPhases
	alphaMask  *phase.ViewPhases
	caps       phase.Capabilities
	functions  *encode.DrawFunctions
	pipelines  encode.PipelineResolver
	resources  encode.Resources
	indirect   IndirectUploader
	bindGroups *ViewBindGroups
}

var _ graph.Node = (*Node)(nil)

// NodeConfig holds the dependencies of a Node.
type NodeConfig struct {
	Opaque       *phase.ViewPhases
	AlphaMask    *phase.ViewPhases
	Capabilities phase.Capabilities
	Functions    *encode.DrawFunctions
	Pipelines    encode.PipelineResolver
	Resources    encode.Resources
	BindGroups   *ViewBindGroups

	// Indirect uploads indirect records per phase. Nil uses the buffer
	// returned by Resources.IndirectBuffer for both phases.
	Indirect IndirectUploader
}

// NewNode creates the prepass node.
func NewNode(cfg NodeConfig) *Node {
	return &Node{
		opaque:     cfg.Opaque,
		alphaMask:  cfg.AlphaMask,
		caps:       cfg.Capabilities,
		functions:  cfg.Functions,
		pipelines:  cfg.Pipelines,
		resources:  cfg.Resources,
		indirect:   cfg.Indirect,
		bindGroups: cfg.BindGroups,
	}
}

// Name implements graph.Node.
func (n *Node) Name() string { return NodeName }

// Run implements graph.Node. A view with nothing to draw gets no pass.
func (n *Node) Run(ctx *graph.Context, view *graph.View) error {
	opaque := n.bin(n.opaque, view)
	alphaMask := n.bin(n.alphaMask, view)
	if opaque.IsEmpty() && alphaMask.IsEmpty() {
		return nil
	}

	target, err := view.Attachment(VisbufferAttachment)
	if err != nil {
		return err
	}
	depth, err := view.Attachment(DepthAttachment)
	if err != nil {
		return err
	}
	group, ok := n.bindGroups.Get(view.ID)
	if !ok {
		return fmt.Errorf("%w: view %s prepass view bind group", graph.ErrResourceMissing, view)
	}
	binding := encode.ViewBinding{
		BindGroup:      group,
		DynamicOffsets: []uint32{view.UniformOffset},
	}

	phases := []*phase.BinnedPhase{opaque, alphaMask}
	resources := make([]encode.Resources, len(phases))
	for i, binned := range phases {
		if resources[i], err = n.phaseResources(view, binned); err != nil {
			return err
		}
	}

	desc := &graph.RenderPassDescriptor{
		Label: "visbuffer_prepass",
		Color: []graph.ColorAttachment{{
			Target: target,
			Load:   gputypes.LoadOpClear,
			Store:  gputypes.StoreOpStore,
		}},
		Depth: &graph.DepthAttachment{
			Target: depth,
			Load:   gputypes.LoadOpClear,
			Store:  gputypes.StoreOpStore,
		},
	}

	ctx.AddCommandBufferTask(NodeName, func(device graph.Device) (graph.CommandBuffer, error) {
		enc, err := device.CreateCommandEncoder("visbuffer_prepass_command_encoder")
		if err != nil {
			return nil, err
		}
		pass, err := enc.BeginRenderPass(desc)
		if err != nil {
			enc.Discard()
			return nil, err
		}
		if err := n.encode(pass, view, phases, resources, binding); err != nil {
			enc.Discard()
			return nil, err
		}
		return enc.Finish()
	})
	return nil
}

func (n *Node) encode(pass encode.PassEncoder, view *graph.View, phases []*phase.BinnedPhase, resources []encode.Resources, binding encode.ViewBinding) error {
	session := encode.NewSession(n.functions, n.pipelines, n.resources)
	if err := session.Begin(pass); err != nil {
		return err
	}
	if view.Viewport != nil {
		if ok, _ := session.SetViewport(*view.Viewport); !ok {
			logging.Logger().Debug("prepass: pass does not support viewports", "view", view)
		}
	}
	for i, binned := range phases {
		session.UseResources(resources[i])
		if _, err := session.Render(binned, binding); err != nil {
			return err
		}
	}
	rep, err := session.End()
	if err != nil {
		return err
	}
	logging.Logger().Debug("prepass: pass encoded",
		"view", view, "draws", rep.Draws, "skipped", rep.Skipped,
		"pipeline_binds", rep.Pass.PipelineBinds)
	return nil
}

func (n *Node) phaseResources(view *graph.View, binned *phase.BinnedPhase) (encode.Resources, error) {
	if n.indirect == nil || len(binned.IndirectSlots) == 0 {
		return n.resources, nil
	}
	args, err := encode.WriteIndirectArgs(binned.IndirectSlots, n.resources)
	if err != nil {
		return nil, fmt.Errorf("prepass: %s indirect args: %w", binned.Kind, err)
	}
	buf, err := n.indirect.UploadIndirect(view, binned.Kind, args)
	if err != nil {
		return nil, fmt.Errorf("prepass: %s indirect upload: %w", binned.Kind, err)
	}
	return phaseResources{Resources: n.resources, indirect: buf}, nil
}

func (n *Node) bin(phases *phase.ViewPhases, view *graph.View) *phase.BinnedPhase {
	if phases != nil {
		if vp, ok := phases.Get(view.ID); ok {
			return phase.Bin(vp, n.caps)
		}
	}
	return &phase.BinnedPhase{}
}
