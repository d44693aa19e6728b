// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package prepass

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Target formats.
const (
	// VisbufferFormat is the format of the visibility target.
	VisbufferFormat = gputypes.TextureFormatR8Unorm

	// DepthFormat is the depth format shared with the main 3D passes.
	DepthFormat = gputypes.TextureFormatDepth32Float
)

// Names of the view resources the prepass reads.
const (
	VisbufferAttachment = "visbuffer"
	DepthAttachment     = "depth"

	ViewUniformsBuffer     = "view_uniforms"
	GlobalsBuffer          = "globals"
	VisibilityRangesBuffer = "visibility_ranges"
)

// Names of the bind group layouts the specializer references.
const (
	ViewLayout     = "visbuffer_prepass_view"
	MaterialLayout = "material"

	MeshLayout             = "mesh"
	MeshSkinnedLayout      = "mesh_skinned"
	MeshMorphedLayout      = "mesh_morphed"
	MeshSkinnedMorphLayout = "mesh_skinned_morphed"
)

// TargetDescriptors returns the color targets of the prepass: a single
// visibility target, unblended, red channel only.
func TargetDescriptors() []gputypes.ColorTargetState {
	return []gputypes.ColorTargetState{{
		Format:    VisbufferFormat,
		WriteMask: gputypes.ColorWriteMaskRed,
	}}
}

// DepthStencilState returns the prepass depth state: depth writes on,
// GreaterEqual for reverse-Z, stencil ignored, no bias.
func DepthStencilState() *hal.DepthStencilState {
	ignore := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	return &hal.DepthStencilState{
		Format:            DepthFormat,
		DepthWriteEnabled: true,
		DepthCompare:      gputypes.CompareFunctionGreaterEqual,
		StencilFront:      ignore,
		StencilBack:       ignore,
		StencilReadMask:   0,
		StencilWriteMask:  0,
	}
}
