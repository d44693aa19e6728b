// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package prepass

import (
	_ "embed"

	"github.com/gogpu/visbuffer/pipeline"
)

// Shader handles registered by RegisterShaders.
const (
	PrepassShader pipeline.ShaderHandle = "visbuffer_prepass.wgsl"
	UtilsShader   pipeline.ShaderHandle = "visbuffer_utils.wgsl"
	IOShader      pipeline.ShaderHandle = "visbuffer_io.wgsl"
)

//go:embed shaders/visbuffer_prepass.wgsl
var prepassShaderSource string

//go:embed shaders/visbuffer_utils.wgsl
var utilsShaderSource string

//go:embed shaders/visbuffer_io.wgsl
var ioShaderSource string

// RegisterShaders adds the built-in prepass shaders to r.
func RegisterShaders(r *pipeline.ShaderRegistry) {
	r.Register(PrepassShader, prepassShaderSource)
	r.Register(UtilsShader, utilsShaderSource)
	r.Register(IOShader, ioShaderSource)
}

// ShaderFiles maps the on-disk file names of the built-in shaders to
// their handles, for hot reload from a shader directory.
func ShaderFiles() map[string]pipeline.ShaderHandle {
	return map[string]pipeline.ShaderHandle{
		"visbuffer_prepass.wgsl": PrepassShader,
		"visbuffer_utils.wgsl":   UtilsShader,
		"visbuffer_io.wgsl":      IOShader,
	}
}
