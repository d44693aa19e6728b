// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/visbuffer/phase"
)

// IndirectArgsStride is the byte distance between indirect records.
//
// Every slot holds a DrawIndexedIndirectArgs record:
//
//	struct DrawIndexedIndirectArgs {
//	    indexCount: u32,
//	    instanceCount: u32,
//	    firstIndex: u32,
//	    baseVertex: i32,
//	    firstInstance: u32,
//	}
//
// Non-indexed slots store DrawIndirectArgs (vertexCount, instanceCount,
// firstVertex, firstInstance) followed by one padding word.
const IndirectArgsStride = 20

// SlotOffset returns the byte offset of an indirect slot.
func SlotOffset(slot uint32) uint64 {
	return uint64(slot) * IndirectArgsStride
}

// MeshLookup returns the buffers of a mesh.
type MeshLookup interface {
	Mesh(id phase.MeshID) (MeshBuffers, bool)
}

// WriteIndirectArgs encodes the indirect records for slots in order, ready
// for upload to the indirect parameter buffer.
func WriteIndirectArgs(slots []phase.IndirectSlot, meshes MeshLookup) ([]byte, error) {
	buf := make([]byte, len(slots)*IndirectArgsStride)
	for i, slot := range slots {
		mesh, ok := meshes.Mesh(slot.Mesh)
		if !ok {
			return nil, fmt.Errorf("indirect slot %d: %w: mesh %d", i, ErrMissingMesh, slot.Mesh)
		}
		if slot.BatchSet.Indexed != mesh.Indexed() {
			return nil, fmt.Errorf("indirect slot %d: %w: mesh %d indexed=%t, batch set indexed=%t",
				i, ErrIndexedMismatch, slot.Mesh, mesh.Indexed(), slot.BatchSet.Indexed)
		}
		rec := buf[i*IndirectArgsStride : (i+1)*IndirectArgsStride]
		if slot.BatchSet.Indexed {
			binary.LittleEndian.PutUint32(rec[0:], mesh.IndexCount)
			binary.LittleEndian.PutUint32(rec[4:], slot.InstanceCount)
			binary.LittleEndian.PutUint32(rec[8:], mesh.FirstIndex)
			binary.LittleEndian.PutUint32(rec[12:], uint32(mesh.BaseVertex)) //nolint:gosec // G115: two's complement i32 on the wire
			binary.LittleEndian.PutUint32(rec[16:], slot.FirstInstance)
		} else {
			binary.LittleEndian.PutUint32(rec[0:], mesh.VertexCount)
			binary.LittleEndian.PutUint32(rec[4:], slot.InstanceCount)
			binary.LittleEndian.PutUint32(rec[8:], mesh.FirstVertex)
			binary.LittleEndian.PutUint32(rec[12:], slot.FirstInstance)
		}
	}
	return buf, nil
}
