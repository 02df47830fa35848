// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Hardware mesh-shader batch limits. Clustering never emits a meshlet
// over either limit.
const (
	MaxMeshletVertices  = 128
	MaxMeshletTriangles = 256
)

// VoxelVertex is one corner of a voxel face quad. Positions are quantized
// to chunk-local bytes and AO is an occlusion level in 0..3, darkest first.
type VoxelVertex struct {
	Position [3]uint8
	AO       uint8
}

// NewVoxelVertex panics if ao exceeds the two bits the vertex stream
// allocates for it.
func NewVoxelVertex(x, y, z, ao uint8) VoxelVertex {
	if ao > 3 {
		panic(fmt.Sprintf("voxray: ambient occlusion level %d out of range", ao))
	}
	return VoxelVertex{Position: [3]uint8{x, y, z}, AO: ao}
}

// VoxelTriangle indexes three meshlet-local vertices and packs the face
// normal (0..5, indexing Directions) with the material id into one byte.
type VoxelTriangle struct {
	Indices [3]uint8
	Meta    uint8
}

// NewVoxelTriangle panics if the normal index or material overflows its
// bit field.
func NewVoxelTriangle(i0, i1, i2, normal uint8, m Material) VoxelTriangle {
	if normal >= 6 {
		panic(fmt.Sprintf("voxray: normal index %d out of range", normal))
	}
	if m >= MaxMaterials {
		panic(fmt.Sprintf("voxray: material %d does not fit triangle meta", m))
	}
	return VoxelTriangle{Indices: [3]uint8{i0, i1, i2}, Meta: normal | uint8(m)<<3}
}

// NormalIndex returns the face direction as an index into Directions.
func (t VoxelTriangle) NormalIndex() uint8 { return t.Meta & 0x7 }

// Material returns the material id packed into the triangle.
func (t VoxelTriangle) Material() Material { return Material(t.Meta >> 3) }

// Normal returns the unit face direction of the triangle.
func (t VoxelTriangle) Normal() IVec3 { return Directions[t.NormalIndex()] }

// VoxelMeshlet is one mesh-shader batch: ranges into the shared vertex and
// triangle buffers, the owning chunk, and a byte-quantized bounding box in
// chunk-local voxel coordinates.
type VoxelMeshlet struct {
	VertexOffset   uint32
	TriangleOffset uint32
	VertexCount    uint16
	TriangleCount  uint16
	Chunk          IVec3
	BoundBase      [3]uint8
	BoundSize      [3]uint8
}

// WorldBounds returns the meshlet's bounding box in world voxel space,
// combining the chunk coordinate with the quantized local bound.
func (m *VoxelMeshlet) WorldBounds(chunkSize int32) (mgl32.Vec3, mgl32.Vec3) {
	base := m.Chunk.Mul(chunkSize)
	min := mgl32.Vec3{
		float32(base.X) + float32(m.BoundBase[0]),
		float32(base.Y) + float32(m.BoundBase[1]),
		float32(base.Z) + float32(m.BoundBase[2]),
	}
	max := min.Add(mgl32.Vec3{
		float32(m.BoundSize[0]),
		float32(m.BoundSize[1]),
		float32(m.BoundSize[2]),
	})
	return min, max
}
