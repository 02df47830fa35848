// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

// layout.go defines the byte layouts shared between the CPU structures and
// the WGSL shaders. Every encoder here must match the corresponding struct
// declaration in shaders/voxel_cull.wgsl and shaders/voxel_trace.wgsl field
// for field; the sizes are pinned by the constants below and asserted in
// layout_test.go.

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/voxray/voxray"
)

// Byte sizes of the shared structures as the shaders see them. Storage
// records are packed scalar fields with 4-byte stride alignment; the Global
// uniform follows WGSL uniform layout rules, so its vec3 members are
// 16-byte aligned and padded explicitly by the encoder.
const (
	// NodeByteSize is one octree node: 8 child words plus the parent index.
	NodeByteSize = 36

	// MeshletByteSize is one meshlet record: offsets, packed counts, chunk
	// coordinate, and the two packed bound words.
	MeshletByteSize = 32

	// VertexByteSize is one quantized vertex packed into a single word.
	VertexByteSize = 4

	// TriangleByteSize is one triangle packed into a single word.
	TriangleByteSize = 4

	// RayByteSize is one ray: origin and direction as six scalars.
	RayByteSize = 24

	// HitByteSize is one trace result: status, voxel, material, steps.
	HitByteSize = 24

	// GlobalByteSize is the frame uniform: camera, light, atmosphere,
	// voxel params, and the full material table.
	GlobalByteSize = 8624
)

// visibleHeaderSize is the atomic count word at the head of the culling
// output buffer; the compacted index list follows it.
const visibleHeaderSize = 4

// Ray is one traversal query: a world-space origin and a unit direction.
// The slice handed to [Dispatcher.TraceRays] is uploaded with one shader
// lane per element.
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
}

func appendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func appendI32(dst []byte, v int32) []byte {
	return appendU32(dst, uint32(v))
}

func appendF32(dst []byte, v float32) []byte {
	return appendU32(dst, math.Float32bits(v))
}

func appendVec2(dst []byte, v mgl32.Vec2) []byte {
	dst = appendF32(dst, v.X())
	return appendF32(dst, v.Y())
}

func appendVec3(dst []byte, v mgl32.Vec3) []byte {
	dst = appendF32(dst, v.X())
	dst = appendF32(dst, v.Y())
	return appendF32(dst, v.Z())
}

// appendMat4 writes the matrix in column-major element order, matching
// both mgl32's memory layout and WGSL's mat4x4 columns.
func appendMat4(dst []byte, m mgl32.Mat4) []byte {
	for _, v := range m {
		dst = appendF32(dst, v)
	}
	return dst
}

func pad(dst []byte, n int) []byte {
	for i := 0; i < n; i++ {
		dst = append(dst, 0)
	}
	return dst
}

// GlobalBytes serializes the frame snapshot as the Global uniform both
// shaders bind at group(0) binding(0). meshletCount is the length of the
// meshlet table uploaded alongside it; the CPU snapshot carries the table
// as a slice, so the count lives only in the uniform.
func GlobalBytes(g *voxray.Global, meshletCount uint32) []byte {
	buf := make([]byte, 0, GlobalByteSize)

	// Camera: four matrices, then the scalar block. The two vec3 members
	// sit on 16-byte boundaries, each followed by one pad word.
	buf = appendMat4(buf, g.Camera.View)
	buf = appendMat4(buf, g.Camera.Proj)
	buf = appendMat4(buf, g.Camera.InverseView)
	buf = appendMat4(buf, g.Camera.InverseProj)
	buf = appendVec2(buf, g.Camera.Resolution)
	buf = appendF32(buf, g.Camera.DepthNear)
	buf = appendF32(buf, g.Camera.DepthFar)
	buf = appendVec3(buf, g.Camera.Position)
	buf = pad(buf, 4)
	buf = appendVec3(buf, g.Camera.Direction)
	buf = pad(buf, 4)

	// Light packs without padding: each vec3 is completed by the strength
	// that follows it.
	buf = appendVec3(buf, g.Light.Color)
	buf = appendF32(buf, g.Light.Ambient)
	buf = appendVec3(buf, g.Light.Position)
	buf = appendF32(buf, g.Light.Diffuse)

	// Atmosphere.
	var enabled uint32
	if g.Atmosphere.Enabled {
		enabled = 1
	}
	buf = appendU32(buf, enabled)
	buf = appendI32(buf, g.Atmosphere.ScatterPoints)
	buf = appendI32(buf, g.Atmosphere.OpticalDepthPoints)
	buf = appendF32(buf, g.Atmosphere.DensityFalloff)
	buf = appendVec3(buf, g.Atmosphere.Center)
	buf = appendF32(buf, g.Atmosphere.PlanetRadius)
	buf = appendVec3(buf, g.Atmosphere.Wavelengths)
	buf = appendF32(buf, g.Atmosphere.Radius)
	buf = appendF32(buf, g.Atmosphere.ScatteringStrength)
	buf = appendF32(buf, g.Atmosphere.HenyeyGreensteinG)
	buf = pad(buf, 8)

	// Voxel index location.
	buf = appendI32(buf, g.Voxels.ChunkSize)
	buf = appendU32(buf, meshletCount)
	buf = appendU32(buf, g.Voxels.RootIndex)
	buf = appendI32(buf, g.Voxels.RootSide)
	buf = appendI32(buf, g.Voxels.RootBase.X)
	buf = appendI32(buf, g.Voxels.RootBase.Y)
	buf = appendI32(buf, g.Voxels.RootBase.Z)
	buf = pad(buf, 4)

	// Material table, 32 bytes per slot with no padding.
	for i := range g.Materials {
		m := &g.Materials[i]
		buf = appendVec3(buf, m.Albedo)
		buf = appendF32(buf, m.Roughness)
		buf = appendVec3(buf, m.Emit)
		buf = appendF32(buf, m.Metallic)
	}
	return buf
}

// NodesBytes serializes the octree arena for the traversal shader's node
// buffer. The packed child words are carried through unchanged.
func NodesBytes(nodes []voxray.SvoNode) []byte {
	buf := make([]byte, 0, len(nodes)*NodeByteSize)
	for i := range nodes {
		n := &nodes[i]
		for _, c := range n.Children {
			buf = appendU32(buf, uint32(c))
		}
		buf = appendU32(buf, n.Parent)
	}
	return buf
}

// MeshletsBytes serializes the meshlet table for the culling shader.
// Counts share one word (vertex count low, triangle count high) and each
// quantized bound packs its three components into a single word.
func MeshletsBytes(meshlets []voxray.VoxelMeshlet) []byte {
	buf := make([]byte, 0, len(meshlets)*MeshletByteSize)
	for i := range meshlets {
		m := &meshlets[i]
		buf = appendU32(buf, m.VertexOffset)
		buf = appendU32(buf, m.TriangleOffset)
		buf = appendU32(buf, uint32(m.VertexCount)|uint32(m.TriangleCount)<<16)
		buf = appendI32(buf, m.Chunk.X)
		buf = appendI32(buf, m.Chunk.Y)
		buf = appendI32(buf, m.Chunk.Z)
		buf = appendU32(buf, packByte3(m.BoundBase))
		buf = appendU32(buf, packByte3(m.BoundSize))
	}
	return buf
}

func packByte3(b [3]uint8) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// VerticesBytes serializes the shared vertex stream, one word per vertex:
// quantized position in the low three bytes, ambient occlusion in the top.
func VerticesBytes(vertices []voxray.VoxelVertex) []byte {
	buf := make([]byte, 0, len(vertices)*VertexByteSize)
	for _, v := range vertices {
		buf = appendU32(buf, uint32(v.Position[0])|
			uint32(v.Position[1])<<8|
			uint32(v.Position[2])<<16|
			uint32(v.AO)<<24)
	}
	return buf
}

// TrianglesBytes serializes the shared triangle stream, one word per
// triangle: three local indices and the packed normal/material byte.
func TrianglesBytes(triangles []voxray.VoxelTriangle) []byte {
	buf := make([]byte, 0, len(triangles)*TriangleByteSize)
	for _, t := range triangles {
		buf = appendU32(buf, uint32(t.Indices[0])|
			uint32(t.Indices[1])<<8|
			uint32(t.Indices[2])<<16|
			uint32(t.Meta)<<24)
	}
	return buf
}

// RaysBytes serializes the traversal queries, six scalars per ray.
func RaysBytes(rays []Ray) []byte {
	buf := make([]byte, 0, len(rays)*RayByteSize)
	for i := range rays {
		buf = appendVec3(buf, rays[i].Origin)
		buf = appendVec3(buf, rays[i].Dir)
	}
	return buf
}

// VisibleIndices decodes the culling output buffer: the survivor count
// written by the shader's atomic, followed by the compacted index list.
func VisibleIndices(data []byte) ([]uint32, error) {
	if len(data) < visibleHeaderSize {
		return nil, fmt.Errorf("gpu: visible buffer %d bytes, want at least %d", len(data), visibleHeaderSize)
	}
	count := binary.LittleEndian.Uint32(data)
	capacity := uint32((len(data) - visibleHeaderSize) / 4)
	if count > capacity {
		return nil, fmt.Errorf("gpu: visible count %d exceeds buffer capacity %d", count, capacity)
	}
	indices := make([]uint32, count)
	for i := range indices {
		indices[i] = binary.LittleEndian.Uint32(data[visibleHeaderSize+i*4:])
	}
	return indices, nil
}

// TraceResults decodes the traversal output buffer into the same result
// records the CPU walks return, one per uploaded ray.
func TraceResults(data []byte) ([]voxray.TraceResult, error) {
	if len(data)%HitByteSize != 0 {
		return nil, fmt.Errorf("gpu: hit buffer %d bytes is not a multiple of %d", len(data), HitByteSize)
	}
	le := binary.LittleEndian
	results := make([]voxray.TraceResult, len(data)/HitByteSize)
	for i := range results {
		rec := data[i*HitByteSize:]
		results[i] = voxray.TraceResult{
			Status: voxray.TraceStatus(le.Uint32(rec[0:4])),
			Voxel: voxray.IV3(
				int32(le.Uint32(rec[4:8])),
				int32(le.Uint32(rec[8:12])),
				int32(le.Uint32(rec[12:16])),
			),
			Material: voxray.Material(le.Uint32(rec[16:20])),
			Steps:    int(le.Uint32(rec[20:24])),
		}
	}
	return results, nil
}
