// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package mesh

import (
	"fmt"
	"math"

	"github.com/voxray/voxray"
)

// ChunkMesh is a chunk's mesh packed for the mesh-shading path: meshlet
// records with their shared vertex and triangle streams.
type ChunkMesh struct {
	Chunk     voxray.IVec3
	Meshlets  []voxray.VoxelMeshlet
	Vertices  []voxray.VoxelVertex
	Triangles []voxray.VoxelTriangle
}

// Cluster packs the mesh into meshlets under the hardware vertex and
// triangle limits. Faces are packed in emission order and never split, so
// both triangles of a quad always land in the same meshlet. Vertices are
// quantized to the chunk-local byte lattice; a chunk coordinate outside
// the int16 range fails with ErrChunkRange, as larger coordinates would
// put world-space bounds past the exact integer range of float32.
func (m *LocalMesh) Cluster(chunk voxray.IVec3) (*ChunkMesh, error) {
	if chunk.X < math.MinInt16 || chunk.X > math.MaxInt16 ||
		chunk.Y < math.MinInt16 || chunk.Y > math.MaxInt16 ||
		chunk.Z < math.MinInt16 || chunk.Z > math.MaxInt16 {
		return nil, fmt.Errorf("%w: %v", voxray.ErrChunkRange, chunk)
	}
	c := clusterState{mesh: m, out: &ChunkMesh{Chunk: chunk}}
	for i := range m.Faces {
		if err := c.addFace(&m.Faces[i]); err != nil {
			return nil, err
		}
	}
	c.flush()
	return c.out, nil
}

type clusterState struct {
	mesh *LocalMesh
	out  *ChunkMesh

	// Current meshlet under construction. local maps mesh vertex indices
	// to meshlet-local ones and doubles as the open marker.
	local    map[uint32]uint8
	vertBase uint32
	triBase  uint32
	boundMin [3]uint8
	boundMax [3]uint8
}

func (c *clusterState) addFace(f *LocalFace) error {
	if c.local == nil {
		c.open()
	}
	fresh := 0
	for _, gi := range f.Indices {
		if _, ok := c.local[gi]; !ok {
			fresh++
		}
	}
	verts := len(c.out.Vertices) - int(c.vertBase)
	tris := len(c.out.Triangles) - int(c.triBase)
	if verts+fresh > voxray.MaxMeshletVertices || tris+2 > voxray.MaxMeshletTriangles {
		c.flush()
		c.open()
	}
	var li [4]uint8
	for i, gi := range f.Indices {
		l, err := c.localIndex(gi)
		if err != nil {
			return err
		}
		li[i] = l
	}
	c.out.Triangles = append(c.out.Triangles,
		voxray.NewVoxelTriangle(li[0], li[1], li[2], f.NormalIndex, f.Material),
		voxray.NewVoxelTriangle(li[1], li[3], li[2], f.NormalIndex, f.Material),
	)
	return nil
}

func (c *clusterState) open() {
	c.local = make(map[uint32]uint8, voxray.MaxMeshletVertices)
	c.vertBase = uint32(len(c.out.Vertices))
	c.triBase = uint32(len(c.out.Triangles))
}

func (c *clusterState) flush() {
	if c.local == nil {
		return
	}
	ml := voxray.VoxelMeshlet{
		VertexOffset:   c.vertBase,
		TriangleOffset: c.triBase,
		VertexCount:    uint16(uint32(len(c.out.Vertices)) - c.vertBase),
		TriangleCount:  uint16(uint32(len(c.out.Triangles)) - c.triBase),
		Chunk:          c.out.Chunk,
		BoundBase:      c.boundMin,
	}
	for a := 0; a < 3; a++ {
		ml.BoundSize[a] = c.boundMax[a] - c.boundMin[a]
	}
	c.out.Meshlets = append(c.out.Meshlets, ml)
	c.local = nil
}

func (c *clusterState) localIndex(gi uint32) (uint8, error) {
	if l, ok := c.local[gi]; ok {
		return l, nil
	}
	v := c.mesh.Vertices[gi]
	for _, p := range v.Position {
		if p > 255 {
			return 0, fmt.Errorf("%w: vertex position %v outside the byte lattice", voxray.ErrMeshletLimit, v.Position)
		}
	}
	p := [3]uint8{uint8(v.Position[0]), uint8(v.Position[1]), uint8(v.Position[2])}
	l := uint8(len(c.out.Vertices) - int(c.vertBase))
	c.local[gi] = l
	if len(c.local) == 1 {
		c.boundMin, c.boundMax = p, p
	} else {
		for a := 0; a < 3; a++ {
			c.boundMin[a] = min(c.boundMin[a], p[a])
			c.boundMax[a] = max(c.boundMax[a], p[a])
		}
	}
	c.out.Vertices = append(c.out.Vertices, voxray.NewVoxelVertex(p[0], p[1], p[2], v.AO))
	return l, nil
}
