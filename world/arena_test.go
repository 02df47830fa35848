// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package world

import (
	"testing"

	"github.com/voxray/voxray"
	"github.com/voxray/voxray/mesh"
)

// uniformTree builds a one-material chunk octree for feeding sinks.
func uniformTree(t *testing.T, m voxray.Material) *voxray.Svo {
	t.Helper()
	tree, err := voxray.NewUniformSvo(8, m)
	if err != nil {
		t.Fatalf("NewUniformSvo failed: %v", err)
	}
	return tree
}

// quadMesh builds a single-meshlet chunk mesh with one quad.
func quadMesh(chunk voxray.IVec3) *mesh.ChunkMesh {
	return &mesh.ChunkMesh{
		Chunk: chunk,
		Meshlets: []voxray.VoxelMeshlet{{
			VertexCount:   4,
			TriangleCount: 2,
			Chunk:         chunk,
			BoundSize:     [3]uint8{1, 1, 0},
		}},
		Vertices: []voxray.VoxelVertex{
			voxray.NewVoxelVertex(0, 0, 1, 0),
			voxray.NewVoxelVertex(1, 0, 1, 0),
			voxray.NewVoxelVertex(0, 1, 1, 0),
			voxray.NewVoxelVertex(1, 1, 1, 0),
		},
		Triangles: []voxray.VoxelTriangle{
			voxray.NewVoxelTriangle(0, 1, 2, 4, voxray.MaterialStone),
			voxray.NewVoxelTriangle(1, 3, 2, 4, voxray.MaterialStone),
		},
	}
}

func TestArenaUploadRebasesOffsets(t *testing.T) {
	a := NewMeshArena()
	tree := uniformTree(t, voxray.MaterialStone)
	a.Upload(quadMesh(voxray.IV3(0, 0, 0)), tree)
	a.Upload(quadMesh(voxray.IV3(1, 0, 0)), tree)

	meshlets, vertices, triangles := a.Snapshot()
	if len(meshlets) != 2 || len(vertices) != 8 || len(triangles) != 4 {
		t.Fatalf("arena holds %d meshlets, %d vertices, %d triangles; want 2, 8, 4",
			len(meshlets), len(vertices), len(triangles))
	}
	if meshlets[0].VertexOffset != 0 || meshlets[0].TriangleOffset != 0 {
		t.Errorf("first meshlet offsets = (%d, %d), want (0, 0)",
			meshlets[0].VertexOffset, meshlets[0].TriangleOffset)
	}
	if meshlets[1].VertexOffset != 4 || meshlets[1].TriangleOffset != 2 {
		t.Errorf("second meshlet offsets = (%d, %d), want (4, 2)",
			meshlets[1].VertexOffset, meshlets[1].TriangleOffset)
	}
	if a.MeshletCount() != 2 {
		t.Errorf("MeshletCount() = %d, want 2", a.MeshletCount())
	}
	if meshlets[1].Chunk != voxray.IV3(1, 0, 0) {
		t.Errorf("second meshlet chunk = %v", meshlets[1].Chunk)
	}
}

func TestArenaSnapshotSurvivesClear(t *testing.T) {
	a := NewMeshArena()
	tree := uniformTree(t, voxray.MaterialStone)
	a.Upload(quadMesh(voxray.IV3(2, 2, 2)), tree)
	meshlets, vertices, triangles := a.Snapshot()

	a.Clear()
	if a.MeshletCount() != 0 {
		t.Fatalf("MeshletCount() = %d after Clear, want 0", a.MeshletCount())
	}
	a.Upload(quadMesh(voxray.IV3(9, 9, 9)), tree)

	// The snapshot taken before Clear still describes the old upload.
	if len(meshlets) != 1 || len(vertices) != 4 || len(triangles) != 2 {
		t.Fatalf("snapshot sizes changed after Clear")
	}
	if meshlets[0].Chunk != voxray.IV3(2, 2, 2) {
		t.Errorf("snapshot meshlet chunk = %v, want the pre-Clear chunk", meshlets[0].Chunk)
	}

	meshlets, _, _ = a.Snapshot()
	if len(meshlets) != 1 || meshlets[0].Chunk != voxray.IV3(9, 9, 9) {
		t.Errorf("post-Clear snapshot = %d meshlets, chunk %v; want 1 meshlet of the new chunk",
			len(meshlets), meshlets[0].Chunk)
	}
}

func TestArenaUploadDoesNotMutateBatch(t *testing.T) {
	a := NewMeshArena()
	tree := uniformTree(t, voxray.MaterialStone)
	a.Upload(quadMesh(voxray.IV3(0, 0, 0)), tree)

	batch := quadMesh(voxray.IV3(1, 1, 1))
	a.Upload(batch, tree)
	if batch.Meshlets[0].VertexOffset != 0 || batch.Meshlets[0].TriangleOffset != 0 {
		t.Errorf("Upload rebased the caller's meshlet records in place: offsets (%d, %d)",
			batch.Meshlets[0].VertexOffset, batch.Meshlets[0].TriangleOffset)
	}
}
