// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package mesh

import (
	"errors"
	"testing"

	"github.com/voxray/voxray"
)

// clusterTestMesh is a solid 16 chunk with air on every side: 1536 faces,
// enough to force several meshlets.
func clusterTestMesh(t testing.TB) *LocalMesh {
	t.Helper()
	n := neighborhoodOf(t, 16, uniformSvo(t, 16, voxray.MaterialStone), nil)
	m, err := Mesh(n, AlgorithmCulled)
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	return m
}

func TestClusterMeshletLimits(t *testing.T) {
	m := clusterTestMesh(t)
	cm, err := m.Cluster(voxray.IV3(3, -2, 1))
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(cm.Meshlets) < 2 {
		t.Fatalf("got %d meshlets, want several", len(cm.Meshlets))
	}
	if len(cm.Triangles) != 2*len(m.Faces) {
		t.Fatalf("got %d triangles, want %d", len(cm.Triangles), 2*len(m.Faces))
	}
	var nextVert, nextTri uint32
	for i, ml := range cm.Meshlets {
		if ml.VertexCount == 0 || ml.VertexCount > voxray.MaxMeshletVertices {
			t.Errorf("meshlet %d: vertex count %d", i, ml.VertexCount)
		}
		if ml.TriangleCount == 0 || ml.TriangleCount > voxray.MaxMeshletTriangles {
			t.Errorf("meshlet %d: triangle count %d", i, ml.TriangleCount)
		}
		// Quads are never split, so every meshlet holds whole pairs.
		if ml.TriangleCount%2 != 0 {
			t.Errorf("meshlet %d: odd triangle count %d", i, ml.TriangleCount)
		}
		if ml.VertexOffset != nextVert || ml.TriangleOffset != nextTri {
			t.Errorf("meshlet %d: offsets (%d, %d), want (%d, %d)",
				i, ml.VertexOffset, ml.TriangleOffset, nextVert, nextTri)
		}
		nextVert += uint32(ml.VertexCount)
		nextTri += uint32(ml.TriangleCount)
		if ml.Chunk != cm.Chunk {
			t.Errorf("meshlet %d: chunk %v, want %v", i, ml.Chunk, cm.Chunk)
		}
		for ti := ml.TriangleOffset; ti < ml.TriangleOffset+uint32(ml.TriangleCount); ti++ {
			for _, li := range cm.Triangles[ti].Indices {
				if uint16(li) >= ml.VertexCount {
					t.Fatalf("meshlet %d: triangle %d references local vertex %d of %d",
						i, ti, li, ml.VertexCount)
				}
			}
		}
	}
	if nextVert != uint32(len(cm.Vertices)) || nextTri != uint32(len(cm.Triangles)) {
		t.Errorf("meshlets cover (%d, %d) of (%d, %d) vertices and triangles",
			nextVert, nextTri, len(cm.Vertices), len(cm.Triangles))
	}
}

func TestClusterBounds(t *testing.T) {
	m := clusterTestMesh(t)
	cm, err := m.Cluster(voxray.IV3(0, 0, 0))
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	for i, ml := range cm.Meshlets {
		verts := cm.Vertices[ml.VertexOffset : ml.VertexOffset+uint32(ml.VertexCount)]
		mn, mx := verts[0].Position, verts[0].Position
		for _, v := range verts[1:] {
			for a := 0; a < 3; a++ {
				mn[a] = min(mn[a], v.Position[a])
				mx[a] = max(mx[a], v.Position[a])
			}
		}
		for a := 0; a < 3; a++ {
			if ml.BoundBase[a] != mn[a] || ml.BoundBase[a]+ml.BoundSize[a] != mx[a] {
				t.Errorf("meshlet %d axis %d: bound [%d, %d], vertices span [%d, %d]",
					i, a, ml.BoundBase[a], ml.BoundBase[a]+ml.BoundSize[a], mn[a], mx[a])
			}
		}
	}
}

func TestClusterSingleQuad(t *testing.T) {
	m := &LocalMesh{
		Vertices: []LocalVertex{
			{Position: [3]uint16{0, 0, 1}, AO: 1},
			{Position: [3]uint16{1, 0, 1}},
			{Position: [3]uint16{0, 1, 1}},
			{Position: [3]uint16{1, 1, 1}, AO: 2},
		},
		Faces: []LocalFace{{
			Indices:     [4]uint32{0, 1, 2, 3},
			NormalIndex: 4,
			Material:    voxray.MaterialGrass,
		}},
	}
	cm, err := m.Cluster(voxray.IV3(7, 0, -3))
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(cm.Meshlets) != 1 {
		t.Fatalf("got %d meshlets, want 1", len(cm.Meshlets))
	}
	ml := cm.Meshlets[0]
	if ml.VertexCount != 4 || ml.TriangleCount != 2 {
		t.Fatalf("meshlet holds %d vertices %d triangles, want 4 and 2", ml.VertexCount, ml.TriangleCount)
	}
	if ml.BoundBase != [3]uint8{0, 0, 1} || ml.BoundSize != [3]uint8{1, 1, 0} {
		t.Errorf("bound base %v size %v", ml.BoundBase, ml.BoundSize)
	}
	want := [2][3]uint8{{0, 1, 2}, {1, 3, 2}}
	for i, tri := range cm.Triangles {
		if tri.Indices != want[i] {
			t.Errorf("triangle %d indices %v, want %v", i, tri.Indices, want[i])
		}
		if tri.NormalIndex() != 4 || tri.Material() != voxray.MaterialGrass {
			t.Errorf("triangle %d meta: direction %d material %v", i, tri.NormalIndex(), tri.Material())
		}
	}
	for i, v := range cm.Vertices {
		src := m.Vertices[i]
		want := voxray.NewVoxelVertex(uint8(src.Position[0]), uint8(src.Position[1]), uint8(src.Position[2]), src.AO)
		if v != want {
			t.Errorf("vertex %d = %v, want %v", i, v, want)
		}
	}
}

func TestClusterEmptyMesh(t *testing.T) {
	cm, err := (&LocalMesh{}).Cluster(voxray.IV3(1, 2, 3))
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if cm.Chunk != voxray.IV3(1, 2, 3) {
		t.Errorf("chunk %v, want (1,2,3)", cm.Chunk)
	}
	if len(cm.Meshlets) != 0 || len(cm.Vertices) != 0 || len(cm.Triangles) != 0 {
		t.Errorf("empty mesh produced %d meshlets %d vertices %d triangles",
			len(cm.Meshlets), len(cm.Vertices), len(cm.Triangles))
	}
}

func TestClusterChunkRange(t *testing.T) {
	m := &LocalMesh{}
	if _, err := m.Cluster(voxray.IV3(40000, 0, 0)); !errors.Is(err, voxray.ErrChunkRange) {
		t.Fatalf("got %v, want ErrChunkRange", err)
	}
	if _, err := m.Cluster(voxray.IV3(0, 0, -40000)); !errors.Is(err, voxray.ErrChunkRange) {
		t.Fatalf("got %v, want ErrChunkRange", err)
	}
}

func TestClusterVertexOutsideByteLattice(t *testing.T) {
	m := &LocalMesh{
		Vertices: []LocalVertex{
			{Position: [3]uint16{256, 0, 0}},
			{Position: [3]uint16{1, 0, 0}},
			{Position: [3]uint16{0, 1, 0}},
			{Position: [3]uint16{1, 1, 0}},
		},
		Faces: []LocalFace{{Indices: [4]uint32{0, 1, 2, 3}}},
	}
	if _, err := m.Cluster(voxray.IV3(0, 0, 0)); !errors.Is(err, voxray.ErrMeshletLimit) {
		t.Fatalf("got %v, want ErrMeshletLimit", err)
	}
}

func BenchmarkCluster(b *testing.B) {
	m := clusterTestMesh(b)
	for b.Loop() {
		if _, err := m.Cluster(voxray.IV3(0, 0, 0)); err != nil {
			b.Fatal(err)
		}
	}
}
