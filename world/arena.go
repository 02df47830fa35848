// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package world

import (
	"sync"
	"sync/atomic"

	"github.com/voxray/voxray"
	"github.com/voxray/voxray/mesh"
)

// ChunkSink receives finished chunks from streaming workers: the clustered
// meshlet batch and the chunk's octree. Upload is called with the
// streamer's state lock held, so implementations see chunks one at a time.
// Clear drops everything after a config change.
type ChunkSink interface {
	Upload(m *mesh.ChunkMesh, tree *voxray.Svo)
	Clear()
}

// MeshArena is the standard sink: it accumulates streamed chunk meshes into
// the flat vertex, triangle and meshlet arrays a frame consumes. Batches
// arrive with buffer offsets local to their chunk; Upload rebases them onto
// the arena totals so meshlet records index the combined arrays.
type MeshArena struct {
	mu           sync.Mutex
	vertices     []voxray.VoxelVertex
	triangles    []voxray.VoxelTriangle
	meshlets     []voxray.VoxelMeshlet
	meshletCount atomic.Uint32
}

// NewMeshArena returns an empty arena.
func NewMeshArena() *MeshArena {
	return &MeshArena{}
}

// Upload appends one chunk's mesh, rebasing its meshlet offsets. The
// chunk's tree is not kept here; pair with a NodeArena through MultiSink
// when frames also traverse.
func (a *MeshArena) Upload(m *mesh.ChunkMesh, _ *voxray.Svo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	vertexBase := uint32(len(a.vertices))
	triangleBase := uint32(len(a.triangles))
	a.vertices = append(a.vertices, m.Vertices...)
	a.triangles = append(a.triangles, m.Triangles...)
	for _, meshlet := range m.Meshlets {
		meshlet.VertexOffset += vertexBase
		meshlet.TriangleOffset += triangleBase
		a.meshlets = append(a.meshlets, meshlet)
	}
	a.meshletCount.Store(uint32(len(a.meshlets)))
}

// Clear empties the arena. The backing arrays are released rather than
// truncated so slices handed out by Snapshot keep their contents.
func (a *MeshArena) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vertices = nil
	a.triangles = nil
	a.meshlets = nil
	a.meshletCount.Store(0)
}

// MeshletCount returns the number of uploaded meshlets without locking.
func (a *MeshArena) MeshletCount() uint32 {
	return a.meshletCount.Load()
}

// Snapshot returns stable views of the arena arrays for one frame. The
// returned slices never change: workers appending more chunks either write
// past their length or relocate the arrays.
func (a *MeshArena) Snapshot() (meshlets []voxray.VoxelMeshlet, vertices []voxray.VoxelVertex, triangles []voxray.VoxelTriangle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	meshlets = a.meshlets[:len(a.meshlets):len(a.meshlets)]
	vertices = a.vertices[:len(a.vertices):len(a.vertices)]
	triangles = a.triangles[:len(a.triangles):len(a.triangles)]
	return meshlets, vertices, triangles
}
