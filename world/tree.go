// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package world

import (
	"sync"

	"github.com/voxray/voxray"
	"github.com/voxray/voxray/mesh"
)

// NodeArena is the tree-side sink: it accumulates streamed chunk octrees
// into one node array and links them under a synthetic world root so a
// frame can traverse the whole loaded region as a single tree. Uniform
// chunks are stored as bare leaf words and cost no nodes; missing chunks
// read as air.
type NodeArena struct {
	mu    sync.Mutex
	side  int32
	nodes []voxray.SvoNode
	roots map[voxray.IVec3]voxray.ChildRef
}

// NewNodeArena returns an empty arena. The chunk side is taken from the
// first uploaded tree.
func NewNodeArena() *NodeArena {
	return &NodeArena{roots: make(map[voxray.IVec3]voxray.ChildRef)}
}

// Upload appends one chunk's octree, rebasing its child pointers and
// parents onto the arena. A chunk whose root is uniform contributes only
// its leaf word.
func (a *NodeArena) Upload(m *mesh.ChunkMesh, tree *voxray.Svo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.side == 0 {
		a.side = tree.Side
	}

	root := &tree.Nodes[tree.Root]
	uniform := true
	for _, c := range root.Children {
		if c != root.Children[0] || !c.IsLeaf() {
			uniform = false
			break
		}
	}
	if uniform {
		a.roots[m.Chunk] = root.Children[0]
		return
	}

	base := uint32(len(a.nodes))
	for _, n := range tree.Nodes {
		for i, c := range n.Children {
			if !c.IsLeaf() {
				n.Children[i] = voxray.NodeRef(c.Index() + base)
			}
		}
		n.Parent += base
		a.nodes = append(a.nodes, n)
	}
	a.roots[m.Chunk] = voxray.NodeRef(base + tree.Root)
}

// Clear empties the arena. As with MeshArena, the node array is released
// rather than truncated so snapshots stay valid.
func (a *NodeArena) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.side = 0
	a.nodes = nil
	a.roots = make(map[voxray.IVec3]voxray.ChildRef)
}

// ChunkCount returns the number of uploaded chunks.
func (a *NodeArena) ChunkCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.roots)
}

// Snapshot links the uploaded chunk trees under a world root and returns
// the combined node array with the root's location. The grid of loaded
// chunks is padded to a power-of-two side, so chunk subtrees sit exactly
// at octant boundaries and traversal descends through the seam without
// noticing it. Reports false while no chunk has been uploaded.
//
// The returned array is a fresh copy each call: linking rewrites the
// parents of chunk subtree roots, which must not touch arrays handed out
// by earlier snapshots.
func (a *NodeArena) Snapshot() ([]voxray.SvoNode, voxray.VoxelParams, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.roots) == 0 {
		return nil, voxray.VoxelParams{}, false
	}

	minC, maxC := a.chunkBounds()
	gridSide := int32(1)
	for _, extent := range []int32{
		maxC.X - minC.X + 1,
		maxC.Y - minC.Y + 1,
		maxC.Z - minC.Z + 1,
	} {
		for gridSide < extent {
			gridSide <<= 1
		}
	}

	l := &treeLinker{
		roots: a.roots,
		out:   make([]voxray.SvoNode, len(a.nodes), len(a.nodes)+int(gridSide*gridSide*gridSide)/4+8),
	}
	copy(l.out, a.nodes)

	ref := l.link(minC, gridSide)
	var rootIndex uint32
	if ref.IsLeaf() {
		// Whole loaded region is one material: canonical single-node form.
		var n voxray.SvoNode
		for i := range n.Children {
			n.Children[i] = ref
		}
		rootIndex = uint32(len(l.out))
		l.out = append(l.out, n)
	} else {
		rootIndex = ref.Index()
	}
	l.out[rootIndex].Parent = rootIndex

	params := voxray.VoxelParams{
		RootIndex: rootIndex,
		RootSide:  gridSide * a.side,
		RootBase:  minC.Mul(a.side),
		ChunkSize: a.side,
	}
	return l.out, params, true
}

func (a *NodeArena) chunkBounds() (minC, maxC voxray.IVec3) {
	first := true
	for chunk := range a.roots {
		if first {
			minC, maxC = chunk, chunk
			first = false
			continue
		}
		minC = voxray.IV3(min(minC.X, chunk.X), min(minC.Y, chunk.Y), min(minC.Z, chunk.Z))
		maxC = voxray.IV3(max(maxC.X, chunk.X), max(maxC.Y, chunk.Y), max(maxC.Z, chunk.Z))
	}
	return minC, maxC
}

// treeLinker builds the interior nodes above the chunk subtrees, the same
// child-before-parent append the chunk builder uses.
type treeLinker struct {
	roots map[voxray.IVec3]voxray.ChildRef
	out   []voxray.SvoNode
}

func (l *treeLinker) link(baseChunk voxray.IVec3, sideChunks int32) voxray.ChildRef {
	if sideChunks == 1 {
		if ref, ok := l.roots[baseChunk]; ok {
			return ref
		}
		return voxray.LeafRef(voxray.MaterialAir)
	}
	half := sideChunks / 2
	var n voxray.SvoNode
	uniform := true
	for i := range n.Children {
		offset := voxray.IVec3{
			X: int32(i&1) * half,
			Y: int32(i>>1&1) * half,
			Z: int32(i>>2&1) * half,
		}
		n.Children[i] = l.link(baseChunk.Add(offset), half)
		if n.Children[i] != n.Children[0] || !n.Children[i].IsLeaf() {
			uniform = false
		}
	}
	if uniform {
		return n.Children[0]
	}
	index := uint32(len(l.out))
	l.out = append(l.out, n)
	for _, c := range n.Children {
		if !c.IsLeaf() {
			l.out[c.Index()].Parent = index
		}
	}
	return voxray.NodeRef(index)
}

// MultiSink fans uploads out to several sinks in order, in the manner of
// io.MultiWriter. Used to feed the mesh and node arenas from one streamer.
func MultiSink(sinks ...ChunkSink) ChunkSink {
	return multiSink(sinks)
}

type multiSink []ChunkSink

func (m multiSink) Upload(batch *mesh.ChunkMesh, tree *voxray.Svo) {
	for _, s := range m {
		s.Upload(batch, tree)
	}
}

func (m multiSink) Clear() {
	for _, s := range m {
		s.Clear()
	}
}
