// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

import "fmt"

// ChildRef is one entry of an octree node's children array: a 32-bit word
// whose top bit discriminates between a uniform leaf and a pointer to another
// node. The low 5 bits of a leaf word hold the material id; the low 31 bits
// of a pointer word hold the arena index of the child node.
//
// The packed layout is shared byte for byte with the GPU kernels, so it is
// kept explicit instead of being modeled as a Go sum type.
type ChildRef uint32

const childLeafBit = ChildRef(1) << 31

// LeafRef encodes a uniform leaf holding the given material.
// Panics if the material does not fit the 5-bit leaf encoding; voxel data
// with ids past MaxMaterials is a bug in the producer, not a runtime input.
func LeafRef(m Material) ChildRef {
	if m >= MaxMaterials {
		panic(fmt.Sprintf("voxray: material %d does not fit leaf encoding", m))
	}
	return childLeafBit | ChildRef(m)
}

// NodeRef encodes a pointer to the node at the given arena index.
// Panics if the index does not fit the 31-bit pointer encoding.
func NodeRef(index uint32) ChildRef {
	if index >= 1<<31 {
		panic(fmt.Sprintf("voxray: node index %d does not fit pointer encoding", index))
	}
	return ChildRef(index)
}

// IsLeaf reports whether the word encodes a uniform leaf.
func (c ChildRef) IsLeaf() bool {
	return c&childLeafBit != 0
}

// Material returns the material id of a leaf word. Only meaningful when
// IsLeaf is true.
func (c ChildRef) Material() Material {
	return Material(c & 0x1f)
}

// Index returns the arena index of a pointer word. Only meaningful when
// IsLeaf is false.
func (c ChildRef) Index() uint32 {
	return uint32(c &^ childLeafBit)
}

// SvoNode is one node of the sparse voxel octree. Children are indexed by
// octant: child c covers the octant (x, y, z) with c = 4z + 2y + x, each
// component selecting the lower (0) or upper (1) half of the node's region.
// Parent holds the arena index of the owning node and lets traversal ascend
// without a stack; the root points at itself.
type SvoNode struct {
	Children [8]ChildRef
	Parent   uint32
}

// Svo is a sparse voxel octree stored as a flat arena of nodes. Side is the
// edge length of the cubic region covered by the root, always a power of two.
// The arena layout is child-before-parent, so Root is normally the last node.
//
// An Svo is immutable after construction: world edits replace the whole
// arena rather than patching nodes in place.
type Svo struct {
	Nodes []SvoNode
	Root  uint32
	Side  int32
}

// NewUniformSvo returns a tree whose whole region holds a single material:
// one root node with 8 identical leaf children.
func NewUniformSvo(side int32, m Material) (*Svo, error) {
	if !validSide(side) {
		return nil, fmt.Errorf("%w: %d", ErrSideLength, side)
	}
	var n SvoNode
	for i := range n.Children {
		n.Children[i] = LeafRef(m)
	}
	return &Svo{Nodes: []SvoNode{n}, Root: 0, Side: side}, nil
}

// InBounds reports whether the voxel key lies inside the region covered by
// the root. Lookup callers are required to bounds-check before descending.
func (s *Svo) InBounds(key IVec3) bool {
	return key.X >= 0 && key.X < s.Side &&
		key.Y >= 0 && key.Y < s.Side &&
		key.Z >= 0 && key.Z < s.Side
}

// At returns the material stored at the given voxel key.
// Keys outside the root region return ErrOutOfBounds; a descent that fails
// to terminate in a leaf returns ErrMalformedTree.
func (s *Svo) At(key IVec3) (Material, error) {
	if !s.InBounds(key) {
		return MaterialAir, fmt.Errorf("%w: %v side %d", ErrOutOfBounds, key, s.Side)
	}
	m, ok := findMaterial(s.Nodes, s.Root, s.Side, key)
	if !ok {
		return MaterialAir, fmt.Errorf("%w: root %d side %d", ErrMalformedTree, s.Root, s.Side)
	}
	return m, nil
}

// Uniform reports whether the whole tree is a single material, and which.
func (s *Svo) Uniform() (Material, bool) {
	if s.Root >= uint32(len(s.Nodes)) {
		return MaterialAir, false
	}
	root := &s.Nodes[s.Root]
	first := root.Children[0]
	if !first.IsLeaf() {
		return MaterialAir, false
	}
	for _, c := range root.Children[1:] {
		if c != first {
			return MaterialAir, false
		}
	}
	return first.Material(), true
}

// Validate walks every node reachable from the root and checks the arena
// invariants: the side is a positive power of two, child pointers stay
// inside the arena, subdivision bottoms out in leaf words, and every
// child's parent pointer leads back to the node that owns it.
func (s *Svo) Validate() error {
	if !validSide(s.Side) {
		return fmt.Errorf("%w: %d", ErrSideLength, s.Side)
	}
	if s.Root >= uint32(len(s.Nodes)) {
		return fmt.Errorf("%w: root %d in arena of %d", ErrArenaBounds, s.Root, len(s.Nodes))
	}
	if p := s.Nodes[s.Root].Parent; p != s.Root {
		return fmt.Errorf("%w: root parent %d, want %d", ErrMalformedTree, p, s.Root)
	}
	return s.validateNode(s.Root, s.Side)
}

func (s *Svo) validateNode(index uint32, side int32) error {
	for slot, child := range s.Nodes[index].Children {
		if child.IsLeaf() {
			continue
		}
		if side <= 2 {
			return fmt.Errorf("%w: pointer child %d below node %d at side %d", ErrMalformedTree, slot, index, side)
		}
		ci := child.Index()
		if ci >= uint32(len(s.Nodes)) {
			return fmt.Errorf("%w: child %d of node %d points to %d in arena of %d", ErrArenaBounds, slot, index, ci, len(s.Nodes))
		}
		if p := s.Nodes[ci].Parent; p != index {
			return fmt.Errorf("%w: node %d parent %d, want %d", ErrMalformedTree, ci, p, index)
		}
		if err := s.validateNode(ci, side/2); err != nil {
			return err
		}
	}
	return nil
}

// findMaterial is the descending octree lookup shared by lookup and the
// traversal kernels. The key must already be bounds-checked against side.
// Returns ok=false when the descent runs out of levels without reaching a
// leaf or a pointer escapes the arena; callers map that to a malformed-tree
// condition. Purely iterative, no backtracking.
func findMaterial(nodes []SvoNode, root uint32, side int32, key IVec3) (Material, bool) {
	m, _, ok := findLeaf(nodes, root, side, key)
	return m, ok
}

// findLeaf descends to the deepest tree cell containing key and reports its
// material together with the side of the uniform cell the leaf word covers.
func findLeaf(nodes []SvoNode, root uint32, side int32, key IVec3) (Material, int32, bool) {
	index := root
	if side == 1 {
		// Single-voxel tree: the canonical uniform node stores the material
		// in every child slot.
		if index >= uint32(len(nodes)) || !nodes[index].Children[0].IsLeaf() {
			return MaterialAir, 0, false
		}
		return nodes[index].Children[0].Material(), 1, true
	}
	for side >= 2 {
		if index >= uint32(len(nodes)) {
			return MaterialAir, 0, false
		}
		half := side / 2
		var slot int32
		if key.X >= half {
			slot |= 1
			key.X -= half
		}
		if key.Y >= half {
			slot |= 2
			key.Y -= half
		}
		if key.Z >= half {
			slot |= 4
			key.Z -= half
		}
		child := nodes[index].Children[slot]
		if child.IsLeaf() {
			return child.Material(), half, true
		}
		index = child.Index()
		side = half
	}
	return MaterialAir, 0, false
}

// BuildSvo constructs the octree for a cubic region of the given side by
// sampling the field at every voxel. Uniform regions collapse into single
// leaf words, so the arena size tracks the surface complexity of the field
// rather than its volume. Parent back-pointers are fixed up in a final pass;
// the root's parent is itself.
func BuildSvo(side int32, at func(IVec3) Material) (*Svo, error) {
	if !validSide(side) {
		return nil, fmt.Errorf("%w: %d", ErrSideLength, side)
	}
	b := svoBuilder{at: at}
	ref := b.region(IVec3{}, side)
	if ref.IsLeaf() {
		// Whole region is one material: canonical single-node form.
		return NewUniformSvo(side, ref.Material())
	}
	s := &Svo{Nodes: b.nodes, Root: ref.Index(), Side: side}
	fixParents(s)
	return s, nil
}

type svoBuilder struct {
	at    func(IVec3) Material
	nodes []SvoNode
}

// region returns the child word covering the cube at base with the given
// side: a leaf word when the cube is uniform, otherwise a pointer to a newly
// appended node. Children are appended before their parents.
func (b *svoBuilder) region(base IVec3, side int32) ChildRef {
	if side == 1 {
		return LeafRef(b.at(base))
	}
	half := side / 2
	var n SvoNode
	uniform := true
	for i := range n.Children {
		offset := IVec3{
			X: int32(i&1) * half,
			Y: int32(i>>1&1) * half,
			Z: int32(i>>2&1) * half,
		}
		n.Children[i] = b.region(base.Add(offset), half)
		if n.Children[i] != n.Children[0] || !n.Children[i].IsLeaf() {
			uniform = false
		}
	}
	if uniform {
		return n.Children[0]
	}
	index := uint32(len(b.nodes))
	b.nodes = append(b.nodes, n)
	return NodeRef(index)
}

// fixParents rewrites every node's parent index from the children pointers.
func fixParents(s *Svo) {
	for i := range s.Nodes {
		for _, c := range s.Nodes[i].Children {
			if !c.IsLeaf() {
				s.Nodes[c.Index()].Parent = uint32(i)
			}
		}
	}
	s.Nodes[s.Root].Parent = s.Root
}

func validSide(side int32) bool {
	return side > 0 && side&(side-1) == 0
}
