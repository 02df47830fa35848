// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package mesh

import "github.com/voxray/voxray"

type culledState struct {
	n        *Neighborhood
	vertices []LocalVertex
	faces    []LocalFace
}

// culledMesh emits one quad per visible voxel face. The walk follows the
// chunk's octree structure: mixed nodes recurse into their children, and
// uniform regions are visited only along their boundary layers, since an
// interior voxel of a uniform region can never expose a face.
func culledMesh(n *Neighborhood) *LocalMesh {
	st := &culledState{n: n}
	s := n.Chunk()
	if m, ok := s.Uniform(); ok {
		if !m.IsAir() {
			st.meshUniformRegion(voxray.IV3(0, 0, 0), s.Side, m)
		}
	} else {
		st.meshNode(s, s.Root, voxray.IV3(0, 0, 0), s.Side)
	}
	return &LocalMesh{Vertices: st.vertices, Faces: st.faces}
}

func (st *culledState) meshNode(s *voxray.Svo, index uint32, base voxray.IVec3, side int32) {
	half := side / 2
	for slot, child := range s.Nodes[index].Children {
		offset := voxray.IV3(int32(slot&1), int32(slot>>1&1), int32(slot>>2&1))
		childBase := base.Add(offset.Mul(half))
		if child.IsLeaf() {
			if m := child.Material(); !m.IsAir() {
				st.meshUniformRegion(childBase, half, m)
			}
			continue
		}
		st.meshNode(s, child.Index(), childBase, half)
	}
}

func (st *culledState) meshUniformRegion(base voxray.IVec3, side int32, m voxray.Material) {
	for dir := range voxray.Directions {
		st.meshRegionLayer(base, side, m, dir)
	}
}

// meshRegionLayer walks the region's boundary voxel layer facing one
// direction and emits the faces whose facing neighbour is air.
func (st *culledState) meshRegionLayer(base voxray.IVec3, side int32, m voxray.Material, dir int) {
	normal := voxray.Directions[dir]
	u := voxray.IV3(normal.Z, normal.X, normal.Y).Abs()
	v := voxray.IV3(normal.Y, normal.Z, normal.X).Abs()
	layerBase := base
	if normal.Sum() > 0 {
		layerBase = layerBase.Add(normal.Mul(side - 1))
	}
	for i := int32(0); i < side; i++ {
		for j := int32(0); j < side; j++ {
			st.meshVoxelSide(layerBase.Add(u.Mul(i)).Add(v.Mul(j)), m, dir)
		}
	}
}

func (st *culledState) meshVoxelSide(p voxray.IVec3, m voxray.Material, dir int) {
	normal := voxray.Directions[dir]
	if !st.n.At(p.Add(normal)).IsAir() {
		return
	}
	rot1 := voxray.IV3(normal.Z, normal.X, normal.Y).Abs()
	rot2 := voxray.IV3(normal.Y, normal.Z, normal.X).Abs()
	base := p
	if normal.Sum() > 0 {
		base = base.Add(normal)
	}
	if normal != rot1.Cross(rot2) {
		rot1, rot2 = rot2, rot1
	}
	v1 := st.vertex(base, normal)
	v2 := st.vertex(base.Add(rot1), normal)
	v3 := st.vertex(base.Add(rot2), normal)
	v4 := st.vertex(base.Add(rot1).Add(rot2), normal)
	bi := uint32(len(st.vertices))
	// Split the quad along the lighter diagonal so a dark corner's falloff
	// stays inside its own triangle.
	indices := [4]uint32{bi, bi + 1, bi + 2, bi + 3}
	if v1.AO+v4.AO > v2.AO+v3.AO {
		indices = [4]uint32{bi + 1, bi + 3, bi, bi + 2}
	}
	st.vertices = append(st.vertices, v1, v2, v3, v4)
	st.faces = append(st.faces, LocalFace{
		Indices:     indices,
		NormalIndex: uint8(dir),
		Material:    m,
	})
}

// vertex builds a quad corner with its ambient light level, probing the
// three voxels that share the corner in the air layer the face opens
// into. Two occluded sides force full darkness regardless of the corner
// probe.
func (st *culledState) vertex(pos, normal voxray.IVec3) LocalVertex {
	occluder := pos
	if normal.Sum() < 0 {
		occluder = occluder.Add(normal)
	}
	u := voxray.IV3(normal.Z, normal.X, normal.Y).Abs()
	v := voxray.IV3(normal.Y, normal.Z, normal.X).Abs()
	side1 := !st.n.At(occluder.Sub(u)).IsAir()
	side2 := !st.n.At(occluder.Sub(v)).IsAir()
	corner := !st.n.At(occluder).IsAir() || !st.n.At(occluder.Sub(u).Sub(v)).IsAir()
	var ao uint8
	if !side1 || !side2 {
		ao = 3
		if side1 {
			ao--
		}
		if side2 {
			ao--
		}
		if corner {
			ao--
		}
	}
	return LocalVertex{
		Position: [3]uint16{uint16(pos.X), uint16(pos.Y), uint16(pos.Z)},
		AO:       ao,
	}
}
