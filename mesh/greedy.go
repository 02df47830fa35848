// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package mesh

import "github.com/voxray/voxray"

// greedySliceOrientation fixes one lattice axis as the slice normal and
// spans the slice plane with the remaining two. alongIndex and minusIndex
// are the voxray.Directions entries for faces opening along and against
// the slice normal.
type greedySliceOrientation struct {
	right      voxray.IVec3
	down       voxray.IVec3
	normal     voxray.IVec3
	alongIndex uint8
	minusIndex uint8
}

var greedySliceOrientations = [3]greedySliceOrientation{
	{right: voxray.IV3(1, 0, 0), down: voxray.IV3(0, 1, 0), normal: voxray.IV3(0, 0, 1), alongIndex: 4, minusIndex: 5},
	{right: voxray.IV3(1, 0, 0), down: voxray.IV3(0, 0, 1), normal: voxray.IV3(0, 1, 0), alongIndex: 2, minusIndex: 3},
	{right: voxray.IV3(0, 1, 0), down: voxray.IV3(0, 0, 1), normal: voxray.IV3(1, 0, 0), alongIndex: 0, minusIndex: 1},
}

type greedyWall struct {
	normalIndex uint8
	material    voxray.Material
}

type greedyState struct {
	n        *Neighborhood
	size     int32
	used     []bool
	vertices []LocalVertex
	faces    []LocalFace
}

// greedyMesh merges coplanar same-material faces into maximal rectangles.
// Each boundary plane between two voxel layers is swept once per slice
// orientation, so every exposed face is claimed by exactly one rectangle.
func greedyMesh(n *Neighborhood) *LocalMesh {
	size := n.ChunkSize()
	st := &greedyState{n: n, size: size, used: make([]bool, size*size)}
	for _, o := range greedySliceOrientations {
		for offset := int32(0); offset <= size; offset++ {
			st.meshSlice(o, offset)
		}
	}
	return &LocalMesh{Vertices: st.vertices, Faces: st.faces}
}

func (st *greedyState) meshSlice(o greedySliceOrientation, offset int32) {
	clear(st.used)
	for y1 := int32(0); y1 < st.size; y1++ {
		for x1 := int32(0); x1 < st.size; x1++ {
			w, ok := st.wall(o, offset, x1, y1)
			if !ok {
				continue
			}
			x2 := x1 + 1
			for x2 < st.size {
				if nw, ok := st.wall(o, offset, x2, y1); !ok || nw != w {
					break
				}
				x2++
			}
			y2 := y1 + 1
		grow:
			for y2 < st.size {
				for x := x1; x < x2; x++ {
					if nw, ok := st.wall(o, offset, x, y2); !ok || nw != w {
						break grow
					}
				}
				y2++
			}
			for y := y1; y < y2; y++ {
				for x := x1; x < x2; x++ {
					st.used[y*st.size+x] = true
				}
			}
			st.emitRect(o, w, offset, x1, y1, x2, y2)
		}
	}
}

// wall classifies the boundary cell at (x, y) in the slice at offset. A
// face exists when exactly one of the two voxels meeting at the plane is
// solid, and it belongs to this chunk only when that solid voxel does:
// faces owned by a neighbouring chunk are suppressed so chunk seams do
// not emit twice.
func (st *greedyState) wall(o greedySliceOrientation, offset, x, y int32) (greedyWall, bool) {
	if st.used[y*st.size+x] {
		return greedyWall{}, false
	}
	voxel := o.normal.Mul(offset).Add(o.down.Mul(y)).Add(o.right.Mul(x))
	voxelKind := st.n.At(voxel)
	neighbourKind := st.n.At(voxel.Sub(o.normal))
	if !voxelKind.IsAir() && neighbourKind.IsAir() && offset < st.size {
		return greedyWall{normalIndex: o.minusIndex, material: voxelKind}, true
	}
	if voxelKind.IsAir() && !neighbourKind.IsAir() && offset > 0 {
		return greedyWall{normalIndex: o.alongIndex, material: neighbourKind}, true
	}
	return greedyWall{}, false
}

func (st *greedyState) emitRect(o greedySliceOrientation, w greedyWall, offset, x1, y1, x2, y2 int32) {
	bi := uint32(len(st.vertices))
	corners := [4][2]int32{{x1, y1}, {x2, y1}, {x1, y2}, {x2, y2}}
	for _, c := range corners {
		p := o.normal.Mul(offset).Add(o.down.Mul(c[1])).Add(o.right.Mul(c[0]))
		// Merged rectangles span voxels with differing corner occlusion, so
		// greedy output carries no occlusion and emits at full light.
		st.vertices = append(st.vertices, LocalVertex{
			Position: [3]uint16{uint16(p.X), uint16(p.Y), uint16(p.Z)},
			AO:       3,
		})
	}
	io2, io3 := uint32(2), uint32(1)
	if o.right.Cross(o.down) == voxray.Directions[w.normalIndex] {
		io2, io3 = 1, 2
	}
	st.faces = append(st.faces, LocalFace{
		Indices:     [4]uint32{bi, bi + io2, bi + io3, bi + 3},
		NormalIndex: w.normalIndex,
		Material:    w.material,
	})
}
