// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

// CPU port of the meshlet culling task stage: a back-face and frustum test
// per meshlet, then workgroup-local stream compaction of the survivors.
// The GPU dispatch runs the same logic in voxel_cull.wgsl; this port is the
// reference the shader is validated against.

package voxray

import "github.com/go-gl/mathgl/mgl32"

// cullWG is the task-stage workgroup width. Each group of 32 meshlets
// decides its cull flags before any lane writes, then lane i's output slot
// is the exclusive prefix sum of survivors over lanes 0..i-1.
const cullWG = 32

// BackfaceCulled reports whether every corner of the box lies strictly on
// the far side of the plane through pos with normal dir. Corners exactly on
// the plane count as near-side, so a box containing pos is never culled.
func BackfaceCulled(min, max, pos, dir mgl32.Vec3) bool {
	for i := 0; i < 8; i++ {
		c := min
		if i&1 != 0 {
			c[0] = max[0]
		}
		if i&2 != 0 {
			c[1] = max[1]
		}
		if i&4 != 0 {
			c[2] = max[2]
		}
		if c.Sub(pos).Dot(dir) <= 0 {
			return false
		}
	}
	return true
}

// FrustumCulled reports whether the box's screen-space bounds lie entirely
// outside the [-1,1] clip square. A box reaching past the near plane is
// kept: its projection is unreliable, so the test stays conservative.
func FrustumCulled(viewProj mgl32.Mat4, min, max mgl32.Vec3, depthNear float32) bool {
	rect, ok := ScreenAABB(viewProj, min, max, depthNear)
	if !ok {
		return false
	}
	return rect[2] < -1 || rect[0] > 1 || rect[3] < -1 || rect[1] > 1
}

// CullMeshlet decides whether one meshlet can be skipped this frame.
func CullMeshlet(m *VoxelMeshlet, g *Global) bool {
	min, max := m.WorldBounds(g.Voxels.ChunkSize)
	if BackfaceCulled(min, max, g.Camera.Position, g.Camera.Direction) {
		return true
	}
	return FrustumCulled(g.Camera.ViewProj(), min, max, g.Camera.DepthNear)
}

// CullMeshlets runs the culling stage over the whole meshlet table and
// returns the dense index list of surviving meshlets, preserving input
// order. Groups run in two phases: every lane decides its flag, then the
// group compacts. On the GPU a barrier separates the phases; here the
// phase loops are simply sequential, and within each group the append
// position equals the group base plus the exclusive prefix sum of
// survivors, matching the shader's per-group span layout.
func CullMeshlets(meshlets []VoxelMeshlet, g *Global) []uint32 {
	viewProj := g.Camera.ViewProj()
	visible := make([]uint32, 0, len(meshlets))
	var cull [cullWG]bool
	for base := 0; base < len(meshlets); base += cullWG {
		n := len(meshlets) - base
		if n > cullWG {
			n = cullWG
		}
		for lane := 0; lane < n; lane++ {
			m := &meshlets[base+lane]
			min, max := m.WorldBounds(g.Voxels.ChunkSize)
			cull[lane] = BackfaceCulled(min, max, g.Camera.Position, g.Camera.Direction) ||
				FrustumCulled(viewProj, min, max, g.Camera.DepthNear)
		}
		for lane := 0; lane < n; lane++ {
			if !cull[lane] {
				visible = append(visible, uint32(base+lane))
			}
		}
	}
	return visible
}
