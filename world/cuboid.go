// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package world generates voxel terrain and streams chunk meshes around a
// moving camera.
package world

import "github.com/voxray/voxray"

// Cuboid is a half-open box of chunk coordinates: Base is the lowest
// contained chunk and Base+Size is one past the highest.
type Cuboid struct {
	Base voxray.IVec3
	Size voxray.IVec3
}

// UnitCube is the cuboid covering a single chunk.
func UnitCube(base voxray.IVec3) Cuboid {
	return Cuboid{Base: base, Size: voxray.IV3(1, 1, 1)}
}

func (c Cuboid) IsEmpty() bool {
	return c.Size == voxray.IVec3{}
}

func (c Cuboid) Contains(p voxray.IVec3) bool {
	d := p.Sub(c.Base)
	return d.X >= 0 && d.X < c.Size.X &&
		d.Y >= 0 && d.Y < c.Size.Y &&
		d.Z >= 0 && d.Z < c.Size.Z
}

// SideChunks lists the chunks of the face layer facing the given axis
// direction.
func (c Cuboid) SideChunks(direction voxray.IVec3) []voxray.IVec3 {
	du, lu := voxray.IV3(1, 0, 0), c.Size.X
	if direction.X != 0 {
		du, lu = voxray.IV3(0, 1, 0), c.Size.Y
	}
	dv, lv := voxray.IV3(0, 0, 1), c.Size.Z
	if direction.Z != 0 {
		dv, lv = voxray.IV3(0, 1, 0), c.Size.Y
	}
	base := c.Base
	if direction.X > 0 {
		base.X += c.Size.X - 1
	}
	if direction.Y > 0 {
		base.Y += c.Size.Y - 1
	}
	if direction.Z > 0 {
		base.Z += c.Size.Z - 1
	}
	out := make([]voxray.IVec3, 0, int(lu)*int(lv))
	for u := int32(0); u < lu; u++ {
		for v := int32(0); v < lv; v++ {
			out = append(out, base.Add(du.Mul(u)).Add(dv.Mul(v)))
		}
	}
	return out
}

// DistanceFromInside measures how many chunks separate p from the first
// layer outside the cuboid in the given direction, along that axis. For a
// point inside, the nearest outside layer is at distance 1.
func (c Cuboid) DistanceFromInside(p, direction voxray.IVec3) int32 {
	var edge voxray.IVec3
	if direction.Sum() > 0 {
		edge = c.Base.Add(c.Size)
	} else {
		edge = c.Base.Sub(voxray.IV3(1, 1, 1))
	}
	d := p.Sub(edge).Dot(direction.Abs())
	if d < 0 {
		d = -d
	}
	return d
}

// ExtendInDirection grows the cuboid by one chunk layer on the side facing
// the given direction.
func (c Cuboid) ExtendInDirection(direction voxray.IVec3) Cuboid {
	base := c.Base
	if direction.X < 0 {
		base.X--
	}
	if direction.Y < 0 {
		base.Y--
	}
	if direction.Z < 0 {
		base.Z--
	}
	return Cuboid{Base: base, Size: c.Size.Add(direction.Abs())}
}
