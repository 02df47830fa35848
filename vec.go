// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

import "github.com/go-gl/mathgl/mgl32"

// IVec3 represents an integer 3D vector.
// Voxel keys, chunk coordinates and octree cell positions are all integer
// lattice points, so they use IVec3 rather than a float vector; conversion to
// mgl32.Vec3 happens only at the boundary to ray/camera math.
type IVec3 struct {
	X, Y, Z int32
}

// IV3 is a convenience function to create an IVec3.
func IV3(x, y, z int32) IVec3 {
	return IVec3{X: x, Y: y, Z: z}
}

// Add returns the sum of two vectors.
func (v IVec3) Add(w IVec3) IVec3 {
	return IVec3{X: v.X + w.X, Y: v.Y + w.Y, Z: v.Z + w.Z}
}

// Sub returns the difference of two vectors.
func (v IVec3) Sub(w IVec3) IVec3 {
	return IVec3{X: v.X - w.X, Y: v.Y - w.Y, Z: v.Z - w.Z}
}

// Mul returns the vector scaled by a scalar.
func (v IVec3) Mul(s int32) IVec3 {
	return IVec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Neg returns the negation of the vector.
func (v IVec3) Neg() IVec3 {
	return IVec3{X: -v.X, Y: -v.Y, Z: -v.Z}
}

// Abs returns the component-wise absolute value.
func (v IVec3) Abs() IVec3 {
	return IVec3{X: absInt32(v.X), Y: absInt32(v.Y), Z: absInt32(v.Z)}
}

// Sum returns the sum of the components.
func (v IVec3) Sum() int32 {
	return v.X + v.Y + v.Z
}

// Dot returns the dot product of two vectors.
func (v IVec3) Dot(w IVec3) int32 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Cross returns the cross product of two vectors.
func (v IVec3) Cross(w IVec3) IVec3 {
	return IVec3{
		X: v.Y*w.Z - v.Z*w.Y,
		Y: v.Z*w.X - v.X*w.Z,
		Z: v.X*w.Y - v.Y*w.X,
	}
}

// Vec3 converts the vector to an mgl32.Vec3.
func (v IVec3) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Directions lists the 6 canonical axis directions in normal-index order:
// +x, -x, +y, -y, +z, -z. Face normal indices stored in VoxelTriangle records
// index into this table.
var Directions = [6]IVec3{
	{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
}

func absInt32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
