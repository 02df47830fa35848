// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ScreenAABB projects a world-space axis-aligned box into normalized device
// coordinates and returns its 2D screen bounds as (minX, minY, maxX, maxY).
//
// The 8 clip-space corners are built by adding the projected edge vectors of
// the box to the projected base corner, not by projecting the 8 world corners
// independently: min/max of independently projected corners does not bound a
// box under perspective, sums of edge vectors from a common origin do.
//
// Returns ok=false when any corner's homogeneous w falls below depthNear; the
// projection is unreliable there and callers must treat the box as visible.
func ScreenAABB(viewProj mgl32.Mat4, min, max mgl32.Vec3, depthNear float32) (mgl32.Vec4, bool) {
	base := viewProj.Mul4x1(mgl32.Vec4{min.X(), min.Y(), min.Z(), 1})
	ext := max.Sub(min)
	sx := viewProj.Mul4x1(mgl32.Vec4{ext.X(), 0, 0, 0})
	sy := viewProj.Mul4x1(mgl32.Vec4{0, ext.Y(), 0, 0})
	sz := viewProj.Mul4x1(mgl32.Vec4{0, 0, ext.Z(), 0})

	corners := [8]mgl32.Vec4{
		base,
		base.Add(sx),
		base.Add(sy),
		base.Add(sx).Add(sy),
		base.Add(sz),
		base.Add(sx).Add(sz),
		base.Add(sy).Add(sz),
		base.Add(sx).Add(sy).Add(sz),
	}

	screenMin := mgl32.Vec2{math32.Inf(1), math32.Inf(1)}
	screenMax := mgl32.Vec2{math32.Inf(-1), math32.Inf(-1)}
	for _, c := range corners {
		if c.W() < depthNear {
			return mgl32.Vec4{}, false
		}
		x := c.X() / c.W()
		y := c.Y() / c.W()
		screenMin[0] = math32.Min(screenMin[0], x)
		screenMin[1] = math32.Min(screenMin[1], y)
		screenMax[0] = math32.Max(screenMax[0], x)
		screenMax[1] = math32.Max(screenMax[1], y)
	}
	return mgl32.Vec4{screenMin.X(), screenMin.Y(), screenMax.X(), screenMax.Y()}, true
}

// RaySphere intersects a ray with a sphere and returns the distance to the
// near hit and the chord length through the sphere. A ray that misses, or
// whose far intersection lies behind the origin, returns (+Inf, 0); callers
// treat an infinite near distance as "not entered". An origin inside the
// sphere clamps the near distance to 0.
func RaySphere(origin, dir, center mgl32.Vec3, radius float32) (float32, float32) {
	oc := origin.Sub(center)
	a := dir.Dot(dir)
	b := 2 * oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return math32.Inf(1), 0
	}
	sqrtDisc := math32.Sqrt(disc)
	far := (-b + sqrtDisc) / (2 * a)
	if far < 0 {
		return math32.Inf(1), 0
	}
	near := math32.Max((-b-sqrtDisc)/(2*a), 0)
	return near, far - near
}
