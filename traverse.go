// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxTraceSteps bounds the number of cell advances a single ray may take.
// A ray that exhausts the budget reports TraceCapped instead of looping;
// renderers surface capped rays as a diagnostic rather than a hit or miss.
const MaxTraceSteps = 1000

// TraceStatus reports how a ray walk terminated.
type TraceStatus uint8

const (
	// TraceMiss means the ray left the tree bounds without touching a
	// solid voxel.
	TraceMiss TraceStatus = iota
	// TraceHit means the ray entered a solid voxel.
	TraceHit
	// TraceCapped means the walk gave up after MaxTraceSteps advances.
	TraceCapped
)

func (st TraceStatus) String() string {
	switch st {
	case TraceMiss:
		return "miss"
	case TraceHit:
		return "hit"
	case TraceCapped:
		return "capped"
	default:
		return "invalid"
	}
}

// TraceResult is the outcome of walking one ray through a tree.
//
// Voxel is the solid voxel entered on a hit, and the first out-of-bounds
// probe on a miss. Steps counts cell advances, so the flat and tree walks
// report different step counts for the same ray.
type TraceResult struct {
	Status   TraceStatus
	Voxel    IVec3
	Material Material
	Steps    int
}

// rayState is the shared DDA state of both ray walks: the fine voxel the
// ray is in, the step direction per axis, the ray distance to the next
// cell boundary per axis (tMax) and the distance between consecutive
// boundaries (tDelta). Axes with zero direction hold +Inf distances and
// are never advanced.
type rayState struct {
	o      [3]float32
	d      [3]float32
	v      [3]int32
	step   [3]int32
	tMax   [3]float32
	tDelta [3]float32
}

func newRayState(origin, dir mgl32.Vec3) rayState {
	st := rayState{
		o: [3]float32{origin.X(), origin.Y(), origin.Z()},
		d: [3]float32{dir.X(), dir.Y(), dir.Z()},
	}
	for a := 0; a < 3; a++ {
		f := math32.Floor(st.o[a])
		st.v[a] = int32(f)
		switch {
		case st.d[a] > 0:
			st.step[a] = 1
			st.tDelta[a] = 1 / st.d[a]
			st.tMax[a] = (f + 1 - st.o[a]) / st.d[a]
		case st.d[a] < 0:
			st.step[a] = -1
			st.tDelta[a] = 1 / -st.d[a]
			st.tMax[a] = (st.o[a] - f) / -st.d[a]
		default:
			st.tDelta[a] = math32.Inf(1)
			st.tMax[a] = math32.Inf(1)
		}
	}
	return st
}

// pickAxis selects the axis whose boundary the ray crosses next. Ties
// resolve toward the lower axis index, so corner crossings advance x
// before y before z.
func (st *rayState) pickAxis() int {
	if st.tMax[0] <= st.tMax[1] && st.tMax[0] <= st.tMax[2] {
		return 0
	}
	if st.tMax[1] <= st.tMax[2] {
		return 1
	}
	return 2
}

// ascend rescales the crossing state from cell scale 1<<hBits to the
// parent scale. On each axis the cell sitting in the half of its parent
// that the ray crosses first gains one child cell of boundary distance;
// the other half already shares its boundary with the parent.
func (st *rayState) ascend(hBits uint) {
	for a := 0; a < 3; a++ {
		if st.step[a] == 0 {
			continue
		}
		q := (st.v[a] >> hBits) & 1
		if (st.step[a] > 0 && q == 0) || (st.step[a] < 0 && q == 1) {
			st.tMax[a] += st.tDelta[a]
		}
		st.tDelta[a] *= 2
	}
}

// descend narrows the crossing state to cell scale 1<<hBits, the exact
// inverse of ascend at the same scale.
func (st *rayState) descend(hBits uint) {
	for a := 0; a < 3; a++ {
		if st.step[a] == 0 {
			continue
		}
		st.tDelta[a] /= 2
		q := (st.v[a] >> hBits) & 1
		if (st.step[a] > 0 && q == 0) || (st.step[a] < 0 && q == 1) {
			st.tMax[a] -= st.tDelta[a]
		}
	}
}

// TraceFlat walks a ray through the tree one voxel at a time and returns
// the first solid voxel it enters. Coordinates are tree-local: the root
// spans [0, Side) on every axis, and a ray that starts outside the root
// misses immediately. The walk looks the tree up once per voxel, so its
// cost is independent of how coarsely empty space is collapsed.
//
// TraceFlat is the reference walk; TraceTree produces identical hits and
// misses while skipping across collapsed empty cells.
func (s *Svo) TraceFlat(origin, dir mgl32.Vec3) (TraceResult, error) {
	st := newRayState(origin, dir)
	for steps := 0; steps < MaxTraceSteps; steps++ {
		key := IV3(st.v[0], st.v[1], st.v[2])
		if !s.InBounds(key) {
			return TraceResult{Status: TraceMiss, Voxel: key, Steps: steps}, nil
		}
		m, ok := findMaterial(s.Nodes, s.Root, s.Side, key)
		if !ok {
			return TraceResult{}, ErrMalformedTree
		}
		if m != MaterialAir {
			return TraceResult{Status: TraceHit, Voxel: key, Material: m, Steps: steps}, nil
		}
		a := st.pickAxis()
		st.v[a] += st.step[a]
		st.tMax[a] += st.tDelta[a]
	}
	return TraceResult{Status: TraceCapped, Voxel: IV3(st.v[0], st.v[1], st.v[2]), Steps: MaxTraceSteps}, nil
}

// TraceTree walks a ray through the tree one uniform cell at a time. Each
// advance descends from the root to the cell containing the current voxel,
// rescales the crossing distances to that cell's side, and steps across
// the whole cell in one move, so large collapsed air regions cost a single
// advance instead of one per voxel.
//
// The fine voxel is carried exactly: the stepped axis lands on the entry
// face of the next cell, and the remaining axes are reconstructed from the
// crossing distance and clamped into the departed cell so float rounding
// cannot leak them across a boundary.
func (s *Svo) TraceTree(origin, dir mgl32.Vec3) (TraceResult, error) {
	st := newRayState(origin, dir)
	var hBits uint
	for steps := 0; steps < MaxTraceSteps; steps++ {
		key := IV3(st.v[0], st.v[1], st.v[2])
		if !s.InBounds(key) {
			return TraceResult{Status: TraceMiss, Voxel: key, Steps: steps}, nil
		}
		m, cellSide, ok := findLeaf(s.Nodes, s.Root, s.Side, key)
		if !ok {
			return TraceResult{}, ErrMalformedTree
		}
		if m != MaterialAir {
			return TraceResult{Status: TraceHit, Voxel: key, Material: m, Steps: steps}, nil
		}
		for int32(1)<<hBits < cellSide {
			st.ascend(hBits)
			hBits++
		}
		for int32(1)<<hBits > cellSide {
			hBits--
			st.descend(hBits)
		}

		a := st.pickAxis()
		t := st.tMax[a]
		h := int32(1) << hBits
		var cellMin [3]int32
		for b := 0; b < 3; b++ {
			cellMin[b] = st.v[b] &^ (h - 1)
		}
		for b := 0; b < 3; b++ {
			if b == a {
				continue
			}
			w := int32(math32.Floor(st.o[b] + st.d[b]*t))
			if w < cellMin[b] {
				w = cellMin[b]
			}
			if hi := cellMin[b] + h - 1; w > hi {
				w = hi
			}
			st.v[b] = w
		}
		if st.step[a] > 0 {
			st.v[a] = cellMin[a] + h
		} else {
			st.v[a] = cellMin[a] - 1
		}
		st.tMax[a] += st.tDelta[a]
	}
	return TraceResult{Status: TraceCapped, Voxel: IV3(st.v[0], st.v[1], st.v[2]), Steps: MaxTraceSteps}, nil
}
