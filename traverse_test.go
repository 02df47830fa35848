// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// buildTunnelSvo builds a tree of the given side that is solid stone except
// for a one-voxel air tunnel along the x axis at y=0, z=0. Only nodes
// touching the tunnel subdivide, so the tree mixes unit cells around the
// tunnel with coarse solid regions everywhere else.
func buildTunnelSvo(side int32) *Svo {
	s := &Svo{Side: side}
	var build func(side int32) uint32
	build = func(side int32) uint32 {
		var n SvoNode
		if side == 2 {
			n.Children[0] = LeafRef(MaterialAir)
			n.Children[1] = LeafRef(MaterialAir)
			for slot := 2; slot < 8; slot++ {
				n.Children[slot] = LeafRef(MaterialStone)
			}
		} else {
			lo := build(side / 2)
			hi := build(side / 2)
			n.Children[0] = NodeRef(lo)
			n.Children[1] = NodeRef(hi)
			for slot := 2; slot < 8; slot++ {
				n.Children[slot] = LeafRef(MaterialStone)
			}
		}
		s.Nodes = append(s.Nodes, n)
		return uint32(len(s.Nodes) - 1)
	}
	s.Root = build(side)
	fixParents(s)
	return s
}

func TestTraceFlatAxisAligned(t *testing.T) {
	target := IV3(5, 2, 2)
	s, err := BuildSvo(8, func(p IVec3) Material {
		if p == target {
			return MaterialStone
		}
		return MaterialAir
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.TraceFlat(mgl32.Vec3{0.5, 2.5, 2.5}, mgl32.Vec3{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != TraceHit || res.Voxel != target || res.Material != MaterialStone {
		t.Fatalf("TraceFlat = %+v, want hit at %v", res, target)
	}
	if res.Steps != 5 {
		t.Errorf("TraceFlat took %d steps, want 5", res.Steps)
	}

	res, err = s.TraceFlat(mgl32.Vec3{0.5, 2.5, 2.5}, mgl32.Vec3{-1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != TraceMiss {
		t.Fatalf("backward ray = %+v, want miss", res)
	}
	if res.Voxel.X != -1 {
		t.Errorf("miss probe voxel = %v, want x = -1", res.Voxel)
	}
}

func TestTraceFlatCornerTieBreak(t *testing.T) {
	// Both candidate voxels after the first corner crossing are solid with
	// distinct materials; the walk must advance x before y.
	s, err := BuildSvo(4, func(p IVec3) Material {
		switch p {
		case IV3(1, 0, 0):
			return MaterialStone
		case IV3(0, 1, 0):
			return MaterialDirt
		}
		return MaterialAir
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.TraceFlat(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1, 1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != TraceHit || res.Voxel != IV3(1, 0, 0) || res.Material != MaterialStone {
		t.Fatalf("corner crossing = %+v, want x-first hit at (1,0,0)", res)
	}
}

func TestTraceFlatDiagonalAlternates(t *testing.T) {
	target := IV3(2, 1, 0)
	s, err := BuildSvo(4, func(p IVec3) Material {
		if p == target {
			return MaterialGrass
		}
		return MaterialAir
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.TraceFlat(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1, 1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != TraceHit || res.Voxel != target {
		t.Fatalf("diagonal walk = %+v, want hit at %v", res, target)
	}
	if res.Steps != 3 {
		t.Errorf("diagonal walk took %d steps, want 3 (x, y, x)", res.Steps)
	}
}

func TestTraceFlatCapped(t *testing.T) {
	s, err := NewUniformSvo(2048, MaterialAir)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.TraceFlat(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != TraceCapped {
		t.Fatalf("flat walk across 2048 voxels = %+v, want capped", res)
	}
	if res.Steps != MaxTraceSteps {
		t.Errorf("capped walk reports %d steps, want %d", res.Steps, MaxTraceSteps)
	}
}

func TestTraceTreeSkipsCollapsedAir(t *testing.T) {
	s, err := NewUniformSvo(2048, MaterialAir)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.TraceTree(mgl32.Vec3{1024.5, 1024.5, 1024.5}, mgl32.Vec3{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != TraceMiss {
		t.Fatalf("tree walk through collapsed air = %+v, want miss", res)
	}
	if res.Steps > 2 {
		t.Errorf("tree walk took %d steps through uniform air, want at most 2", res.Steps)
	}
}

func TestTraceTreeCappedInTunnel(t *testing.T) {
	s := buildTunnelSvo(2048)
	res, err := s.TraceTree(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != TraceCapped {
		t.Fatalf("tree walk down unit-cell tunnel = %+v, want capped", res)
	}
}

func TestTraceStartInsideSolid(t *testing.T) {
	s, err := BuildSvo(8, testField)
	if err != nil {
		t.Fatal(err)
	}
	origin := mgl32.Vec3{2.5, 2.5, 0.5}
	for _, trace := range []struct {
		name string
		fn   func(mgl32.Vec3, mgl32.Vec3) (TraceResult, error)
	}{
		{"flat", s.TraceFlat},
		{"tree", s.TraceTree},
	} {
		res, err := trace.fn(origin, mgl32.Vec3{0, 0, 1})
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != TraceHit || res.Voxel != IV3(2, 2, 0) || res.Steps != 0 {
			t.Errorf("%s walk from solid origin = %+v, want immediate hit at (2,2,0)", trace.name, res)
		}
	}
}

func TestTraceOriginOutside(t *testing.T) {
	s, err := BuildSvo(8, testField)
	if err != nil {
		t.Fatal(err)
	}
	for _, trace := range []struct {
		name string
		fn   func(mgl32.Vec3, mgl32.Vec3) (TraceResult, error)
	}{
		{"flat", s.TraceFlat},
		{"tree", s.TraceTree},
	} {
		res, err := trace.fn(mgl32.Vec3{-0.5, 3.5, 3.5}, mgl32.Vec3{1, 0, 0})
		if err != nil {
			t.Fatal(err)
		}
		if res.Status != TraceMiss || res.Steps != 0 {
			t.Errorf("%s walk from outside = %+v, want immediate miss", trace.name, res)
		}
	}
}

func TestTraceMalformedTree(t *testing.T) {
	var root SvoNode
	root.Children[0] = NodeRef(99)
	for slot := 1; slot < 8; slot++ {
		root.Children[slot] = LeafRef(MaterialAir)
	}
	s := &Svo{Nodes: []SvoNode{root}, Root: 0, Side: 4}

	if _, err := s.TraceFlat(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1, 0, 0}); !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("TraceFlat error = %v, want ErrMalformedTree", err)
	}
	if _, err := s.TraceTree(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1, 0, 0}); !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("TraceTree error = %v, want ErrMalformedTree", err)
	}
}

// dyadicDirs are ray directions whose components are signed powers of two
// divided by 256. Together with origins on the half-integer grid every
// crossing distance both walks compute is an exact float32, so the walks
// can be compared for strict equality instead of within a tolerance.
var dyadicDirs = []mgl32.Vec3{
	{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},
	{1, 1, 0}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1}, {-1, -1, -1}, {1, -1, 1},
	{1, 0.25, 0}, {0.5, 1, 0.125}, {-1, 0.0625, -0.5},
	{1.0 / 64, -1, 0.25}, {1, -0.5, -0.25}, {-0.125, -1, 1},
}

func checkWalksAgree(t *testing.T, s *Svo, origin, dir mgl32.Vec3) {
	t.Helper()
	flat, err := s.TraceFlat(origin, dir)
	if err != nil {
		t.Fatalf("TraceFlat(%v, %v): %v", origin, dir, err)
	}
	tree, err := s.TraceTree(origin, dir)
	if err != nil {
		t.Fatalf("TraceTree(%v, %v): %v", origin, dir, err)
	}
	if flat.Status != tree.Status || flat.Voxel != tree.Voxel || flat.Material != tree.Material {
		t.Errorf("walks disagree for origin %v dir %v:\n  flat %+v\n  tree %+v", origin, dir, flat, tree)
	}
	if tree.Steps > flat.Steps {
		t.Errorf("tree walk took %d steps, flat only %d, for origin %v dir %v", tree.Steps, flat.Steps, origin, dir)
	}
}

func TestTraceTreeMatchesFlatTerrain(t *testing.T) {
	s, err := BuildSvo(16, testField)
	if err != nil {
		t.Fatal(err)
	}
	coords := []float32{0.5, 3.5, 8.5, 13.5, 15.5}
	for _, ox := range coords {
		for _, oy := range coords {
			for _, oz := range coords {
				origin := mgl32.Vec3{ox, oy, oz}
				for _, dir := range dyadicDirs {
					checkWalksAgree(t, s, origin, dir)
				}
			}
		}
	}
}

func TestTraceTreeMatchesFlatTunnel(t *testing.T) {
	s := buildTunnelSvo(64)
	origins := []mgl32.Vec3{
		{0.5, 0.5, 0.5},
		{32.5, 0.5, 0.5},
		{63.5, 0.5, 0.5},
		{5.5, 33.5, 17.5},
	}
	for _, origin := range origins {
		for _, dir := range dyadicDirs {
			checkWalksAgree(t, s, origin, dir)
		}
	}
}

func TestTraceStatusString(t *testing.T) {
	tests := []struct {
		st   TraceStatus
		want string
	}{
		{TraceMiss, "miss"},
		{TraceHit, "hit"},
		{TraceCapped, "capped"},
		{TraceStatus(99), "invalid"},
	}
	for _, tt := range tests {
		if got := tt.st.String(); got != tt.want {
			t.Errorf("TraceStatus(%d).String() = %q, want %q", tt.st, got, tt.want)
		}
	}
}

func benchTraceRays() []mgl32.Vec3 {
	rays := make([]mgl32.Vec3, 0, 16)
	for i := 0; i < 16; i++ {
		rays = append(rays, mgl32.Vec3{float32(i)*4 + 0.5, 32.5, 62.5})
	}
	return rays
}

func BenchmarkTraceFlat(b *testing.B) {
	s, err := BuildSvo(64, testField)
	if err != nil {
		b.Fatal(err)
	}
	rays := benchTraceRays()
	dir := mgl32.Vec3{0.0625, 0.03125, -1}
	i := 0
	for b.Loop() {
		if _, err := s.TraceFlat(rays[i%len(rays)], dir); err != nil {
			b.Fatal(err)
		}
		i++
	}
}

func BenchmarkTraceTree(b *testing.B) {
	s, err := BuildSvo(64, testField)
	if err != nil {
		b.Fatal(err)
	}
	rays := benchTraceRays()
	dir := mgl32.Vec3{0.0625, 0.03125, -1}
	i := 0
	for b.Loop() {
		if _, err := s.TraceTree(rays[i%len(rays)], dir); err != nil {
			b.Fatal(err)
		}
		i++
	}
}

func TestTraceResultStringer(t *testing.T) {
	res := TraceResult{Status: TraceHit, Voxel: IV3(1, 2, 3), Material: MaterialStone, Steps: 7}
	got := fmt.Sprintf("%v %v", res.Status, res.Material)
	if got != "hit Stone" {
		t.Errorf("formatted result = %q, want %q", got, "hit Stone")
	}
}
