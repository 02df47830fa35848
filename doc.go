// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package voxray provides the core of a sparse-voxel-octree renderer.
//
// # Overview
//
// voxray turns heightmap terrain into sparse voxel octrees, extracts chunk
// surfaces as meshlets, and traces rays through the octree. The same
// traversal and culling kernels run on the GPU as compute shaders and on
// the CPU as plain Go, so results can be cross-checked lane for lane.
//
// # Quick Start
//
//	import "github.com/voxray/voxray"
//
//	// Build a tree from a material field
//	svo, _ := voxray.BuildSvo(64, materialAt)
//
//	// Assemble a frame snapshot and trace
//	g := voxray.NewGlobal(camera, voxels)
//	fc := &voxray.FrameContext{Global: g, Nodes: svo.Nodes}
//	res, _ := fc.TraceWorldRay(origin, dir)
//
// # Architecture
//
// The module is organized into:
//   - Public API: Svo, Camera, Global, FrameContext, VoxelMeshlet
//   - mesh: chunk surface extraction (culled and greedy) and meshlet packing
//   - world: terrain generation, chunk streaming, mesh arena
//   - gpu: compute dispatch of the culling and tracing kernels
//
// # Coordinate System
//
// The world is Z-up on an integer voxel lattice:
//   - X and Y span the horizontal plane
//   - Z increases upward
//   - Chunks are axis-aligned cubes addressed by their lattice coordinates
package voxray

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
