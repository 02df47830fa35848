// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

import "errors"

var (
	// ErrSideLength indicates a tree side length that is zero, negative, or
	// not a power of two.
	ErrSideLength = errors.New("voxray: side length must be a positive power of two")

	// ErrArenaBounds indicates a node pointer that references a slot outside
	// the node arena.
	ErrArenaBounds = errors.New("voxray: node pointer outside arena")

	// ErrMalformedTree indicates an octree whose descent did not terminate in
	// a leaf, which only happens when the arena contents are corrupt.
	ErrMalformedTree = errors.New("voxray: malformed octree")

	// ErrOutOfBounds indicates a voxel key outside the region covered by the
	// tree root.
	ErrOutOfBounds = errors.New("voxray: voxel key outside root region")

	// ErrMeshletLimit indicates a meshlet exceeding the hardware vertex or
	// triangle limits.
	ErrMeshletLimit = errors.New("voxray: meshlet exceeds hardware limits")

	// ErrChunkRange indicates a chunk coordinate outside the int16 range;
	// beyond it world-space meshlet bounds would leave the exact integer
	// range of float32.
	ErrChunkRange = errors.New("voxray: chunk coordinate outside int16 range")
)
