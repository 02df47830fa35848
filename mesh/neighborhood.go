// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package mesh turns voxel chunk octrees into surface meshes and clusters
// them into mesh-shader batches. Meshing a chunk needs its 26 neighbours:
// faces on chunk boundaries are suppressed when the adjacent chunk covers
// them, and ambient occlusion probes reach diagonally across boundaries.
package mesh

import (
	"fmt"

	"github.com/voxray/voxray"
)

// Neighborhood is a 3x3x3 block of chunk octrees centered on the chunk
// being meshed. Index layout is 9*(z+1) + 3*(y+1) + (x+1) for chunk
// offsets in [-1,1].
type Neighborhood struct {
	svos      [27]*voxray.Svo
	chunkSize int32
}

// NewNeighborhood validates the 27 octrees once so lookups during meshing
// are infallible. Every tree must be well formed and cover chunkSize.
func NewNeighborhood(svos [27]*voxray.Svo, chunkSize int32) (*Neighborhood, error) {
	for i, s := range svos {
		if s == nil {
			return nil, fmt.Errorf("mesh: neighborhood octree %d is nil", i)
		}
		if s.Side != chunkSize {
			return nil, fmt.Errorf("mesh: neighborhood octree %d covers side %d, want %d", i, s.Side, chunkSize)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("mesh: neighborhood octree %d: %w", i, err)
		}
	}
	return &Neighborhood{svos: svos, chunkSize: chunkSize}, nil
}

// ChunkSize returns the voxel side length of each chunk in the block.
func (n *Neighborhood) ChunkSize() int32 { return n.chunkSize }

// Chunk returns the center chunk's octree.
func (n *Neighborhood) Chunk() *voxray.Svo {
	return n.ChunkAt(voxray.IV3(0, 0, 0))
}

// ChunkAt returns the octree at a chunk offset in [-1,1] per axis.
func (n *Neighborhood) ChunkAt(chunk voxray.IVec3) *voxray.Svo {
	return n.svos[9*(chunk.Z+1)+3*(chunk.Y+1)+(chunk.X+1)]
}

// At reads the material at a position in the center chunk's coordinates,
// reaching into the adjacent chunk on axes where the position runs up to
// one chunk outside [0, chunkSize). Positions further out are caller bugs
// and panic.
func (n *Neighborhood) At(p voxray.IVec3) voxray.Material {
	var chunk voxray.IVec3
	if p.X < 0 {
		chunk.X = -1
		p.X += n.chunkSize
	} else if p.X >= n.chunkSize {
		chunk.X = 1
		p.X -= n.chunkSize
	}
	if p.Y < 0 {
		chunk.Y = -1
		p.Y += n.chunkSize
	} else if p.Y >= n.chunkSize {
		chunk.Y = 1
		p.Y -= n.chunkSize
	}
	if p.Z < 0 {
		chunk.Z = -1
		p.Z += n.chunkSize
	} else if p.Z >= n.chunkSize {
		chunk.Z = 1
		p.Z -= n.chunkSize
	}
	m, err := n.ChunkAt(chunk).At(p)
	if err != nil {
		panic(fmt.Sprintf("mesh: neighborhood probe %v: %v", p, err))
	}
	return m
}
