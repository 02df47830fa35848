// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package world

import (
	"fmt"

	"github.com/voxray/voxray"
)

// MaterialAtHeight returns the terrain material of the voxel at world
// height z in a column whose surface sits at height. Columns are air from
// the surface up, one grass cell at the top, four dirt cells below it, and
// stone the rest of the way down.
func MaterialAtHeight(height, z int32) voxray.Material {
	switch {
	case height <= z:
		return voxray.MaterialAir
	case height <= z+1:
		return voxray.MaterialGrass
	case height <= z+5:
		return voxray.MaterialDirt
	default:
		return voxray.MaterialStone
	}
}

// GenerateChunk builds the octree of one chunk from its column heightmap.
// Chunks entirely above or below the terrain collapse to a single uniform
// node without sampling any column.
func GenerateChunk(chunk voxray.IVec3, hm *Heightmap, chunkSize int32) (*voxray.Svo, error) {
	if hm.Side() != chunkSize {
		return nil, fmt.Errorf("world: heightmap side %d does not match chunk size %d", hm.Side(), chunkSize)
	}
	zBase := chunk.Z * chunkSize
	lo, hi := hm.Range()
	if hi <= zBase {
		return voxray.NewUniformSvo(chunkSize, voxray.MaterialAir)
	}
	if lo >= zBase+chunkSize+5 {
		return voxray.NewUniformSvo(chunkSize, voxray.MaterialStone)
	}
	return voxray.BuildSvo(chunkSize, func(p voxray.IVec3) voxray.Material {
		return MaterialAtHeight(hm.At(p.X, p.Y), zBase+p.Z)
	})
}
