// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package world

import "github.com/voxray/voxray"

// ChunkPriority decides which chunk to load next. It grows a stable cuboid
// of loaded chunks around the camera chunk one face layer at a time, always
// extending toward the face closest to the camera, and drains each new
// layer through a queue before extending again. Horizontal faces stop at
// the horizontal render distance, vertical faces at the vertical one.
//
// Not safe for concurrent use; the streamer serializes access.
type ChunkPriority struct {
	camera     voxray.IVec3
	loaded     map[voxray.IVec3]struct{}
	stable     Cuboid
	queue      []voxray.IVec3
	horizontal int32
	vertical   int32
}

// NewChunkPriority creates a priority tracker centered on the camera chunk
// with render distances given in chunks.
func NewChunkPriority(camera voxray.IVec3, horizontal, vertical int32) *ChunkPriority {
	return &ChunkPriority{
		camera:     camera,
		loaded:     make(map[voxray.IVec3]struct{}),
		horizontal: horizontal,
		vertical:   vertical,
	}
}

// Select returns the next chunk to load, or false when every chunk within
// render distance is already loaded.
func (p *ChunkPriority) Select() (voxray.IVec3, bool) {
	if chunk, ok := p.pop(); ok {
		return chunk, true
	}

	if p.stable.IsEmpty() {
		p.stable = UnitCube(p.camera)
		if _, loaded := p.loaded[p.camera]; !loaded {
			p.loaded[p.camera] = struct{}{}
			return p.camera, true
		}
	}

	for {
		normal, ok := p.closestSide()
		if !ok {
			return voxray.IVec3{}, false
		}
		p.stable = p.stable.ExtendInDirection(normal)
		for _, chunk := range p.stable.SideChunks(normal) {
			if _, loaded := p.loaded[chunk]; !loaded {
				p.queue = append(p.queue, chunk)
			}
		}
		if chunk, ok := p.pop(); ok {
			return chunk, true
		}
	}
}

// UpdateCamera moves the camera chunk. Leaving the stable cuboid discards
// the growth state so Select regrows from the new position; chunks already
// loaded stay loaded.
func (p *ChunkPriority) UpdateCamera(camera voxray.IVec3) {
	p.camera = camera
	if !p.stable.Contains(camera) {
		p.stable = Cuboid{}
		p.queue = p.queue[:0]
	}
}

// Clear forgets all loaded chunks and restarts from the camera chunk with
// new render distances.
func (p *ChunkPriority) Clear(camera voxray.IVec3, horizontal, vertical int32) {
	p.camera = camera
	clear(p.loaded)
	p.stable = Cuboid{}
	p.queue = p.queue[:0]
	p.horizontal = horizontal
	p.vertical = vertical
}

func (p *ChunkPriority) pop() (voxray.IVec3, bool) {
	if len(p.queue) == 0 {
		return voxray.IVec3{}, false
	}
	chunk := p.queue[len(p.queue)-1]
	p.queue = p.queue[:len(p.queue)-1]
	p.loaded[chunk] = struct{}{}
	return chunk, true
}

// closestSide picks the stable cuboid face nearest to the camera among the
// faces still inside render distance. Ties resolve to the first direction
// in normal-index order.
func (p *ChunkPriority) closestSide() (voxray.IVec3, bool) {
	var best voxray.IVec3
	bestDistance := int32(0)
	found := false
	for _, direction := range voxray.Directions {
		distance := p.stable.DistanceFromInside(p.camera, direction)
		limit := p.horizontal
		if direction.Z != 0 {
			limit = p.vertical
		}
		if distance > limit {
			continue
		}
		if !found || distance < bestDistance {
			best = direction
			bestDistance = distance
			found = true
		}
	}
	return best, found
}
