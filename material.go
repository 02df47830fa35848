// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

import "github.com/go-gl/mathgl/mgl32"

// Material identifies a voxel material. The zero value is air.
//
// Leaf words in the sparse voxel octree store material ids in 5 bits, so ids
// used by voxel data must stay below MaxMaterials. The per-frame material
// table is larger (MaterialTableLen entries); the slots past MaxMaterials are
// addressed by non-voxel consumers of the same table.
type Material uint8

const (
	// MaterialAir marks an empty voxel. Traversal treats it as a non-hit.
	MaterialAir Material = 0

	// MaterialStone fills everything far enough below the surface.
	MaterialStone Material = 1

	// MaterialDirt fills the band directly below the surface.
	MaterialDirt Material = 2

	// MaterialGrass covers the surface cell of a column.
	MaterialGrass Material = 3
)

// MaxMaterials is the number of material ids representable in an octree leaf
// word (5 bits).
const MaxMaterials = 32

// MaterialTableLen is the length of the per-frame material table.
const MaterialTableLen = 256

// IsAir reports whether the material is empty space.
func (m Material) IsAir() bool {
	return m == MaterialAir
}

// String returns the material name.
func (m Material) String() string {
	switch m {
	case MaterialAir:
		return "Air"
	case MaterialStone:
		return "Stone"
	case MaterialDirt:
		return "Dirt"
	case MaterialGrass:
		return "Grass"
	default:
		return "Unknown"
	}
}

// MaterialDesc holds the shading parameters of one material table entry.
type MaterialDesc struct {
	Albedo    mgl32.Vec3
	Roughness float32
	Emit      mgl32.Vec3
	Metallic  float32
}

// DefaultMaterials returns the built-in material table. Slot 0 (air) is all
// zero; the terrain materials match the values the renderer was tuned with.
func DefaultMaterials() [MaterialTableLen]MaterialDesc {
	var t [MaterialTableLen]MaterialDesc
	t[MaterialStone] = MaterialDesc{
		Albedo:    mgl32.Vec3{0.55, 0.6, 0.66},
		Roughness: 1,
	}
	t[MaterialDirt] = MaterialDesc{
		Albedo:    mgl32.Vec3{0.62, 0.4, 0.24},
		Roughness: 1,
	}
	t[MaterialGrass] = MaterialDesc{
		Albedo:    mgl32.Vec3{0.63, 0.81, 0.42},
		Roughness: 1,
	}
	return t
}
