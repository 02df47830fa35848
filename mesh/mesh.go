// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package mesh

import (
	"fmt"

	"github.com/voxray/voxray"
)

// Algorithm selects how a chunk's surface is turned into quads.
type Algorithm uint8

const (
	// AlgorithmCulled emits one quad per visible voxel face with ambient
	// occlusion baked into the corners.
	AlgorithmCulled Algorithm = iota
	// AlgorithmGreedy merges coplanar same-material faces into larger
	// rectangles, trading ambient occlusion for far fewer quads.
	AlgorithmGreedy
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmCulled:
		return "culled"
	case AlgorithmGreedy:
		return "greedy"
	default:
		return "invalid"
	}
}

// ParseAlgorithm maps a config name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "culled":
		return AlgorithmCulled, nil
	case "greedy":
		return AlgorithmGreedy, nil
	default:
		return 0, fmt.Errorf("mesh: unknown meshing algorithm %q", name)
	}
}

// LocalVertex is a quad corner on the chunk's lattice, with coordinates in
// [0, chunkSize] and an ambient light level in 0..3 where 0 is fully
// occluded and 3 is open.
type LocalVertex struct {
	Position [3]uint16
	AO       uint8
}

// LocalFace is one quad: four vertex indices, the face direction as an
// index into voxray.Directions, and the face material. Index order is
// chosen so triangulating as (0,1,2) and (1,3,2) keeps the winding facing
// out and splits the quad along the better ambient occlusion diagonal.
type LocalFace struct {
	Indices     [4]uint32
	NormalIndex uint8
	Material    voxray.Material
}

// LocalMesh is a chunk's surface before clustering.
type LocalMesh struct {
	Vertices []LocalVertex
	Faces    []LocalFace
}

// Mesh builds the center chunk's surface with the selected algorithm and
// deduplicates shared corners.
func Mesh(n *Neighborhood, algo Algorithm) (*LocalMesh, error) {
	var m *LocalMesh
	switch algo {
	case AlgorithmCulled:
		m = culledMesh(n)
	case AlgorithmGreedy:
		m = greedyMesh(n)
	default:
		return nil, fmt.Errorf("mesh: unknown meshing algorithm %d", algo)
	}
	return m.RemoveDuplicateVertices(), nil
}

// RemoveDuplicateVertices collapses vertices that agree on position and
// ambient occlusion, remapping face indices. First occurrence order is
// preserved so meshing output stays deterministic.
func (m *LocalMesh) RemoveDuplicateVertices() *LocalMesh {
	mapping := make(map[LocalVertex]uint32, len(m.Vertices))
	vertices := make([]LocalVertex, 0, len(m.Vertices))
	for _, v := range m.Vertices {
		if _, ok := mapping[v]; !ok {
			mapping[v] = uint32(len(vertices))
			vertices = append(vertices, v)
		}
	}
	faces := make([]LocalFace, 0, len(m.Faces))
	for _, f := range m.Faces {
		remapped := f
		for i, idx := range f.Indices {
			remapped.Indices[i] = mapping[m.Vertices[idx]]
		}
		faces = append(faces, remapped)
	}
	return &LocalMesh{Vertices: vertices, Faces: faces}
}
