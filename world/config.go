// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package world

import (
	"errors"
	"fmt"
	"os"

	"github.com/voxray/voxray/mesh"
	"gopkg.in/yaml.v3"
)

// ErrConfig indicates a config value the engine cannot run with.
var ErrConfig = errors.New("world: invalid config")

// Config holds the terrain and streaming parameters. Render distances are
// in voxels and rounded up to whole chunks internally.
type Config struct {
	Seed                     uint64  `yaml:"seed"`
	ChunkSize                int32   `yaml:"chunk_size"`
	HeightmapAmplitude       float32 `yaml:"heightmap_amplitude"`
	HeightmapFrequency       float32 `yaml:"heightmap_frequency"`
	HeightmapBias            float32 `yaml:"heightmap_bias"`
	RenderDistanceHorizontal int32   `yaml:"render_distance_horizontal"`
	RenderDistanceVertical   int32   `yaml:"render_distance_vertical"`
	MeshingAlgorithm         string  `yaml:"meshing_algorithm"`
}

// DefaultConfig returns a rolling-hills terrain sized for interactive use.
func DefaultConfig() Config {
	return Config{
		Seed:                     907,
		ChunkSize:                64,
		HeightmapAmplitude:       64,
		HeightmapFrequency:       0.003,
		HeightmapBias:            1,
		RenderDistanceHorizontal: 300,
		RenderDistanceVertical:   100,
		MeshingAlgorithm:         mesh.AlgorithmCulled.String(),
	}
}

// LoadConfig reads and validates a YAML config file. Missing keys keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("world: read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("world: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config against the limits of the chunk pipeline.
// Chunk sides must be powers of two for the octree, and they cannot exceed
// 128 or meshed corner positions would overflow the byte lattice of
// meshlet vertices.
func (c Config) Validate() error {
	if c.ChunkSize < 1 || c.ChunkSize > 128 || c.ChunkSize&(c.ChunkSize-1) != 0 {
		return fmt.Errorf("%w: chunk size %d must be a power of two in [1, 128]", ErrConfig, c.ChunkSize)
	}
	if c.HeightmapAmplitude < 0 {
		return fmt.Errorf("%w: heightmap amplitude %g is negative", ErrConfig, c.HeightmapAmplitude)
	}
	if c.HeightmapFrequency <= 0 {
		return fmt.Errorf("%w: heightmap frequency %g is not positive", ErrConfig, c.HeightmapFrequency)
	}
	if c.RenderDistanceHorizontal < 1 || c.RenderDistanceVertical < 1 {
		return fmt.Errorf("%w: render distances %dx%d must be positive", ErrConfig,
			c.RenderDistanceHorizontal, c.RenderDistanceVertical)
	}
	if _, err := mesh.ParseAlgorithm(c.MeshingAlgorithm); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// Algorithm returns the parsed meshing algorithm. Call Validate first;
// unknown names fall back to culled meshing.
func (c Config) Algorithm() mesh.Algorithm {
	algo, err := mesh.ParseAlgorithm(c.MeshingAlgorithm)
	if err != nil {
		return mesh.AlgorithmCulled
	}
	return algo
}

func (c Config) horizontalChunks() int32 {
	return divCeil(c.RenderDistanceHorizontal, c.ChunkSize)
}

func (c Config) verticalChunks() int32 {
	return divCeil(c.RenderDistanceVertical, c.ChunkSize)
}

func divCeil(a, b int32) int32 {
	return (a + b - 1) / b
}
