// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package world

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/voxray/voxray"
	"golang.org/x/image/draw"
)

// Column identifies a vertical stack of chunks by its chunk x and y
// coordinates. Every chunk in the stack shares one heightmap.
type Column struct {
	X, Y int32
}

// ColumnOf returns the column containing a chunk.
func ColumnOf(chunk voxray.IVec3) Column {
	return Column{X: chunk.X, Y: chunk.Y}
}

// Heightmap holds one terrain surface height per voxel column of a
// chunk-sized tile, plus the height range used to shortcut chunks that sit
// entirely above or below the terrain.
type Heightmap struct {
	side     int32
	heights  []int32
	min, max int32
}

func newHeightmap(side int32, heights []int32) *Heightmap {
	hm := &Heightmap{side: side, heights: heights, min: heights[0], max: heights[0]}
	for _, h := range heights[1:] {
		hm.min = min(hm.min, h)
		hm.max = max(hm.max, h)
	}
	return hm
}

// Side returns the tile edge length in columns.
func (hm *Heightmap) Side() int32 { return hm.side }

// At returns the surface height of the column at chunk-local x, y.
func (hm *Heightmap) At(x, y int32) int32 {
	return hm.heights[y*hm.side+x]
}

// Range returns the lowest and highest surface height on the tile.
func (hm *Heightmap) Range() (lo, hi int32) {
	return hm.min, hm.max
}

// HeightmapSource produces deterministic column heights from seeded 2-D
// smooth noise. Heights are sampled at world column coordinates so tiles of
// adjacent columns line up seamlessly.
type HeightmapSource struct {
	noise     opensimplex.Noise
	chunkSize int32
	amplitude float32
	frequency float32
	bias      float32
}

// NewHeightmapSource builds a source for the config's seed and heightmap
// shape parameters.
func NewHeightmapSource(cfg Config) *HeightmapSource {
	return &HeightmapSource{
		noise:     opensimplex.New(int64(cfg.Seed)),
		chunkSize: cfg.ChunkSize,
		amplitude: cfg.HeightmapAmplitude,
		frequency: cfg.HeightmapFrequency,
		bias:      cfg.HeightmapBias,
	}
}

// Generate samples the noise over one column tile. The raw noise value in
// [-1, 1] is lifted by the bias and scaled by the amplitude, then rounded
// to the nearest voxel height.
func (s *HeightmapSource) Generate(column Column) *Heightmap {
	base := voxray.IV3(column.X, column.Y, 0).Mul(s.chunkSize)
	heights := make([]int32, s.chunkSize*s.chunkSize)
	for y := int32(0); y < s.chunkSize; y++ {
		py := float32(base.Y+y) * s.frequency
		for x := int32(0); x < s.chunkSize; x++ {
			px := float32(base.X+x) * s.frequency
			raw := float32(s.noise.Eval2(float64(px), float64(py)))
			heights[y*s.chunkSize+x] = int32(math32.Round((raw + s.bias) * s.amplitude))
		}
	}
	return newHeightmap(s.chunkSize, heights)
}

// HeightmapFromImage resamples a grayscale image to a side×side tile with a
// bilinear filter and converts luminance to heights with the same formula as
// the noise path: luminance is remapped to [-1, 1], lifted by bias and
// scaled by amplitude.
func HeightmapFromImage(img image.Image, side int32, amplitude, bias float32) (*Heightmap, error) {
	if side <= 0 {
		return nil, fmt.Errorf("world: heightmap side %d is not positive", side)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("world: heightmap image is empty")
	}
	dst := image.NewGray16(image.Rect(0, 0, int(side), int(side)))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	heights := make([]int32, side*side)
	for y := int32(0); y < side; y++ {
		for x := int32(0); x < side; x++ {
			lum := float32(dst.Gray16At(int(x), int(y)).Y)/0xffff*2 - 1
			heights[y*side+x] = int32(math32.Round((lum + bias) * amplitude))
		}
	}
	return newHeightmap(side, heights), nil
}
