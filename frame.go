// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraFOV is the vertical field of view of the perspective projection.
const CameraFOV = math.Pi / 4

// Camera is the per-frame camera snapshot. The world is Z-up; Direction is
// the unit forward vector derived from yaw and pitch.
type Camera struct {
	View        mgl32.Mat4
	Proj        mgl32.Mat4
	InverseView mgl32.Mat4
	InverseProj mgl32.Mat4
	Resolution  mgl32.Vec2
	Position    mgl32.Vec3
	Direction   mgl32.Vec3
	DepthNear   float32
	DepthFar    float32
}

// NewCamera builds the camera snapshot for an eye position and a yaw/pitch
// orientation. Yaw rotates around +Z with 0 facing +X; pitch raises the view
// toward +Z. Resolution is the target size in pixels and fixes the aspect
// ratio. The projection's Y axis is negated to match the renderer's
// clip-space convention.
func NewCamera(position mgl32.Vec3, yaw, pitch float32, resolution mgl32.Vec2, depthNear, depthFar float32) Camera {
	dir := mgl32.Vec3{
		math32.Cos(pitch) * math32.Cos(yaw),
		math32.Cos(pitch) * math32.Sin(yaw),
		math32.Sin(pitch),
	}
	view := mgl32.LookAtV(position, position.Add(dir), mgl32.Vec3{0, 0, 1})
	proj := mgl32.Perspective(CameraFOV, resolution.X()/resolution.Y(), depthNear, depthFar)
	proj[5] = -proj[5]
	return Camera{
		View:        view,
		Proj:        proj,
		InverseView: view.Inv(),
		InverseProj: proj.Inv(),
		Resolution:  resolution,
		Position:    position,
		Direction:   dir,
		DepthNear:   depthNear,
		DepthFar:    depthFar,
	}
}

// ViewProj returns the combined world-to-clip transform.
func (c *Camera) ViewProj() mgl32.Mat4 {
	return c.Proj.Mul4(c.View)
}

// Light is the sun snapshot: a point light at the sun's world position with
// separate ambient and diffuse strengths.
type Light struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Ambient  float32
	Diffuse  float32
}

// DefaultLight returns a white sun directly overhead.
func DefaultLight() Light {
	return Light{
		Position: mgl32.Vec3{0, 0, 4000},
		Color:    mgl32.Vec3{1, 1, 1},
		Ambient:  0.1,
		Diffuse:  1,
	}
}

// Atmosphere holds the scattering parameters consumed by the sky pass.
// The in-scattering integral samples ScatterPoints positions along the view
// ray and OpticalDepthPoints along each sun ray. The sun position lives in
// the frame's Light.
type Atmosphere struct {
	Enabled            bool
	ScatterPoints      int32
	OpticalDepthPoints int32
	DensityFalloff     float32
	PlanetRadius       float32
	Radius             float32
	Center             mgl32.Vec3
	Wavelengths        mgl32.Vec3
	ScatteringStrength float32
	HenyeyGreensteinG  float32
}

// DefaultAtmosphere returns the scattering setup the renderer ships with.
// The shell radius is 1.3 planet radii.
func DefaultAtmosphere() Atmosphere {
	return Atmosphere{
		Enabled:            true,
		ScatterPoints:      10,
		OpticalDepthPoints: 10,
		DensityFalloff:     6,
		PlanetRadius:       10000,
		Radius:             13000,
		Center:             mgl32.Vec3{0, 0, -10000},
		Wavelengths:        mgl32.Vec3{700, 530, 440},
		ScatteringStrength: 0.01,
		HenyeyGreensteinG:  0,
	}
}

// VoxelParams locates the frame's voxel index: the arena index of the root
// node, the side of the cube it covers, the world voxel coordinate of its
// origin corner, and the chunk size meshlet coordinates are scaled by.
type VoxelParams struct {
	RootIndex uint32
	RootSide  int32
	RootBase  IVec3
	ChunkSize int32
}

// Global is the immutable per-frame state snapshot: camera, light,
// atmosphere, voxel index location, and the material table. Built once by
// the frame orchestrator and read-only for the duration of the frame.
type Global struct {
	Camera     Camera
	Light      Light
	Atmosphere Atmosphere
	Voxels     VoxelParams
	Materials  [MaterialTableLen]MaterialDesc
}

// NewGlobal assembles the frame snapshot from the camera and the voxel
// index location. Light, atmosphere and the material table default to
// DefaultLight, DefaultAtmosphere and DefaultMaterials and are overridable
// through options. The atmosphere's planet is re-anchored directly under
// the camera, surface at z = 0.
func NewGlobal(camera Camera, voxels VoxelParams, opts ...FrameOption) *Global {
	o := defaultFrameOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.atmosphere.Center = mgl32.Vec3{
		camera.Position.X(),
		camera.Position.Y(),
		-o.atmosphere.PlanetRadius,
	}
	return &Global{
		Camera:     camera,
		Light:      o.light,
		Atmosphere: o.atmosphere,
		Voxels:     voxels,
		Materials:  o.materials,
	}
}

// FrameContext bundles the global snapshot with the flat buffers a frame's
// traversal and culling read. All slices are read-only while any walk or
// cull over them runs.
type FrameContext struct {
	Global    *Global
	Nodes     []SvoNode
	Meshlets  []VoxelMeshlet
	Vertices  []VoxelVertex
	Triangles []VoxelTriangle
}

// RootSvo returns the frame's voxel index as a traversable tree view.
func (fc *FrameContext) RootSvo() *Svo {
	return &Svo{
		Nodes: fc.Nodes,
		Root:  fc.Global.Voxels.RootIndex,
		Side:  fc.Global.Voxels.RootSide,
	}
}

// TraceWorldRay walks a world-space ray through the frame's voxel index and
// reports the result with the hit voxel translated back to world
// coordinates.
func (fc *FrameContext) TraceWorldRay(origin, dir mgl32.Vec3) (TraceResult, error) {
	base := fc.Global.Voxels.RootBase
	res, err := fc.RootSvo().TraceTree(origin.Sub(base.Vec3()), dir)
	if err != nil {
		return TraceResult{}, err
	}
	res.Voxel = res.Voxel.Add(base)
	return res, nil
}
