// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package voxray

// FrameOption configures the Global snapshot during assembly.
//
// Example:
//
//	// Default light, atmosphere and materials
//	g := voxray.NewGlobal(camera, voxels)
//
//	// Night scene without a sky pass
//	g := voxray.NewGlobal(camera, voxels,
//		voxray.WithLight(moon),
//		voxray.WithAtmosphere(voxray.Atmosphere{}))
type FrameOption func(*frameOptions)

// frameOptions holds the overridable parts of a Global snapshot.
type frameOptions struct {
	light      Light
	atmosphere Atmosphere
	materials  [MaterialTableLen]MaterialDesc
}

// defaultFrameOptions returns the default frame options.
func defaultFrameOptions() frameOptions {
	return frameOptions{
		light:      DefaultLight(),
		atmosphere: DefaultAtmosphere(),
		materials:  DefaultMaterials(),
	}
}

// WithLight sets the sun snapshot for the frame.
func WithLight(l Light) FrameOption {
	return func(o *frameOptions) {
		o.light = l
	}
}

// WithAtmosphere sets the scattering parameters for the frame. A zero
// Atmosphere disables the sky pass.
func WithAtmosphere(a Atmosphere) FrameOption {
	return func(o *frameOptions) {
		o.atmosphere = a
	}
}

// WithMaterials replaces the material table for the frame. Slot 0 stays
// reserved for air and should be left zero.
func WithMaterials(m [MaterialTableLen]MaterialDesc) FrameOption {
	return func(o *frameOptions) {
		o.materials = m
	}
}
