// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu mirrors the culling and traversal kernels on the GPU.
//
// The CPU kernels in the root package remain the reference; this package
// runs the same two stages as WGSL compute shaders through the wgpu HAL
// and reads the results back over a fence. Both shaders consume the exact
// byte layouts defined in layout.go, so a frame uploaded here is the same
// sequence of bytes the CPU kernels walk in memory.
//
// The device is always borrowed from the host application through
// [FromProvider]; the package never creates an instance or adapter of its
// own.
//
// # Usage
//
//	device, queue, err := gpu.FromProvider(provider)
//	if err != nil {
//		return err
//	}
//	d := gpu.NewDispatcher(device, queue)
//	if err := d.Init(); err != nil {
//		return err
//	}
//	defer d.Close()
//
//	visible, err := d.CullMeshlets(ctx, fc)
//	hits, err := d.TraceRays(ctx, fc, rays)
package gpu
