// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/voxray/voxray"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// testFrameContext builds a small frame snapshot: a uniform stone tree and
// two meshlets in front of the camera.
func testFrameContext(t *testing.T) *voxray.FrameContext {
	t.Helper()
	tree, err := voxray.NewUniformSvo(64, voxray.MaterialStone)
	if err != nil {
		t.Fatalf("NewUniformSvo failed: %v", err)
	}
	camera := voxray.NewCamera(mgl32.Vec3{-10, 32, 32}, 0, 0, mgl32.Vec2{640, 480}, 0.1, 1000)
	g := voxray.NewGlobal(camera, voxray.VoxelParams{
		RootIndex: tree.Root,
		RootSide:  tree.Side,
		ChunkSize: 64,
	})
	return &voxray.FrameContext{
		Global: g,
		Nodes:  tree.Nodes,
		Meshlets: []voxray.VoxelMeshlet{
			{VertexCount: 4, TriangleCount: 2, BoundSize: [3]uint8{63, 63, 63}},
			{VertexCount: 8, TriangleCount: 4, Chunk: voxray.IV3(1, 0, 0), BoundSize: [3]uint8{63, 63, 63}},
		},
	}
}

func TestDispatcherInitClose(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d := NewDispatcher(device, queue)
	if err := d.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	for st := stage(0); st < stageCount; st++ {
		if d.pipelines[st] == nil {
			t.Errorf("stage %s has no pipeline after Init", st)
		}
		if d.shaderModules[st] == nil {
			t.Errorf("stage %s has no shader module after Init", st)
		}
	}

	// Repeated Init is a no-op.
	if err := d.Init(); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}

	d.Close()
	if d.initialized {
		t.Error("dispatcher still marked initialized after Close")
	}
	for st := stage(0); st < stageCount; st++ {
		if d.pipelines[st] != nil {
			t.Errorf("stage %s pipeline survived Close", st)
		}
	}

	// A closed dispatcher can be brought back up.
	if err := d.Init(); err != nil {
		t.Fatalf("re-Init after Close failed: %v", err)
	}
	d.Close()
}

func TestDispatcherRequiresInit(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d := NewDispatcher(device, queue)
	fc := testFrameContext(t)

	if _, err := d.CullMeshlets(context.Background(), fc); err == nil {
		t.Error("CullMeshlets before Init did not error")
	}
	if _, err := d.TraceRays(context.Background(), fc, []Ray{{Dir: mgl32.Vec3{1, 0, 0}}}); err == nil {
		t.Error("TraceRays before Init did not error")
	}
}

func TestCullMeshletsNoop(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d := NewDispatcher(device, queue)
	if err := d.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Close()

	fc := testFrameContext(t)
	visible, err := d.CullMeshlets(context.Background(), fc)
	if err != nil {
		t.Fatalf("CullMeshlets failed: %v", err)
	}
	// The noop backend does not execute shaders, so the readback is the
	// zero-initialized buffer: a zero survivor count.
	if len(visible) != 0 {
		t.Errorf("noop cull returned %d indices, want 0", len(visible))
	}
}

func TestCullMeshletsEmptyTable(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d := NewDispatcher(device, queue)
	if err := d.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Close()

	fc := testFrameContext(t)
	fc.Meshlets = nil
	visible, err := d.CullMeshlets(context.Background(), fc)
	if err != nil {
		t.Fatalf("CullMeshlets with empty table failed: %v", err)
	}
	if visible == nil || len(visible) != 0 {
		t.Errorf("empty table returned %v, want empty list", visible)
	}
}

func TestTraceRaysNoop(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d := NewDispatcher(device, queue)
	if err := d.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Close()

	fc := testFrameContext(t)
	rays := []Ray{
		{Origin: mgl32.Vec3{-10, 32, 32}, Dir: mgl32.Vec3{1, 0, 0}},
		{Origin: mgl32.Vec3{32, 32, 100}, Dir: mgl32.Vec3{0, 0, -1}},
		{Origin: mgl32.Vec3{32, -10, 32}, Dir: mgl32.Vec3{0, 1, 0}},
	}
	results, err := d.TraceRays(context.Background(), fc, rays)
	if err != nil {
		t.Fatalf("TraceRays failed: %v", err)
	}
	if len(results) != len(rays) {
		t.Fatalf("got %d results for %d rays", len(results), len(rays))
	}
	// Zero readback decodes to fresh misses.
	for i, r := range results {
		if r.Status != voxray.TraceMiss || r.Steps != 0 {
			t.Errorf("ray %d decoded as %+v, want a zero miss", i, r)
		}
	}
}

func TestTraceRaysEmpty(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d := NewDispatcher(device, queue)
	if err := d.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Close()

	results, err := d.TraceRays(context.Background(), testFrameContext(t), nil)
	if err != nil {
		t.Fatalf("TraceRays with no rays failed: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("no rays returned %v, want empty list", results)
	}
}

func TestDispatcherCancelledContext(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	d := NewDispatcher(device, queue)
	if err := d.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.CullMeshlets(ctx, testFrameContext(t)); err == nil {
		t.Error("CullMeshlets with cancelled context did not error")
	}
}

func TestStageString(t *testing.T) {
	if got := stageCull.String(); got != "voxel_cull" {
		t.Errorf("stageCull.String() = %q", got)
	}
	if got := stageTrace.String(); got != "voxel_trace" {
		t.Errorf("stageTrace.String() = %q", got)
	}
	if got := stage(99).String(); got != "unknown(99)" {
		t.Errorf("stage(99).String() = %q", got)
	}
}

type fakeProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p *fakeProvider) HalDevice() any { return p.device }
func (p *fakeProvider) HalQueue() any  { return p.queue }

type badTypeProvider struct{}

func (badTypeProvider) HalDevice() any { return 42 }
func (badTypeProvider) HalQueue() any  { return "queue" }

func TestFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	gotDev, gotQueue, err := FromProvider(&fakeProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("FromProvider failed: %v", err)
	}
	if gotDev != device {
		t.Error("device handle not passed through")
	}
	if gotQueue != queue {
		t.Error("queue handle not passed through")
	}

	if _, _, err := FromProvider(struct{}{}); err == nil {
		t.Error("provider without HAL accessors did not error")
	}
	if _, _, err := FromProvider(badTypeProvider{}); err == nil {
		t.Error("provider with wrong handle types did not error")
	}
}

// hostProvider is a typed gpucontext host exposing the HAL accessors on the
// provider itself.
type hostProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p *hostProvider) Device() gpucontext.Device             { return nil }
func (p *hostProvider) Queue() gpucontext.Queue               { return nil }
func (p *hostProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *hostProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (p *hostProvider) HalDevice() any                        { return p.device }
func (p *hostProvider) HalQueue() any                         { return p.queue }

// deviceHandle carries the HAL accessors on the device, for hosts that
// delegate instead of exposing them on the provider.
type deviceHandle struct {
	device hal.Device
	queue  hal.Queue
}

func (d *deviceHandle) Poll(wait bool) {}
func (d *deviceHandle) Destroy()       {}
func (d *deviceHandle) HalDevice() any { return d.device }
func (d *deviceHandle) HalQueue() any  { return d.queue }

type delegatingProvider struct {
	handle *deviceHandle
}

func (p *delegatingProvider) Device() gpucontext.Device             { return p.handle }
func (p *delegatingProvider) Queue() gpucontext.Queue               { return nil }
func (p *delegatingProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *delegatingProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

type bareProvider struct{}

func (bareProvider) Device() gpucontext.Device             { return nil }
func (bareProvider) Queue() gpucontext.Queue               { return nil }
func (bareProvider) Adapter() gpucontext.Adapter           { return nil }
func (bareProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

func TestFromDeviceProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	gotDev, gotQueue, err := FromDeviceProvider(&hostProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("FromDeviceProvider failed: %v", err)
	}
	if gotDev != device || gotQueue != queue {
		t.Error("handles not passed through from the provider")
	}

	gotDev, gotQueue, err = FromDeviceProvider(&delegatingProvider{
		handle: &deviceHandle{device: device, queue: queue},
	})
	if err != nil {
		t.Fatalf("FromDeviceProvider via device handle failed: %v", err)
	}
	if gotDev != device || gotQueue != queue {
		t.Error("handles not passed through from the device handle")
	}

	if _, _, err := FromDeviceProvider(nil); err == nil {
		t.Error("nil provider did not error")
	}
	if _, _, err := FromDeviceProvider(bareProvider{}); err == nil {
		t.Error("provider without HAL accessors anywhere did not error")
	}
}
