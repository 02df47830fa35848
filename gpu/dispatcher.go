// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// dispatcher.go owns the GPU side of the two frame stages: pipeline setup
// for the culling and traversal shaders, per-call buffer upload, compute
// pass encoding, and fenced readback of the results.

package gpu

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/voxray/voxray"
)

//go:embed shaders/voxel_cull.wgsl
var shaderCullSource string

//go:embed shaders/voxel_trace.wgsl
var shaderTraceSource string

const (
	// dispatchWG is the workgroup size of both shaders. It matches the
	// @workgroup_size attribute in the WGSL sources and the group width
	// the CPU culling stage compacts over.
	dispatchWG = 32

	// fenceTimeout is the maximum time to wait for submitted GPU work.
	fenceTimeout = 5 * time.Second
)

// stage identifies one of the two compute stages.
type stage int

const (
	// stageCull runs one lane per meshlet and compacts the survivor
	// indices with a workgroup prefix sum.
	stageCull stage = iota

	// stageTrace runs one lane per ray and walks the octree with the
	// flat DDA.
	stageTrace

	stageCount
)

func (s stage) String() string {
	switch s {
	case stageCull:
		return "voxel_cull"
	case stageTrace:
		return "voxel_trace"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Dispatcher holds the compiled pipelines for the culling and traversal
// shaders and runs them against frame snapshots. The device and queue are
// borrowed from the host via [FromProvider] and stay owned by it; Close
// releases only the pipeline objects.
//
// A Dispatcher is safe for concurrent use once initialized.
type Dispatcher struct {
	mu sync.RWMutex

	device hal.Device
	queue  hal.Queue

	pipelines       [stageCount]hal.ComputePipeline
	pipelineLayouts [stageCount]hal.PipelineLayout
	bgLayouts       [stageCount]hal.BindGroupLayout
	shaderModules   [stageCount]hal.ShaderModule
	shaderSources   [stageCount]string

	initialized bool
}

// NewDispatcher creates a dispatcher on a borrowed device and queue.
// Init must be called before the stage methods.
func NewDispatcher(device hal.Device, queue hal.Queue) *Dispatcher {
	d := &Dispatcher{
		device: device,
		queue:  queue,
	}
	d.shaderSources = [stageCount]string{
		stageCull:  shaderCullSource,
		stageTrace: shaderTraceSource,
	}
	return d
}

// stageBindGroupLayoutEntries returns the bind group layout for a stage.
// The entries match the @group(0) @binding(N) declarations in the
// corresponding WGSL source exactly.
func stageBindGroupLayoutEntries(st stage) []gputypes.BindGroupLayoutEntry {
	configUniform := gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
	storageRO := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	storageRW := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}

	switch st {
	case stageCull:
		// @binding(0) uniform frame
		// @binding(1) storage(read) meshlets
		// @binding(2) storage(read_write) visible
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRW(2),
		}
	case stageTrace:
		// @binding(0) uniform frame
		// @binding(1) storage(read) nodes
		// @binding(2) storage(read) rays
		// @binding(3) storage(read_write) hits
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRO(2), storageRW(3),
		}
	default:
		return nil
	}
}

// Init compiles both shaders and creates the compute pipelines. It is safe
// to call more than once; repeated calls are no-ops. The WGSL source is
// handed to the backend directly and recompiled to SPIR-V through the
// shader compiler when the backend rejects it.
func (d *Dispatcher) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	for st := stage(0); st < stageCount; st++ {
		src := d.shaderSources[st]
		if src == "" {
			return fmt.Errorf("gpu: missing shader source for stage %s", st)
		}

		module, err := d.createShaderModule(st.String(), src)
		if err != nil {
			d.destroyPartialInit(st)
			return err
		}
		d.shaderModules[st] = module

		entries := stageBindGroupLayoutEntries(st)
		bgLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   st.String() + "_bgl",
			Entries: entries,
		})
		if err != nil {
			d.destroyPartialInit(st + 1)
			return fmt.Errorf("gpu: create bind group layout for %s: %w", st, err)
		}
		d.bgLayouts[st] = bgLayout

		pipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            st.String() + "_pl",
			BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
		})
		if err != nil {
			d.destroyPartialInit(st + 1)
			return fmt.Errorf("gpu: create pipeline layout for %s: %w", st, err)
		}
		d.pipelineLayouts[st] = pipelineLayout

		pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  st.String(),
			Layout: pipelineLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: "main",
			},
		})
		if err != nil {
			d.destroyPartialInit(st + 1)
			return fmt.Errorf("gpu: create compute pipeline for %s: %w", st, err)
		}
		d.pipelines[st] = pipeline

		voxray.Logger().Debug("compute pipeline created",
			"stage", st.String(),
			"bindings", len(entries),
			"shader_bytes", len(src))
	}

	voxray.Logger().Info("gpu dispatcher initialized", "stages", int(stageCount))
	d.initialized = true
	return nil
}

// createShaderModule hands the WGSL source to the backend, retrying with a
// SPIR-V translation when the backend does not accept WGSL.
func (d *Dispatcher) createShaderModule(label, source string) (hal.ShaderModule, error) {
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if err == nil {
		return module, nil
	}
	words, spvErr := compileSPIRV(source)
	if spvErr != nil {
		return nil, fmt.Errorf("gpu: create shader module %s: %w (spir-v fallback failed: %v)", label, err, spvErr)
	}
	module, spvErr = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if spvErr != nil {
		return nil, fmt.Errorf("gpu: create shader module %s from spir-v: %w", label, spvErr)
	}
	return module, nil
}

// destroyPartialInit cleans up stages [0, upTo) after a failed Init so a
// partial initialization leaks nothing.
func (d *Dispatcher) destroyPartialInit(upTo stage) {
	for st := stage(0); st < upTo; st++ {
		if d.pipelines[st] != nil {
			d.device.DestroyComputePipeline(d.pipelines[st])
			d.pipelines[st] = nil
		}
		if d.pipelineLayouts[st] != nil {
			d.device.DestroyPipelineLayout(d.pipelineLayouts[st])
			d.pipelineLayouts[st] = nil
		}
		if d.bgLayouts[st] != nil {
			d.device.DestroyBindGroupLayout(d.bgLayouts[st])
			d.bgLayouts[st] = nil
		}
		if d.shaderModules[st] != nil {
			d.device.DestroyShaderModule(d.shaderModules[st])
			d.shaderModules[st] = nil
		}
	}
}

// Close releases the pipelines and layouts. The borrowed device and queue
// are left untouched. After Close the dispatcher must be re-initialized
// before use.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyPartialInit(stageCount)
	d.initialized = false
}

// frameBuffers holds the per-call GPU buffers of one stage run.
type frameBuffers struct {
	global   hal.Buffer
	meshlets hal.Buffer
	visible  hal.Buffer
	nodes    hal.Buffer
	rays     hal.Buffer
	hits     hal.Buffer
}

// bufSpec describes one buffer allocation: target field, contents to
// upload, and whether the buffer must be zero-filled first (atomics).
type bufSpec struct {
	target   *hal.Buffer
	label    string
	size     uint64
	usage    gputypes.BufferUsage
	data     []byte
	zeroInit bool
}

// allocateBuffers creates and fills the buffers in specs, tearing down on
// the first failure.
func (d *Dispatcher) allocateBuffers(bufs *frameBuffers, specs []bufSpec) error {
	for _, s := range specs {
		size := s.size
		if size == 0 {
			size = uint64(len(s.data))
		}
		// The HAL rejects empty buffers; bindings stay valid with a
		// minimal allocation.
		if size < 4 {
			size = 4
		}
		buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: s.label,
			Size:  size,
			Usage: s.usage,
		})
		if err != nil {
			d.destroyBuffers(bufs)
			return fmt.Errorf("gpu: create %s buffer: %w", s.label, err)
		}
		*s.target = buf

		if s.zeroInit {
			d.queue.WriteBuffer(buf, 0, make([]byte, size))
		}
		if len(s.data) > 0 {
			d.queue.WriteBuffer(buf, 0, s.data)
		}
	}
	return nil
}

// destroyBuffers releases every allocated buffer in bufs.
func (d *Dispatcher) destroyBuffers(bufs *frameBuffers) {
	for _, b := range []hal.Buffer{
		bufs.global, bufs.meshlets, bufs.visible, bufs.nodes, bufs.rays, bufs.hits,
	} {
		if b != nil {
			d.device.DestroyBuffer(b)
		}
	}
	*bufs = frameBuffers{}
}

// dispatchResources tracks per-call GPU objects for cleanup.
type dispatchResources struct {
	device    hal.Device
	bindGroup hal.BindGroup
	cmdBuf    hal.CommandBuffer
	fence     hal.Fence
}

func (r *dispatchResources) cleanup() {
	if r.fence != nil {
		r.device.DestroyFence(r.fence)
	}
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
	}
	if r.bindGroup != nil {
		r.device.DestroyBindGroup(r.bindGroup)
	}
}

// runStage encodes one compute pass over elements lanes, copies the output
// buffer into a staging buffer, submits, waits on the fence, and returns
// the staging contents. Cancellation is honored between the upload and
// submit phases; submitted work is always waited for.
func (d *Dispatcher) runStage(
	ctx context.Context,
	st stage,
	entries []gputypes.BindGroupEntry,
	elements uint32,
	out hal.Buffer,
	outSize uint64,
) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &dispatchResources{device: d.device}
	defer res.cleanup()

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   st.String() + "_bg",
		Layout:  d.bgLayouts[st],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group for %s: %w", st, err)
	}
	res.bindGroup = bg

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: st.String() + "_staging",
		Size:  outSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create staging buffer for %s: %w", st, err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: st.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder for %s: %w", st, err)
	}
	if err := encoder.BeginEncoding(st.String()); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding for %s: %w", st, err)
	}

	wgCount := (elements + dispatchWG - 1) / dispatchWG
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: st.String(),
	})
	pass.SetPipeline(d.pipelines[st])
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(wgCount, 1, 1)
	pass.End()

	encoder.CopyBufferToBuffer(out, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: outSize},
	})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end encoding for %s: %w", st, err)
	}
	res.cmdBuf = cmdBuf

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create fence for %s: %w", st, err)
	}
	res.fence = fence

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("gpu: submit %s: %w", st, err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return nil, fmt.Errorf("gpu: wait for %s: %w", st, err)
	}
	if !ok {
		return nil, fmt.Errorf("gpu: %s timed out after %v", st, fenceTimeout)
	}

	data := make([]byte, outSize)
	if err := d.queue.ReadBuffer(staging, 0, data); err != nil {
		return nil, fmt.Errorf("gpu: read back %s output: %w", st, err)
	}

	voxray.Logger().Debug("compute stage dispatched",
		"stage", st.String(),
		"elements", elements,
		"workgroups", wgCount)
	return data, nil
}

// CullMeshlets runs the culling stage over the frame's meshlet table and
// returns the indices of surviving meshlets in ascending order.
//
// The shader reserves each group's output span with an atomic, so the raw
// buffer order depends on workgroup scheduling; the list is sorted before
// return, which restores the order the CPU stage produces.
func (d *Dispatcher) CullMeshlets(ctx context.Context, fc *voxray.FrameContext) ([]uint32, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil, fmt.Errorf("gpu: dispatcher not initialized, call Init first")
	}
	if len(fc.Meshlets) == 0 {
		return []uint32{}, nil
	}

	meshletCount := uint32(len(fc.Meshlets))
	visibleSize := uint64(visibleHeaderSize) + uint64(meshletCount)*4

	bufs := &frameBuffers{}
	specs := []bufSpec{
		{target: &bufs.global, label: "voxel_global", usage: uniformUsage,
			data: GlobalBytes(fc.Global, meshletCount)},
		{target: &bufs.meshlets, label: "voxel_meshlets", usage: storageUploadUsage,
			data: MeshletsBytes(fc.Meshlets)},
		{target: &bufs.visible, label: "voxel_visible", usage: storageReadbackUsage | gputypes.BufferUsageCopyDst,
			size: visibleSize, zeroInit: true},
	}
	if err := d.allocateBuffers(bufs, specs); err != nil {
		return nil, err
	}
	defer d.destroyBuffers(bufs)

	entries := []gputypes.BindGroupEntry{
		bufferEntry(0, bufs.global),
		bufferEntry(1, bufs.meshlets),
		bufferEntry(2, bufs.visible),
	}
	data, err := d.runStage(ctx, stageCull, entries, meshletCount, bufs.visible, visibleSize)
	if err != nil {
		return nil, err
	}
	visible, err := VisibleIndices(data)
	if err != nil {
		return nil, err
	}
	slices.Sort(visible)
	return visible, nil
}

// TraceRays walks the given world-space rays through the frame's voxel
// index on the GPU, one lane per ray, and returns one result per ray with
// hit voxels in world coordinates, matching TraceWorldRay on the flat
// walk's step counts.
func (d *Dispatcher) TraceRays(ctx context.Context, fc *voxray.FrameContext, rays []Ray) ([]voxray.TraceResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return nil, fmt.Errorf("gpu: dispatcher not initialized, call Init first")
	}
	if len(rays) == 0 {
		return []voxray.TraceResult{}, nil
	}

	rayCount := uint32(len(rays))
	hitsSize := uint64(rayCount) * HitByteSize

	bufs := &frameBuffers{}
	specs := []bufSpec{
		{target: &bufs.global, label: "voxel_global", usage: uniformUsage,
			data: GlobalBytes(fc.Global, uint32(len(fc.Meshlets)))},
		{target: &bufs.nodes, label: "voxel_nodes", usage: storageUploadUsage,
			data: NodesBytes(fc.Nodes)},
		{target: &bufs.rays, label: "voxel_rays", usage: storageUploadUsage,
			data: RaysBytes(rays)},
		{target: &bufs.hits, label: "voxel_hits", usage: storageReadbackUsage,
			size: hitsSize},
	}
	if err := d.allocateBuffers(bufs, specs); err != nil {
		return nil, err
	}
	defer d.destroyBuffers(bufs)

	entries := []gputypes.BindGroupEntry{
		bufferEntry(0, bufs.global),
		bufferEntry(1, bufs.nodes),
		bufferEntry(2, bufs.rays),
		bufferEntry(3, bufs.hits),
	}
	data, err := d.runStage(ctx, stageTrace, entries, rayCount, bufs.hits, hitsSize)
	if err != nil {
		return nil, err
	}
	return TraceResults(data)
}

// Buffer usage sets shared by both stages.
var (
	uniformUsage         = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	storageUploadUsage   = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	storageReadbackUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc
)

// bufferEntry binds a whole buffer at the given binding index.
func bufferEntry(binding uint32, buf hal.Buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.NativeHandle(),
			Offset: 0,
			Size:   0,
		},
	}
}
