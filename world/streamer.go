// Copyright 2026 The voxray Authors
// SPDX-License-Identifier: BSD-3-Clause

package world

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxray/voxray"
	"github.com/voxray/voxray/internal/cache"
	"github.com/voxray/voxray/mesh"
)

// Streamer loads the world around a moving camera. Worker goroutines pull
// chunks from the priority tracker, build the 3x3x3 neighborhood of chunk
// octrees through the caches, mesh and cluster the center chunk, and hand
// the finished batch and tree to the sink. Workers park on a condition
// variable when everything within render distance is loaded and wake on
// camera movement.
type Streamer struct {
	shared    *streamerShared
	workers   int
	chunkSize atomic.Int32
	wg        sync.WaitGroup
}

type streamerShared struct {
	cameraMu sync.Mutex
	camera   voxray.IVec3

	mu    sync.Mutex
	wake  *sync.Cond
	idle  *sync.Cond
	state streamerState
}

type streamerState struct {
	priority   *ChunkPriority
	source     *HeightmapSource
	svos       *cache.Sharded[svoKey, *voxray.Svo]
	heightmaps *cache.Sharded[columnKey, *Heightmap]
	sink       ChunkSink
	cfg        Config
	generation uint64
	waiting    int
	shutdown   bool
}

// Cache keys carry the config generation: entries built for a superseded
// config stay in the cache but can never match a fresh lookup, so a worker
// finishing around a config change cannot poison the new world.
type svoKey struct {
	generation uint64
	chunk      voxray.IVec3
}

type columnKey struct {
	generation uint64
	column     Column
}

func hashSvoKey(k svoKey) uint64 {
	return fnvWords(k.generation, uint64(uint32(k.chunk.X)), uint64(uint32(k.chunk.Y)), uint64(uint32(k.chunk.Z)))
}

func hashColumnKey(k columnKey) uint64 {
	return fnvWords(k.generation, uint64(uint32(k.column.X)), uint64(uint32(k.column.Y)))
}

func fnvWords(words ...uint64) uint64 {
	h := uint64(14695981039346656037)
	for _, w := range words {
		for i := 0; i < 8; i++ {
			h ^= w & 0xff
			h *= 1099511628211
			w >>= 8
		}
	}
	return h
}

// StreamerOption configures a Streamer.
type StreamerOption func(*streamerOptions)

type streamerOptions struct {
	workers       int
	cacheCapacity int
}

func defaultStreamerOptions() streamerOptions {
	return streamerOptions{workers: runtime.GOMAXPROCS(0), cacheCapacity: 64}
}

// WithWorkers sets the number of streaming workers. Values below 1 keep
// the default of GOMAXPROCS.
func WithWorkers(n int) StreamerOption {
	return func(o *streamerOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCacheCapacity sets the per-shard entry capacity of the chunk tree
// and heightmap caches. Zero or negative disables eviction.
func WithCacheCapacity(entries int) StreamerOption {
	return func(o *streamerOptions) {
		o.cacheCapacity = entries
	}
}

// NewStreamer validates the config, spawns the workers and starts loading
// around the camera position immediately.
func NewStreamer(cfg Config, camera mgl32.Vec3, sink ChunkSink, opts ...StreamerOption) (*Streamer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultStreamerOptions()
	for _, opt := range opts {
		opt(&o)
	}

	chunk := ChunkFromPosition(camera, cfg.ChunkSize)
	sh := &streamerShared{camera: chunk}
	sh.wake = sync.NewCond(&sh.mu)
	sh.idle = sync.NewCond(&sh.mu)
	sh.state = streamerState{
		priority:   NewChunkPriority(chunk, cfg.horizontalChunks(), cfg.verticalChunks()),
		source:     NewHeightmapSource(cfg),
		svos:       cache.NewSharded[svoKey, *voxray.Svo](o.cacheCapacity, hashSvoKey),
		heightmaps: cache.NewSharded[columnKey, *Heightmap](o.cacheCapacity, hashColumnKey),
		sink:       sink,
		cfg:        cfg,
	}

	s := &Streamer{shared: sh, workers: o.workers}
	s.chunkSize.Store(cfg.ChunkSize)
	s.wg.Add(o.workers)
	for range o.workers {
		go s.worker()
	}
	voxray.Logger().Debug("streamer started", "workers", o.workers, "camera_chunk", chunk)
	return s, nil
}

func (s *Streamer) worker() {
	defer s.wg.Done()
	sh := s.shared
	sh.mu.Lock()
	for {
		if sh.state.shutdown {
			sh.mu.Unlock()
			return
		}

		cfg := sh.state.cfg
		generation := sh.state.generation
		source := sh.state.source
		svos := sh.state.svos
		heightmaps := sh.state.heightmaps

		sh.cameraMu.Lock()
		camera := sh.camera
		sh.cameraMu.Unlock()
		sh.state.priority.UpdateCamera(camera)

		chunk, ok := sh.state.priority.Select()
		if !ok {
			sh.state.waiting++
			if sh.state.waiting == s.workers {
				sh.idle.Broadcast()
			}
			sh.wake.Wait()
			sh.state.waiting--
			continue
		}
		sh.mu.Unlock()

		batch, tree, err := buildChunkMesh(chunk, generation, cfg, source, svos, heightmaps)

		sh.mu.Lock()
		if err != nil {
			voxray.Logger().Warn("chunk mesh failed", "chunk", chunk, "err", err)
			continue
		}
		if generation != sh.state.generation {
			continue
		}
		sh.state.sink.Upload(batch, tree)
	}
}

// buildChunkMesh runs outside the streamer lock; the caches carry their own
// locking. Returns the clustered mesh together with the center chunk's
// octree for the sink.
func buildChunkMesh(
	chunk voxray.IVec3,
	generation uint64,
	cfg Config,
	source *HeightmapSource,
	svos *cache.Sharded[svoKey, *voxray.Svo],
	heightmaps *cache.Sharded[columnKey, *Heightmap],
) (*mesh.ChunkMesh, *voxray.Svo, error) {
	var svoGrid [27]*voxray.Svo
	for oz := int32(-1); oz <= 1; oz++ {
		for oy := int32(-1); oy <= 1; oy++ {
			for ox := int32(-1); ox <= 1; ox++ {
				neighbor := chunk.Add(voxray.IV3(ox, oy, oz))
				svo, err := chunkSvo(neighbor, generation, cfg, source, svos, heightmaps)
				if err != nil {
					return nil, nil, err
				}
				svoGrid[9*(oz+1)+3*(oy+1)+(ox+1)] = svo
			}
		}
	}
	center := svoGrid[13]
	n, err := mesh.NewNeighborhood(svoGrid, cfg.ChunkSize)
	if err != nil {
		return nil, nil, err
	}
	local, err := mesh.Mesh(n, cfg.Algorithm())
	if err != nil {
		return nil, nil, err
	}
	batch, err := local.Cluster(chunk)
	if err != nil {
		return nil, nil, err
	}
	return batch, center, nil
}

func chunkSvo(
	chunk voxray.IVec3,
	generation uint64,
	cfg Config,
	source *HeightmapSource,
	svos *cache.Sharded[svoKey, *voxray.Svo],
	heightmaps *cache.Sharded[columnKey, *Heightmap],
) (*voxray.Svo, error) {
	key := svoKey{generation: generation, chunk: chunk}
	if svo, ok := svos.Get(key); ok {
		return svo, nil
	}
	column := ColumnOf(chunk)
	hm := heightmaps.GetOrCreate(columnKey{generation: generation, column: column}, func() *Heightmap {
		return source.Generate(column)
	})
	svo, err := GenerateChunk(chunk, hm, cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	svos.Set(key, svo)
	return svo, nil
}

// UpdateCamera moves the camera to a world-space position and wakes the
// workers when it crossed into another chunk.
func (s *Streamer) UpdateCamera(position mgl32.Vec3) {
	chunk := ChunkFromPosition(position, s.chunkSize.Load())
	sh := s.shared
	sh.cameraMu.Lock()
	changed := chunk != sh.camera
	sh.camera = chunk
	sh.cameraMu.Unlock()
	if changed {
		sh.wake.Broadcast()
	}
}

// UpdateConfig swaps the world parameters. The priority state, caches and
// sink reset, the config generation advances so in-flight results are
// discarded, and all workers wake to regrow the world from the camera.
func (s *Streamer) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	sh := s.shared
	sh.cameraMu.Lock()
	camera := sh.camera
	sh.cameraMu.Unlock()

	sh.mu.Lock()
	sh.state.priority.Clear(camera, cfg.horizontalChunks(), cfg.verticalChunks())
	sh.state.source = NewHeightmapSource(cfg)
	sh.state.svos.Clear()
	sh.state.heightmaps.Clear()
	sh.state.sink.Clear()
	sh.state.cfg = cfg
	sh.state.generation++
	sh.mu.Unlock()

	s.chunkSize.Store(cfg.ChunkSize)
	sh.wake.Broadcast()
	voxray.Logger().Info("streamer config updated", "seed", cfg.Seed, "chunk_size", cfg.ChunkSize)
	return nil
}

// WaitIdle blocks until every chunk within render distance is loaded and
// all workers are parked, the streamer closes, or ctx is done.
func (s *Streamer) WaitIdle(ctx context.Context) error {
	sh := s.shared
	stop := context.AfterFunc(ctx, func() {
		sh.mu.Lock()
		sh.idle.Broadcast()
		sh.mu.Unlock()
	})
	defer stop()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	for sh.state.waiting < s.workers && !sh.state.shutdown && ctx.Err() == nil {
		sh.idle.Wait()
	}
	return ctx.Err()
}

// CacheStats reports hit and eviction counters for the chunk tree and
// heightmap caches.
func (s *Streamer) CacheStats() (svos, heightmaps cache.Stats) {
	sh := s.shared
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.state.svos.Stats(), sh.state.heightmaps.Stats()
}

// Close stops the workers and waits for them to exit. In-flight chunks are
// finished and uploaded before their workers park for good.
func (s *Streamer) Close() {
	sh := s.shared
	sh.mu.Lock()
	sh.state.shutdown = true
	sh.mu.Unlock()
	sh.wake.Broadcast()
	sh.idle.Broadcast()
	s.wg.Wait()
}

// ChunkFromPosition returns the chunk containing a world-space position,
// flooring each component so negative coordinates round toward minus
// infinity.
func ChunkFromPosition(position mgl32.Vec3, chunkSize int32) voxray.IVec3 {
	size := float32(chunkSize)
	return voxray.IV3(
		int32(math32.Floor(position.X()/size)),
		int32(math32.Floor(position.Y()/size)),
		int32(math32.Floor(position.Z()/size)),
	)
}
