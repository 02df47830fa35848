// Command voxraydemo streams procedural voxel terrain around a camera and
// ray traces one frame of it to a PNG.
package main

import (
	"context"
	"flag"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxray/voxray"
	"github.com/voxray/voxray/internal/parallel"
	"github.com/voxray/voxray/world"
)

func main() {
	var (
		width      = flag.Int("width", 800, "image width")
		height     = flag.Int("height", 600, "image height")
		output     = flag.String("output", "frame.png", "output file")
		configPath = flag.String("config", "", "world config YAML, built-in defaults when empty")
		yaw        = flag.Float64("yaw", 0.5, "camera yaw in radians, 0 facing +X")
		pitch      = flag.Float64("pitch", -0.4, "camera pitch in radians")
		timeout    = flag.Duration("timeout", 2*time.Minute, "world streaming deadline")
	)
	flag.Parse()

	cfg := world.DefaultConfig()
	if *configPath != "" {
		loaded, err := world.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Stream every chunk within render distance into the frame arenas.
	meshes := world.NewMeshArena()
	trees := world.NewNodeArena()
	eye := mgl32.Vec3{0, 0, (1 + cfg.HeightmapBias) * cfg.HeightmapAmplitude * 1.4}
	streamer, err := world.NewStreamer(cfg, eye, world.MultiSink(meshes, trees))
	if err != nil {
		log.Fatalf("Failed to start world streamer: %v", err)
	}
	defer streamer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	start := time.Now()
	if err := streamer.WaitIdle(ctx); err != nil {
		log.Fatalf("World loading did not finish: %v", err)
	}

	nodes, params, ok := trees.Snapshot()
	if !ok {
		log.Fatalf("World is empty after loading")
	}
	meshlets, vertices, triangles := meshes.Snapshot()
	log.Printf("Streamed %d chunks in %v: %d meshlets, %d vertices, %d triangles",
		trees.ChunkCount(), time.Since(start).Round(time.Millisecond),
		len(meshlets), len(vertices), len(triangles))

	resolution := mgl32.Vec2{float32(*width), float32(*height)}
	camera := voxray.NewCamera(eye, float32(*yaw), float32(*pitch), resolution, 0.1, 4000)
	fc := &voxray.FrameContext{
		Global:    voxray.NewGlobal(camera, params),
		Nodes:     nodes,
		Meshlets:  meshlets,
		Vertices:  vertices,
		Triangles: triangles,
	}

	visible := voxray.CullMeshlets(meshlets, fc.Global)
	log.Printf("Culling kept %d of %d meshlets", len(visible), len(meshlets))

	img := renderFrame(fc, *width, *height)

	if err := savePNG(*output, img); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Frame saved to %s (%dx%d)\n", *output, *width, *height)
}

// renderFrame traces one primary ray per pixel, sharded over the worker
// pool by row.
func renderFrame(fc *voxray.FrameContext, width, height int) *image.RGBA {
	cam := &fc.Global.Camera
	forward := cam.Direction
	right := forward.Cross(mgl32.Vec3{0, 0, 1}).Normalize()
	up := right.Cross(forward)
	tanHalf := math32.Tan(voxray.CameraFOV / 2)
	aspect := cam.Resolution.X() / cam.Resolution.Y()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	pool := parallel.NewWorkerPool(0)
	defer pool.Close()
	pool.For(height, func(py int) {
		v := (1 - 2*(float32(py)+0.5)/float32(height)) * tanHalf
		for px := 0; px < width; px++ {
			u := (2*(float32(px)+0.5)/float32(width) - 1) * tanHalf * aspect
			dir := forward.Add(right.Mul(u)).Add(up.Mul(v)).Normalize()
			img.SetRGBA(px, py, tracePixel(fc, cam.Position, dir))
		}
	})
	return img
}

// tracePixel walks one primary ray through the world tree and shades the
// hit voxel with the frame light. Misses fall through to the sky gradient.
func tracePixel(fc *voxray.FrameContext, origin, dir mgl32.Vec3) color.RGBA {
	res, err := fc.TraceWorldRay(origin, dir)
	if err != nil || res.Status != voxray.TraceHit {
		return skyColor(dir)
	}

	g := fc.Global
	mat := g.Materials[res.Material]
	normal := voxelNormal(fc, res.Voxel, dir)
	center := res.Voxel.Vec3().Add(mgl32.Vec3{0.5, 0.5, 0.5})
	toLight := g.Light.Position.Sub(center).Normalize()

	lit := g.Light.Ambient
	if d := normal.Dot(toLight); d > 0 && !inShadow(fc, center, normal, toLight) {
		lit += g.Light.Diffuse * d
	}
	tint := g.Light.Color.Mul(lit)
	return toRGBA(mgl32.Vec3{
		mat.Albedo.X()*tint.X() + mat.Emit.X(),
		mat.Albedo.Y()*tint.Y() + mat.Emit.Y(),
		mat.Albedo.Z()*tint.Z() + mat.Emit.Z(),
	})
}

// voxelNormal estimates the surface normal of a hit voxel as the mean
// direction toward its empty face neighbors. A voxel with no empty
// neighbor reflects the ray back instead.
func voxelNormal(fc *voxray.FrameContext, voxel voxray.IVec3, dir mgl32.Vec3) mgl32.Vec3 {
	tree := fc.RootSvo()
	local := voxel.Sub(fc.Global.Voxels.RootBase)
	var n mgl32.Vec3
	for _, off := range faceOffsets {
		neighbor := local.Add(off)
		if !tree.InBounds(neighbor) {
			continue
		}
		if m, err := tree.At(neighbor); err == nil && m.IsAir() {
			n = n.Add(off.Vec3())
		}
	}
	if n.Len() == 0 {
		return dir.Mul(-1)
	}
	return n.Normalize()
}

var faceOffsets = [6]voxray.IVec3{
	voxray.IV3(-1, 0, 0), voxray.IV3(1, 0, 0),
	voxray.IV3(0, -1, 0), voxray.IV3(0, 1, 0),
	voxray.IV3(0, 0, -1), voxray.IV3(0, 0, 1),
}

// inShadow traces from just outside the hit voxel toward the light. The
// origin steps 0.9 along the normal, far enough to leave the voxel even on
// a fully diagonal normal.
func inShadow(fc *voxray.FrameContext, point, normal, toLight mgl32.Vec3) bool {
	res, err := fc.TraceWorldRay(point.Add(normal.Mul(0.9)), toLight)
	return err == nil && res.Status == voxray.TraceHit
}

// skyColor blends horizon haze into zenith blue by ray elevation.
func skyColor(dir mgl32.Vec3) color.RGBA {
	t := (dir.Z() + 1) / 2
	horizon := mgl32.Vec3{0.78, 0.85, 0.94}
	zenith := mgl32.Vec3{0.25, 0.48, 0.82}
	return toRGBA(horizon.Mul(1 - t).Add(zenith.Mul(t)))
}

func toRGBA(c mgl32.Vec3) color.RGBA {
	return color.RGBA{channel(c.X()), channel(c.Y()), channel(c.Z()), 255}
}

func channel(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return png.Encode(f, img)
}
