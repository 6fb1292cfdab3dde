package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/integrator"
	"github.com/df07/go-drtm/pkg/scene"
)

// ErrGradientNotEnabled is returned when a derivative is requested for a
// parameter that was not marked differentiable
var ErrGradientNotEnabled = errors.New("gradient not enabled")

// Config controls how a render is parallelised
type Config struct {
	TileSize   int          // Size of each square tile in pixels
	NumWorkers int          // Number of parallel workers (0 = use CPU count)
	Logger     *slog.Logger // Optional, receives one debug line per render
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		TileSize:   16,
		NumWorkers: 0,
	}
}

// Result is one rendered image plus its parameter derivatives
type Result struct {
	Image     *core.Image            // (H, W, B) radiance
	Gradients map[string]*core.Image // d Image[y,x,b] / d param[b], by parameter key
	Stats     RenderStats
}

// Raytracer renders a scene whose differentiable leaves are exposed by a ParameterMap
type Raytracer struct {
	scene  *scene.Scene
	params *scene.ParameterMap
	config Config
}

// NewRaytracer creates a new raytracer
func NewRaytracer(s *scene.Scene, params *scene.ParameterMap, config Config) *Raytracer {
	if config.TileSize <= 0 {
		config.TileSize = DefaultConfig().TileSize
	}
	return &Raytracer{scene: s, params: params, config: config}
}

// Scene returns the scene being rendered
func (rt *Raytracer) Scene() *scene.Scene {
	return rt.scene
}

// Render traces the scene with the given seed. For every key in gradKeys the
// result carries the derivative image of the radiance with respect to that
// parameter, which must have been enabled with ParameterMap.EnableGrad. The same seed, scene and parameter values always give
// bit-identical results regardless of the number of workers.
func (rt *Raytracer) Render(ctx context.Context, seed int64, gradKeys []string) (*Result, error) {
	start := time.Now()
	config := rt.scene.SamplingConfig

	enabled := rt.params.GradKeys()
	slots := make(integrator.GradientSlots, len(gradKeys))
	for k, key := range gradKeys {
		leaf, err := rt.params.Leaf(key)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(enabled, key) {
			return nil, fmt.Errorf("%w: %s", ErrGradientNotEnabled, key)
		}
		if _, dup := slots[leaf]; dup {
			return nil, fmt.Errorf("gradient key %q requested twice", key)
		}
		slots[leaf] = k
	}

	result := &Result{
		Image:     core.NewImage(config.Width, config.Height, core.NumBands),
		Gradients: make(map[string]*core.Image, len(gradKeys)),
	}
	gradients := make([]*core.Image, len(gradKeys))
	for k, key := range gradKeys {
		gradients[k] = core.NewImage(config.Width, config.Height, core.NumBands)
		result.Gradients[key] = gradients[k]
	}

	tiles := NewTileGrid(config.Width, config.Height, rt.config.TileSize)
	pool := NewWorkerPool(rt.scene, slots, len(tiles), rt.config.NumWorkers)
	pool.Start(ctx)

	for _, tile := range tiles {
		pool.SubmitTask(TileTask{Tile: tile, Seed: seed, Image: result.Image, Gradients: gradients})
	}
	pool.Stop()

	var firstErr error
	for {
		tileResult, ok := pool.GetResult()
		if !ok {
			break
		}
		if tileResult.Error != nil {
			if firstErr == nil {
				firstErr = tileResult.Error
			}
			continue
		}
		result.Stats.merge(tileResult.Stats)
	}
	if firstErr != nil {
		return nil, fmt.Errorf("render interrupted: %w", firstErr)
	}

	result.Stats.Workers = pool.GetNumWorkers()
	result.Stats.Duration = time.Since(start)

	if rt.config.Logger != nil {
		rt.config.Logger.Debug("render complete",
			"seed", seed,
			"width", config.Width,
			"height", config.Height,
			"spp", config.SamplesPerPixel,
			"gradients", len(gradKeys),
			"tiles", result.Stats.Tiles,
			"workers", result.Stats.Workers,
			"duration", result.Stats.Duration)
	}

	return result, nil
}
