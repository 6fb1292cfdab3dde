// Package simulation renders a scene once and exports the image as a raster.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/loaders"
	"github.com/df07/go-drtm/pkg/raster"
	"github.com/df07/go-drtm/pkg/renderer"
	"github.com/df07/go-drtm/pkg/scene"
)

// Options controls a forward simulation
type Options struct {
	ScenePath   string          // Scene file or builtin:<name>
	Overrides   scene.Overrides // Film and sampling overrides
	Output      string          // Output path without the format extension
	Format      string          // ENVI, TIFF or GTiff
	Wavelengths []float64       // Band centres; nil uses the scene's, empty writes none
	Seed        int64
	NumWorkers  int
	TileSize    int
	SaveNPY     bool // Also write <Output>.npy
	Quicklook   bool // Also write <Output>.png
}

// Result lists what a simulation produced
type Result struct {
	Image       *core.Image
	Wavelengths []float64
	Files       []string
	Stats       renderer.RenderStats
}

// Simulate loads the scene, renders it once and writes the raster outputs
func Simulate(ctx context.Context, opts Options, logger *slog.Logger) (*Result, error) {
	if _, err := raster.ParseFormat(opts.Format); err != nil {
		return nil, err
	}

	s, err := scene.Load(opts.ScenePath, opts.Overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}

	wavelengths := opts.Wavelengths
	if wavelengths == nil {
		wavelengths = s.Wavelengths
	}
	if len(wavelengths) > 0 && len(wavelengths) != core.NumBands {
		return nil, fmt.Errorf("%w: %d wavelengths for %d rendered bands", raster.ErrBandMismatch, len(wavelengths), core.NumBands)
	}

	logger.Info("rendering scene",
		"scene", s.Name,
		"width", s.SamplingConfig.Width,
		"height", s.SamplingConfig.Height,
		"spp", s.SamplingConfig.SamplesPerPixel,
		"primitives", s.GetPrimitiveCount())

	rt := renderer.NewRaytracer(s, scene.Traverse(s), renderer.Config{
		TileSize:   opts.TileSize,
		NumWorkers: opts.NumWorkers,
		Logger:     logger,
	})
	rendered, err := rt.Render(ctx, opts.Seed, nil)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(opts.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	result := &Result{Image: rendered.Image, Wavelengths: wavelengths, Stats: rendered.Stats}

	files, err := raster.Write(rendered.Image, opts.Output, wavelengths, opts.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to write raster: %w", err)
	}
	result.Files = append(result.Files, files...)

	if opts.SaveNPY {
		path := opts.Output + ".npy"
		if err := loaders.SaveImageNPY(rendered.Image, path); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, path)
	}

	if opts.Quicklook {
		path := opts.Output + ".png"
		if err := raster.WriteQuicklook(rendered.Image, path, raster.DefaultQuicklookBands); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, path)
	}

	logger.Info("simulation complete",
		"files", result.Files,
		"samples", rendered.Stats.TotalSamples,
		"duration", rendered.Stats.Duration)

	return result, nil
}
