package renderer

import (
	"time"

	"github.com/df07/go-drtm/pkg/core"
)

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	TotalPixels  int           // Total number of pixels rendered
	TotalSamples int           // Total number of paths traced
	Tiles        int           // Number of tiles rendered
	Workers      int           // Number of workers used
	Duration     time.Duration // Wall time of the render
}

// merge adds the counters of a tile into the total
func (s *RenderStats) merge(tile RenderStats) {
	s.TotalPixels += tile.TotalPixels
	s.TotalSamples += tile.TotalSamples
	s.Tiles++
}

// AverageSamples returns the mean number of samples per pixel
func (s RenderStats) AverageSamples() float64 {
	if s.TotalPixels == 0 {
		return 0
	}
	return float64(s.TotalSamples) / float64(s.TotalPixels)
}

// PixelStats accumulates the samples of a single pixel
type PixelStats struct {
	RadianceAccum  core.Spectrum   // Sum of radiance samples
	GradientAccums []core.Spectrum // Sum of derivative samples, one per gradient slot
	SampleCount    int             // Number of samples taken
}

// reset clears the accumulators, keeping the gradient buffer
func (ps *PixelStats) reset(numGradients int) {
	ps.RadianceAccum = core.Spectrum{}
	if cap(ps.GradientAccums) < numGradients {
		ps.GradientAccums = make([]core.Spectrum, numGradients)
	}
	ps.GradientAccums = ps.GradientAccums[:numGradients]
	for k := range ps.GradientAccums {
		ps.GradientAccums[k] = core.Spectrum{}
	}
	ps.SampleCount = 0
}

// AddSample adds a radiance sample and its derivatives
func (ps *PixelStats) AddSample(radiance core.Spectrum, gradients []core.Spectrum) {
	ps.RadianceAccum = ps.RadianceAccum.Add(radiance)
	for k := range gradients {
		ps.GradientAccums[k] = ps.GradientAccums[k].Add(gradients[k])
	}
	ps.SampleCount++
}

// GetRadiance returns the current average radiance for this pixel
func (ps *PixelStats) GetRadiance() core.Spectrum {
	if ps.SampleCount == 0 {
		return core.Spectrum{}
	}
	return ps.RadianceAccum.Scale(1.0 / float64(ps.SampleCount))
}

// GetGradient returns the current average derivative for gradient slot k
func (ps *PixelStats) GetGradient(k int) core.Spectrum {
	if ps.SampleCount == 0 {
		return core.Spectrum{}
	}
	return ps.GradientAccums[k].Scale(1.0 / float64(ps.SampleCount))
}
