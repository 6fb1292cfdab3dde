package renderer

import (
	"image"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/integrator"
	"github.com/df07/go-drtm/pkg/scene"
)

// TileRenderer handles the actual rendering of individual tiles using an integrator
type TileRenderer struct {
	scene      *scene.Scene
	integrator integrator.Integrator
	slots      integrator.GradientSlots
	numSlots   int
	dRadiance  []core.Spectrum
	pixel      PixelStats
}

// NewTileRenderer creates a tile renderer. Each worker owns one.
func NewTileRenderer(s *scene.Scene, integratorInst integrator.Integrator, slots integrator.GradientSlots) *TileRenderer {
	return &TileRenderer{
		scene:      s,
		integrator: integratorInst,
		slots:      slots,
		numSlots:   len(slots),
		dRadiance:  make([]core.Spectrum, len(slots)),
	}
}

// RenderTileBounds renders the pixels within bounds into img and the gradient
// images. gradients[k] receives the derivative for slot k. Tiles never
// overlap, so concurrent calls on distinct bounds may share the images.
func (tr *TileRenderer) RenderTileBounds(bounds image.Rectangle, sampler core.Sampler, img *core.Image, gradients []*core.Image) RenderStats {
	config := tr.scene.SamplingConfig
	camera := tr.scene.Camera
	width, height := float64(config.Width), float64(config.Height)

	stats := RenderStats{TotalPixels: bounds.Dx() * bounds.Dy()}

	for j := bounds.Min.Y; j < bounds.Max.Y; j++ {
		for i := bounds.Min.X; i < bounds.Max.X; i++ {
			tr.pixel.reset(tr.numSlots)

			for n := 0; n < config.SamplesPerPixel; n++ {
				jitter := sampler.Get2D()
				// Row 0 is the top of the image, film t=1
				s := (float64(i) + jitter.X) / width
				t := 1 - (float64(j)+jitter.Y)/height

				ray := camera.GetRay(s, t)
				radiance := tr.integrator.RayRadiance(ray, tr.scene, sampler, tr.slots, tr.dRadiance)
				tr.pixel.AddSample(radiance, tr.dRadiance)
			}

			img.SetSpectrum(i, j, tr.pixel.GetRadiance())
			for k, gradient := range gradients {
				gradient.SetSpectrum(i, j, tr.pixel.GetGradient(k))
			}
			stats.TotalSamples += tr.pixel.SampleCount
		}
	}

	return stats
}
