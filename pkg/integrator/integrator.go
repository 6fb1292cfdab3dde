package integrator

import (
	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/scene"
)

// GradientSlots maps the storage of each differentiable spectrum to its index
// in the derivative buffers
type GradientSlots map[*core.Spectrum]int

// Integrator defines the interface for light transport algorithms
type Integrator interface {
	// RayRadiance returns the spectral radiance carried back along ray and
	// writes d radiance[b] / d param_k[b] into dRadiance[k] for every slot k.
	// len(dRadiance) must equal the number of slots.
	RayRadiance(ray core.Ray, s *scene.Scene, sampler core.Sampler, slots GradientSlots, dRadiance []core.Spectrum) core.Spectrum
}
