package integrator

import (
	"math"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/material"
	"github.com/df07/go-drtm/pkg/scene"
)

// rayEpsilon offsets secondary and shadow rays from the surface they leave
const rayEpsilon = 1e-4

// PathTracingIntegrator implements unidirectional spectral path tracing with
// sun next-event estimation and forward-mode derivatives.
//
// Every scattering weight is Factor * Albedo with Albedo one of the scene's
// spectra, and no sampling decision looks at albedo values. The path
// throughput is therefore a product of terms each linear in one spectrum,
// and its derivative is tracked alongside it with the product rule.
//
// An instance keeps scratch buffers and must not be shared between goroutines.
type PathTracingIntegrator struct {
	config      scene.SamplingConfig
	dThroughput []core.Spectrum
}

// NewPathTracingIntegrator creates a new path tracing integrator
func NewPathTracingIntegrator(config scene.SamplingConfig) *PathTracingIntegrator {
	return &PathTracingIntegrator{config: config}
}

// RayRadiance implements the Integrator interface
func (pt *PathTracingIntegrator) RayRadiance(ray core.Ray, s *scene.Scene, sampler core.Sampler, slots GradientSlots, dRadiance []core.Spectrum) core.Spectrum {
	if cap(pt.dThroughput) < len(dRadiance) {
		pt.dThroughput = make([]core.Spectrum, len(dRadiance))
	}
	dThroughput := pt.dThroughput[:len(dRadiance)]
	for k := range dRadiance {
		dRadiance[k] = core.Spectrum{}
		dThroughput[k] = core.Spectrum{}
	}

	throughput := core.UniformSpectrum(1)
	var radiance core.Spectrum

	var sunDirection core.Vec3
	if s.Sun != nil {
		sunDirection = s.Sun.Direction()
	}

	for bounce := 0; bounce < pt.config.MaxDepth; bounce++ {
		hit, isHit := s.BVH.Hit(ray, rayEpsilon, math.Inf(1))
		if !isHit {
			// Escaped: only the upper hemisphere sees the sky
			if ray.Direction.Y > 0 && !s.SkyRadiance.IsZero() {
				radiance = radiance.Add(throughput.Multiply(s.SkyRadiance))
				for k := range dRadiance {
					dRadiance[k] = dRadiance[k].Add(dThroughput[k].Multiply(s.SkyRadiance))
				}
			}
			break
		}

		if s.Sun != nil {
			radiance = pt.addSunlight(s, hit, sunDirection, throughput, dThroughput, slots, radiance, dRadiance)
		}

		if bounce+1 >= pt.config.MaxDepth {
			break
		}

		scatter, didScatter := hit.Material.Scatter(ray, *hit, sampler)
		if !didScatter {
			break
		}
		throughput = applyLobe(scatter.Lobe, throughput, dThroughput, slots)

		// Russian roulette with a fixed survival probability
		if bounce+1 >= pt.config.RussianRouletteMinBounces {
			survival := pt.config.RussianRouletteSurvival
			if sampler.Get1D() >= survival {
				break
			}
			compensation := 1.0 / survival
			throughput = throughput.Scale(compensation)
			for k := range dThroughput {
				dThroughput[k] = dThroughput[k].Scale(compensation)
			}
		}

		ray = scatter.Scattered
	}

	return radiance
}

// addSunlight adds the unoccluded direct sun contribution at hit
func (pt *PathTracingIntegrator) addSunlight(s *scene.Scene, hit *material.SurfaceInteraction, sunDirection core.Vec3,
	throughput core.Spectrum, dThroughput []core.Spectrum, slots GradientSlots,
	radiance core.Spectrum, dRadiance []core.Spectrum) core.Spectrum {

	lobe, ok := hit.Material.EvaluateDirect(*hit, sunDirection)
	if !ok {
		return radiance
	}
	if s.BVH.Occluded(core.NewRay(hit.Point, sunDirection), rayEpsilon, math.Inf(1)) {
		return radiance
	}

	irradiance := s.Sun.Irradiance
	contribution := lobe.Weight().Multiply(irradiance)
	radiance = radiance.Add(throughput.Multiply(contribution))

	for k := range dRadiance {
		dRadiance[k] = dRadiance[k].Add(dThroughput[k].Multiply(contribution))
	}
	if slot, ok := slots[lobe.Albedo]; ok {
		dRadiance[slot] = dRadiance[slot].Add(throughput.Multiply(irradiance).Scale(lobe.Factor))
	}

	return radiance
}

// applyLobe multiplies the throughput by the lobe weight and updates its
// derivatives with the product rule. dThroughput is updated in place.
func applyLobe(lobe material.Lobe, throughput core.Spectrum, dThroughput []core.Spectrum, slots GradientSlots) core.Spectrum {
	weight := lobe.Weight()
	for k := range dThroughput {
		dThroughput[k] = dThroughput[k].Multiply(weight)
	}
	if slot, ok := slots[lobe.Albedo]; ok {
		dThroughput[slot] = dThroughput[slot].Add(throughput.Scale(lobe.Factor))
	}
	return throughput.Multiply(weight)
}
