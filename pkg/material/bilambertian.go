package material

import (
	"math"

	"github.com/df07/go-drtm/pkg/core"
)

// reflectProbability is the chance of sampling the reflection lobe of a leaf.
// It is fixed so that path sampling never depends on parameter values.
const reflectProbability = 0.5

// BiLambertian is a thin two-sided leaf: diffuse reflection on the lit side plus
// diffuse transmission to the opposite side
type BiLambertian struct {
	Reflectance   core.Spectrum
	Transmittance core.Spectrum
}

// NewBiLambertian creates a new leaf material
func NewBiLambertian(reflectance, transmittance core.Spectrum) *BiLambertian {
	return &BiLambertian{Reflectance: reflectance, Transmittance: transmittance}
}

// Scatter implements the Material interface
func (b *BiLambertian) Scatter(rayIn core.Ray, hit SurfaceInteraction, sampler core.Sampler) (ScatterResult, bool) {
	if sampler.Get1D() < reflectProbability {
		dir := core.SampleCosineHemisphere(hit.Normal, sampler.Get2D())
		return ScatterResult{
			Scattered: core.NewRay(hit.Point, dir),
			Lobe:      Lobe{Factor: 1 / reflectProbability, Albedo: &b.Reflectance},
		}, true
	}

	dir := core.SampleCosineHemisphere(hit.Normal.Negate(), sampler.Get2D())
	return ScatterResult{
		Scattered: core.NewRay(hit.Point, dir),
		Lobe:      Lobe{Factor: 1 / (1 - reflectProbability), Albedo: &b.Transmittance},
	}, true
}

// EvaluateDirect implements the Material interface
func (b *BiLambertian) EvaluateDirect(hit SurfaceInteraction, lightDir core.Vec3) (Lobe, bool) {
	cosTheta := lightDir.Dot(hit.Normal)
	switch {
	case cosTheta > 0:
		return Lobe{Factor: cosTheta / math.Pi, Albedo: &b.Reflectance}, true
	case cosTheta < 0:
		return Lobe{Factor: -cosTheta / math.Pi, Albedo: &b.Transmittance}, true
	default:
		return Lobe{}, false
	}
}

// Parameters implements Parametric
func (b *BiLambertian) Parameters() map[string]*core.Spectrum {
	return map[string]*core.Spectrum{
		"reflectance":   &b.Reflectance,
		"transmittance": &b.Transmittance,
	}
}
