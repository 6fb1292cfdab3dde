package material

import (
	"math"

	"github.com/df07/go-drtm/pkg/core"
)

// Lambertian represents a perfectly diffuse reflector such as bare soil
type Lambertian struct {
	Reflectance core.Spectrum
}

// NewLambertian creates a new lambertian material
func NewLambertian(reflectance core.Spectrum) *Lambertian {
	return &Lambertian{Reflectance: reflectance}
}

// Scatter implements the Material interface for lambertian scattering
func (l *Lambertian) Scatter(rayIn core.Ray, hit SurfaceInteraction, sampler core.Sampler) (ScatterResult, bool) {
	// Cosine-weighted sampling cancels the cos/pi of the BRDF, leaving the albedo
	scatterDirection := core.SampleCosineHemisphere(hit.Normal, sampler.Get2D())
	return ScatterResult{
		Scattered: core.NewRay(hit.Point, scatterDirection),
		Lobe:      Lobe{Factor: 1, Albedo: &l.Reflectance},
	}, true
}

// EvaluateDirect implements the Material interface
func (l *Lambertian) EvaluateDirect(hit SurfaceInteraction, lightDir core.Vec3) (Lobe, bool) {
	cosTheta := lightDir.Dot(hit.Normal)
	if cosTheta <= 0 {
		return Lobe{}, false // Light below the surface
	}
	return Lobe{Factor: cosTheta / math.Pi, Albedo: &l.Reflectance}, true
}

// Parameters implements Parametric
func (l *Lambertian) Parameters() map[string]*core.Spectrum {
	return map[string]*core.Spectrum{"reflectance": &l.Reflectance}
}
