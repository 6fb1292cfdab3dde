package material

import (
	"github.com/df07/go-drtm/pkg/core"
)

// Material interface for surfaces that scatter light
type Material interface {
	// Scatter samples an outgoing direction for a path arriving along rayIn.
	// The returned lobe is the full Monte Carlo weight (BSDF * cos / pdf).
	Scatter(rayIn core.Ray, hit SurfaceInteraction, sampler core.Sampler) (ScatterResult, bool)

	// EvaluateDirect returns the lobe for light arriving from lightDir (unit vector
	// pointing away from the surface) and leaving towards the viewer. The lobe
	// factor includes the |cos| / pi term of a diffuse BSDF.
	EvaluateDirect(hit SurfaceInteraction, lightDir core.Vec3) (Lobe, bool)
}

// Parametric is implemented by materials whose spectral coefficients are exposed
// as named, differentiable leaves (e.g. "reflectance", "transmittance")
type Parametric interface {
	Parameters() map[string]*core.Spectrum
}

// Lobe is one scattering term whose weight is Factor * Albedo.
// Every weight produced by the materials in this package is linear in exactly
// one albedo spectrum, which is what the integrator differentiates against.
type Lobe struct {
	Factor float64        // Scalar part of the weight
	Albedo *core.Spectrum // Spectral coefficient the weight is linear in
}

// Weight returns the spectral weight of the lobe
func (l Lobe) Weight() core.Spectrum {
	return l.Albedo.Scale(l.Factor)
}

// ScatterResult contains the result of material scattering
type ScatterResult struct {
	Scattered core.Ray // The scattered ray
	Lobe      Lobe     // Weight applied to the scattered path
}

// SurfaceInteraction contains information about a ray-surface intersection
type SurfaceInteraction struct {
	Point     core.Vec3 // Point of intersection
	Normal    core.Vec3 // Surface normal, always facing the incoming ray
	T         float64   // Parameter t along the ray
	FrontFace bool      // Whether ray hit the front face
	Material  Material  // Material of the hit object
}

// SetFaceNormal sets the normal vector and determines front/back face
func (h *SurfaceInteraction) SetFaceNormal(ray core.Ray, outwardNormal core.Vec3) {
	h.FrontFace = ray.Direction.Dot(outwardNormal) < 0
	if h.FrontFace {
		h.Normal = outwardNormal
	} else {
		h.Normal = outwardNormal.Negate()
	}
}
