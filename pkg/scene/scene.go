package scene

import (
	"fmt"
	"sort"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/geometry"
	"github.com/df07/go-drtm/pkg/material"
)

// DefaultWavelengths are the centre wavelengths (nm) of the four bands the
// built-in scenes are defined for
var DefaultWavelengths = []float64{442.948, 560.4305, 665.2445, 865.587}

// Scene contains all the elements needed for rendering
type Scene struct {
	Name           string
	Camera         *geometry.Camera
	CameraConfig   geometry.CameraConfig
	Shapes         []geometry.Shape             // Objects in the scene
	Materials      map[string]material.Material // Materials by id
	Sun            *Sun                         // Directional sun, nil for sky-only scenes
	SkyRadiance    core.Spectrum                // Uniform radiance of the upper hemisphere
	Wavelengths    []float64                    // Band centre wavelengths in nm
	SamplingConfig SamplingConfig
	BVH            *geometry.BVH // Acceleration structure for ray-object intersection
}

// SamplingConfig contains rendering configuration
type SamplingConfig struct {
	Width                     int     // Image width
	Height                    int     // Image height
	SamplesPerPixel           int     // Number of paths per pixel
	MaxDepth                  int     // Maximum path length in surface interactions
	RussianRouletteMinBounces int     // Bounces before Russian roulette can terminate a path
	RussianRouletteSurvival   float64 // Fixed survival probability once roulette is active
}

// DefaultSamplingConfig returns the sampling used when a description leaves it out
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Width:                     32,
		Height:                    32,
		SamplesPerPixel:           16,
		MaxDepth:                  8,
		RussianRouletteMinBounces: 3,
		RussianRouletteSurvival:   0.8,
	}
}

// Validate checks that the sampling settings can drive a render
func (c SamplingConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("film size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.SamplesPerPixel <= 0 {
		return fmt.Errorf("samples per pixel must be positive, got %d", c.SamplesPerPixel)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max depth must be positive, got %d", c.MaxDepth)
	}
	if c.RussianRouletteSurvival <= 0 || c.RussianRouletteSurvival > 1 {
		return fmt.Errorf("russian roulette survival must be in (0,1], got %g", c.RussianRouletteSurvival)
	}
	return nil
}

// Sun is a directional light source. Irradiance is measured on a plane
// perpendicular to the sun direction.
type Sun struct {
	Zenith     float64 // Degrees from the vertical
	Azimuth    float64 // Degrees clockwise from +Z
	Irradiance core.Spectrum
}

// Direction returns the unit vector pointing from the scene towards the sun
func (s Sun) Direction() core.Vec3 {
	return core.SphericalDirection(s.Zenith, s.Azimuth)
}

// NewGroundQuad creates a horizontal square centered at the given point
func NewGroundQuad(center core.Vec3, size float64, mat material.Material) *geometry.Quad {
	corner := core.NewVec3(center.X-size/2, center.Y, center.Z-size/2)
	u := core.NewVec3(size, 0, 0)
	v := core.NewVec3(0, 0, size)
	return geometry.NewQuad(corner, u, v, mat)
}

// Preprocess prepares the scene for rendering
func (s *Scene) Preprocess() error {
	if err := s.SamplingConfig.Validate(); err != nil {
		return err
	}
	if s.Camera == nil {
		return fmt.Errorf("scene %q has no camera", s.Name)
	}
	s.BVH = geometry.NewBVH(s.Shapes)
	return nil
}

// MaterialIDs returns the material ids in sorted order
func (s *Scene) MaterialIDs() []string {
	ids := make([]string, 0, len(s.Materials))
	for id := range s.Materials {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetPrimitiveCount returns the total number of primitive objects in the scene
func (s *Scene) GetPrimitiveCount() int {
	count := 0
	for _, shape := range s.Shapes {
		switch obj := shape.(type) {
		case *geometry.TriangleMesh:
			count += obj.GetTriangleCount()
		default:
			count++
		}
	}
	return count
}
