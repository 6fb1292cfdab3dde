package scene

import (
	"fmt"
	"sort"
)

// FoliageID is the material id of the leaves in the built-in canopy scenes
const FoliageID = "TICO1_foliage"

// SoilID is the material id of the ground in the built-in scenes
const SoilID = "soil"

// builtinScenes maps builtin scene names to their descriptions
var builtinScenes = map[string]func() *Description{
	"canopy": newCanopyDescription,
	"leaf":   newLeafDescription,
	"soil":   newSoilDescription,
}

// BuiltinNames returns the names accepted after the builtin: prefix
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinScenes))
	for name := range builtinScenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinDescription returns a fresh copy of a builtin scene description
func BuiltinDescription(name string) (*Description, error) {
	build, ok := builtinScenes[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin scene %q (have %v)", name, BuiltinNames())
	}
	return build(), nil
}

func nadirCamera(footprint float64) CameraDescription {
	return CameraDescription{
		Projection: "orthographic",
		Center:     []float64{0, 10, 0},
		LookAt:     []float64{0, 0, 0},
		Up:         []float64{0, 0, 1},
		Width:      footprint,
		Height:     footprint,
	}
}

func defaultIllumination() IlluminationDesc {
	return IlluminationDesc{
		Sun: &SunDescription{Zenith: 30, Azimuth: 135, Irradiance: []float64{1.6, 1.8, 1.5, 1.0}},
		Sky: &SkyDescription{Radiance: []float64{0.08, 0.06, 0.04, 0.02}},
	}
}

func soilMaterial() MaterialDescription {
	return MaterialDescription{ID: SoilID, Type: "diffuse", Reflectance: []float64{0.08, 0.12, 0.16, 0.25}}
}

func foliageMaterial() MaterialDescription {
	return MaterialDescription{
		ID:            FoliageID,
		Type:          "bilambert",
		Reflectance:   []float64{0.05, 0.12, 0.06, 0.45},
		Transmittance: []float64{0.03, 0.10, 0.04, 0.42},
	}
}

// newCanopyDescription is a synthetic four-band canopy over bare soil
func newCanopyDescription() *Description {
	return &Description{
		Name:         "canopy",
		Description:  "Procedural bi-Lambertian canopy over Lambertian soil, nadir view",
		Group:        "Built-in Scenes",
		Wavelengths:  append([]float64(nil), DefaultWavelengths...),
		Film:         FilmDescription{Width: 32, Height: 32},
		Camera:       nadirCamera(2),
		Illumination: defaultIllumination(),
		Materials:    []MaterialDescription{soilMaterial(), foliageMaterial()},
		Shapes: []ShapeDescription{
			{Type: "ground", Material: SoilID, Size: 6},
			{Type: "canopy", Material: FoliageID, Canopy: &CanopyConfig{
				Seed:     7,
				Leaves:   300,
				LeafSize: 0.12,
				Extent:   []float64{2.4, 2.4},
				Heights:  []float64{0.2, 1.0},
			}},
		},
		Sampling: SamplingDescription{SamplesPerPixel: 8, MaxDepth: 6, RussianRouletteMinBounces: 3, RussianRouletteSurvival: 0.8},
	}
}

// newLeafDescription is a single horizontal leaf hovering over soil
func newLeafDescription() *Description {
	return &Description{
		Name:         "leaf",
		Description:  "One horizontal leaf above soil",
		Group:        "Built-in Scenes",
		Wavelengths:  append([]float64(nil), DefaultWavelengths...),
		Film:         FilmDescription{Width: 8, Height: 8},
		Camera:       nadirCamera(2),
		Illumination: defaultIllumination(),
		Materials:    []MaterialDescription{soilMaterial(), foliageMaterial()},
		Shapes: []ShapeDescription{
			{Type: "ground", Material: SoilID, Size: 6},
			{Type: "quad", Material: FoliageID, Corner: []float64{-0.5, 0.5, -0.5}, U: []float64{1, 0, 0}, V: []float64{0, 0, 1}},
		},
		Sampling: SamplingDescription{SamplesPerPixel: 4, MaxDepth: 4, RussianRouletteMinBounces: 2, RussianRouletteSurvival: 0.8},
	}
}

// newSoilDescription is bare soil under sun and sky
func newSoilDescription() *Description {
	return &Description{
		Name:         "soil",
		Description:  "Bare Lambertian soil",
		Group:        "Built-in Scenes",
		Wavelengths:  append([]float64(nil), DefaultWavelengths...),
		Film:         FilmDescription{Width: 4, Height: 4},
		Camera:       nadirCamera(1),
		Illumination: defaultIllumination(),
		Materials:    []MaterialDescription{soilMaterial()},
		Shapes:       []ShapeDescription{{Type: "ground", Material: SoilID, Size: 4}},
		Sampling:     SamplingDescription{SamplesPerPixel: 4, MaxDepth: 2, RussianRouletteMinBounces: 2, RussianRouletteSurvival: 1},
	}
}
