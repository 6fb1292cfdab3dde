package integrator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/material"
	"github.com/df07/go-drtm/pkg/scene"
)

func loadScene(t *testing.T, name string) *scene.Scene {
	t.Helper()
	s, err := scene.Load(scene.BuiltinPrefix+name, scene.Overrides{})
	if err != nil {
		t.Fatalf("failed to load %s: %v", name, err)
	}
	return s
}

func downRay(x, z float64) core.Ray {
	return core.NewRay(core.NewVec3(x, 10, z), core.NewVec3(0, -1, 0))
}

// TestPathTracing_BareSoilClosedForm checks the two-bounce soil scene against
// rho * (E cos(theta_s) / pi + sky), which holds for every single path
func TestPathTracing_BareSoilClosedForm(t *testing.T) {
	s := loadScene(t, "soil")
	rho := s.Materials[scene.SoilID].(material.Parametric).Parameters()["reflectance"]

	slots := GradientSlots{rho: 0}
	dRadiance := make([]core.Spectrum, 1)
	pt := NewPathTracingIntegrator(s.SamplingConfig)
	sampler := core.NewRandomSampler(rand.New(rand.NewSource(1)))

	cosSun := math.Cos(s.Sun.Zenith * math.Pi / 180)
	for i := 0; i < 20; i++ {
		radiance := pt.RayRadiance(downRay(0.1*float64(i%5), -0.2), s, sampler, slots, dRadiance)
		for b := 0; b < core.NumBands; b++ {
			dExpected := s.Sun.Irradiance[b]*cosSun/math.Pi + s.SkyRadiance[b]
			expected := rho[b] * dExpected
			if math.Abs(radiance[b]-expected) > 1e-12 {
				t.Fatalf("path %d band %d: radiance %g, want %g", i, b, radiance[b], expected)
			}
			if math.Abs(dRadiance[0][b]-dExpected) > 1e-12 {
				t.Fatalf("path %d band %d: derivative %g, want %g", i, b, dRadiance[0][b], dExpected)
			}
		}
	}
}

func TestPathTracing_DepthTermination(t *testing.T) {
	s := loadScene(t, "soil")
	sampler := core.NewRandomSampler(rand.New(rand.NewSource(42)))

	config := s.SamplingConfig
	config.MaxDepth = 1
	pt := NewPathTracingIntegrator(config)

	// One interaction: direct sun only, no sky through a second bounce
	radiance := pt.RayRadiance(downRay(0, 0), s, sampler, nil, nil)
	cosSun := math.Cos(s.Sun.Zenith * math.Pi / 180)
	for b := 0; b < core.NumBands; b++ {
		rho := s.Materials[scene.SoilID].(material.Parametric).Parameters()["reflectance"][b]
		expected := rho * s.Sun.Irradiance[b] * cosSun / math.Pi
		if math.Abs(radiance[b]-expected) > 1e-12 {
			t.Errorf("band %d: got %g, want %g", b, radiance[b], expected)
		}
	}
}

func TestPathTracing_MissReturnsBlack(t *testing.T) {
	s := loadScene(t, "soil")
	pt := NewPathTracingIntegrator(s.SamplingConfig)
	sampler := core.NewRandomSampler(rand.New(rand.NewSource(42)))

	// Pointing down but outside the 4x4 ground: nothing below the horizon emits
	radiance := pt.RayRadiance(downRay(50, 50), s, sampler, nil, nil)
	if !radiance.IsZero() {
		t.Errorf("Expected black, got %v", radiance)
	}
}

func TestPathTracing_LeafShadowsSoil(t *testing.T) {
	s := loadScene(t, "leaf")
	config := s.SamplingConfig
	config.MaxDepth = 1
	pt := NewPathTracingIntegrator(config)
	sampler := core.NewRandomSampler(rand.New(rand.NewSource(42)))

	// Far from the leaf the soil is sunlit
	lit := pt.RayRadiance(downRay(2.5, -2.5), s, sampler, nil, nil)
	if lit.IsZero() {
		t.Fatal("Expected sunlit soil")
	}

	// Start below the leaf and look at the soil point whose sun ray hits the leaf centre
	sun := s.Sun.Direction()
	offset := 0.5 / sun.Y
	below := core.NewRay(core.NewVec3(-sun.X*offset, 0.25, -sun.Z*offset), core.NewVec3(0, -1, 0))
	shadowed := pt.RayRadiance(below, s, sampler, nil, nil)
	if !shadowed.IsZero() {
		t.Errorf("Expected shadowed soil with one bounce, got %v", shadowed)
	}
}

// estimate averages radiance and derivatives of n paths through a fixed seed
func estimate(s *scene.Scene, slots GradientSlots, numSlots int, seed int64, n int) (core.Spectrum, []core.Spectrum) {
	pt := NewPathTracingIntegrator(s.SamplingConfig)
	sampler := core.NewRandomSampler(rand.New(rand.NewSource(seed)))
	dRadiance := make([]core.Spectrum, numSlots)

	var sum core.Spectrum
	dSum := make([]core.Spectrum, numSlots)
	for i := 0; i < n; i++ {
		x := -0.9 + 1.8*float64(i%16)/15
		z := -0.9 + 1.8*float64(i/16%16)/15
		sum = sum.Add(pt.RayRadiance(downRay(x, z), s, sampler, slots, dRadiance))
		for k := range dSum {
			dSum[k] = dSum[k].Add(dRadiance[k])
		}
	}

	scale := 1.0 / float64(n)
	for k := range dSum {
		dSum[k] = dSum[k].Scale(scale)
	}
	return sum.Scale(scale), dSum
}

// TestPathTracing_GradientMatchesFiniteDifferences perturbs each leaf spectrum
// and compares the central difference of the fixed-seed estimate with the
// forward-mode derivative
func TestPathTracing_GradientMatchesFiniteDifferences(t *testing.T) {
	s := loadScene(t, "canopy")
	params := scene.Traverse(s)

	keys := []string{
		scene.ParameterKey(scene.FoliageID, "reflectance"),
		scene.ParameterKey(scene.FoliageID, "transmittance"),
		scene.ParameterKey(scene.SoilID, "reflectance"),
	}
	slots := GradientSlots{}
	for k, key := range keys {
		leaf, err := params.Leaf(key)
		if err != nil {
			t.Fatal(err)
		}
		slots[leaf] = k
	}

	const seed, paths, h = 11, 512, 1e-4
	_, gradients := estimate(s, slots, len(keys), seed, paths)

	for k, key := range keys {
		leaf, _ := params.Leaf(key)
		original := *leaf

		*leaf = original.Add(core.UniformSpectrum(h))
		plus, _ := estimate(s, nil, 0, seed, paths)
		*leaf = original.Subtract(core.UniformSpectrum(h))
		minus, _ := estimate(s, nil, 0, seed, paths)
		*leaf = original

		for b := 0; b < core.NumBands; b++ {
			fd := (plus[b] - minus[b]) / (2 * h)
			got := gradients[k][b]
			if math.Abs(fd-got) > 1e-6*math.Max(1, math.Abs(fd)) {
				t.Errorf("%s band %d: finite difference %g, forward mode %g", key, b, fd, got)
			}
		}
	}
}
