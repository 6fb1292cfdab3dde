package material

import (
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-drtm/pkg/core"
)

func TestBiLambertian_LobeSelection(t *testing.T) {
	leaf := NewBiLambertian(core.UniformSpectrum(0.4), core.UniformSpectrum(0.3))
	sampler := core.NewRandomSampler(rand.New(rand.NewSource(7)))

	normal := core.NewVec3(0, 1, 0)
	hit := SurfaceInteraction{Normal: normal}
	ray := core.NewRay(core.NewVec3(0, 1, 0), core.NewVec3(0, -1, 0))

	reflected, transmitted := 0, 0
	const n = 4000
	for i := 0; i < n; i++ {
		scatter, ok := leaf.Scatter(ray, hit, sampler)
		if !ok {
			t.Fatal("leaf should always scatter")
		}
		side := scatter.Scattered.Direction.Dot(normal)
		switch scatter.Lobe.Albedo {
		case &leaf.Reflectance:
			reflected++
			if side < 0 {
				t.Fatalf("reflection went through the leaf: %v", scatter.Scattered.Direction)
			}
		case &leaf.Transmittance:
			transmitted++
			if side > 0 {
				t.Fatalf("transmission stayed on the lit side: %v", scatter.Scattered.Direction)
			}
		default:
			t.Fatal("lobe references an unknown spectrum")
		}
		if scatter.Lobe.Factor != 2 {
			t.Errorf("factor = %v, want 2", scatter.Lobe.Factor)
		}
	}

	// Expected 50/50 split; 4000 samples keeps this well inside 5 sigma
	if math.Abs(float64(reflected)/n-0.5) > 0.04 {
		t.Errorf("reflected %d of %d, expected about half", reflected, n)
	}
	if reflected+transmitted != n {
		t.Errorf("lost samples: %d + %d != %d", reflected, transmitted, n)
	}
}

func TestBiLambertian_EvaluateDirectPicksSide(t *testing.T) {
	leaf := NewBiLambertian(core.UniformSpectrum(0.4), core.UniformSpectrum(0.3))
	hit := SurfaceInteraction{Normal: core.NewVec3(0, 1, 0)}

	lobe, ok := leaf.EvaluateDirect(hit, core.NewVec3(0, 1, 0))
	if !ok || lobe.Albedo != &leaf.Reflectance {
		t.Error("light on the viewer's side should use reflectance")
	}

	lobe, ok = leaf.EvaluateDirect(hit, core.NewVec3(0, -1, 0))
	if !ok || lobe.Albedo != &leaf.Transmittance {
		t.Error("light from behind the leaf should use transmittance")
	}
	if math.Abs(lobe.Factor-1/math.Pi) > 1e-12 {
		t.Errorf("factor = %v, want 1/pi", lobe.Factor)
	}

	if _, ok := leaf.EvaluateDirect(hit, core.NewVec3(1, 0, 0)); ok {
		t.Error("grazing light should not contribute")
	}
}

func TestParameters(t *testing.T) {
	leaf := NewBiLambertian(core.UniformSpectrum(0.4), core.UniformSpectrum(0.3))
	params := leaf.Parameters()
	if len(params) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(params))
	}
	params["transmittance"][2] = 0.9
	if leaf.Transmittance[2] != 0.9 {
		t.Error("parameter pointers must alias the material fields")
	}

	soil := NewLambertian(core.UniformSpectrum(0.2))
	if _, ok := soil.Parameters()["reflectance"]; !ok {
		t.Error("soil should expose reflectance")
	}
}
