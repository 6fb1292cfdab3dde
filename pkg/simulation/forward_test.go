package simulation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-drtm/pkg/loaders"
	"github.com/df07/go-drtm/pkg/raster"
	"github.com/df07/go-drtm/pkg/scene"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSimulate_TIFF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "drtm-iamgery")
	opts := Options{
		ScenePath:   scene.BuiltinPrefix + "leaf",
		Overrides:   scene.Overrides{Width: 6, Height: 5, SamplesPerPixel: 2},
		Output:      out,
		Format:      "TIFF",
		Wavelengths: []float64{442.948, 560.4305, 665.2445, 865.587},
		SaveNPY:     true,
		Quicklook:   true,
	}

	result, err := Simulate(context.Background(), opts, discard)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	expected := []string{out + ".tif", out + ".npy", out + ".png"}
	if len(result.Files) != len(expected) {
		t.Fatalf("Expected files %v, got %v", expected, result.Files)
	}
	for i, f := range expected {
		if result.Files[i] != f {
			t.Errorf("File %d: expected %s, got %s", i, f, result.Files[i])
		}
		if _, err := os.Stat(f); err != nil {
			t.Errorf("Missing output %s: %v", f, err)
		}
	}

	img, info, err := raster.Read(out + ".tif")
	if err != nil {
		t.Fatal(err)
	}
	if info.Bands != 4 || info.Width != 6 || info.Height != 5 {
		t.Errorf("Unexpected raster %+v", info)
	}
	// Raster stores float32
	if got, want := img.At(3, 2, 1), float64(float32(result.Image.At(3, 2, 1))); got != want {
		t.Errorf("Expected %g, got %g", want, got)
	}

	npy, err := loaders.LoadImageNPY(out + ".npy")
	if err != nil {
		t.Fatal(err)
	}
	if npy.At(5, 4, 3) != result.Image.At(5, 4, 3) {
		t.Errorf("NPY copy differs from rendered image")
	}
}

func TestSimulate_ENVIUsesSceneWavelengths(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "soil")
	result, err := Simulate(context.Background(), Options{
		ScenePath: scene.BuiltinPrefix + "soil",
		Output:    out,
		Format:    "ENVI",
	}, discard)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	info, err := raster.Inspect(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Wavelengths) != len(scene.DefaultWavelengths) {
		t.Fatalf("Expected scene wavelengths, got %v", info.Wavelengths)
	}
	for i, w := range scene.DefaultWavelengths {
		if info.Wavelengths[i] != w {
			t.Errorf("Wavelength %d: expected %g, got %g", i, w, info.Wavelengths[i])
		}
	}
	if len(result.Files) != 2 {
		t.Errorf("Expected data and header, got %v", result.Files)
	}
}

func TestSimulate_EmptyWavelengthsWritesNone(t *testing.T) {
	out := filepath.Join(t.TempDir(), "soil")
	result, err := Simulate(context.Background(), Options{
		ScenePath:   scene.BuiltinPrefix + "soil",
		Output:      out,
		Format:      "ENVI",
		Wavelengths: []float64{},
	}, discard)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(result.Wavelengths) != 0 {
		t.Errorf("Expected no wavelengths, got %v", result.Wavelengths)
	}

	header, err := os.ReadFile(out + ".hdr")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(header), "wavelength") {
		t.Errorf("Header should have no wavelength field:\n%s", header)
	}
	info, err := raster.Inspect(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Wavelengths) != 0 {
		t.Errorf("Expected no wavelengths, got %v", info.Wavelengths)
	}
}

func TestSimulate_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		opts    Options
		target  error
		wantErr bool
	}{
		{
			name:   "unknown format",
			opts:   Options{ScenePath: scene.BuiltinPrefix + "soil", Output: filepath.Join(dir, "a"), Format: "PNG"},
			target: raster.ErrUnknownFormat,
		},
		{
			name:   "band mismatch",
			opts:   Options{ScenePath: scene.BuiltinPrefix + "soil", Output: filepath.Join(dir, "b"), Format: "ENVI", Wavelengths: []float64{500, 600}},
			target: raster.ErrBandMismatch,
		},
		{
			name:    "missing scene",
			opts:    Options{ScenePath: filepath.Join(dir, "missing.yaml"), Output: filepath.Join(dir, "c"), Format: "ENVI"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Simulate(context.Background(), tt.opts, discard)
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
			if tt.wantErr && err == nil {
				t.Error("Expected error")
			}
		})
	}

	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("Failed simulations must not write files, found %d", len(entries))
	}
}
