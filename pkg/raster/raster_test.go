package raster

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-drtm/pkg/core"
)

var testWavelengths = []float64{442.948, 560.4305, 665.2445, 865.587}

// testImage returns an image whose values encode (y, x, band)
func testImage(width, height, bands int) *core.Image {
	img := core.NewImage(width, height, bands)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for b := 0; b < bands; b++ {
				img.Set(x, y, b, float64(100*y+10*x+b)+0.25)
			}
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name     string
		expected Format
		wantErr  bool
	}{
		{"ENVI", FormatENVI, false},
		{"envi", FormatENVI, false},
		{"TIFF", FormatGTiff, false},
		{"GTiff", FormatGTiff, false},
		{"HDF5", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Errorf("Expected ErrUnknownFormat, got %v", err)
				}
				return
			}
			if err != nil || got != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, %v; expected %v", tt.name, got, err, tt.expected)
			}
		})
	}
}

func TestWrite_TIFFScenario(t *testing.T) {
	dir := t.TempDir()
	img := testImage(5, 3, 4)

	written, err := Write(img, filepath.Join(dir, "drtm-iamgery"), testWavelengths, "TIFF")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	expectedPath := filepath.Join(dir, "drtm-iamgery.tif")
	if len(written) != 1 || written[0] != expectedPath {
		t.Fatalf("Expected to write %s, wrote %v", expectedPath, written)
	}

	loaded, info, err := Read(expectedPath)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if info.Bands != 4 || info.Width != 5 || info.Height != 3 {
		t.Errorf("Unexpected dimensions %+v", info)
	}
	if info.Format != FormatGTiff || info.DataType != "Float32" {
		t.Errorf("Expected a Float32 GTiff dataset, got %s %s", info.Format, info.DataType)
	}
	if len(info.Wavelengths) != 4 {
		t.Fatalf("Expected 4 wavelengths, got %v", info.Wavelengths)
	}
	for i, w := range testWavelengths {
		if info.Wavelengths[i] != w {
			t.Errorf("Wavelength %d: expected %g, got %g", i, w, info.Wavelengths[i])
		}
	}

	// Band i holds img[:, :, i-1]
	for b := 0; b < 4; b++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 5; x++ {
				if loaded.At(x, y, b) != img.At(x, y, b) {
					t.Fatalf("Band %d at (%d,%d): expected %g, got %g", b+1, x, y, img.At(x, y, b), loaded.At(x, y, b))
				}
			}
		}
	}
}

func TestWrite_ENVIHeader(t *testing.T) {
	dir := t.TempDir()
	img := testImage(4, 2, 4)
	path := filepath.Join(dir, "scene")

	written, err := Write(img, path, testWavelengths, "ENVI")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(written) != 2 || written[1] != path+".hdr" {
		t.Fatalf("Unexpected outputs %v", written)
	}

	header, err := os.ReadFile(path + ".hdr")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(header), "ENVI") {
		t.Errorf("Header should start with the ENVI signature:\n%s", header)
	}
	if !strings.HasSuffix(string(header), "\nwavelength = {442.948,560.4305,665.2445,865.587}") {
		t.Errorf("Header does not end with the wavelength list:\n%s", header)
	}

	data, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if data.Size() != 4*4*2*4 {
		t.Errorf("Expected %d data bytes, got %d", 4*4*2*4, data.Size())
	}

	for _, p := range []string{path, path + ".hdr"} {
		info, err := Inspect(p)
		if err != nil {
			t.Fatalf("Inspect(%s) failed: %v", p, err)
		}
		if info.Format != FormatENVI || info.Bands != 4 || info.Width != 4 || info.Height != 2 {
			t.Errorf("Unexpected info %+v", info)
		}
		if len(info.Wavelengths) != 4 || info.Wavelengths[1] != 560.4305 {
			t.Errorf("Unexpected wavelengths %v", info.Wavelengths)
		}
	}

	loaded, _, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.At(3, 1, 2) != img.At(3, 1, 2) {
		t.Errorf("Expected %g, got %g", img.At(3, 1, 2), loaded.At(3, 1, 2))
	}
}

func TestWrite_WithoutWavelengths(t *testing.T) {
	dir := t.TempDir()
	img := testImage(2, 2, 3)

	if _, err := Write(img, filepath.Join(dir, "plain"), nil, "ENVI"); err != nil {
		t.Fatal(err)
	}
	header, _ := os.ReadFile(filepath.Join(dir, "plain.hdr"))
	if strings.Contains(string(header), "wavelength") {
		t.Error("Header should not list wavelengths when none are given")
	}

	if _, err := Write(img, filepath.Join(dir, "plain"), nil, "GTiff"); err != nil {
		t.Fatal(err)
	}
	info, err := Inspect(filepath.Join(dir, "plain.tif"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Bands != 3 || len(info.Wavelengths) != 0 {
		t.Errorf("Unexpected info %+v", info)
	}
}

func TestWrite_Errors(t *testing.T) {
	dir := t.TempDir()
	img := testImage(2, 2, 4)

	if _, err := Write(img, filepath.Join(dir, "x"), testWavelengths[:3], "ENVI"); !errors.Is(err, ErrBandMismatch) {
		t.Errorf("Expected ErrBandMismatch, got %v", err)
	}
	if _, err := Write(img, filepath.Join(dir, "x"), testWavelengths, "JPEG2000"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
	if _, err := Write(img, filepath.Join(dir, "missing", "x"), testWavelengths, "GTiff"); err == nil {
		t.Error("Expected error for a missing output directory")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("Failed writes must not create files, found %d", len(entries))
	}

	junk := filepath.Join(dir, "junk.bin")
	os.WriteFile(junk, []byte("not a raster"), 0o644)
	if _, err := Inspect(junk); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat for unknown file, got %v", err)
	}
}

func TestWavelengthField(t *testing.T) {
	got := WavelengthField([]float64{442.948, 500, 865.587})
	if got != "\nwavelength = {442.948,500,865.587}" {
		t.Errorf("Unexpected field %q", got)
	}
}

func TestWriteQuicklook(t *testing.T) {
	dir := t.TempDir()
	img := testImage(6, 4, 4)
	path := filepath.Join(dir, "quicklook.png")

	if err := WriteQuicklook(img, path, DefaultQuicklookBands); err != nil {
		t.Fatalf("WriteQuicklook failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	decoded, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Invalid PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 6 || b.Dy() != 4 {
		t.Errorf("Unexpected bounds %v", b)
	}

	if err := WriteQuicklook(img, path, [3]int{0, 1, 7}); err == nil {
		t.Error("Expected error for out-of-range band")
	}
}
