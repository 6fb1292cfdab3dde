package loaders

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-drtm/pkg/core"
)

func TestEncodeNPYHeader(t *testing.T) {
	tests := []struct {
		name     string
		shape    []int
		minSize  int
		wantSize int
		wantDict string
	}{
		{"vector", []int{5}, 0, 128, "'shape': (5,)"},
		{"matrix", []int{3, 4}, 0, 128, "'shape': (3, 4)"},
		{"scalar", []int{}, 0, 128, "'shape': ()"},
		{"reserved", []int{0, 4}, 256, 256, "'shape': (0, 4)"},
		{"reserve below natural size", []int{0, 4}, 100, 128, "'shape': (0, 4)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, err := EncodeNPYHeader(NPYFloat64, tt.shape, tt.minSize)
			if err != nil {
				t.Fatalf("EncodeNPYHeader failed: %v", err)
			}
			if len(header) != tt.wantSize {
				t.Errorf("Expected %d bytes, got %d", tt.wantSize, len(header))
			}
			if !strings.HasPrefix(string(header), NPYMagic) {
				t.Error("Missing magic")
			}
			if n := int(binary.LittleEndian.Uint16(header[8:10])); n != len(header)-10 {
				t.Errorf("Header length field %d, expected %d", n, len(header)-10)
			}
			if header[len(header)-1] != '\n' {
				t.Error("Header must end with a newline")
			}
			if !strings.Contains(string(header), tt.wantDict) {
				t.Errorf("Header %q missing %q", header, tt.wantDict)
			}
		})
	}

	if _, err := EncodeNPYHeader(NPYFloat64, []int{1}, 200); err == nil {
		t.Error("Expected error for reserved size that is not a multiple of 64")
	}
}

func TestImageNPYRoundTrip(t *testing.T) {
	img := core.NewImage(3, 2, 4)
	for i := range img.Pix {
		img.Pix[i] = float64(i) * 0.25
	}

	path := filepath.Join(t.TempDir(), "reference.npy")
	if err := SaveImageNPY(img, path); err != nil {
		t.Fatalf("SaveImageNPY failed: %v", err)
	}

	loaded, err := LoadImageNPY(path)
	if err != nil {
		t.Fatalf("LoadImageNPY failed: %v", err)
	}
	if err := img.SameShape(loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.At(2, 1, 3) != img.At(2, 1, 3) {
		t.Errorf("Expected %g at (2,1,3), got %g", img.At(2, 1, 3), loaded.At(2, 1, 3))
	}
}

func TestLoadImageNPY_RejectsWrongRank(t *testing.T) {
	path := writeTestNPY(t, "vector.npy", []int{4}, []float64{1, 2, 3, 4})
	if _, err := LoadImageNPY(path); err == nil {
		t.Error("Expected error for 1-D array")
	}
}

func TestReadVectorTail(t *testing.T) {
	// Two snapshots of a 4-band vector, the newest last
	path := writeTestNPY(t, "reflect.npy", []int{2, 4}, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8})

	tail, err := ReadVectorTail(path, 4)
	if err != nil {
		t.Fatalf("ReadVectorTail failed: %v", err)
	}
	expected := []float64{0.5, 0.6, 0.7, 0.8}
	for i := range expected {
		if tail[i] != expected[i] {
			t.Errorf("Element %d: expected %g, got %g", i, expected[i], tail[i])
		}
	}

	if _, err := ReadVectorTail(path, 9); !errors.Is(err, ErrShortSnapshot) {
		t.Errorf("Expected ErrShortSnapshot, got %v", err)
	}
	if _, err := ReadVectorTail(filepath.Join(t.TempDir(), "missing.npy"), 4); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReadNPY_Float32(t *testing.T) {
	header, err := EncodeNPYHeader("<f4", []int{3}, 0)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.Write(header)
	for _, v := range []float32{0.5, 0.25, 2} {
		binary.Write(&buf, binary.LittleEndian, math.Float32bits(v))
	}

	array, err := ReadNPY(&buf)
	if err != nil {
		t.Fatalf("ReadNPY failed: %v", err)
	}
	if len(array.Shape) != 1 || array.Shape[0] != 3 {
		t.Errorf("Unexpected shape %v", array.Shape)
	}
	if array.Data[0] != 0.5 || array.Data[1] != 0.25 || array.Data[2] != 2 {
		t.Errorf("Unexpected data %v", array.Data)
	}
}

func TestWriteNPY_ShapeMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteNPY(&buf, []int{2, 2}, []float64{1, 2, 3}); err == nil {
		t.Error("Expected error when data does not fill the shape")
	}
}

func writeTestNPY(t *testing.T, name string, shape []int, data []float64) string {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteNPY(&buf, shape, data); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
