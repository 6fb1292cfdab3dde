package core

import "testing"

func TestSpectrumFromSlice(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		wantErr bool
	}{
		{"four values", []float64{0.1, 0.2, 0.3, 0.4}, false},
		{"too few", []float64{0.1, 0.2}, true},
		{"too many", []float64{0.1, 0.2, 0.3, 0.4, 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := SpectrumFromSlice(tt.values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SpectrumFromSlice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && s[3] != 0.4 {
				t.Errorf("band 3 = %v, want 0.4", s[3])
			}
		})
	}
}

func TestSpectrum_Clamp(t *testing.T) {
	s := Spectrum{-0.5, 0.00001, 0.5, 1.7}
	got := s.Clamp(0.0001, 1.0)
	want := Spectrum{0.0001, 0.0001, 0.5, 1.0}
	if got != want {
		t.Errorf("Clamp() = %v, want %v", got, want)
	}
	// Receiver is a value; the original must be untouched
	if s[0] != -0.5 {
		t.Errorf("Clamp mutated the receiver: %v", s)
	}
}

func TestSpectrum_Arithmetic(t *testing.T) {
	a := Spectrum{1, 2, 3, 4}
	b := Spectrum{0.5, 0.5, 2, 0}

	if got := a.Multiply(b); got != (Spectrum{0.5, 1, 6, 0}) {
		t.Errorf("Multiply() = %v", got)
	}
	if got := a.Subtract(b); got != (Spectrum{0.5, 1.5, 1, 4}) {
		t.Errorf("Subtract() = %v", got)
	}
	if got := a.Scale(2).Max(); got != 8 {
		t.Errorf("Scale(2).Max() = %v, want 8", got)
	}
	if !(Spectrum{}).IsZero() || a.IsZero() {
		t.Error("IsZero() returned the wrong answer")
	}
}

func TestImage_LayoutMatchesNumPy(t *testing.T) {
	img := NewImage(3, 2, 4)
	img.Set(2, 1, 3, 7.5)

	// (H, W, B) row-major: index = (y*W + x)*B + b
	if img.Pix[(1*3+2)*4+3] != 7.5 {
		t.Fatalf("unexpected layout, pix = %v", img.Pix)
	}

	band := img.Band(3)
	if len(band) != 6 || band[1*3+2] != 7.5 {
		t.Errorf("Band(3) = %v", band)
	}

	clone := img.Clone()
	clone.Set(0, 0, 0, 1)
	if img.At(0, 0, 0) != 0 {
		t.Error("Clone shares pixel storage")
	}
	if err := img.SameShape(NewImage(3, 2, 3)); err == nil {
		t.Error("expected shape mismatch error")
	}
}
