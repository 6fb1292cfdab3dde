package core

import (
	"fmt"
	"strconv"
	"strings"
)

// NumBands is the number of spectral bands carried by every Spectrum
const NumBands = 4

// Spectrum holds one value per spectral band
type Spectrum [NumBands]float64

// UniformSpectrum returns a spectrum with the same value in every band
func UniformSpectrum(value float64) Spectrum {
	var s Spectrum
	for i := range s {
		s[i] = value
	}
	return s
}

// SpectrumFromSlice converts a slice of exactly NumBands values into a Spectrum
func SpectrumFromSlice(values []float64) (Spectrum, error) {
	var s Spectrum
	if len(values) != NumBands {
		return s, fmt.Errorf("spectrum needs %d values, got %d", NumBands, len(values))
	}
	copy(s[:], values)
	return s, nil
}

// Add returns the band-wise sum
func (s Spectrum) Add(other Spectrum) Spectrum {
	for i := range s {
		s[i] += other[i]
	}
	return s
}

// Subtract returns the band-wise difference
func (s Spectrum) Subtract(other Spectrum) Spectrum {
	for i := range s {
		s[i] -= other[i]
	}
	return s
}

// Multiply returns the band-wise product
func (s Spectrum) Multiply(other Spectrum) Spectrum {
	for i := range s {
		s[i] *= other[i]
	}
	return s
}

// Scale returns the spectrum multiplied by a scalar
func (s Spectrum) Scale(factor float64) Spectrum {
	for i := range s {
		s[i] *= factor
	}
	return s
}

// Max returns the largest band value
func (s Spectrum) Max() float64 {
	m := s[0]
	for _, v := range s[1:] {
		m = max(m, v)
	}
	return m
}

// IsZero reports whether every band is exactly zero
func (s Spectrum) IsZero() bool {
	return s == Spectrum{}
}

// Clamp returns the spectrum with every band clamped to [minVal, maxVal]
func (s Spectrum) Clamp(minVal, maxVal float64) Spectrum {
	for i := range s {
		s[i] = max(minVal, min(maxVal, s[i]))
	}
	return s
}

// Slice returns a copy of the band values as a slice
func (s Spectrum) Slice() []float64 {
	out := make([]float64, NumBands)
	copy(out, s[:])
	return out
}

// String formats the spectrum as [v0, v1, ...]
func (s Spectrum) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
