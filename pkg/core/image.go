package core

import "fmt"

// Image is a multi-band raster stored row-major with the band index fastest,
// the same memory layout as a NumPy (height, width, bands) array.
type Image struct {
	Width  int
	Height int
	Bands  int
	Pix    []float64
}

// NewImage allocates a zeroed image
func NewImage(width, height, bands int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Bands:  bands,
		Pix:    make([]float64, width*height*bands),
	}
}

// offset returns the index of band b at pixel (x, y)
func (img *Image) offset(x, y, b int) int {
	return (y*img.Width+x)*img.Bands + b
}

// At returns the value of band b at pixel (x, y)
func (img *Image) At(x, y, b int) float64 {
	return img.Pix[img.offset(x, y, b)]
}

// Set stores the value of band b at pixel (x, y)
func (img *Image) Set(x, y, b int, v float64) {
	img.Pix[img.offset(x, y, b)] = v
}

// SetSpectrum stores all bands of a pixel from a spectrum
func (img *Image) SetSpectrum(x, y int, s Spectrum) {
	base := img.offset(x, y, 0)
	copy(img.Pix[base:base+img.Bands], s[:img.Bands])
}

// Band extracts band b as a row-major height*width slice
func (img *Image) Band(b int) []float64 {
	out := make([]float64, img.Width*img.Height)
	for i := range out {
		out[i] = img.Pix[i*img.Bands+b]
	}
	return out
}

// Shape returns the NumPy-style shape (height, width, bands)
func (img *Image) Shape() []int {
	return []int{img.Height, img.Width, img.Bands}
}

// SameShape returns an error when other does not have the same dimensions
func (img *Image) SameShape(other *Image) error {
	if img.Width != other.Width || img.Height != other.Height || img.Bands != other.Bands {
		return fmt.Errorf("image shape mismatch: %v vs %v", img.Shape(), other.Shape())
	}
	return nil
}

// Clone returns a deep copy of the image
func (img *Image) Clone() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Bands: img.Bands, Pix: make([]float64, len(img.Pix))}
	copy(out.Pix, img.Pix)
	return out
}
