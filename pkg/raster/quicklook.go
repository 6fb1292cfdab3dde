package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"slices"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-drtm/pkg/core"
)

// DefaultQuicklookBands is a false-colour composite: NIR as red, red as
// green, green as blue
var DefaultQuicklookBands = [3]int{3, 2, 1}

// WriteQuicklook writes an 8-bit PNG preview of three bands. Each band is
// stretched linearly between its 2nd and 98th percentile and encoded as sRGB.
func WriteQuicklook(img *core.Image, path string, bands [3]int) error {
	var planes [3][]float64
	var lo, hi [3]float64
	for c, b := range bands {
		if b < 0 || b >= img.Bands {
			return fmt.Errorf("quicklook band %d out of range for %d bands", b, img.Bands)
		}
		planes[c] = img.Band(b)
		sorted := slices.Clone(planes[c])
		slices.Sort(sorted)
		lo[c] = stat.Quantile(0.02, stat.Empirical, sorted, nil)
		hi[c] = stat.Quantile(0.98, stat.Empirical, sorted, nil)
	}

	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := y*img.Width + x
			var v [3]float64
			for c := range v {
				if hi[c] > lo[c] {
					v[c] = (planes[c][i] - lo[c]) / (hi[c] - lo[c])
				}
			}
			r, g, b := colorful.LinearRgb(v[0], v[1], v[2]).Clamped().RGB255()
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create quicklook: %w", err)
	}
	if err := png.Encode(file, out); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode quicklook: %w", err)
	}
	return file.Close()
}
