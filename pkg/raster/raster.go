// Package raster writes and reads multi-band float32 rasters in the ENVI
// and GeoTIFF layouts through the GDAL drivers of the same names.
package raster

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/df07/go-drtm/pkg/core"
)

var (
	// ErrUnknownFormat is returned for a format name other than ENVI or TIFF/GTiff
	ErrUnknownFormat = errors.New("unknown raster format")
	// ErrBandMismatch is returned when the wavelength list does not match the band count
	ErrBandMismatch = errors.New("wavelength count does not match band count")
)

// Format is an output raster layout
type Format string

const (
	FormatENVI  Format = "ENVI"
	FormatGTiff Format = "GTiff"
)

// ParseFormat maps a format name to a Format. "TIFF" is accepted as an
// alias of GTiff; matching is case-insensitive.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "envi":
		return FormatENVI, nil
	case "tiff", "gtiff", "tif", "geotiff":
		return FormatGTiff, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Info describes a raster on disk
type Info struct {
	Format      Format
	Path        string // Data file
	HeaderPath  string // ENVI header, empty for GeoTIFF
	Width       int
	Height      int
	Bands       int
	DataType    string // GDAL data type name, e.g. Float32
	Wavelengths []float64
}

// Write stores img at path in the named format and returns the paths of the
// files written. ENVI writes path and path.hdr; GeoTIFF writes path.tif.
// When wavelengths are given their count must equal the band count.
func Write(img *core.Image, path string, wavelengths []float64, format string) ([]string, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if len(wavelengths) > 0 && len(wavelengths) != img.Bands {
		return nil, fmt.Errorf("%w: %d wavelengths for %d bands", ErrBandMismatch, len(wavelengths), img.Bands)
	}

	if f == FormatENVI {
		header := path + ".hdr"
		if err := writeDataset(img, f, path, wavelengths); err != nil {
			return nil, err
		}
		if len(wavelengths) > 0 {
			if err := appendWavelengthField(header, wavelengths); err != nil {
				return nil, err
			}
		}
		return []string{path, header}, nil
	}

	out := path + ".tif"
	if err := writeDataset(img, f, out, wavelengths); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

// Inspect reads the description of the raster at path without loading pixels
func Inspect(path string) (*Info, error) {
	info, _, err := open(path, false)
	return info, err
}

// Read loads the raster at path as a (height, width, bands) image
func Read(path string) (*core.Image, *Info, error) {
	info, img, err := open(path, true)
	return img, info, err
}

// open resolves the ENVI header of path, if any, and opens the dataset. An
// ENVI dataset may be named by its data file or its .hdr header.
func open(path string, withPixels bool) (*Info, *core.Image, error) {
	if strings.HasSuffix(path, ".hdr") {
		return openDataset(strings.TrimSuffix(path, ".hdr"), path, withPixels)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("failed to open raster: %w", err)
	}
	header := ""
	if _, err := os.Stat(path + ".hdr"); err == nil {
		header = path + ".hdr"
	}
	return openDataset(path, header, withPixels)
}
