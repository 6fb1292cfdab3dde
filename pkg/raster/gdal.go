package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lukeroth/gdal"

	"github.com/df07/go-drtm/pkg/core"
)

// Creation options per driver. SUFFIX=ADD names the ENVI header path.hdr
// instead of replacing the data file extension.
var createOptions = map[Format][]string{
	FormatENVI:  {"SUFFIX=ADD", "INTERLEAVE=BSQ"},
	FormatGTiff: {"INTERLEAVE=BAND"},
}

// writeDataset creates a float32 dataset with one band per image band.
// Band i holds img[:, :, i-1]. GeoTIFF bands also carry their wavelength
// as band metadata.
func writeDataset(img *core.Image, f Format, path string, wavelengths []float64) error {
	driver, err := gdal.GetDriverByName(string(f))
	if err != nil {
		return fmt.Errorf("failed to load %s driver: %w", f, err)
	}
	if st, err := os.Stat(filepath.Dir(path)); err != nil || !st.IsDir() {
		return fmt.Errorf("failed to create %s: output directory does not exist", path)
	}

	dataset := driver.Create(path, img.Width, img.Height, img.Bands, gdal.Float32, createOptions[f])
	defer dataset.Close()

	plane := make([]float32, img.Width*img.Height)
	for b := 0; b < img.Bands; b++ {
		for i, v := range img.Band(b) {
			plane[i] = float32(v)
		}
		band := dataset.RasterBand(b + 1)
		if err := band.IO(gdal.RWFlag(gdal.Write), 0, 0, img.Width, img.Height, plane, img.Width, img.Height, 0, 0); err != nil {
			return fmt.Errorf("failed to write band %d: %w", b+1, err)
		}
		if f == FormatGTiff && len(wavelengths) > 0 {
			if err := band.SetMetadataItem("wavelength", strconv.FormatFloat(wavelengths[b], 'f', -1, 64), ""); err != nil {
				return fmt.Errorf("failed to tag band %d: %w", b+1, err)
			}
			if err := band.SetMetadataItem("wavelength_units", "nm", ""); err != nil {
				return fmt.Errorf("failed to tag band %d: %w", b+1, err)
			}
		}
	}
	return nil
}

// openDataset describes the raster at path and optionally loads its pixels
func openDataset(path, headerPath string, withPixels bool) (*Info, *core.Image, error) {
	dataset, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrUnknownFormat, path, err)
	}
	defer dataset.Close()

	info := &Info{
		Format:     Format(dataset.Driver().ShortName()),
		Path:       path,
		HeaderPath: headerPath,
		Width:      dataset.RasterXSize(),
		Height:     dataset.RasterYSize(),
		Bands:      dataset.RasterCount(),
	}
	if info.Bands == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no raster bands", ErrUnknownFormat, path)
	}
	info.DataType = dataset.RasterBand(1).RasterDataType().Name()

	if info.Format == FormatENVI && headerPath != "" {
		if info.Wavelengths, err = headerWavelengths(headerPath); err != nil {
			return nil, nil, err
		}
	} else {
		for b := 1; b <= info.Bands; b++ {
			item := dataset.RasterBand(b).MetadataItem("wavelength", "")
			if item == "" {
				info.Wavelengths = nil
				break
			}
			w, err := strconv.ParseFloat(item, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: invalid wavelength %q on band %d: %w", path, item, b, err)
			}
			info.Wavelengths = append(info.Wavelengths, w)
		}
	}

	if !withPixels {
		return info, nil, nil
	}

	img := core.NewImage(info.Width, info.Height, info.Bands)
	plane := make([]float64, info.Width*info.Height)
	for b := 0; b < info.Bands; b++ {
		band := dataset.RasterBand(b + 1)
		if err := band.IO(gdal.RWFlag(gdal.Read), 0, 0, info.Width, info.Height, plane, info.Width, info.Height, 0, 0); err != nil {
			return nil, nil, fmt.Errorf("failed to read band %d: %w", b+1, err)
		}
		for i, v := range plane {
			img.Pix[i*info.Bands+b] = v
		}
	}
	return info, img, nil
}
