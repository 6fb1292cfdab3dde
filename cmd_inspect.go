package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-drtm/pkg/raster"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <raster>",
		Short: "Show the dimensions and wavelengths of an ENVI or GeoTIFF raster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withStats, _ := cmd.Flags().GetBool("stats")
			return runInspect(cmd.OutOrStdout(), args[0], withStats)
		},
	}
	cmd.Flags().Bool("stats", false, "Also print per-band min, max and mean")
	return cmd
}

func runInspect(out io.Writer, path string, withStats bool) error {
	var (
		info *raster.Info
		err  error
	)
	if !withStats {
		if info, err = raster.Inspect(path); err != nil {
			return err
		}
		printInfo(out, info)
		return nil
	}

	img, info, err := raster.Read(path)
	if err != nil {
		return err
	}
	printInfo(out, info)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BAND\tWAVELENGTH\tMIN\tMAX\tMEAN")
	for b := 0; b < img.Bands; b++ {
		band := img.Band(b)
		wavelength := "-"
		if b < len(info.Wavelengths) {
			wavelength = strconv.FormatFloat(info.Wavelengths[b], 'f', -1, 64)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.6g\t%.6g\t%.6g\n",
			b+1, wavelength, floats.Min(band), floats.Max(band), stat.Mean(band, nil))
	}
	return tw.Flush()
}

func printInfo(out io.Writer, info *raster.Info) {
	fmt.Fprintf(out, "File:        %s\n", info.Path)
	if info.HeaderPath != "" {
		fmt.Fprintf(out, "Header:      %s\n", info.HeaderPath)
	}
	fmt.Fprintf(out, "Format:      %s\n", info.Format)
	fmt.Fprintf(out, "Size:        %d x %d\n", info.Width, info.Height)
	fmt.Fprintf(out, "Bands:       %d\n", info.Bands)
	fmt.Fprintf(out, "Data type:   %s\n", info.DataType)
	if len(info.Wavelengths) > 0 {
		parts := make([]string, len(info.Wavelengths))
		for i, w := range info.Wavelengths {
			parts[i] = strconv.FormatFloat(w, 'f', -1, 64)
		}
		fmt.Fprintf(out, "Wavelengths: %s\n", strings.Join(parts, ", "))
	}
}
