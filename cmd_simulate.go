package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/df07/go-drtm/pkg/config"
	"github.com/df07/go-drtm/pkg/ledger"
	"github.com/df07/go-drtm/pkg/simulation"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Render a scene once and write it as a multi-band raster",
		Long: `Render a scene description and export the image as ENVI or GeoTIFF.

ENVI writes <output> and <output>.hdr with the band wavelengths appended
to the header. TIFF/GTiff writes <output>.tif with each band's wavelength
in its GDAL band metadata.`,
		Example: `  drtm simulate --scene builtin:canopy --format TIFF --output drtm-iamgery
  drtm simulate --scene scenes/tico.yaml --format ENVI --wavelengths 442.948,560.4305,665.2445,865.587`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rt, err := newRuntime(cmd, func(c *config.Config) error {
				return applySimulateFlags(cmd, &c.Simulate)
			})
			if err != nil {
				return err
			}
			defer closeInto(&err, rt)
			return runSimulate(cmd.Context(), rt, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("scene", "", "Scene file or builtin:<name>")
	cmd.Flags().StringP("output", "o", "", "Output path without extension")
	cmd.Flags().String("format", "", "Raster format: ENVI or TIFF")
	cmd.Flags().Float64Slice("wavelengths", nil, "Band centre wavelengths in nm (default: the scene's)")
	cmd.Flags().Bool("npy", false, "Also write <output>.npy")
	cmd.Flags().Bool("quicklook", false, "Also write a false-colour <output>.png")
	addRenderFlags(cmd)

	return cmd
}

// applySimulateFlags copies the simulate flags that were set into s
func applySimulateFlags(cmd *cobra.Command, s *config.SimulateConfig) error {
	flags := cmd.Flags()
	if flags.Changed("scene") {
		s.Scene, _ = flags.GetString("scene")
	}
	if flags.Changed("output") {
		s.Output, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		s.Format, _ = flags.GetString("format")
	}
	if flags.Changed("wavelengths") {
		wavelengths, err := flags.GetFloat64Slice("wavelengths")
		if err != nil {
			return err
		}
		s.Wavelengths = wavelengths
	}
	if flags.Changed("npy") {
		s.NPY, _ = flags.GetBool("npy")
	}
	if flags.Changed("quicklook") {
		s.Quicklook, _ = flags.GetBool("quicklook")
	}
	return nil
}

func runSimulate(ctx context.Context, rt *runtime, out io.Writer) error {
	cfg := rt.config
	runID, err := rt.startRun(ctx, ledger.KindSimulate, cfg.Simulate.Scene, cfg)
	if err != nil {
		return err
	}

	result, err := simulation.Simulate(ctx, simulation.Options{
		ScenePath:   cfg.Simulate.Scene,
		Overrides:   cfg.Render.Overrides(),
		Output:      cfg.Simulate.Output,
		Format:      cfg.Simulate.Format,
		Wavelengths: cfg.Simulate.Wavelengths,
		Seed:        cfg.Render.Seed,
		NumWorkers:  cfg.Render.Workers,
		TileSize:    cfg.Render.TileSize,
		SaveNPY:     cfg.Simulate.NPY,
		Quicklook:   cfg.Simulate.Quicklook,
	}, rt.logger)

	var files []string
	if err == nil {
		files = result.Files
		for _, f := range files {
			fmt.Fprintf(out, "Wrote %s\n", f)
		}
	}
	return rt.finishRun(ctx, runID, err, nil, files)
}
