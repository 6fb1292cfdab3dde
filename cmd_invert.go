package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/df07/go-drtm/pkg/config"
	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/inversion"
	"github.com/df07/go-drtm/pkg/ledger"
	"github.com/df07/go-drtm/pkg/loaders"
	"github.com/df07/go-drtm/pkg/logging"
	"github.com/df07/go-drtm/pkg/renderer"
	"github.com/df07/go-drtm/pkg/scene"
	"github.com/df07/go-drtm/pkg/trace"
)

func newInvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invert",
		Short: "Fit leaf reflectance and transmittance to a reference image",
		Long: `Estimate the reflectance and transmittance spectra of a scene material by
gradient descent. Every iteration renders the scene with derivatives,
compares it to the reference image, takes one Adam step and clamps both
vectors to the configured range.

The scene's values at load time are the ground truth used for the parameter
error. Initial guesses are the last four values of the --reflectance-init
and --transmittance-init .npy files (default reflect2.npy and trans2.npy).
The history is appended to reflect.npy, trans.npy and loss.npy in the trace
directory.`,
		Example: `  drtm invert --scene builtin:canopy --reflectance-init reflect.npy --transmittance-init trans.npy
  drtm invert --reference drtm-iamgery.npy --loss cross --iterations 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rt, err := newRuntime(cmd, func(c *config.Config) error {
				return applyInvertFlags(cmd, &c.Invert)
			})
			if err != nil {
				return err
			}
			defer closeInto(&err, rt)
			_, err = runInvert(cmd.Context(), rt, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().String("scene", "", "Scene file or builtin:<name>")
	cmd.Flags().String("reference", "", "Reference image .npy (default: render the scene)")
	cmd.Flags().String("reflectance-key", "", "Parameter key of the reflectance vector")
	cmd.Flags().String("transmittance-key", "", "Parameter key of the transmittance vector")
	cmd.Flags().String("reflectance-init", "", "Initial reflectance snapshot .npy (default reflect2.npy)")
	cmd.Flags().String("transmittance-init", "", "Initial transmittance snapshot .npy (default trans2.npy)")
	cmd.Flags().Int("iterations", 0, "Number of optimizer steps")
	cmd.Flags().String("loss", "", "Loss: mse or cross")
	cmd.Flags().Float64("lr", 0, "Adam learning rate")
	cmd.Flags().Bool("vary-seed", false, "Render iteration i with seed+i")
	cmd.Flags().String("trace-dir", "", "Directory of the trace arrays")
	addRenderFlags(cmd)

	return cmd
}

// applyInvertFlags copies the invert flags that were set into inv
func applyInvertFlags(cmd *cobra.Command, inv *config.InvertConfig) error {
	flags := cmd.Flags()
	strs := map[string]*string{
		"scene":              &inv.Scene,
		"reference":          &inv.Reference,
		"reflectance-key":    &inv.ReflectanceKey,
		"transmittance-key":  &inv.TransmittanceKey,
		"reflectance-init":   &inv.ReflectanceInit,
		"transmittance-init": &inv.TransmittanceInit,
		"loss":               &inv.Loss,
		"trace-dir":          &inv.TraceDir,
	}
	for name, dst := range strs {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("iterations") {
		inv.Iterations, _ = flags.GetInt("iterations")
	}
	if flags.Changed("lr") {
		inv.Adam.LearningRate, _ = flags.GetFloat64("lr")
	}
	if flags.Changed("vary-seed") {
		inv.VarySeed, _ = flags.GetBool("vary-seed")
	}
	return nil
}

// runInvert performs one fit with the trace, iteration log and ledger attached
func runInvert(ctx context.Context, rt *runtime, progress io.Writer) (summary *inversion.Summary, err error) {
	cfg := rt.config
	inv := cfg.Invert

	s, err := scene.Load(inv.Scene, cfg.Render.Overrides())
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}
	params := scene.Traverse(s)
	tracer := renderer.NewRaytracer(s, params, renderer.Config{
		TileSize:   cfg.Render.TileSize,
		NumWorkers: cfg.Render.Workers,
		Logger:     rt.logger,
	})

	guess, err := loadInitialGuess(inv)
	if err != nil {
		return nil, err
	}
	reference, err := loadReference(ctx, tracer, inv.Reference, cfg.Render.Seed)
	if err != nil {
		return nil, err
	}

	loss, err := inversion.NewLossStrategy(inv.Loss, inv.LossScale)
	if err != nil {
		return nil, err
	}
	fitter, err := inversion.NewFitter(tracer, params, reference, inversion.Config{
		ReflectanceKey:   inv.ReflectanceKey,
		TransmittanceKey: inv.TransmittanceKey,
		Iterations:       inv.Iterations,
		Seed:             cfg.Render.Seed,
		VarySeed:         inv.VarySeed,
		Adam:             inv.Adam,
		Bounds:           inv.Clamp,
		Loss:             loss,
	}, rt.logger, progress)
	if err != nil {
		return nil, err
	}

	set, err := trace.OpenSet(inv.TraceDir, core.NumBands)
	if err != nil {
		return nil, err
	}
	defer closeInto(&err, set)
	fitter.AddObserver(inversion.TraceObserver(set))

	iterLog, err := logging.NewIterationLog(inv.TraceDir, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to open iteration log: %w", err)
	}
	defer closeInto(&err, iterLog)
	fitter.AddObserver(inversion.IterationLogObserver(iterLog))

	runID, err := rt.startRun(ctx, ledger.KindInvert, inv.Scene, cfg)
	if err != nil {
		return nil, err
	}
	if runID != "" {
		fitter.AddObserver(inversion.LedgerObserver(ctx, rt.ledger, runID))
	}

	summary, err = fitter.Run(ctx, guess)
	var finalLoss *float64
	if err == nil {
		finalLoss = &summary.FinalLoss
	}
	outputs := []string{set.Reflectance.Path(), set.Transmittance.Path(), set.Loss.Path()}
	return summary, rt.finishRun(ctx, runID, err, finalLoss, outputs)
}

// loadReference reads the reference image from a .npy file, or renders the
// scene with its current values when path is empty
func loadReference(ctx context.Context, tracer *renderer.Raytracer, path string, seed int64) (*core.Image, error) {
	if path != "" {
		img, err := loaders.LoadImageNPY(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load reference image: %w", err)
		}
		return img, nil
	}

	result, err := tracer.Render(ctx, seed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to render reference image: %w", err)
	}
	return result.Image, nil
}

// loadInitialGuess reads the last NumBands values of both snapshots
func loadInitialGuess(inv config.InvertConfig) (inversion.InitialGuess, error) {
	var guess inversion.InitialGuess
	var err error
	if inv.ReflectanceInit == "" || inv.TransmittanceInit == "" {
		return guess, fmt.Errorf("both --reflectance-init and --transmittance-init are required")
	}
	if guess.Reflectance, err = loaders.ReadVectorTail(inv.ReflectanceInit, core.NumBands); err != nil {
		return guess, fmt.Errorf("failed to read initial reflectance: %w", err)
	}
	if guess.Transmittance, err = loaders.ReadVectorTail(inv.TransmittanceInit, core.NumBands); err != nil {
		return guess, fmt.Errorf("failed to read initial transmittance: %w", err)
	}
	return guess, nil
}
