package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/df07/go-drtm/pkg/config"
	"github.com/df07/go-drtm/pkg/ledger"
	"github.com/df07/go-drtm/pkg/logging"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drtm",
		Short: "Differentiable radiative transfer model for vegetation canopies",
		Long: `drtm renders multi-band images of vegetation scenes with a path tracer
that also computes derivatives with respect to leaf optical properties.

simulate renders a scene once and writes an ENVI or GeoTIFF raster.
invert fits leaf reflectance and transmittance spectra to a reference image.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newInvertCmd(),
		newInspectCmd(),
		newScenesCmd(),
		newTraceCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "drtm version %s\n", version)
		},
	}
}

// runtime is the per-invocation state shared by the commands
type runtime struct {
	config *config.Config
	logger *slog.Logger
	ledger *ledger.Ledger // nil when the ledger is disabled
}

// newRuntime loads the configuration, lets apply copy command flags into it,
// validates the result and opens the logger and ledger
func newRuntime(cmd *cobra.Command, apply func(*config.Config) error) (*runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if err := applyRenderFlags(cmd, &cfg.Render); err != nil {
		return nil, err
	}
	if apply != nil {
		if err := apply(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt := &runtime{
		config: cfg,
		logger: logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
	}
	if cfg.Ledger.Path != "" {
		if rt.ledger, err = ledger.Open(cfg.Ledger.Path); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

// closeInto closes c and joins its error into *err. Use it with defer on a
// named error result.
func closeInto(err *error, c io.Closer) {
	*err = errors.Join(*err, c.Close())
}

// Close releases the ledger
func (rt *runtime) Close() error {
	if rt.ledger == nil {
		return nil
	}
	return rt.ledger.Close()
}

// startRun records a run in the ledger and returns its id, or "" when the
// ledger is disabled
func (rt *runtime) startRun(ctx context.Context, kind, scenePath string, settings any) (string, error) {
	if rt.ledger == nil {
		return "", nil
	}
	id, err := rt.ledger.StartRun(ctx, kind, scenePath, settings)
	if err != nil {
		return "", err
	}
	rt.logger.Debug("run recorded", "id", id, "kind", kind, "ledger", rt.ledger.Path())
	return id, nil
}

// finishRun completes the ledger entry of a run and joins any ledger error
// with runErr
func (rt *runtime) finishRun(ctx context.Context, id string, runErr error, finalLoss *float64, outputs []string) error {
	if rt.ledger == nil || id == "" {
		return runErr
	}
	// The run may have been interrupted, the ledger must still be updated
	err := rt.ledger.FinishRun(context.WithoutCancel(ctx), id, runErr, finalLoss, outputs)
	return errors.Join(runErr, err)
}

// addRenderFlags registers the render overrides shared by simulate and invert
func addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().Int("width", 0, "Override the film width")
	cmd.Flags().Int("height", 0, "Override the film height")
	cmd.Flags().Int("spp", 0, "Override the samples per pixel")
	cmd.Flags().Int("max-depth", 0, "Override the maximum path depth")
	cmd.Flags().Int("workers", 0, "Number of render workers (0 uses every CPU)")
	cmd.Flags().Int64("seed", 0, "Render seed")
}

// applyRenderFlags copies the render flags that were set into r
func applyRenderFlags(cmd *cobra.Command, r *config.RenderConfig) error {
	ints := map[string]*int{
		"width":     &r.Width,
		"height":    &r.Height,
		"spp":       &r.SamplesPerPixel,
		"max-depth": &r.MaxDepth,
		"workers":   &r.Workers,
	}
	for name, dst := range ints {
		if cmd.Flags().Lookup(name) == nil || !cmd.Flags().Changed(name) {
			continue
		}
		v, err := cmd.Flags().GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if cmd.Flags().Lookup("seed") != nil && cmd.Flags().Changed("seed") {
		seed, err := cmd.Flags().GetInt64("seed")
		if err != nil {
			return err
		}
		r.Seed = seed
	}
	return nil
}
