// Package inversion estimates leaf reflectance and transmittance spectra by
// gradient descent against a reference image.
package inversion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/optim"
)

// DefaultIterations is the fixed number of optimizer steps of a fit
const DefaultIterations = 50

// Parameters is the writable, differentiable parameter view of a scene
type Parameters interface {
	Get(key string) (core.Spectrum, error)
	Set(key string, value core.Spectrum) error
	EnableGrad(key string) error
}

// Config controls one fit
type Config struct {
	ReflectanceKey   string
	TransmittanceKey string
	Iterations       int
	Seed             int64 // Render seed of every iteration
	VarySeed         bool  // Use Seed+i for iteration i instead
	Adam             optim.AdamConfig
	Bounds           optim.Bounds
	Loss             LossStrategy
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.ReflectanceKey == "" || c.TransmittanceKey == "" {
		return fmt.Errorf("both parameter keys must be set")
	}
	if c.ReflectanceKey == c.TransmittanceKey {
		return fmt.Errorf("reflectance and transmittance keys must differ, both are %q", c.ReflectanceKey)
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", c.Iterations)
	}
	if c.Loss == nil {
		return fmt.Errorf("no loss strategy")
	}
	if err := c.Adam.Validate(); err != nil {
		return err
	}
	return c.Bounds.Validate()
}

// InitialGuess replaces the scene's values before fitting. A nil vector
// keeps the value from the scene.
type InitialGuess struct {
	Reflectance   []float64
	Transmittance []float64
}

// Iteration is the state after one optimizer step
type Iteration struct {
	Index          int
	Seed           int64
	Loss           float64
	ParameterError float64 // Summed absolute error of both vectors against ground truth
	Reflectance    []float64
	Transmittance  []float64
	Duration       time.Duration
}

// Observer receives every completed iteration. An error aborts the fit.
type Observer interface {
	ObserveIteration(it Iteration) error
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(it Iteration) error

// ObserveIteration calls f(it)
func (f ObserverFunc) ObserveIteration(it Iteration) error {
	return f(it)
}

// Summary is the outcome of a completed fit
type Summary struct {
	InitialLoss   float64
	Iterations    []Iteration
	Reference     [2][]float64 // Ground truth reflectance, transmittance
	Initial       [2][]float64 // Values at the first iteration
	Fitted        [2][]float64 // Values after the last iteration
	FinalLoss     float64
	FinalError    float64
	TotalDuration time.Duration
}

// Fitter runs the fixed-length optimization loop
type Fitter struct {
	renderer  Renderer
	params    Parameters
	reference *core.Image
	config    Config
	logger    *slog.Logger
	progress  io.Writer
	observers []Observer
}

// NewFitter creates a fitter. progress receives one human-readable line per
// iteration and may be nil.
func NewFitter(r Renderer, params Parameters, reference *core.Image, config Config, logger *slog.Logger, progress io.Writer) (*Fitter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fit configuration: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Fitter{
		renderer:  r,
		params:    params,
		reference: reference,
		config:    config,
		logger:    logger,
		progress:  progress,
	}, nil
}

// AddObserver registers an observer, called in registration order
func (f *Fitter) AddObserver(o Observer) {
	f.observers = append(f.observers, o)
}

// Run performs the fit. The scene's values at entry are the ground truth
// used for error reporting; guess then replaces them. Every iteration
// renders, evaluates the loss, steps Adam, clamps both vectors and writes
// them back to the scene. There is no convergence check.
func (f *Fitter) Run(ctx context.Context, guess InitialGuess) (*Summary, error) {
	start := time.Now()
	keys := []string{f.config.ReflectanceKey, f.config.TransmittanceKey}
	summary := &Summary{}

	// Ground truth snapshot
	for i, key := range keys {
		value, err := f.params.Get(key)
		if err != nil {
			return nil, err
		}
		summary.Reference[i] = value.Slice()
	}

	for i, values := range [][]float64{guess.Reflectance, guess.Transmittance} {
		if values == nil {
			continue
		}
		s, err := core.SpectrumFromSlice(values)
		if err != nil {
			return nil, fmt.Errorf("invalid initial guess for %s: %w", keys[i], err)
		}
		if err := f.params.Set(keys[i], s); err != nil {
			return nil, err
		}
	}

	opt := optim.NewAdam(f.config.Adam)
	for i, key := range keys {
		if err := f.params.EnableGrad(key); err != nil {
			return nil, err
		}
		value, _ := f.params.Get(key)
		summary.Initial[i] = value.Slice()
		opt.Register(key, summary.Initial[i])
	}

	f.logger.Info("fit starting",
		"loss", f.config.Loss.Name(),
		"iterations", f.config.Iterations,
		"reference_reflectance", formatVector(summary.Reference[0]),
		"reference_transmittance", formatVector(summary.Reference[1]),
		"initial_reflectance", formatVector(summary.Initial[0]),
		"initial_transmittance", formatVector(summary.Initial[1]))

	initial, err := f.config.Loss.Evaluate(ctx, f.renderer, f.reference, f.config.Seed, nil)
	if err != nil {
		return nil, fmt.Errorf("initial render failed: %w", err)
	}
	summary.InitialLoss = initial.Loss
	f.logger.Debug("initial loss", "loss", initial.Loss)

	for it := 0; it < f.config.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("fit interrupted after %d iterations: %w", it, err)
		}

		iteration, err := f.step(ctx, opt, it, keys, summary.Reference)
		if err != nil {
			return summary, fmt.Errorf("iteration %d: %w", it, err)
		}
		summary.Iterations = append(summary.Iterations, iteration)

		fmt.Fprintf(f.progress, "Iteration %02d: loss error= %v, parameter error = %f, key1=%s,key2=%s\n",
			it, iteration.Loss, iteration.ParameterError, formatVector(iteration.Reflectance), formatVector(iteration.Transmittance))
		f.logger.Debug("iteration complete",
			"iteration", it,
			"seed", iteration.Seed,
			"loss", iteration.Loss,
			"parameter_error", iteration.ParameterError,
			"duration", iteration.Duration)

		for _, o := range f.observers {
			if err := o.ObserveIteration(iteration); err != nil {
				return summary, fmt.Errorf("iteration %d: %w", it, err)
			}
		}
	}

	last := summary.Iterations[len(summary.Iterations)-1]
	summary.Fitted = [2][]float64{last.Reflectance, last.Transmittance}
	summary.FinalLoss = last.Loss
	summary.FinalError = last.ParameterError
	summary.TotalDuration = time.Since(start)

	f.logger.Info("fit complete",
		"reference_reflectance", formatVector(summary.Reference[0]),
		"reference_transmittance", formatVector(summary.Reference[1]),
		"fitted_reflectance", formatVector(summary.Fitted[0]),
		"fitted_transmittance", formatVector(summary.Fitted[1]),
		"final_loss", summary.FinalLoss,
		"parameter_error", summary.FinalError,
		"duration", summary.TotalDuration)

	return summary, nil
}

// step runs one iteration: evaluate, update, clamp and write back
func (f *Fitter) step(ctx context.Context, opt *optim.Adam, it int, keys []string, reference [2][]float64) (Iteration, error) {
	start := time.Now()
	seed := f.config.Seed
	if f.config.VarySeed {
		seed += int64(it)
	}

	eval, err := f.config.Loss.Evaluate(ctx, f.renderer, f.reference, seed, keys)
	if err != nil {
		return Iteration{}, err
	}
	if err := opt.Step(eval.Gradient); err != nil {
		return Iteration{}, err
	}
	opt.ClampAll(f.config.Bounds)

	iteration := Iteration{Index: it, Seed: seed, Loss: eval.Loss}
	values := make([][]float64, len(keys))
	for i, key := range keys {
		values[i], _ = opt.Value(key)
		s, err := core.SpectrumFromSlice(values[i])
		if err != nil {
			return Iteration{}, err
		}
		if err := f.params.Set(key, s); err != nil {
			return Iteration{}, err
		}
		iteration.ParameterError += floats.Distance(reference[i], values[i], 1)
	}
	iteration.Reflectance = values[0]
	iteration.Transmittance = values[1]
	iteration.Duration = time.Since(start)
	return iteration, nil
}

// formatVector prints a vector as [a, b, c]
func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
