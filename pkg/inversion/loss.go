package inversion

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/renderer"
)

// DefaultLossScale lifts the image MSE of radiance values into a range where
// the gradients are not vanishingly small
const DefaultLossScale = 1e8

// crossSeedStride separates the seeds of the two renders of CrossRender
const crossSeedStride = 1 << 32

// Renderer produces an image and its derivatives with respect to gradKeys
type Renderer interface {
	Render(ctx context.Context, seed int64, gradKeys []string) (*renderer.Result, error)
}

// Evaluation is the loss of one iteration and its gradient per parameter key.
// Gradient[key][b] is d loss / d param[b].
type Evaluation struct {
	Loss     float64
	Gradient map[string][]float64
}

// LossStrategy compares renders of the current parameters with the reference
type LossStrategy interface {
	Name() string
	Evaluate(ctx context.Context, r Renderer, reference *core.Image, seed int64, keys []string) (*Evaluation, error)
}

// NewLossStrategy returns the strategy registered under name ("mse" or "cross")
func NewLossStrategy(name string, scale float64) (LossStrategy, error) {
	switch name {
	case "", "mse":
		return DirectMSE{Scale: scale}, nil
	case "cross":
		return CrossRender{Scale: scale}, nil
	default:
		return nil, fmt.Errorf("unknown loss strategy %q (expected mse or cross)", name)
	}
}

// DirectMSE is scale * mean((image - reference)^2) over every pixel and band
type DirectMSE struct {
	Scale float64
}

// Name returns the configuration name of the strategy
func (DirectMSE) Name() string { return "mse" }

// Evaluate renders once and differentiates the squared error
func (l DirectMSE) Evaluate(ctx context.Context, r Renderer, reference *core.Image, seed int64, keys []string) (*Evaluation, error) {
	result, err := render(ctx, r, reference, seed, keys)
	if err != nil {
		return nil, err
	}

	residual := make([]float64, len(reference.Pix))
	floats.SubTo(residual, result.Image.Pix, reference.Pix)
	n := float64(len(residual))

	eval := &Evaluation{
		Loss:     l.Scale * floats.Dot(residual, residual) / n,
		Gradient: make(map[string][]float64, len(keys)),
	}
	for _, key := range keys {
		eval.Gradient[key] = bandDot(residual, result.Gradients[key].Pix, reference.Bands, 2*l.Scale/n)
	}
	return eval, nil
}

// CrossRender renders twice with independent noise and uses
// scale * mean((a - reference) * (b - reference)). Its expectation has no
// noise floor, unlike the squared error of a single render.
type CrossRender struct {
	Scale float64
}

// Name returns the configuration name of the strategy
func (CrossRender) Name() string { return "cross" }

// Evaluate renders twice and differentiates the residual product
func (l CrossRender) Evaluate(ctx context.Context, r Renderer, reference *core.Image, seed int64, keys []string) (*Evaluation, error) {
	a, err := render(ctx, r, reference, seed, keys)
	if err != nil {
		return nil, err
	}
	b, err := render(ctx, r, reference, seed+crossSeedStride, keys)
	if err != nil {
		return nil, err
	}

	residualA := make([]float64, len(reference.Pix))
	residualB := make([]float64, len(reference.Pix))
	floats.SubTo(residualA, a.Image.Pix, reference.Pix)
	floats.SubTo(residualB, b.Image.Pix, reference.Pix)
	n := float64(len(residualA))

	eval := &Evaluation{
		Loss:     l.Scale * floats.Dot(residualA, residualB) / n,
		Gradient: make(map[string][]float64, len(keys)),
	}
	for _, key := range keys {
		ga := bandDot(residualB, a.Gradients[key].Pix, reference.Bands, l.Scale/n)
		gb := bandDot(residualA, b.Gradients[key].Pix, reference.Bands, l.Scale/n)
		floats.Add(ga, gb)
		eval.Gradient[key] = ga
	}
	return eval, nil
}

// render renders and checks the result against the reference shape
func render(ctx context.Context, r Renderer, reference *core.Image, seed int64, keys []string) (*renderer.Result, error) {
	result, err := r.Render(ctx, seed, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to render: %w", err)
	}
	if err := result.Image.SameShape(reference); err != nil {
		return nil, fmt.Errorf("render does not match reference: %w", err)
	}
	for _, key := range keys {
		g, ok := result.Gradients[key]
		if !ok {
			return nil, fmt.Errorf("renderer returned no gradient for %q", key)
		}
		if err := g.SameShape(reference); err != nil {
			return nil, fmt.Errorf("gradient %q: %w", key, err)
		}
	}
	return result, nil
}

// bandDot returns scale * sum_p a[p,b] * d[p,b] for every band b of two
// interleaved (pixels, bands) arrays
func bandDot(a, d []float64, bands int, scale float64) []float64 {
	out := make([]float64, bands)
	for i := range a {
		out[i%bands] += a[i] * d[i]
	}
	floats.Scale(scale, out)
	return out
}
