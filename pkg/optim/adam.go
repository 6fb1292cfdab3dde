// Package optim holds the gradient-descent optimizer used by the fitting loop.
package optim

import (
	"fmt"
	"math"
	"slices"
)

// AdamConfig holds the Adam hyperparameters
type AdamConfig struct {
	LearningRate float64 `yaml:"learning_rate"`
	Beta1        float64 `yaml:"beta1"`
	Beta2        float64 `yaml:"beta2"`
	Epsilon      float64 `yaml:"epsilon"`
}

// DefaultAdamConfig returns the standard Adam settings with a 0.05 learning rate
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.05,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Validate checks the hyperparameters
func (c AdamConfig) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", c.LearningRate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("betas must be in [0, 1), got %g and %g", c.Beta1, c.Beta2)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %g", c.Epsilon)
	}
	return nil
}

// AdamState holds the moments of one registered parameter
type AdamState struct {
	Value []float64
	M     []float64 // First moment
	V     []float64 // Second moment
	T     int       // Steps taken
}

// Adam is a first-order optimizer with bias-corrected moment estimates.
// Each registered parameter keeps its own step count.
type Adam struct {
	config AdamConfig
	states map[string]*AdamState
	keys   []string
}

// NewAdam creates an optimizer with no registered parameters
func NewAdam(config AdamConfig) *Adam {
	return &Adam{config: config, states: make(map[string]*AdamState)}
}

// Register adds a trainable parameter, or resets its value and moments if
// it is already registered
func (a *Adam) Register(key string, value []float64) {
	if _, ok := a.states[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.states[key] = &AdamState{
		Value: slices.Clone(value),
		M:     make([]float64, len(value)),
		V:     make([]float64, len(value)),
	}
}

// Keys returns the registered parameters in registration order
func (a *Adam) Keys() []string {
	return slices.Clone(a.keys)
}

// Value returns a copy of the current value of key
func (a *Adam) Value(key string) ([]float64, error) {
	state, ok := a.states[key]
	if !ok {
		return nil, fmt.Errorf("parameter %q is not registered", key)
	}
	return slices.Clone(state.Value), nil
}

// Set replaces the value of key, keeping its moments
func (a *Adam) Set(key string, value []float64) error {
	state, ok := a.states[key]
	if !ok {
		return fmt.Errorf("parameter %q is not registered", key)
	}
	if len(value) != len(state.Value) {
		return fmt.Errorf("parameter %q has %d elements, got %d", key, len(state.Value), len(value))
	}
	copy(state.Value, value)
	return nil
}

// Step applies one update to every parameter that has a gradient in grads
func (a *Adam) Step(grads map[string][]float64) error {
	for key, grad := range grads {
		state, ok := a.states[key]
		if !ok {
			return fmt.Errorf("gradient for unregistered parameter %q", key)
		}
		if len(grad) != len(state.Value) {
			return fmt.Errorf("gradient for %q has %d elements, expected %d", key, len(grad), len(state.Value))
		}
	}

	c := a.config
	for key, grad := range grads {
		state := a.states[key]
		state.T++
		t := float64(state.T)

		// Bias correction folded into the step size
		lr := c.LearningRate * math.Sqrt(1-math.Pow(c.Beta2, t)) / (1 - math.Pow(c.Beta1, t))

		for i, g := range grad {
			state.M[i] = c.Beta1*state.M[i] + (1-c.Beta1)*g
			state.V[i] = c.Beta2*state.V[i] + (1-c.Beta2)*g*g
			state.Value[i] -= lr * state.M[i] / (math.Sqrt(state.V[i]) + c.Epsilon)
		}
	}
	return nil
}

// Bounds is a closed interval parameters are projected onto after each step
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// DefaultBounds is the physical range of reflectance and transmittance
var DefaultBounds = Bounds{Min: 0.0001, Max: 1.0}

// Validate checks that the interval is not empty
func (b Bounds) Validate() error {
	if !(b.Min < b.Max) {
		return fmt.Errorf("clamp range [%g, %g] is empty", b.Min, b.Max)
	}
	return nil
}

// Clamp projects every element of v onto the interval in place
func (b Bounds) Clamp(v []float64) {
	for i := range v {
		v[i] = math.Min(math.Max(v[i], b.Min), b.Max)
	}
}

// ClampAll clamps every registered parameter
func (a *Adam) ClampAll(b Bounds) {
	for _, key := range a.keys {
		b.Clamp(a.states[key].Value)
	}
}
