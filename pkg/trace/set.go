package trace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File names of the three trace arrays inside a trace directory
const (
	ReflectanceFile   = "reflect.npy"
	TransmittanceFile = "trans.npy"
	LossFile          = "loss.npy"
)

// Set holds the reflectance, transmittance and loss histories of a fitting
// run. It is acquired once before the loop and closed when the loop exits.
type Set struct {
	Reflectance   *AppendArray // (N, bands)
	Transmittance *AppendArray // (N, bands)
	Loss          *AppendArray // (N,)
}

// OpenSet opens or creates the trace arrays in dir
func OpenSet(dir string, bands int) (*Set, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	s := &Set{}
	var err error
	if s.Reflectance, err = Open(filepath.Join(dir, ReflectanceFile), []int{bands}); err != nil {
		return nil, err
	}
	if s.Transmittance, err = Open(filepath.Join(dir, TransmittanceFile), []int{bands}); err != nil {
		s.Close()
		return nil, err
	}
	if s.Loss, err = Open(filepath.Join(dir, LossFile), nil); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Record appends one iteration to every array and flushes them
func (s *Set) Record(loss float64, reflectance, transmittance []float64) error {
	if err := s.Loss.Append(loss); err != nil {
		return err
	}
	if err := s.Reflectance.Append(reflectance...); err != nil {
		return err
	}
	if err := s.Transmittance.Append(transmittance...); err != nil {
		return err
	}
	return s.Flush()
}

// Flush flushes every array
func (s *Set) Flush() error {
	return errors.Join(s.Loss.Flush(), s.Reflectance.Flush(), s.Transmittance.Flush())
}

// Close releases every open array
func (s *Set) Close() error {
	var errs []error
	for _, a := range []*AppendArray{s.Reflectance, s.Transmittance, s.Loss} {
		if a != nil {
			errs = append(errs, a.Close())
		}
	}
	return errors.Join(errs...)
}
