package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/material"
)

// ErrUnknownParameter is returned when a key does not name a spectral leaf of the scene
var ErrUnknownParameter = errors.New("unknown scene parameter")

// valuesSuffix terminates every parameter key, e.g. "soil.reflectance.values"
const valuesSuffix = "values"

// ParameterMap exposes the spectral leaves of a scene's materials under dotted
// keys of the form <material id>.<leaf>.values. Values are read and written
// in place, so a render after Set sees the new values.
type ParameterMap struct {
	leaves map[string]*core.Spectrum
	keys   []string
	grad   []string
}

// Traverse collects the differentiable leaves of every parametric material in the scene
func Traverse(s *Scene) *ParameterMap {
	pm := &ParameterMap{leaves: make(map[string]*core.Spectrum)}
	for _, id := range s.MaterialIDs() {
		parametric, ok := s.Materials[id].(material.Parametric)
		if !ok {
			continue
		}
		for leaf, values := range parametric.Parameters() {
			key := ParameterKey(id, leaf)
			pm.leaves[key] = values
			pm.keys = append(pm.keys, key)
		}
	}
	sort.Strings(pm.keys)
	return pm
}

// ParameterKey builds the key of a material leaf
func ParameterKey(materialID, leaf string) string {
	return materialID + "." + leaf + "." + valuesSuffix
}

// Keys returns all parameter keys in sorted order
func (pm *ParameterMap) Keys() []string {
	return append([]string(nil), pm.keys...)
}

// Leaf returns the live storage of a parameter
func (pm *ParameterMap) Leaf(key string) (*core.Spectrum, error) {
	leaf, ok := pm.leaves[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, key)
	}
	return leaf, nil
}

// Get returns a copy of the current value of a parameter
func (pm *ParameterMap) Get(key string) (core.Spectrum, error) {
	leaf, err := pm.Leaf(key)
	if err != nil {
		return core.Spectrum{}, err
	}
	return *leaf, nil
}

// Set overwrites the value of a parameter
func (pm *ParameterMap) Set(key string, value core.Spectrum) error {
	leaf, err := pm.Leaf(key)
	if err != nil {
		return err
	}
	*leaf = value
	return nil
}

// EnableGrad marks a parameter as differentiable. Enabling a key twice is a no-op.
func (pm *ParameterMap) EnableGrad(key string) error {
	if _, err := pm.Leaf(key); err != nil {
		return err
	}
	for _, k := range pm.grad {
		if k == key {
			return nil
		}
	}
	pm.grad = append(pm.grad, key)
	return nil
}

// GradKeys returns the differentiable keys in the order they were enabled
func (pm *ParameterMap) GradKeys() []string {
	return append([]string(nil), pm.grad...)
}
