package scene

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/geometry"
	"github.com/df07/go-drtm/pkg/material"
)

// CanopyConfig describes a procedural canopy of square leaves scattered in a box
type CanopyConfig struct {
	Seed      int64     `yaml:"seed"`
	Leaves    int       `yaml:"leaves"`
	LeafSize  float64   `yaml:"leaf_size"`
	Center    []float64 `yaml:"center"`  // Centre of the canopy footprint on the ground
	Extent    []float64 `yaml:"extent"`  // Footprint size along X and Z
	Heights   []float64 `yaml:"heights"` // Lowest and highest leaf centre above the ground
	Erectness float64   `yaml:"erectness"`
}

// NewCanopy scatters leaf quads with a fixed seed so the same configuration
// always produces the same geometry. Leaf normals follow a spherical leaf
// angle distribution when Erectness is 0 and tilt towards vertical as it grows
// to 1.
func NewCanopy(config CanopyConfig, mat material.Material) ([]geometry.Shape, error) {
	if config.Leaves <= 0 {
		return nil, fmt.Errorf("canopy needs a positive leaf count, got %d", config.Leaves)
	}
	if config.LeafSize <= 0 {
		return nil, fmt.Errorf("canopy leaf size must be positive, got %g", config.LeafSize)
	}
	if len(config.Extent) != 2 || config.Extent[0] <= 0 || config.Extent[1] <= 0 {
		return nil, fmt.Errorf("canopy extent needs two positive values, got %v", config.Extent)
	}
	if len(config.Heights) != 2 || config.Heights[0] < 0 || config.Heights[1] < config.Heights[0] {
		return nil, fmt.Errorf("canopy heights need 0 <= low <= high, got %v", config.Heights)
	}
	if config.Erectness < 0 || config.Erectness > 1 {
		return nil, fmt.Errorf("canopy erectness must be in [0,1], got %g", config.Erectness)
	}
	center, err := optionalVec3(config.Center, "center")
	if err != nil {
		return nil, err
	}

	random := rand.New(rand.NewSource(config.Seed))
	half := config.LeafSize / 2
	shapes := make([]geometry.Shape, 0, config.Leaves)

	for i := 0; i < config.Leaves; i++ {
		position := core.NewVec3(
			center.X+(random.Float64()-0.5)*config.Extent[0],
			center.Y+config.Heights[0]+random.Float64()*(config.Heights[1]-config.Heights[0]),
			center.Z+(random.Float64()-0.5)*config.Extent[1],
		)

		normal := leafNormal(random, config.Erectness)
		tangent, bitangent := core.OrthonormalBasis(normal)

		// Spin the leaf around its normal
		spin := random.Float64() * 2 * math.Pi
		u := tangent.Multiply(math.Cos(spin)).Add(bitangent.Multiply(math.Sin(spin)))
		v := normal.Cross(u)

		corner := position.Subtract(u.Multiply(half)).Subtract(v.Multiply(half))
		shapes = append(shapes, geometry.NewQuad(corner, u.Multiply(config.LeafSize), v.Multiply(config.LeafSize), mat))
	}

	return shapes, nil
}

// leafNormal samples an upward-facing leaf normal
func leafNormal(random *rand.Rand, erectness float64) core.Vec3 {
	// Uniform over the upper hemisphere gives the spherical distribution
	cosTheta := random.Float64()
	// Erect leaves have near-horizontal normals
	cosTheta *= 1 - erectness
	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
	phi := random.Float64() * 2 * math.Pi
	return core.NewVec3(sinTheta*math.Cos(phi), cosTheta, sinTheta*math.Sin(phi))
}
