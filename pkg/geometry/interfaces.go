package geometry

import (
	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/material"
)

// Shape interface for objects that can be hit by rays
type Shape interface {
	Hit(ray core.Ray, tMin, tMax float64) (*material.SurfaceInteraction, bool)
	BoundingBox() core.AABB
}

// flatPadding keeps the bounding box of planar shapes from collapsing to zero thickness
const flatPadding = 1e-4
