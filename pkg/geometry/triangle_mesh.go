package geometry

import (
	"fmt"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/material"
)

// TriangleMesh represents a collection of triangles sharing one material.
// It uses an internal BVH for intersection tests.
type TriangleMesh struct {
	triangles []Shape
	bvh       *BVH
	material  material.Material
}

// TriangleMeshOptions contains optional placement for a mesh
type TriangleMeshOptions struct {
	Scale       float64    // Uniform scale, 0 means 1
	Rotation    *core.Vec3 // Rotation in radians applied X, Y then Z
	Translation *core.Vec3 // Offset applied after rotation
}

// NewTriangleMesh creates a new triangle mesh from vertices and face indices.
// Each group of 3 indices in faces forms one triangle.
func NewTriangleMesh(vertices []core.Vec3, faces []int, mat material.Material, options *TriangleMeshOptions) (*TriangleMesh, error) {
	if len(faces)%3 != 0 {
		return nil, fmt.Errorf("face index count %d is not a multiple of 3", len(faces))
	}

	working := vertices
	if options != nil {
		working = make([]core.Vec3, len(vertices))
		for i, vertex := range vertices {
			if options.Scale != 0 {
				vertex = vertex.Multiply(options.Scale)
			}
			if options.Rotation != nil {
				vertex = vertex.Rotate(*options.Rotation)
			}
			if options.Translation != nil {
				vertex = vertex.Add(*options.Translation)
			}
			working[i] = vertex
		}
	}

	triangles := make([]Shape, 0, len(faces)/3)
	for i := 0; i < len(faces); i += 3 {
		i0, i1, i2 := faces[i], faces[i+1], faces[i+2]
		if i0 < 0 || i1 < 0 || i2 < 0 || i0 >= len(working) || i1 >= len(working) || i2 >= len(working) {
			return nil, fmt.Errorf("face %d references vertex out of range [0,%d)", i/3, len(working))
		}
		triangles = append(triangles, NewTriangle(working[i0], working[i1], working[i2], mat))
	}

	return &TriangleMesh{
		triangles: triangles,
		bvh:       NewBVH(triangles),
		material:  mat,
	}, nil
}

// Hit tests if a ray intersects with any triangle in the mesh
func (tm *TriangleMesh) Hit(ray core.Ray, tMin, tMax float64) (*material.SurfaceInteraction, bool) {
	return tm.bvh.Hit(ray, tMin, tMax)
}

// BoundingBox returns the axis-aligned bounding box for the entire mesh
func (tm *TriangleMesh) BoundingBox() core.AABB {
	return tm.bvh.BoundingBox()
}

// GetTriangleCount returns the number of triangles in this mesh
func (tm *TriangleMesh) GetTriangleCount() int {
	return len(tm.triangles)
}
