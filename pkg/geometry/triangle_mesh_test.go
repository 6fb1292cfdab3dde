package geometry

import (
	"math"
	"testing"

	"github.com/df07/go-drtm/pkg/core"
)

func unitSquareMesh(t *testing.T, options *TriangleMeshOptions) *TriangleMesh {
	t.Helper()
	vertices := []core.Vec3{
		core.NewVec3(0, 0, 0),
		core.NewVec3(1, 0, 0),
		core.NewVec3(1, 0, 1),
		core.NewVec3(0, 0, 1),
	}
	faces := []int{0, 1, 2, 0, 2, 3}
	mesh, err := NewTriangleMesh(vertices, faces, testMaterial(), options)
	if err != nil {
		t.Fatalf("NewTriangleMesh failed: %v", err)
	}
	return mesh
}

func TestTriangleMesh_Creation(t *testing.T) {
	mesh := unitSquareMesh(t, nil)

	if mesh.GetTriangleCount() != 2 {
		t.Errorf("Expected 2 triangles, got %d", mesh.GetTriangleCount())
	}

	bbox := mesh.BoundingBox()
	if bbox.Min.X > 0 || bbox.Max.X < 1 || bbox.Min.Z > 0 || bbox.Max.Z < 1 {
		t.Errorf("Unexpected bounding box %v", bbox)
	}
}

func TestTriangleMesh_Hit(t *testing.T) {
	mesh := unitSquareMesh(t, nil)

	tests := []struct {
		name      string
		origin    core.Vec3
		shouldHit bool
	}{
		{"first triangle", core.NewVec3(0.75, 1, 0.25), true},
		{"second triangle", core.NewVec3(0.25, 1, 0.75), true},
		{"outside", core.NewVec3(1.5, 1, 0.5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, isHit := mesh.Hit(core.NewRay(tt.origin, core.NewVec3(0, -1, 0)), 0.001, 10)
			if isHit != tt.shouldHit {
				t.Fatalf("Expected hit=%v, got %v", tt.shouldHit, isHit)
			}
			if isHit && math.Abs(hit.T-1) > 1e-9 {
				t.Errorf("Expected t=1, got %f", hit.T)
			}
		})
	}
}

func TestTriangleMesh_ErrorHandling(t *testing.T) {
	vertices := []core.Vec3{core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0)}

	tests := []struct {
		name  string
		faces []int
	}{
		{"incomplete face", []int{0, 1}},
		{"index out of range", []int{0, 1, 3}},
		{"negative index", []int{0, -1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTriangleMesh(vertices, tt.faces, testMaterial(), nil); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestTriangleMesh_Placement(t *testing.T) {
	translation := core.NewVec3(10, 2, 0)
	mesh := unitSquareMesh(t, &TriangleMeshOptions{Scale: 2, Translation: &translation})

	// Scaled to 2x2 and lifted to y=2
	hit, isHit := mesh.Hit(core.NewRay(core.NewVec3(11.5, 5, 1.5), core.NewVec3(0, -1, 0)), 0.001, 10)
	if !isHit {
		t.Fatal("Expected hit on transformed mesh")
	}
	if math.Abs(hit.Point.Y-2) > 1e-9 {
		t.Errorf("Expected hit at y=2, got %v", hit.Point)
	}
}
