package geometry

import (
	"fmt"
	"math"

	"github.com/df07/go-drtm/pkg/core"
)

// Projection selects how the camera maps film coordinates to rays
type Projection string

const (
	Orthographic Projection = "orthographic"
	Perspective  Projection = "perspective"
)

// CameraConfig describes a camera in world space
type CameraConfig struct {
	Projection Projection
	Center     core.Vec3 // Eye position
	LookAt     core.Vec3 // Point the camera looks at
	Up         core.Vec3 // Up direction on the film
	Width      float64   // Orthographic footprint width in world units
	Height     float64   // Orthographic footprint height in world units
	VFov       float64   // Perspective vertical field of view in degrees
	Aspect     float64   // Perspective film aspect ratio (width / height)
}

// Camera generates primary rays for rendering
type Camera struct {
	projection      Projection
	origin          core.Vec3
	lowerLeftCorner core.Vec3
	horizontal      core.Vec3
	vertical        core.Vec3
	forward         core.Vec3
}

// NewCamera builds a camera from its configuration
func NewCamera(config CameraConfig) (*Camera, error) {
	back := config.Center.Subtract(config.LookAt)
	if back.LengthSquared() == 0 {
		return nil, fmt.Errorf("camera center and look-at point coincide")
	}
	w := back.Normalize()
	right := config.Up.Cross(w)
	if right.LengthSquared() < 1e-12 {
		return nil, fmt.Errorf("camera up vector is parallel to the view direction")
	}
	u := right.Normalize()
	v := w.Cross(u)

	camera := &Camera{projection: config.Projection, origin: config.Center, forward: w.Negate()}

	switch config.Projection {
	case Orthographic, "":
		if config.Width <= 0 || config.Height <= 0 {
			return nil, fmt.Errorf("orthographic camera needs a positive footprint, got %gx%g", config.Width, config.Height)
		}
		camera.projection = Orthographic
		camera.horizontal = u.Multiply(config.Width)
		camera.vertical = v.Multiply(config.Height)
		camera.lowerLeftCorner = config.Center.
			Subtract(camera.horizontal.Multiply(0.5)).
			Subtract(camera.vertical.Multiply(0.5))
	case Perspective:
		if config.VFov <= 0 || config.VFov >= 180 {
			return nil, fmt.Errorf("perspective camera field of view must be in (0,180), got %g", config.VFov)
		}
		aspect := config.Aspect
		if aspect <= 0 {
			aspect = 1
		}
		viewportHeight := 2.0 * math.Tan(config.VFov*math.Pi/360.0)
		viewportWidth := aspect * viewportHeight
		camera.horizontal = u.Multiply(viewportWidth)
		camera.vertical = v.Multiply(viewportHeight)
		camera.lowerLeftCorner = config.Center.
			Subtract(camera.horizontal.Multiply(0.5)).
			Subtract(camera.vertical.Multiply(0.5)).
			Subtract(w)
	default:
		return nil, fmt.Errorf("unknown camera projection %q", config.Projection)
	}

	return camera, nil
}

// GetRay generates a ray for film coordinates (s, t) where 0 <= s,t <= 1.
// (0, 0) is the lower-left corner of the film.
func (c *Camera) GetRay(s, t float64) core.Ray {
	filmPoint := c.lowerLeftCorner.
		Add(c.horizontal.Multiply(s)).
		Add(c.vertical.Multiply(t))

	if c.projection == Orthographic {
		return core.NewRay(filmPoint, c.forward)
	}
	return core.NewRay(c.origin, filmPoint.Subtract(c.origin).Normalize())
}
