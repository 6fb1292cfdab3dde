package scene

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/df07/go-drtm/pkg/geometry"
	"github.com/df07/go-drtm/pkg/loaders"
	"github.com/df07/go-drtm/pkg/material"
)

// BuiltinPrefix selects a scene compiled into the binary instead of a file
const BuiltinPrefix = "builtin:"

// Description is the YAML form of a scene
type Description struct {
	Name         string                `yaml:"name"`
	Description  string                `yaml:"description,omitempty"`
	Group        string                `yaml:"group,omitempty"`
	Wavelengths  []float64             `yaml:"wavelengths,omitempty"`
	Film         FilmDescription       `yaml:"film"`
	Camera       CameraDescription     `yaml:"camera"`
	Illumination IlluminationDesc      `yaml:"illumination"`
	Materials    []MaterialDescription `yaml:"materials"`
	Shapes       []ShapeDescription    `yaml:"shapes"`
	Sampling     SamplingDescription   `yaml:"sampling"`

	// Directory that relative mesh paths are resolved against
	baseDir string
}

// FilmDescription sets the output image size
type FilmDescription struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// CameraDescription mirrors geometry.CameraConfig
type CameraDescription struct {
	Projection string    `yaml:"projection"`
	Center     []float64 `yaml:"center"`
	LookAt     []float64 `yaml:"look_at"`
	Up         []float64 `yaml:"up"`
	Width      float64   `yaml:"width,omitempty"`
	Height     float64   `yaml:"height,omitempty"`
	VFov       float64   `yaml:"vfov,omitempty"`
}

// IlluminationDesc holds the sun and sky
type IlluminationDesc struct {
	Sun *SunDescription `yaml:"sun,omitempty"`
	Sky *SkyDescription `yaml:"sky,omitempty"`
}

// SunDescription describes a directional sun
type SunDescription struct {
	Zenith     float64   `yaml:"zenith"`
	Azimuth    float64   `yaml:"azimuth"`
	Irradiance []float64 `yaml:"irradiance"`
}

// SkyDescription describes a uniform sky
type SkyDescription struct {
	Radiance []float64 `yaml:"radiance"`
}

// MaterialDescription describes one named material
type MaterialDescription struct {
	ID            string    `yaml:"id"`
	Type          string    `yaml:"type"` // "diffuse" or "bilambert"
	Reflectance   []float64 `yaml:"reflectance"`
	Transmittance []float64 `yaml:"transmittance,omitempty"`
}

// ShapeDescription describes one shape. Which fields apply depends on Type.
type ShapeDescription struct {
	Type     string `yaml:"type"` // "quad", "ground", "ply" or "canopy"
	Material string `yaml:"material"`

	// quad
	Corner []float64 `yaml:"corner,omitempty"`
	U      []float64 `yaml:"u,omitempty"`
	V      []float64 `yaml:"v,omitempty"`

	// ground, canopy
	Center []float64 `yaml:"center,omitempty"`
	Size   float64   `yaml:"size,omitempty"`

	// ply
	File        string    `yaml:"file,omitempty"`
	Scale       float64   `yaml:"scale,omitempty"`
	Rotation    []float64 `yaml:"rotation,omitempty"` // degrees
	Translation []float64 `yaml:"translation,omitempty"`

	// canopy
	Canopy *CanopyConfig `yaml:"canopy,omitempty"`
}

// SamplingDescription mirrors SamplingConfig
type SamplingDescription struct {
	SamplesPerPixel           int     `yaml:"spp,omitempty"`
	MaxDepth                  int     `yaml:"max_depth,omitempty"`
	RussianRouletteMinBounces int     `yaml:"rr_min_bounces,omitempty"`
	RussianRouletteSurvival   float64 `yaml:"rr_survival,omitempty"`
}

// Overrides replace description values when non-zero
type Overrides struct {
	Width           int
	Height          int
	SamplesPerPixel int
	MaxDepth        int
}

// LoadDescription reads a scene description from a YAML file or a builtin name
func LoadDescription(path string) (*Description, error) {
	if name, ok := strings.CutPrefix(path, BuiltinPrefix); ok {
		return BuiltinDescription(name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	desc, err := ParseDescription(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scene %s: %w", path, err)
	}
	desc.baseDir = filepath.Dir(path)
	if desc.Name == "" {
		desc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return desc, nil
}

// ParseDescription decodes YAML scene content
func ParseDescription(data []byte) (*Description, error) {
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// Load reads and builds a scene in one step
func Load(path string, overrides Overrides) (*Scene, error) {
	desc, err := LoadDescription(path)
	if err != nil {
		return nil, err
	}
	desc.Apply(overrides)
	return desc.Build()
}

// Apply copies the non-zero overrides into the description
func (d *Description) Apply(o Overrides) {
	if o.Width > 0 {
		d.Film.Width = o.Width
	}
	if o.Height > 0 {
		d.Film.Height = o.Height
	}
	if o.SamplesPerPixel > 0 {
		d.Sampling.SamplesPerPixel = o.SamplesPerPixel
	}
	if o.MaxDepth > 0 {
		d.Sampling.MaxDepth = o.MaxDepth
	}
}

// Build constructs a ready-to-render scene from the description
func (d *Description) Build() (*Scene, error) {
	s := &Scene{
		Name:           d.Name,
		Materials:      make(map[string]material.Material),
		Wavelengths:    d.Wavelengths,
		SamplingConfig: d.samplingConfig(),
	}
	if len(s.Wavelengths) == 0 {
		s.Wavelengths = append([]float64(nil), DefaultWavelengths...)
	}

	for _, md := range d.Materials {
		if md.ID == "" {
			return nil, fmt.Errorf("material without id")
		}
		if _, dup := s.Materials[md.ID]; dup {
			return nil, fmt.Errorf("duplicate material id %q", md.ID)
		}
		mat, err := md.build()
		if err != nil {
			return nil, fmt.Errorf("material %q: %w", md.ID, err)
		}
		s.Materials[md.ID] = mat
	}

	if err := d.buildIllumination(s); err != nil {
		return nil, err
	}

	cameraConfig, err := d.Camera.config(s.SamplingConfig)
	if err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}
	camera, err := geometry.NewCamera(cameraConfig)
	if err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}
	s.Camera = camera
	s.CameraConfig = cameraConfig

	for i, sd := range d.Shapes {
		mat, ok := s.Materials[sd.Material]
		if !ok {
			return nil, fmt.Errorf("shape %d: unknown material %q", i, sd.Material)
		}
		shapes, err := sd.build(mat, d.baseDir)
		if err != nil {
			return nil, fmt.Errorf("shape %d (%s): %w", i, sd.Type, err)
		}
		s.Shapes = append(s.Shapes, shapes...)
	}

	if err := s.Preprocess(); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Description) samplingConfig() SamplingConfig {
	config := DefaultSamplingConfig()
	if d.Film.Width > 0 {
		config.Width = d.Film.Width
	}
	if d.Film.Height > 0 {
		config.Height = d.Film.Height
	}
	if d.Sampling.SamplesPerPixel > 0 {
		config.SamplesPerPixel = d.Sampling.SamplesPerPixel
	}
	if d.Sampling.MaxDepth > 0 {
		config.MaxDepth = d.Sampling.MaxDepth
	}
	if d.Sampling.RussianRouletteMinBounces > 0 {
		config.RussianRouletteMinBounces = d.Sampling.RussianRouletteMinBounces
	}
	if d.Sampling.RussianRouletteSurvival > 0 {
		config.RussianRouletteSurvival = d.Sampling.RussianRouletteSurvival
	}
	return config
}

func (d *Description) buildIllumination(s *Scene) error {
	if sun := d.Illumination.Sun; sun != nil {
		irradiance, err := core.SpectrumFromSlice(sun.Irradiance)
		if err != nil {
			return fmt.Errorf("sun irradiance: %w", err)
		}
		if sun.Zenith < 0 || sun.Zenith >= 90 {
			return fmt.Errorf("sun zenith must be in [0,90), got %g", sun.Zenith)
		}
		s.Sun = &Sun{Zenith: sun.Zenith, Azimuth: sun.Azimuth, Irradiance: irradiance}
	}
	if sky := d.Illumination.Sky; sky != nil {
		radiance, err := core.SpectrumFromSlice(sky.Radiance)
		if err != nil {
			return fmt.Errorf("sky radiance: %w", err)
		}
		s.SkyRadiance = radiance
	}
	if s.Sun == nil && s.SkyRadiance.IsZero() {
		return fmt.Errorf("scene has no illumination")
	}
	return nil
}

func (md MaterialDescription) build() (material.Material, error) {
	reflectance, err := core.SpectrumFromSlice(md.Reflectance)
	if err != nil {
		return nil, fmt.Errorf("reflectance: %w", err)
	}

	switch md.Type {
	case "diffuse":
		return material.NewLambertian(reflectance), nil
	case "bilambert":
		transmittance, err := core.SpectrumFromSlice(md.Transmittance)
		if err != nil {
			return nil, fmt.Errorf("transmittance: %w", err)
		}
		return material.NewBiLambertian(reflectance, transmittance), nil
	default:
		return nil, fmt.Errorf("unknown material type %q", md.Type)
	}
}

func (cd CameraDescription) config(sampling SamplingConfig) (geometry.CameraConfig, error) {
	center, err := vec3(cd.Center, "center")
	if err != nil {
		return geometry.CameraConfig{}, err
	}
	lookAt, err := vec3(cd.LookAt, "look_at")
	if err != nil {
		return geometry.CameraConfig{}, err
	}
	up := core.NewVec3(0, 0, 1)
	if cd.Up != nil {
		if up, err = vec3(cd.Up, "up"); err != nil {
			return geometry.CameraConfig{}, err
		}
	}

	return geometry.CameraConfig{
		Projection: geometry.Projection(cd.Projection),
		Center:     center,
		LookAt:     lookAt,
		Up:         up,
		Width:      cd.Width,
		Height:     cd.Height,
		VFov:       cd.VFov,
		Aspect:     float64(sampling.Width) / float64(sampling.Height),
	}, nil
}

func (sd ShapeDescription) build(mat material.Material, baseDir string) ([]geometry.Shape, error) {
	switch sd.Type {
	case "quad":
		corner, err := vec3(sd.Corner, "corner")
		if err != nil {
			return nil, err
		}
		u, err := vec3(sd.U, "u")
		if err != nil {
			return nil, err
		}
		v, err := vec3(sd.V, "v")
		if err != nil {
			return nil, err
		}
		return []geometry.Shape{geometry.NewQuad(corner, u, v, mat)}, nil

	case "ground":
		center, err := optionalVec3(sd.Center, "center")
		if err != nil {
			return nil, err
		}
		if sd.Size <= 0 {
			return nil, fmt.Errorf("ground size must be positive")
		}
		return []geometry.Shape{NewGroundQuad(center, sd.Size, mat)}, nil

	case "ply":
		return sd.buildMesh(mat, baseDir)

	case "canopy":
		if sd.Canopy == nil {
			return nil, fmt.Errorf("canopy settings missing")
		}
		return NewCanopy(*sd.Canopy, mat)

	default:
		return nil, fmt.Errorf("unknown shape type %q", sd.Type)
	}
}

func (sd ShapeDescription) buildMesh(mat material.Material, baseDir string) ([]geometry.Shape, error) {
	if sd.File == "" {
		return nil, fmt.Errorf("ply shape needs a file")
	}
	path := sd.File
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}

	data, err := loaders.LoadPLY(path)
	if err != nil {
		return nil, err
	}

	options := &geometry.TriangleMeshOptions{Scale: sd.Scale}
	if sd.Rotation != nil {
		rotation, err := vec3(sd.Rotation, "rotation")
		if err != nil {
			return nil, err
		}
		rotation = rotation.Multiply(degreesToRadians)
		options.Rotation = &rotation
	}
	if sd.Translation != nil {
		translation, err := vec3(sd.Translation, "translation")
		if err != nil {
			return nil, err
		}
		options.Translation = &translation
	}

	mesh, err := geometry.NewTriangleMesh(data.Vertices, data.Faces, mat, options)
	if err != nil {
		return nil, err
	}
	return []geometry.Shape{mesh}, nil
}

const degreesToRadians = math.Pi / 180

func vec3(values []float64, field string) (core.Vec3, error) {
	if len(values) != 3 {
		return core.Vec3{}, fmt.Errorf("%s needs 3 components, got %d", field, len(values))
	}
	return core.NewVec3(values[0], values[1], values[2]), nil
}

func optionalVec3(values []float64, field string) (core.Vec3, error) {
	if values == nil {
		return core.Vec3{}, nil
	}
	return vec3(values, field)
}
