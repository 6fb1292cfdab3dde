// Package config provides unified configuration loading for drtm.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/df07/go-drtm/pkg/inversion"
	"github.com/df07/go-drtm/pkg/logging"
	"github.com/df07/go-drtm/pkg/optim"
	"github.com/df07/go-drtm/pkg/raster"
	"github.com/df07/go-drtm/pkg/scene"
)

// DefaultFile is read when no --config flag is given and it exists in the working directory
const DefaultFile = "drtm.yaml"

// Config contains all drtm configuration settings.
type Config struct {
	// Logging contains settings for operational and iteration logging.
	Logging LoggingConfig `yaml:"logging"`

	// Render contains settings shared by every render.
	Render RenderConfig `yaml:"render"`

	// Simulate configures the forward simulation pipeline.
	Simulate SimulateConfig `yaml:"simulate"`

	// Invert configures the inverse fitting pipeline.
	Invert InvertConfig `yaml:"invert"`

	// Ledger configures the run ledger.
	Ledger LedgerConfig `yaml:"ledger"`
}

// LoggingConfig configures drtm's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the iteration log in the trace directory.
	Level string `yaml:"level"`
}

// RenderConfig holds film and sampling overrides plus parallelism.
// Zero values keep the scene's own settings.
type RenderConfig struct {
	Width           int   `yaml:"width"`
	Height          int   `yaml:"height"`
	SamplesPerPixel int   `yaml:"spp"`
	MaxDepth        int   `yaml:"max_depth"`
	Workers         int   `yaml:"workers"` // 0 uses every CPU
	TileSize        int   `yaml:"tile_size"`
	Seed            int64 `yaml:"seed"`
}

// Overrides returns the scene overrides of the render settings
func (c RenderConfig) Overrides() scene.Overrides {
	return scene.Overrides{
		Width:           c.Width,
		Height:          c.Height,
		SamplesPerPixel: c.SamplesPerPixel,
		MaxDepth:        c.MaxDepth,
	}
}

// SimulateConfig configures drtm simulate.
type SimulateConfig struct {
	// Scene is a scene file or builtin:<name>.
	Scene string `yaml:"scene"`

	// Output is the output path without the format extension.
	Output string `yaml:"output"`

	// Format is ENVI or TIFF/GTiff.
	Format string `yaml:"format"`

	// Wavelengths are the band centres in nm. Empty uses the scene's list.
	Wavelengths []float64 `yaml:"wavelengths,omitempty"`

	// NPY also writes the image as <output>.npy.
	NPY bool `yaml:"npy"`

	// Quicklook also writes a false-colour <output>.png.
	Quicklook bool `yaml:"quicklook"`
}

// InvertConfig configures drtm invert.
type InvertConfig struct {
	Scene string `yaml:"scene"`

	// Reference is a (H, W, 4) .npy image. Empty renders the scene as loaded.
	Reference string `yaml:"reference,omitempty"`

	ReflectanceKey   string `yaml:"reflectance_key"`
	TransmittanceKey string `yaml:"transmittance_key"`

	// ReflectanceInit and TransmittanceInit are .npy snapshots whose last
	// four values are the initial guesses. Both are required.
	ReflectanceInit   string `yaml:"reflectance_init"`
	TransmittanceInit string `yaml:"transmittance_init"`

	Iterations int     `yaml:"iterations"`
	Loss       string  `yaml:"loss"` // mse or cross
	LossScale  float64 `yaml:"loss_scale"`

	// VarySeed renders iteration i with seed+i instead of a fixed seed.
	VarySeed bool `yaml:"vary_seed"`

	Adam  optim.AdamConfig `yaml:"adam"`
	Clamp optim.Bounds     `yaml:"clamp"`

	// TraceDir receives reflect.npy, trans.npy, loss.npy and iterations.jsonl.
	TraceDir string `yaml:"trace_dir"`
}

// LedgerConfig configures the SQLite run ledger.
type LedgerConfig struct {
	// Path of the database. Empty disables the ledger.
	Path string `yaml:"path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Render: RenderConfig{
			TileSize: 16,
		},
		Simulate: SimulateConfig{
			Scene:  scene.BuiltinPrefix + "canopy",
			Output: "drtm-iamgery",
			Format: "TIFF",
		},
		Invert: InvertConfig{
			Scene:             scene.BuiltinPrefix + "canopy",
			ReflectanceKey:    scene.ParameterKey(scene.FoliageID, "reflectance"),
			TransmittanceKey:  scene.ParameterKey(scene.FoliageID, "transmittance"),
			ReflectanceInit:   "reflect2.npy",
			TransmittanceInit: "trans2.npy",
			Iterations:        inversion.DefaultIterations,
			Loss:              "mse",
			LossScale:         inversion.DefaultLossScale,
			Adam:              optim.DefaultAdamConfig(),
			Clamp:             optim.DefaultBounds,
			TraceDir:          ".",
		},
	}
}

// Load loads configuration from path, or from DefaultFile when path is
// empty and that file exists, then applies environment variable overrides.
// Order: defaults -> file -> environment variables
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Keys missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	r := c.Render
	if r.Width < 0 || r.Height < 0 || r.SamplesPerPixel < 0 || r.MaxDepth < 0 {
		return fmt.Errorf("render overrides must be non-negative")
	}
	if r.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", r.Workers)
	}
	if r.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %d", r.TileSize)
	}

	if _, err := raster.ParseFormat(c.Simulate.Format); err != nil {
		return err
	}
	if c.Simulate.Output == "" {
		return fmt.Errorf("simulate output path must be set")
	}

	inv := c.Invert
	if inv.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", inv.Iterations)
	}
	if inv.LossScale <= 0 {
		return fmt.Errorf("loss_scale must be positive, got %g", inv.LossScale)
	}
	if _, err := inversion.NewLossStrategy(inv.Loss, inv.LossScale); err != nil {
		return err
	}
	if inv.ReflectanceKey == "" || inv.TransmittanceKey == "" {
		return fmt.Errorf("reflectance_key and transmittance_key must be set")
	}
	if inv.ReflectanceInit == "" || inv.TransmittanceInit == "" {
		return fmt.Errorf("reflectance_init and transmittance_init must be set")
	}
	if err := inv.Adam.Validate(); err != nil {
		return fmt.Errorf("invalid adam settings: %w", err)
	}
	if err := inv.Clamp.Validate(); err != nil {
		return err
	}
	if inv.TraceDir == "" {
		return fmt.Errorf("trace_dir must be set")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("DRTM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("DRTM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DRTM_WORKERS %q: %w", v, err)
		}
		config.Render.Workers = n
	}

	if v := os.Getenv("DRTM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DRTM_SEED %q: %w", v, err)
		}
		config.Render.Seed = n
	}

	if v := os.Getenv("DRTM_LEDGER"); v != "" {
		config.Ledger.Path = v
	}
	return nil
}
