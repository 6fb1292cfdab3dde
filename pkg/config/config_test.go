package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	config := Default()

	if err := config.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if config.Invert.Iterations != 50 {
		t.Errorf("Expected 50 iterations, got %d", config.Invert.Iterations)
	}
	if config.Invert.Adam.LearningRate != 0.05 {
		t.Errorf("Expected learning rate 0.05, got %g", config.Invert.Adam.LearningRate)
	}
	if config.Invert.Clamp.Min != 0.0001 || config.Invert.Clamp.Max != 1 {
		t.Errorf("Unexpected clamp range %+v", config.Invert.Clamp)
	}
	if config.Invert.LossScale != 1e8 || config.Invert.Loss != "mse" {
		t.Errorf("Unexpected loss settings %q x %g", config.Invert.Loss, config.Invert.LossScale)
	}
	if config.Invert.ReflectanceKey != "TICO1_foliage.reflectance.values" {
		t.Errorf("Unexpected reflectance key %q", config.Invert.ReflectanceKey)
	}
	if config.Invert.ReflectanceInit != "reflect2.npy" || config.Invert.TransmittanceInit != "trans2.npy" {
		t.Errorf("Unexpected initial snapshots %q, %q", config.Invert.ReflectanceInit, config.Invert.TransmittanceInit)
	}
	if config.Ledger.Path != "" {
		t.Error("Ledger should be disabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drtm.yaml")
	content := `
logging:
  level: debug
render:
  spp: 64
  workers: 2
invert:
  iterations: 10
  loss: cross
  adam:
    learning_rate: 0.01
simulate:
  format: ENVI
  wavelengths: [442.948, 560.4305, 665.2445, 865.587]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %q", config.Logging.Level)
	}
	if config.Render.SamplesPerPixel != 64 || config.Render.Workers != 2 {
		t.Errorf("Unexpected render config %+v", config.Render)
	}
	if config.Invert.Iterations != 10 || config.Invert.Loss != "cross" {
		t.Errorf("Unexpected invert config %+v", config.Invert)
	}
	// Unset keys keep their defaults
	if config.Invert.Adam.LearningRate != 0.01 || config.Invert.Adam.Beta2 != 0.999 {
		t.Errorf("Unexpected adam config %+v", config.Invert.Adam)
	}
	if config.Render.TileSize != 16 || config.Invert.LossScale != 1e8 {
		t.Error("Defaults lost for keys missing from the file")
	}
	if len(config.Simulate.Wavelengths) != 4 || config.Simulate.Wavelengths[3] != 865.587 {
		t.Errorf("Unexpected wavelengths %v", config.Simulate.Wavelengths)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Loaded config should be valid: %v", err)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("render: [unclosed"), 0o644)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DRTM_LOG_LEVEL", "trace")
	t.Setenv("DRTM_WORKERS", "3")
	t.Setenv("DRTM_SEED", "42")
	t.Setenv("DRTM_LEDGER", "runs.db")

	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("render:\n  workers: 8\n"), 0o644)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("Expected trace, got %q", config.Logging.Level)
	}
	if config.Render.Workers != 3 {
		t.Errorf("Environment should override the file, got %d workers", config.Render.Workers)
	}
	if config.Render.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", config.Render.Seed)
	}
	if config.Ledger.Path != "runs.db" {
		t.Errorf("Expected ledger runs.db, got %q", config.Ledger.Path)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("DRTM_WORKERS", "many")
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}

	dir := t.TempDir()
	t.Chdir(dir)
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "DRTM_WORKERS") {
		t.Errorf("Expected DRTM_WORKERS error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"negative spp", func(c *Config) { c.Render.SamplesPerPixel = -1 }},
		{"negative workers", func(c *Config) { c.Render.Workers = -2 }},
		{"zero tile size", func(c *Config) { c.Render.TileSize = 0 }},
		{"unknown format", func(c *Config) { c.Simulate.Format = "JPEG" }},
		{"empty output", func(c *Config) { c.Simulate.Output = "" }},
		{"zero iterations", func(c *Config) { c.Invert.Iterations = 0 }},
		{"unknown loss", func(c *Config) { c.Invert.Loss = "l1" }},
		{"zero loss scale", func(c *Config) { c.Invert.LossScale = 0 }},
		{"missing key", func(c *Config) { c.Invert.TransmittanceKey = "" }},
		{"missing reflectance init", func(c *Config) { c.Invert.ReflectanceInit = "" }},
		{"missing transmittance init", func(c *Config) { c.Invert.TransmittanceInit = "" }},
		{"bad learning rate", func(c *Config) { c.Invert.Adam.LearningRate = 0 }},
		{"empty clamp", func(c *Config) { c.Invert.Clamp.Min = 2 }},
		{"empty trace dir", func(c *Config) { c.Invert.TraceDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
