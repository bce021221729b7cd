package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}

	if cfg.Simulation.ParticleCount != 50000 {
		t.Errorf("particle_count = %d, want 50000", cfg.Simulation.ParticleCount)
	}
	if cfg.Simulation.NumPopulations != 3 {
		t.Errorf("num_populations = %d, want 3", cfg.Simulation.NumPopulations)
	}
	if cfg.Retry.MaxParticles != 1_000_000 {
		t.Errorf("retry.max_particles = %d, want 1000000", cfg.Retry.MaxParticles)
	}
	if cfg.Derived.ResizeSettle != 300*time.Millisecond {
		t.Errorf("resize settle = %v, want 300ms", cfg.Derived.ResizeSettle)
	}
	if lim := cfg.Device.Limits(); lim.MaxStorageBufferBindingSize != 128<<20 || lim.MaxComputeWorkgroupsPerDimension != 65535 {
		t.Errorf("device limits = %+v", lim)
	}
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("simulation:\n  particle_count: 1234\ndevice:\n  backend: software\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Simulation.ParticleCount != 1234 {
		t.Errorf("particle_count = %d, want 1234", cfg.Simulation.ParticleCount)
	}
	if cfg.Simulation.NumPopulations != 3 {
		t.Errorf("num_populations should keep default 3, got %d", cfg.Simulation.NumPopulations)
	}
	if cfg.Device.Backend != "software" {
		t.Errorf("backend = %q, want software", cfg.Device.Backend)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero particles", "simulation:\n  particle_count: 0\n"},
		{"too many populations", "simulation:\n  num_populations: 9\n"},
		{"unknown backend", "device:\n  backend: vulkan\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Simulation.ParticleCount = 777

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load written file: %v", err)
	}
	if back.Simulation.ParticleCount != 777 {
		t.Errorf("particle_count = %d, want 777", back.Simulation.ParticleCount)
	}
}
