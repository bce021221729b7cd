package telemetry

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/physarum/population"
)

func TestSnapshotSaveLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := population.CreateMultiPopulationConfig(rand.New(rand.NewSource(3)), 1000, 3, 64, 48)

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})

	snap := &Snapshot{
		Seed:    3,
		Tick:    1500,
		Palette: "Membrane Flare",
		Colors:  []string{"#FA2B31", "#FFBF1F"},
		Config:  cfg,
	}
	path, err := SaveSnapshot(snap, dir, img)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if filepath.Base(path) != "snapshot_1500.json" {
		t.Errorf("path = %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Version != SnapshotVersion || loaded.Tick != 1500 || loaded.Seed != 3 {
		t.Errorf("header mismatch: %+v", loaded)
	}
	if loaded.Config.NumPopulations() != 3 || loaded.Config.Width != 64 {
		t.Errorf("config mismatch: %+v", loaded.Config)
	}
	if loaded.Config.Populations[2] != cfg.Populations[2] {
		t.Errorf("population 2 = %+v, want %+v", loaded.Config.Populations[2], cfg.Populations[2])
	}
	if loaded.Config.Attraction.At(0, 1) != cfg.Attraction.At(0, 1) {
		t.Error("attraction not preserved")
	}

	f, err := os.Open(filepath.Join(dir, loaded.Image))
	if err != nil {
		t.Fatalf("open image: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode image: %v", err)
	}
	if r, _, _, _ := decoded.At(1, 1).RGBA(); r>>8 != 200 {
		t.Errorf("pixel red = %d, want 200", r>>8)
	}
}

func TestSnapshotWithoutImage(t *testing.T) {
	dir := t.TempDir()
	cfg := population.CreateMultiPopulationConfig(rand.New(rand.NewSource(1)), 10, 1, 8, 8)

	path, err := SaveSnapshot(&Snapshot{Tick: 1, Config: cfg}, dir, nil)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Image != "" {
		t.Errorf("image = %q, want empty", loaded.Image)
	}
}

func TestLoadSnapshotRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"version":1,"config":{"particle_count":0}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(bad); err == nil {
		t.Error("expected validation error")
	}

	future := filepath.Join(dir, "future.json")
	if err := os.WriteFile(future, []byte(`{"version":99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(future); err == nil {
		t.Error("expected version error")
	}

	if _, err := LoadSnapshot(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected read error")
	}
}
