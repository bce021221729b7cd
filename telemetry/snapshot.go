package telemetry

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pthm-cable/physarum/population"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot records the parameters behind a captured frame so an
// interesting pattern can be regenerated from the same species settings.
type Snapshot struct {
	Version int    `json:"version"`
	Seed    int64  `json:"seed"`
	Tick    uint64 `json:"tick"`

	Palette string   `json:"palette"`
	Colors  []string `json:"colors"`

	Config population.MultiPopulationConfig `json:"config"`

	// Image is the PNG file name, relative to the snapshot.
	Image string `json:"image,omitempty"`
}

// SaveSnapshot writes snapshot_<tick>.json, and snapshot_<tick>.png when img
// is non-nil. Returns the JSON path.
func SaveSnapshot(snapshot *Snapshot, dir string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	if snapshot.Version == 0 {
		snapshot.Version = SnapshotVersion
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if img != nil {
		snapshot.Image = name + ".png"
		if err := writePNG(filepath.Join(dir, snapshot.Image), img); err != nil {
			return "", err
		}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode snapshot image: %w", err)
	}
	return f.Close()
}

// LoadSnapshot reads a snapshot and validates its config.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d not supported", snapshot.Version)
	}
	if err := snapshot.Config.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot config: %w", err)
	}
	return &snapshot, nil
}
