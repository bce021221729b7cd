package telemetry

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/physarum/config"
)

// OutputManager writes perf.csv, trails.csv, config.yaml and snapshots
// into one run directory.
type OutputManager struct {
	dir        string
	perfFile   *os.File
	trailsFile *os.File

	perfHeaderWritten   bool
	trailsHeaderWritten bool
}

// NewOutputManager creates the output directory and its CSV files.
// Returns nil if dir is empty (output disabled); all methods accept a nil receiver.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	f, err = os.Create(filepath.Join(dir, "trails.csv"))
	if err != nil {
		om.perfFile.Close()
		return nil, fmt.Errorf("creating trails.csv: %w", err)
	}
	om.trailsFile = f

	return om, nil
}

// WriteConfig saves the configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// marshalRows appends rows to f, writing the header on first use.
func marshalRows(rows any, f *os.File, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(rows, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(rows, f)
}

// WritePerf appends one perf row.
func (om *OutputManager) WritePerf(stats PerfStats, tick uint64, particles int) error {
	if om == nil {
		return nil
	}
	rows := []PerfStatsCSV{stats.ToCSV(tick, particles)}
	if err := marshalRows(rows, om.perfFile, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteTrails appends one row per species.
func (om *OutputManager) WriteTrails(stats TrailStats) error {
	if om == nil || len(stats.Species) == 0 {
		return nil
	}
	rows := stats.ToCSV()
	if err := marshalRows(rows, om.trailsFile, &om.trailsHeaderWritten); err != nil {
		return fmt.Errorf("writing trails: %w", err)
	}
	return nil
}

// WriteSnapshot saves a snapshot under <dir>/snapshots.
func (om *OutputManager) WriteSnapshot(snap *Snapshot, img image.Image) (string, error) {
	if om == nil {
		return "", nil
	}
	return SaveSnapshot(snap, filepath.Join(om.dir, "snapshots"), img)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files. Later writes fail; a second Close is a no-op.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	for _, f := range []**os.File{&om.perfFile, &om.trailsFile} {
		if *f == nil {
			continue
		}
		if err := (*f).Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		*f = nil
	}
	return firstErr
}
