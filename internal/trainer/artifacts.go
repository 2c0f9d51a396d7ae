package trainer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot/vg"

	"rotforge/internal/curves"
	"rotforge/internal/failure"
)

// Artifact file names inside the output directory.
const (
	CheckpointFile = "checkpoint.json"
	CurvesFile     = "learning_curves.png"
	ManifestFile   = "manifest.json"
)

// Checkpointer is implemented by encoders that can serialize their
// parameters. Encoders without it are trained but not checkpointed.
type Checkpointer interface {
	Save(w io.Writer) error
}

// Manifest records what produced the artifacts next to it.
type Manifest struct {
	RunID      string    `json:"run_id"`
	RunName    string    `json:"run_name"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Steps      int       `json:"steps"`
	Snapshots  int       `json:"snapshots"`
	Loss       string    `json:"loss"`
	Settings   any       `json:"settings,omitempty"`
}

func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return failure.Wrap(failure.KindPersistence, "create output dir", err)
	}
	return nil
}

func persist(cfg RunConfig, res *Result, started time.Time) error {
	if ck, ok := cfg.Encoder.(Checkpointer); ok {
		if err := writeFile(filepath.Join(cfg.OutputDir, CheckpointFile), ck.Save); err != nil {
			return failure.Wrap(failure.KindPersistence, "checkpoint", err)
		}
	} else {
		cfg.Logger.Printf("checkpoint skipped: %T cannot be serialized", cfg.Encoder)
	}

	if err := res.Log.Save(cfg.OutputDir); err != nil {
		return failure.Wrap(failure.KindPersistence, "metrics", err)
	}

	if res.Log.Len() > 0 {
		chart := curves.Chart{
			Log:              &res.Log,
			LossName:         cfg.Loss.Kind().String(),
			ExamplesPerPoint: cfg.StoreInterval * cfg.Train.BatchSize,
		}
		draw := func(w io.Writer) error {
			return curves.WritePNG(w, chart, 16*vg.Centimeter, 16*vg.Centimeter)
		}
		if err := writeFile(filepath.Join(cfg.OutputDir, CurvesFile), draw); err != nil {
			return failure.Wrap(failure.KindPersistence, "learning curves", err)
		}
	} else {
		cfg.Logger.Printf("learning curves skipped: no snapshots")
	}

	manifest := Manifest{
		RunID:      res.RunID,
		RunName:    cfg.RunName,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Steps:      res.Steps,
		Snapshots:  res.Log.Len(),
		Loss:       cfg.Loss.Kind().String(),
		Settings:   cfg.Settings,
	}
	encode := func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	}
	if err := writeFile(filepath.Join(cfg.OutputDir, ManifestFile), encode); err != nil {
		return failure.Wrap(failure.KindPersistence, "manifest", err)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
