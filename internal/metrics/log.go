package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"
)

// File names of the persisted sequences.
const (
	TrainingLossFile = "training_loss.npy"
	MeanErrorFile    = "prediction_mean_error.npy"
	ErrorStdFile     = "prediction_error_std.npy"
)

// Log holds the three evaluation sequences of a run. Entries are appended
// together so the sequences always have equal length.
type Log struct {
	TrainingLoss []float64
	MeanError    []float64
	ErrorStd     []float64
}

// Append records one evaluation snapshot.
func (l *Log) Append(loss float64, d Discrimination) {
	l.TrainingLoss = append(l.TrainingLoss, loss)
	l.MeanError = append(l.MeanError, d.MeanAbsError)
	l.ErrorStd = append(l.ErrorStd, d.ErrorStd)
}

// Len is the number of snapshots.
func (l *Log) Len() int {
	return len(l.TrainingLoss)
}

// Save writes each sequence as a 1-d float64 .npy array inside dir.
func (l *Log) Save(dir string) error {
	files := []struct {
		name   string
		values []float64
	}{
		{TrainingLossFile, l.TrainingLoss},
		{MeanErrorFile, l.MeanError},
		{ErrorStdFile, l.ErrorStd},
	}
	for _, f := range files {
		if err := writeNPY(filepath.Join(dir, f.name), f.values); err != nil {
			return err
		}
	}
	return nil
}

func writeNPY(path string, values []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if values == nil {
		values = []float64{}
	}
	if err := npyio.Write(f, values); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadNPY loads a 1-d float64 array written by Save.
func ReadNPY(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var values []float64
	if err := npyio.Read(f, &values); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}
