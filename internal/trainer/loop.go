package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"rotforge/internal/augment"
	"rotforge/internal/dataset"
	"rotforge/internal/evaluate"
	"rotforge/internal/failure"
	"rotforge/internal/geometry"
	"rotforge/internal/loss"
	"rotforge/internal/metrics"
	"rotforge/internal/model"
	"rotforge/internal/optim"
)

// RunConfig captures everything the training loop needs.
type RunConfig struct {
	Encoder   model.Encoder
	Optimizer optim.Optimizer
	Loss      loss.Func
	Augmenter *augment.Augmenter
	Train     *dataset.Loader
	Eval      *dataset.Loader

	Epochs        int
	LogInterval   int
	StoreInterval int
	EvalBatches   int

	// OutputDir receives the artifacts once training completes.
	OutputDir string
	RunName   string
	// Settings is recorded verbatim in the run manifest.
	Settings any
	Logger   *log.Logger
}

// Result is what a completed run produced.
type Result struct {
	RunID string
	Steps int
	Log   metrics.Log
}

func (cfg *RunConfig) validate() error {
	switch {
	case cfg.Encoder == nil:
		return errors.New("trainer: encoder is required")
	case cfg.Optimizer == nil:
		return errors.New("trainer: optimizer is required")
	case cfg.Augmenter == nil:
		return errors.New("trainer: augmenter is required")
	case cfg.Train == nil || cfg.Eval == nil:
		return errors.New("trainer: training and evaluation loaders are required")
	case cfg.Epochs <= 0:
		return errors.New("trainer: epochs must be > 0")
	case cfg.StoreInterval <= 0:
		return errors.New("trainer: store interval must be > 0")
	case cfg.OutputDir == "":
		return errors.New("trainer: output directory is required")
	}
	if cfg.LogInterval <= 0 {
		cfg.LogInterval = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return nil
}

// Run trains the encoder for cfg.Epochs passes over cfg.Train, snapshots the
// evaluation metrics every StoreInterval batches and persists the artifacts
// at the end. Nothing is written before training completes, so a failed run
// leaves no checkpoint behind.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, failure.Wrap(failure.KindConfig, "trainer", err)
	}
	if err := prepareOutputDir(cfg.OutputDir); err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.New().String()}
	started := time.Now()
	cfg.Logger.Printf("run=%s name=%q output=%s train_batches=%d epochs=%d loss=%s",
		res.RunID, cfg.RunName, cfg.OutputDir, cfg.Train.NumBatches(), cfg.Epochs, cfg.Loss.Kind())

	evalSetup := evaluate.Setup{
		Encoder:   cfg.Encoder,
		Augmenter: cfg.Augmenter,
		Loss:      cfg.Loss,
		Batches:   cfg.EvalBatches,
	}
	var window metrics.Window
	examples := 0

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		cfg.Logger.Printf("epoch=%d/%d", epoch, cfg.Epochs)
		it := cfg.Train.Iter()
		for b := 0; ; b++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			batch, err := it.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, failure.Wrap(failure.KindData, "training batch", err)
			}

			startAugment := time.Now()
			cfg.Encoder.SetTraining(true)
			pair, err := cfg.Augmenter.Augment(batch.Images)
			if err != nil {
				return nil, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
			}
			augmentTime := time.Since(startAugment)

			startCompute := time.Now()
			value, err := step(cfg, pair)
			if err != nil {
				return nil, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
			}
			computeTime := time.Since(startCompute)

			res.Steps++
			examples += batch.Len()
			window.Record(metrics.Step{Examples: batch.Len(), Augment: augmentTime, Compute: computeTime, Loss: value})

			if b%cfg.LogInterval == 0 {
				snap := window.Snapshot()
				cfg.Logger.Printf("epoch=%d batch=%d examples=%d loss=%.4f mean_loss=%.4f images_per_sec=%.1f augment_ms=%.2f compute_ms=%.2f",
					epoch, b, examples, snap.LastLoss, snap.MeanLoss, snap.ImagesPerSec, snap.AvgAugmentMS, snap.AvgComputeMS)
			}

			if b%cfg.StoreInterval == 0 {
				if err := storeSnapshot(ctx, cfg, evalSetup, &res.Log); err != nil {
					return nil, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
				}
			}
		}
	}

	if err := persist(cfg, res, started); err != nil {
		return nil, err
	}
	cfg.Logger.Printf("run=%s done steps=%d snapshots=%d elapsed=%s", res.RunID, res.Steps, res.Log.Len(), time.Since(started).Round(time.Millisecond))
	return res, nil
}

// step runs both views through the encoder, rotates the first view's
// features by the relative angle, and applies one optimizer update.
func step(cfg RunConfig, pair augment.Pair) (float64, error) {
	params := cfg.Encoder.Parameters()
	model.ZeroGrad(params)

	p1, err := cfg.Encoder.Forward(pair.View1)
	if err != nil {
		return 0, fmt.Errorf("forward view 1: %w", err)
	}
	p2, err := cfg.Encoder.Forward(pair.View2)
	if err != nil {
		return 0, fmt.Errorf("forward view 2: %w", err)
	}

	rotated, err := geometry.Rotate(p1.Output(), pair.Relative)
	if err != nil {
		return 0, err
	}
	value, err := cfg.Loss.Value(rotated, p2.Output())
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("loss is %v", value)
	}
	gRotated, g2, err := cfg.Loss.Gradient(rotated, p2.Output())
	if err != nil {
		return 0, err
	}
	g1, err := geometry.RotateTranspose(gRotated, pair.Relative)
	if err != nil {
		return 0, err
	}
	if err := p1.Backward(g1); err != nil {
		return 0, fmt.Errorf("backward view 1: %w", err)
	}
	if err := p2.Backward(g2); err != nil {
		return 0, fmt.Errorf("backward view 2: %w", err)
	}
	cfg.Optimizer.Step(params)
	return value, nil
}

// storeSnapshot evaluates the loss and the rotation test and appends both to
// the log. An empty evaluation source skips the snapshot.
func storeSnapshot(ctx context.Context, cfg RunConfig, s evaluate.Setup, l *metrics.Log) error {
	evalLoss, err := evaluate.Loss(ctx, s, cfg.Eval)
	if errors.Is(err, evaluate.ErrNoBatch) {
		cfg.Logger.Printf("snapshot skipped: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("evaluate loss: %w", err)
	}
	disc, err := evaluate.RotationTest(ctx, s, cfg.Eval)
	if errors.Is(err, evaluate.ErrNoBatch) {
		cfg.Logger.Printf("snapshot skipped: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("rotation test: %w", err)
	}
	l.Append(evalLoss, disc)
	cfg.Logger.Printf("snapshot=%d eval_loss=%.4f mean_error_deg=%.2f error_std_deg=%.2f",
		l.Len(), evalLoss, disc.MeanAbsError, disc.ErrorStd)
	return nil
}
