package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"rotforge/internal/augment"
	"rotforge/internal/config"
	"rotforge/internal/dataset"
	"rotforge/internal/loss"
	"rotforge/internal/model"
	"rotforge/internal/optim"
	"rotforge/internal/trainer"
)

// Each consumer of randomness gets its own stream derived from the run seed.
const (
	trainShuffleStream = iota + 1
	evalShuffleStream
	augmentStream
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults are used when empty)")
	trainImages := flag.String("train-images", "", "Override IDX training images file")
	trainLabels := flag.String("train-labels", "", "Override IDX training labels file")
	batchSize := flag.Int("batch-size", 0, "Training batch size")
	testBatchSize := flag.Int("test-batch-size", 0, "Evaluation batch size")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	lr := flag.Float64("lr", 0, "Learning rate")
	optimizer := flag.String("optimizer", "", "Optimizer (adam or sgd)")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logInterval := flag.Int("log-interval", 0, "Log every N batches")
	storeInterval := flag.Int("store-interval", 0, "Evaluate and store metrics every N batches")
	evalBatches := flag.Int("eval-batches", 0, "Evaluation batches per snapshot")
	lossName := flag.String("loss", "", "Loss (forbenius, cosine_squared or cosine_abs)")
	runName := flag.String("name", "", "Run name; artifacts go to <output-root>/output_<name>")
	outputRoot := flag.String("output-root", "", "Directory holding run outputs")
	var momentum, initRot, relRot optionalFloat
	flag.Var(&momentum, "momentum", "SGD momentum")
	flag.Var(&initRot, "init-rot-range", "Upper bound of the initial rotation in degrees")
	flag.Var(&relRot, "relative-rot-range", "Upper bound of the relative rotation in degrees")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		BatchSize:        *batchSize,
		TestBatchSize:    *testBatchSize,
		Epochs:           *epochs,
		LearningRate:     *lr,
		Momentum:         momentum.value,
		Optimizer:        *optimizer,
		Seed:             *seed,
		LogInterval:      *logInterval,
		StoreInterval:    *storeInterval,
		EvalBatches:      *evalBatches,
		Loss:             *lossName,
		InitRotRange:     initRot.value,
		RelativeRotRange: relRot.value,
		RunName:          *runName,
		OutputRoot:       *outputRoot,
		TrainImages:      *trainImages,
		TrainLabels:      *trainLabels,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	train, eval, err := loadData(ctx, cfg)
	if err != nil {
		log.Fatalf("load data: %v", err)
	}
	if train.Len() == 0 {
		log.Fatalf("training source is empty")
	}
	log.Printf("format=%s train_samples=%d eval_samples=%d", cfg.Data.Format, train.Len(), eval.Len())

	runCfg, err := buildRun(cfg, train, eval)
	if err != nil {
		log.Fatalf("build run: %v", err)
	}

	res, err := trainer.Run(ctx, runCfg)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	log.Printf("run=%s artifacts=%s", res.RunID, runCfg.OutputDir)
}

func loadData(ctx context.Context, cfg *config.Config) (train, eval dataset.Memory, err error) {
	d := cfg.Data
	switch d.Format {
	case config.FormatShards:
		train, err = dataset.LoadShards(ctx, dataset.ShardOptions{Roots: d.ShardRoots, NumWorkers: d.Workers, Limit: d.Limit})
		if err != nil {
			return nil, nil, fmt.Errorf("training shards: %w", err)
		}
		eval, err = dataset.LoadShards(ctx, dataset.ShardOptions{Roots: d.EvalRoots(), NumWorkers: d.Workers, Limit: d.Limit})
		if err != nil {
			return nil, nil, fmt.Errorf("evaluation shards: %w", err)
		}
	default:
		train, err = dataset.LoadIDX(d.TrainImages, d.TrainLabels, d.Limit)
		if err != nil {
			return nil, nil, fmt.Errorf("training idx: %w", err)
		}
		images, labels := d.EvalSource()
		eval, err = dataset.LoadIDX(images, labels, d.Limit)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluation idx: %w", err)
		}
	}
	return train, eval, nil
}

func buildRun(cfg *config.Config, train, eval dataset.Memory) (trainer.RunConfig, error) {
	stream := func(offset int64) *rand.Rand {
		return rand.New(rand.NewSource(cfg.Seed + offset))
	}

	trainLoader, err := dataset.NewLoader(train, cfg.BatchSize, true, stream(trainShuffleStream))
	if err != nil {
		return trainer.RunConfig{}, err
	}
	evalLoader, err := dataset.NewLoader(eval, cfg.TestBatchSize, true, stream(evalShuffleStream))
	if err != nil {
		return trainer.RunConfig{}, err
	}
	aug, err := augment.New(cfg.InitRotRadians(), cfg.RelativeRotRadians(), stream(augmentStream))
	if err != nil {
		return trainer.RunConfig{}, err
	}
	enc, err := model.NewMLP(model.MLPConfig{
		InputSize: train[0].Image.Size(),
		Hidden:    cfg.HiddenUnits,
		Dropout:   cfg.Dropout,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return trainer.RunConfig{}, err
	}
	opt, err := optim.New(cfg.Optimizer, cfg.LearningRate, cfg.Momentum)
	if err != nil {
		return trainer.RunConfig{}, err
	}
	fn, err := loss.New(cfg.LossKind())
	if err != nil {
		return trainer.RunConfig{}, err
	}

	return trainer.RunConfig{
		Encoder:       enc,
		Optimizer:     opt,
		Loss:          fn,
		Augmenter:     aug,
		Train:         trainLoader,
		Eval:          evalLoader,
		Epochs:        cfg.Epochs,
		LogInterval:   cfg.LogInterval,
		StoreInterval: cfg.StoreInterval,
		EvalBatches:   cfg.EvalBatches,
		OutputDir:     cfg.OutputDir(),
		RunName:       cfg.RunName,
		Settings:      cfg,
		Logger:        log.Default(),
	}, nil
}
