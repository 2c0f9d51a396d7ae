package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rotforge/internal/failure"
	"rotforge/internal/loss"
	"rotforge/internal/optim"
)

// Data formats.
const (
	FormatIDX    = "idx"
	FormatShards = "shards"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	BatchSize        int     `yaml:"batch_size"`
	TestBatchSize    int     `yaml:"test_batch_size"`
	Epochs           int     `yaml:"epochs"`
	LearningRate     float64 `yaml:"learning_rate"`
	Momentum         float64 `yaml:"momentum"`
	Optimizer        string  `yaml:"optimizer"`
	Seed             int64   `yaml:"seed"`
	LogInterval      int     `yaml:"log_interval"`
	StoreInterval    int     `yaml:"store_interval"`
	EvalBatches      int     `yaml:"eval_batches"`
	Loss             string  `yaml:"loss"`
	InitRotRange     float64 `yaml:"init_rot_range"`     // degrees
	RelativeRotRange float64 `yaml:"relative_rot_range"` // degrees
	RunName          string  `yaml:"run_name"`
	OutputRoot       string  `yaml:"output_root"`
	HiddenUnits      int     `yaml:"hidden_units"`
	Dropout          float64 `yaml:"dropout"`
	Data             Data    `yaml:"data"`
}

// Data selects the training and evaluation sources.
type Data struct {
	Format         string   `yaml:"format"`
	TrainImages    string   `yaml:"train_images"`
	TrainLabels    string   `yaml:"train_labels"`
	EvalImages     string   `yaml:"eval_images"`
	EvalLabels     string   `yaml:"eval_labels"`
	ShardRoots     []string `yaml:"shard_roots"`
	EvalShardRoots []string `yaml:"eval_shard_roots"`
	Workers        int      `yaml:"workers"`
	Limit          int      `yaml:"limit"`
}

// Overrides captures CLI supplied values. Zero values and nil pointers leave
// the config as is.
type Overrides struct {
	BatchSize        int
	TestBatchSize    int
	Epochs           int
	LearningRate     float64
	Momentum         *float64
	Optimizer        string
	Seed             int64
	LogInterval      int
	StoreInterval    int
	EvalBatches      int
	Loss             string
	InitRotRange     *float64
	RelativeRotRange *float64
	RunName          string
	OutputRoot       string
	TrainImages      string
	TrainLabels      string
}

// Default returns the stock experiment settings.
func Default() *Config {
	return &Config{
		BatchSize:        64,
		TestBatchSize:    1000,
		Epochs:           20,
		LearningRate:     0.001,
		Momentum:         0.9,
		Optimizer:        optim.NameAdam,
		Seed:             1,
		LogInterval:      10,
		StoreInterval:    50,
		EvalBatches:      1,
		Loss:             loss.TokenFrobenius,
		InitRotRange:     0,
		RelativeRotRange: 180,
		OutputRoot:       ".",
		HiddenUnits:      128,
		Data: Data{
			Format:  FormatIDX,
			Workers: 1,
		},
	}
}

// Load reads a Config from YAML on top of Default. Unknown keys are
// rejected. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrap(failure.KindConfig, "read config", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, failure.Wrap(failure.KindConfig, "parse config", err)
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.TestBatchSize > 0 {
		c.TestBatchSize = o.TestBatchSize
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Momentum != nil {
		c.Momentum = *o.Momentum
	}
	if o.Optimizer != "" {
		c.Optimizer = o.Optimizer
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogInterval > 0 {
		c.LogInterval = o.LogInterval
	}
	if o.StoreInterval > 0 {
		c.StoreInterval = o.StoreInterval
	}
	if o.EvalBatches > 0 {
		c.EvalBatches = o.EvalBatches
	}
	if o.Loss != "" {
		c.Loss = o.Loss
	}
	if o.InitRotRange != nil {
		c.InitRotRange = *o.InitRotRange
	}
	if o.RelativeRotRange != nil {
		c.RelativeRotRange = *o.RelativeRotRange
	}
	if o.RunName != "" {
		c.RunName = o.RunName
	}
	if o.OutputRoot != "" {
		c.OutputRoot = o.OutputRoot
	}
	if o.TrainImages != "" {
		c.Data.TrainImages = o.TrainImages
	}
	if o.TrainLabels != "" {
		c.Data.TrainLabels = o.TrainLabels
	}
}

// Validate verifies the config is runnable. All failures are
// configuration errors.
func (c *Config) Validate() error {
	if c == nil {
		return failure.New(failure.KindConfig, "validate", "config is nil")
	}
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0 (got %d)", name, v))
		}
	}
	positive("batch_size", c.BatchSize)
	positive("test_batch_size", c.TestBatchSize)
	positive("epochs", c.Epochs)
	positive("log_interval", c.LogInterval)
	positive("store_interval", c.StoreInterval)
	positive("eval_batches", c.EvalBatches)
	positive("hidden_units", c.HiddenUnits)
	if !(c.LearningRate > 0) {
		errs = append(errs, fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate))
	}
	if _, err := loss.ParseKind(c.Loss); err != nil {
		errs = append(errs, err)
	}
	if c.Optimizer != optim.NameAdam && c.Optimizer != optim.NameSGD {
		errs = append(errs, fmt.Errorf("optimizer must be %s or %s (got %q)", optim.NameAdam, optim.NameSGD, c.Optimizer))
	}
	angle := func(name string, v float64) {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be finite and >= 0 degrees (got %g)", name, v))
		}
	}
	angle("init_rot_range", c.InitRotRange)
	angle("relative_rot_range", c.RelativeRotRange)
	if c.Dropout < 0 || c.Dropout >= 1 {
		errs = append(errs, fmt.Errorf("dropout must be in [0,1) (got %g)", c.Dropout))
	}
	switch c.Data.Format {
	case FormatIDX:
		if c.Data.TrainImages == "" {
			errs = append(errs, errors.New("data.train_images must be set for idx data"))
		}
	case FormatShards:
		if len(c.Data.ShardRoots) == 0 {
			errs = append(errs, errors.New("data.shard_roots must be set for shard data"))
		}
	default:
		errs = append(errs, fmt.Errorf("data.format must be %s or %s (got %q)", FormatIDX, FormatShards, c.Data.Format))
	}
	if len(errs) > 0 {
		return failure.Wrap(failure.KindConfig, "validate", errors.Join(errs...))
	}
	return nil
}

// LossKind returns the parsed loss kind. Call after Validate.
func (c *Config) LossKind() loss.Kind {
	k, _ := loss.ParseKind(c.Loss)
	return k
}

// InitRotRadians is init_rot_range converted to radians.
func (c *Config) InitRotRadians() float64 {
	return c.InitRotRange * math.Pi / 180
}

// RelativeRotRadians is relative_rot_range converted to radians.
func (c *Config) RelativeRotRadians() float64 {
	return c.RelativeRotRange * math.Pi / 180
}

// OutputDir is the per-run artifact directory.
func (c *Config) OutputDir() string {
	return filepath.Join(c.OutputRoot, "output_"+c.RunName)
}

// EvalSource returns the evaluation image and label paths, defaulting to the
// training files.
func (d Data) EvalSource() (images, labels string) {
	if d.EvalImages != "" {
		return d.EvalImages, d.EvalLabels
	}
	return d.TrainImages, d.TrainLabels
}

// EvalRoots returns the evaluation shard roots, defaulting to the training roots.
func (d Data) EvalRoots() []string {
	if len(d.EvalShardRoots) > 0 {
		return d.EvalShardRoots
	}
	return d.ShardRoots
}
