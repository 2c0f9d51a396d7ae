package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"rotforge/internal/dataset"
)

// MLP is input -> hidden (ReLU, optional dropout) -> 2.
type MLP struct {
	inputSize int
	hidden    int
	dropout   float64
	training  bool
	rng       *rand.Rand

	w1, b1, w2, b2 *Param
}

// MLPConfig configures NewMLP.
type MLPConfig struct {
	InputSize int
	Hidden    int
	// Dropout is the probability of zeroing a hidden unit in training mode.
	Dropout float64
	Seed    int64
}

// NewMLP constructs the encoder with Xavier-normal weights and zero biases.
func NewMLP(cfg MLPConfig) (*MLP, error) {
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("mlp: input size must be > 0 (got %d)", cfg.InputSize)
	}
	if cfg.Hidden <= 0 {
		return nil, fmt.Errorf("mlp: hidden units must be > 0 (got %d)", cfg.Hidden)
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return nil, fmt.Errorf("mlp: dropout must be in [0,1) (got %g)", cfg.Dropout)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	m := &MLP{
		inputSize: cfg.InputSize,
		hidden:    cfg.Hidden,
		dropout:   cfg.Dropout,
		training:  true,
		rng:       rng,
		w1:        newParam("fc1.weight", cfg.Hidden, cfg.InputSize),
		b1:        newParam("fc1.bias", 1, cfg.Hidden),
		w2:        newParam("fc2.weight", FeatureDim, cfg.Hidden),
		b2:        newParam("fc2.bias", 1, FeatureDim),
	}
	xavierNormal(m.w1.Value, rng)
	xavierNormal(m.w2.Value, rng)
	return m, nil
}

func xavierNormal(w *mat.Dense, rng *rand.Rand) {
	fanOut, fanIn := w.Dims()
	std := math.Sqrt(2.0 / float64(fanIn+fanOut))
	raw := w.RawMatrix()
	for i := range raw.Data {
		raw.Data[i] = rng.NormFloat64() * std
	}
}

// InputSize is the flattened image size the encoder accepts.
func (m *MLP) InputSize() int {
	return m.inputSize
}

// SetTraining toggles dropout.
func (m *MLP) SetTraining(training bool) {
	m.training = training
}

// Parameters returns the trainable parameters in a stable order.
func (m *MLP) Parameters() []*Param {
	return []*Param{m.w1, m.b1, m.w2, m.b2}
}

// Forward runs a taped pass.
func (m *MLP) Forward(images []dataset.Image) (Pass, error) {
	return m.forward(images)
}

// Infer runs a pass and discards the tape.
func (m *MLP) Infer(images []dataset.Image) (*mat.Dense, error) {
	p, err := m.forward(images)
	if err != nil {
		return nil, err
	}
	return p.out, nil
}

type mlpPass struct {
	m    *MLP
	x    *mat.Dense
	z1   *mat.Dense
	mask *mat.Dense
	a1   *mat.Dense
	out  *mat.Dense
}

func (m *MLP) forward(images []dataset.Image) (*mlpPass, error) {
	x, err := m.flatten(images)
	if err != nil {
		return nil, err
	}
	n, _ := x.Dims()

	z1 := mat.NewDense(n, m.hidden, nil)
	z1.Mul(x, m.w1.Value.T())
	addRowVector(z1, m.b1.Value)

	mask := mat.NewDense(n, m.hidden, nil)
	keep := 1.0
	if m.training && m.dropout > 0 {
		keep = 1 - m.dropout
	}
	a1 := mat.NewDense(n, m.hidden, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < m.hidden; j++ {
			scale := 1.0
			if keep < 1 {
				scale = 0
				if m.rng.Float64() < keep {
					scale = 1 / keep
				}
			}
			mask.Set(i, j, scale)
			if v := z1.At(i, j); v > 0 {
				a1.Set(i, j, v*scale)
			}
		}
	}

	out := mat.NewDense(n, FeatureDim, nil)
	out.Mul(a1, m.w2.Value.T())
	addRowVector(out, m.b2.Value)

	return &mlpPass{m: m, x: x, z1: z1, mask: mask, a1: a1, out: out}, nil
}

func (p *mlpPass) Output() *mat.Dense {
	return p.out
}

func (p *mlpPass) Backward(grad mat.Matrix) error {
	n, _ := p.out.Dims()
	if r, c := grad.Dims(); r != n || c != FeatureDim {
		return fmt.Errorf("mlp: gradient is %dx%d, want %dx%d", r, c, n, FeatureDim)
	}
	m := p.m

	var dw2 mat.Dense
	dw2.Mul(grad.T(), p.a1)
	m.w2.Grad.Add(m.w2.Grad, &dw2)
	addColumnSums(m.b2.Grad, grad)

	dz1 := mat.NewDense(n, m.hidden, nil)
	dz1.Mul(grad, m.w2.Value)
	dz1.Apply(func(i, j int, v float64) float64 {
		if p.z1.At(i, j) <= 0 {
			return 0
		}
		return v * p.mask.At(i, j)
	}, dz1)

	var dw1 mat.Dense
	dw1.Mul(dz1.T(), p.x)
	m.w1.Grad.Add(m.w1.Grad, &dw1)
	addColumnSums(m.b1.Grad, dz1)
	return nil
}

func (m *MLP) flatten(images []dataset.Image) (*mat.Dense, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("mlp: empty batch")
	}
	x := mat.NewDense(len(images), m.inputSize, nil)
	for i, img := range images {
		if len(img.Pix) != m.inputSize {
			return nil, fmt.Errorf("mlp: image %d has %d values, want %d", i, len(img.Pix), m.inputSize)
		}
		x.SetRow(i, img.Pix)
	}
	return x, nil
}

// addRowVector adds the 1×C row vector v to every row of d.
func addRowVector(d *mat.Dense, v *mat.Dense) {
	row := v.RawRowView(0)
	d.Apply(func(_, j int, x float64) float64 {
		return x + row[j]
	}, d)
}

// addColumnSums adds the column sums of g to the 1×C row vector dst.
func addColumnSums(dst *mat.Dense, g mat.Matrix) {
	_, cols := g.Dims()
	for j := 0; j < cols; j++ {
		dst.Set(0, j, dst.At(0, j)+floats.Sum(mat.Col(nil, j, g)))
	}
}
