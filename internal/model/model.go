// Package model defines what the trainer needs from an encoder and provides a
// small multilayer perceptron that satisfies it.
package model

import (
	"gonum.org/v1/gonum/mat"

	"rotforge/internal/dataset"
)

// FeatureDim is the width of every encoder output row.
const FeatureDim = 2

// Param is a trainable matrix and its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// Pass is one taped forward pass.
type Pass interface {
	// Output is the N×2 feature matrix.
	Output() *mat.Dense
	// Backward accumulates parameter gradients given dLoss/dOutput.
	Backward(grad mat.Matrix) error
}

// Encoder maps a batch of images to N×2 features.
type Encoder interface {
	// Forward runs a pass that can later be differentiated.
	Forward(images []dataset.Image) (Pass, error)
	// Infer runs a pass without recording anything for Backward.
	Infer(images []dataset.Image) (*mat.Dense, error)
	// SetTraining switches between training and inference behaviour.
	SetTraining(training bool)
	Parameters() []*Param
}

// ZeroGrad clears the accumulated gradients of params.
func ZeroGrad(params []*Param) {
	for _, p := range params {
		p.Grad.Zero()
	}
}
