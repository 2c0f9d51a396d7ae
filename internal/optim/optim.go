// Package optim updates encoder parameters from their accumulated gradients.
package optim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"rotforge/internal/model"
)

// Optimizer applies one update to params from their Grad fields.
type Optimizer interface {
	Step(params []*model.Param)
}

// Names accepted by New.
const (
	NameAdam = "adam"
	NameSGD  = "sgd"
)

// New builds the named optimizer.
func New(name string, lr, momentum float64) (Optimizer, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("optim: learning rate must be > 0 (got %g)", lr)
	}
	switch name {
	case NameAdam, "":
		return NewAdam(lr), nil
	case NameSGD:
		return &SGD{LR: lr, Momentum: momentum}, nil
	}
	return nil, fmt.Errorf("optim: unknown optimizer %q", name)
}

// SGD is stochastic gradient descent with classical momentum:
// v = momentum*v + g; p -= lr*v.
type SGD struct {
	LR       float64
	Momentum float64

	velocity map[*model.Param]*mat.Dense
}

// Step implements Optimizer.
func (o *SGD) Step(params []*model.Param) {
	if o.velocity == nil {
		o.velocity = make(map[*model.Param]*mat.Dense)
	}
	for _, p := range params {
		v, ok := o.velocity[p]
		if !ok {
			r, c := p.Value.Dims()
			v = mat.NewDense(r, c, nil)
			o.velocity[p] = v
		}
		v.Scale(o.Momentum, v)
		v.Add(v, p.Grad)

		var step mat.Dense
		step.Scale(o.LR, v)
		p.Value.Sub(p.Value, &step)
	}
}

// Adam is the Adam optimizer with bias correction.
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64

	t     int
	state map[*model.Param]*adamState
}

type adamState struct {
	m, v []float64
}

// NewAdam returns Adam with the usual defaults.
func NewAdam(lr float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Step implements Optimizer.
func (o *Adam) Step(params []*model.Param) {
	if o.state == nil {
		o.state = make(map[*model.Param]*adamState)
	}
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))

	for _, p := range params {
		value := p.Value.RawMatrix().Data
		grad := mat.DenseCopyOf(p.Grad).RawMatrix().Data
		st, ok := o.state[p]
		if !ok {
			st = &adamState{m: make([]float64, len(value)), v: make([]float64, len(value))}
			o.state[p] = st
		}
		for i, g := range grad {
			st.m[i] = o.Beta1*st.m[i] + (1-o.Beta1)*g
			st.v[i] = o.Beta2*st.v[i] + (1-o.Beta2)*g*g
			mHat := st.m[i] / c1
			vHat := st.v[i] / c2
			value[i] -= o.LR * mHat / (math.Sqrt(vHat) + o.Epsilon)
		}
	}
}
