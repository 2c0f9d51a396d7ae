// Package loss scores how well rotated view-1 features line up with view-2
// features. Each kind is a function of the per-sample directions only, and
// every kind sums over the batch rather than averaging.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Kind selects the loss definition. It is fixed for a run.
type Kind int

const (
	// Frobenius is the squared distance between unit-normalized vectors.
	Frobenius Kind = iota
	// CosineSquared is (cos - 1)^2.
	CosineSquared
	// CosineAbs is |cos - 1|.
	CosineAbs
)

// Config tokens. "forbenius" is the historical spelling accepted on the
// command line and in config files.
const (
	TokenFrobenius     = "forbenius"
	TokenCosineSquared = "cosine_squared"
	TokenCosineAbs     = "cosine_abs"
)

// normEps bounds vector norms from below when dividing.
const normEps = 1e-8

// ParseKind maps a config token to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case TokenFrobenius:
		return Frobenius, nil
	case TokenCosineSquared:
		return CosineSquared, nil
	case TokenCosineAbs:
		return CosineAbs, nil
	}
	return 0, fmt.Errorf("loss: unknown kind %q (want %s, %s or %s)", s, TokenFrobenius, TokenCosineSquared, TokenCosineAbs)
}

// String returns the config token for k.
func (k Kind) String() string {
	switch k {
	case Frobenius:
		return TokenFrobenius
	case CosineSquared:
		return TokenCosineSquared
	case CosineAbs:
		return TokenCosineAbs
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Func is a resolved loss: the value and its derivative as a function of the
// per-sample cosine similarity.
type Func struct {
	kind  Kind
	value func(x, y []float64) float64
	dcos  func(c float64) float64
}

// New resolves kind once into a Func.
func New(kind Kind) (Func, error) {
	switch kind {
	case Frobenius:
		return Func{kind: kind, value: frobenius, dcos: func(float64) float64 { return -2 }}, nil
	case CosineSquared:
		return Func{
			kind:  kind,
			value: func(x, y []float64) float64 {
				d := Cosine(x, y) - 1
				return d * d
			},
			dcos: func(c float64) float64 { return 2 * (c - 1) },
		}, nil
	case CosineAbs:
		return Func{
			kind:  kind,
			value: func(x, y []float64) float64 { return math.Abs(Cosine(x, y) - 1) },
			dcos: func(c float64) float64 {
				if c > 1 {
					return 1
				}
				return -1
			},
		}, nil
	}
	return Func{}, fmt.Errorf("loss: unknown kind %d", int(kind))
}

// Kind returns the kind Func was resolved from.
func (f Func) Kind() Kind {
	return f.kind
}

// Value sums the per-sample loss over the rows of x and y (both N×2).
func (f Func) Value(x, y mat.Matrix) (float64, error) {
	if err := checkDims(x, y); err != nil {
		return 0, err
	}
	rows, _ := x.Dims()
	var total float64
	for i := 0; i < rows; i++ {
		total += f.value(mat.Row(nil, i, x), mat.Row(nil, i, y))
	}
	return total, nil
}

// Gradient returns dL/dx and dL/dy.
func (f Func) Gradient(x, y mat.Matrix) (gx, gy *mat.Dense, err error) {
	if err := checkDims(x, y); err != nil {
		return nil, nil, err
	}
	rows, cols := x.Dims()
	gx = mat.NewDense(rows, cols, nil)
	gy = mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		xi := mat.Row(nil, i, x)
		yi := mat.Row(nil, i, y)
		dx, dy := cosineGrad(xi, yi)
		s := f.dcos(Cosine(xi, yi))
		floats.Scale(s, dx)
		floats.Scale(s, dy)
		gx.SetRow(i, dx)
		gy.SetRow(i, dy)
	}
	return gx, gy, nil
}

// Cosine is the cosine similarity of a and b with norms clamped at normEps.
func Cosine(a, b []float64) float64 {
	na := math.Max(floats.Norm(a, 2), normEps)
	nb := math.Max(floats.Norm(b, 2), normEps)
	return floats.Dot(a, b) / (na * nb)
}

// CosineRows returns the per-row cosine similarity of x and y.
func CosineRows(x, y mat.Matrix) ([]float64, error) {
	if err := checkDims(x, y); err != nil {
		return nil, err
	}
	rows, _ := x.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = Cosine(mat.Row(nil, i, x), mat.Row(nil, i, y))
	}
	return out, nil
}

func frobenius(x, y []float64) float64 {
	u := unit(x)
	v := unit(y)
	floats.Sub(u, v)
	return floats.Dot(u, u)
}

func unit(a []float64) []float64 {
	out := append([]float64(nil), a...)
	floats.Scale(1/math.Max(floats.Norm(a, 2), normEps), out)
	return out
}

// cosineGrad returns d cos(a,b)/da and d cos(a,b)/db.
func cosineGrad(a, b []float64) (da, db []float64) {
	na := math.Max(floats.Norm(a, 2), normEps)
	nb := math.Max(floats.Norm(b, 2), normEps)
	c := floats.Dot(a, b) / (na * nb)

	da = make([]float64, len(a))
	db = make([]float64, len(b))
	for j := range a {
		da[j] = b[j]/(na*nb) - c*a[j]/(na*na)
		db[j] = a[j]/(na*nb) - c*b[j]/(nb*nb)
	}
	return da, db
}

func checkDims(x, y mat.Matrix) error {
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	if xr != yr || xc != yc {
		return fmt.Errorf("loss: shape mismatch %dx%d vs %dx%d", xr, xc, yr, yc)
	}
	if xc != 2 {
		return fmt.Errorf("loss: features have %d columns, want 2", xc)
	}
	return nil
}
