// Package geometry rotates 2-d feature vectors. Rotating the features of a
// view by the view's relative angle is the equivariance hypothesis the
// encoder is trained against.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix returns the 2x2 counter-clockwise rotation [[cos, -sin], [sin, cos]].
func Matrix(theta float64) *mat.Dense {
	sin, cos := math.Sincos(theta)
	return mat.NewDense(2, 2, []float64{
		cos, -sin,
		sin, cos,
	})
}

// Rotate returns a new N×2 matrix whose i-th row is Matrix(angles[i]) applied
// to the i-th row of f.
func Rotate(f mat.Matrix, angles []float64) (*mat.Dense, error) {
	return apply(f, angles, 1)
}

// RotateTranspose applies the transpose of each per-row rotation, which is
// the rotation by the negated angle. It maps a gradient with respect to the
// rotated features back onto the original features.
func RotateTranspose(f mat.Matrix, angles []float64) (*mat.Dense, error) {
	return apply(f, angles, -1)
}

func apply(f mat.Matrix, angles []float64, sign float64) (*mat.Dense, error) {
	rows, cols := f.Dims()
	if cols != 2 {
		return nil, fmt.Errorf("geometry: features have %d columns, want 2", cols)
	}
	if rows != len(angles) {
		return nil, fmt.Errorf("geometry: %d feature rows for %d angles", rows, len(angles))
	}
	out := mat.NewDense(rows, 2, nil)
	var v mat.VecDense
	for i, theta := range angles {
		v.MulVec(Matrix(sign*theta), mat.NewVecDense(2, mat.Row(nil, i, f)))
		out.SetRow(i, v.RawVector().Data)
	}
	return out, nil
}
