package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Discrimination summarizes the signed angular error of a rotation test.
type Discrimination struct {
	// MeanAbsError is the mean absolute error in degrees.
	MeanAbsError float64
	// ErrorStd is the sample standard deviation (divisor N-1) of the signed
	// error in degrees. A single sample reports 0 instead of the undefined
	// NaN, so logs and curves stay finite.
	ErrorStd float64
	Samples  int
}

// SignedErrorsDeg returns (predicted - actual) in degrees.
func SignedErrorsDeg(predicted, actual []float64) ([]float64, error) {
	if len(predicted) != len(actual) {
		return nil, fmt.Errorf("metrics: %d predictions for %d angles", len(predicted), len(actual))
	}
	out := make([]float64, len(predicted))
	for i := range predicted {
		out[i] = (predicted[i] - actual[i]) * 180 / math.Pi
	}
	return out, nil
}

// Summarize reduces signed errors in degrees to a Discrimination.
func Summarize(errorsDeg []float64) (Discrimination, error) {
	if len(errorsDeg) == 0 {
		return Discrimination{}, fmt.Errorf("metrics: no errors to summarize")
	}
	abs := make([]float64, len(errorsDeg))
	for i, e := range errorsDeg {
		abs[i] = math.Abs(e)
	}
	d := Discrimination{MeanAbsError: stat.Mean(abs, nil), Samples: len(errorsDeg)}
	if len(errorsDeg) > 1 {
		d.ErrorStd = stat.StdDev(errorsDeg, nil)
	}
	return d, nil
}
