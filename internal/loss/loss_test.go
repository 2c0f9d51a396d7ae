package loss

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"rotforge/internal/geometry"
)

var allKinds = []Kind{Frobenius, CosineSquared, CosineAbs}

func TestParseKind(t *testing.T) {
	for _, k := range allKinds {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q)=%v,%v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("frobenius_typo"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestIdenticalVectorsGiveZero(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 2, -0.5, 3, 10, -10})
	for _, k := range allKinds {
		f, err := New(k)
		if err != nil {
			t.Fatalf("New(%v): %v", k, err)
		}
		v, err := f.Value(x, x)
		if err != nil {
			t.Fatalf("%v: %v", k, err)
		}
		if math.Abs(v) > 1e-12 {
			t.Fatalf("%v: loss %g for identical inputs", k, v)
		}
	}
}

func TestKnownValues(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 0, 2, 0})
	y := mat.NewDense(2, 2, []float64{0, 3, -1, 0}) // orthogonal, opposite
	want := map[Kind]float64{
		Frobenius:     2 + 4, // |u-v|^2 = 2 - 2cos
		CosineSquared: 1 + 4,
		CosineAbs:     1 + 2,
	}
	for k, w := range want {
		f, _ := New(k)
		got, _ := f.Value(x, y)
		if math.Abs(got-w) > 1e-12 {
			t.Fatalf("%v: got %f want %f", k, got, w)
		}
		if got < 0 {
			t.Fatalf("%v: negative loss", k)
		}
	}
}

func TestSameDirectionDifferentScaleIsZero(t *testing.T) {
	x := mat.NewDense(1, 2, []float64{0.1, 0.2})
	y := mat.NewDense(1, 2, []float64{5, 10})
	for _, k := range allKinds {
		f, _ := New(k)
		v, _ := f.Value(x, y)
		if math.Abs(v) > 1e-12 {
			t.Fatalf("%v: loss %g", k, v)
		}
	}
}

func TestCosineKindsInvariantUnderCommonRotation(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 2, -3, 1, 0.5, -0.5})
	y := mat.NewDense(3, 2, []float64{-1, 0.3, 2, 2, 4, 1})
	angles := []float64{0.4, 2.5, -1.2}
	rx, _ := geometry.Rotate(x, angles)
	ry, _ := geometry.Rotate(y, angles)
	for _, k := range allKinds {
		f, _ := New(k)
		before, _ := f.Value(x, y)
		after, _ := f.Value(rx, ry)
		if math.Abs(before-after) > 1e-9 {
			t.Fatalf("%v: %f before, %f after rotation", k, before, after)
		}
	}
}

func TestZeroVectorStaysFinite(t *testing.T) {
	x := mat.NewDense(1, 2, []float64{0, 0})
	y := mat.NewDense(1, 2, []float64{1, 0})
	for _, k := range allKinds {
		f, _ := New(k)
		v, _ := f.Value(x, y)
		gx, gy, _ := f.Gradient(x, y)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%v: value %f", k, v)
		}
		for _, g := range []*mat.Dense{gx, gy} {
			for _, e := range g.RawMatrix().Data {
				if math.IsNaN(e) || math.IsInf(e, 0) {
					t.Fatalf("%v: gradient %v", k, g.RawMatrix().Data)
				}
			}
		}
	}
}

func TestGradientMatchesFiniteDifferences(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{0.7, -0.2, 1.5, 0.4})
	y := mat.NewDense(2, 2, []float64{-0.3, 0.9, 0.2, 1.1})
	const h = 1e-6
	for _, k := range allKinds {
		f, _ := New(k)
		gx, gy, err := f.Gradient(x, y)
		if err != nil {
			t.Fatalf("%v: %v", k, err)
		}
		for _, c := range []struct {
			m    *mat.Dense
			grad *mat.Dense
			name string
		}{{x, gx, "x"}, {y, gy, "y"}} {
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					orig := c.m.At(i, j)
					c.m.Set(i, j, orig+h)
					plus, _ := f.Value(x, y)
					c.m.Set(i, j, orig-h)
					minus, _ := f.Value(x, y)
					c.m.Set(i, j, orig)
					numeric := (plus - minus) / (2 * h)
					if math.Abs(numeric-c.grad.At(i, j)) > 1e-5 {
						t.Fatalf("%v d/d%s[%d,%d]: analytic %f numeric %f", k, c.name, i, j, c.grad.At(i, j), numeric)
					}
				}
			}
		}
	}
}

func TestShapeMismatch(t *testing.T) {
	f, _ := New(Frobenius)
	if _, err := f.Value(mat.NewDense(2, 2, nil), mat.NewDense(3, 2, nil)); err == nil {
		t.Fatal("expected shape error")
	}
}
