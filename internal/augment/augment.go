// Package augment manufactures pairs of rotated views whose relative angle is
// known. The relative angle is the only supervision the encoder receives.
package augment

import (
	"math"
	"math/rand"

	"rotforge/internal/dataset"
	"rotforge/internal/failure"
)

// Pair is the output of one augmentation: view2[i] is view1[i] rotated by a
// further Relative[i] radians.
type Pair struct {
	View1    []dataset.Image
	View2    []dataset.Image
	Offsets  []float64
	Relative []float64
}

// Len returns the number of samples in the pair.
func (p Pair) Len() int {
	return len(p.View1)
}

// Augmenter draws the rotation angles from its own RNG.
type Augmenter struct {
	initRange     float64
	relativeRange float64
	rng           *rand.Rand
}

// New returns an Augmenter drawing offsets in [0, initRange) and relative
// angles in [0, relativeRange), both in radians.
func New(initRange, relativeRange float64, rng *rand.Rand) (*Augmenter, error) {
	if err := checkRange("init_rot_range", initRange); err != nil {
		return nil, err
	}
	if err := checkRange("relative_rot_range", relativeRange); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, failure.New(failure.KindConfig, "augment", "nil RNG")
	}
	return &Augmenter{initRange: initRange, relativeRange: relativeRange, rng: rng}, nil
}

func checkRange(name string, v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return failure.New(failure.KindConfig, "augment", "%s must be finite and >= 0", name).
			WithContext("value", v)
	}
	return nil
}

// Augment rotates every image twice. All offsets are drawn before the
// relative angles.
func (a *Augmenter) Augment(images []dataset.Image) (Pair, error) {
	n := len(images)
	offsets := make([]float64, n)
	for i := range offsets {
		offsets[i] = a.initRange * a.rng.Float64()
	}
	relative := make([]float64, n)
	for i := range relative {
		relative[i] = a.relativeRange * a.rng.Float64()
	}

	pair := Pair{
		View1:    make([]dataset.Image, n),
		View2:    make([]dataset.Image, n),
		Offsets:  offsets,
		Relative: relative,
	}
	for i, img := range images {
		if err := img.Validate(); err != nil {
			return Pair{}, failure.Wrap(failure.KindAugmentation, "augment input", err)
		}
		if i > 0 && !img.SameShape(images[0]) {
			return Pair{}, failure.New(failure.KindAugmentation, "augment input", "batch has mixed image shapes").
				WithContext("sample", i)
		}
		v1 := Rotate(img, offsets[i])
		v2 := Rotate(img, offsets[i]+relative[i])
		for _, v := range []dataset.Image{v1, v2} {
			if !v.SameShape(img) {
				return Pair{}, failure.New(failure.KindAugmentation, "rotate", "shape changed").
					WithContext("sample", i)
			}
			if err := v.Validate(); err != nil {
				return Pair{}, failure.Wrap(failure.KindAugmentation, "rotate", err)
			}
		}
		pair.View1[i] = v1
		pair.View2[i] = v2
	}
	return pair, nil
}
