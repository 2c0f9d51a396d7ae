// Package modeltest provides encoder test doubles.
package modeltest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"rotforge/internal/dataset"
	"rotforge/internal/model"
)

// Centroid embeds an image as (cos φ, sin φ), where φ is the angle of the
// intensity centroid around the image center with y pointing up. Rotating an
// image counter-clockwise by θ advances φ by θ, so Centroid is an exactly
// equivariant encoder up to interpolation error.
type Centroid struct {
	Training bool
	Calls    int
}

var _ model.Encoder = (*Centroid)(nil)

// Forward embeds the images; Backward on the returned pass is a no-op.
func (c *Centroid) Forward(images []dataset.Image) (model.Pass, error) {
	out, err := c.Infer(images)
	if err != nil {
		return nil, err
	}
	return pass{out: out}, nil
}

// Infer embeds the images.
func (c *Centroid) Infer(images []dataset.Image) (*mat.Dense, error) {
	c.Calls++
	out := mat.NewDense(len(images), model.FeatureDim, nil)
	for i, img := range images {
		phi, err := CentroidAngle(img)
		if err != nil {
			return nil, fmt.Errorf("centroid: image %d: %w", i, err)
		}
		out.Set(i, 0, math.Cos(phi))
		out.Set(i, 1, math.Sin(phi))
	}
	return out, nil
}

// SetTraining records the mode.
func (c *Centroid) SetTraining(training bool) {
	c.Training = training
}

// Parameters is empty.
func (c *Centroid) Parameters() []*model.Param {
	return nil
}

type pass struct {
	out *mat.Dense
}

func (p pass) Output() *mat.Dense          { return p.out }
func (p pass) Backward(_ mat.Matrix) error { return nil }

// CentroidAngle returns the counter-clockwise angle of the first channel's
// intensity centroid around the image center.
func CentroidAngle(img dataset.Image) (float64, error) {
	cx := float64(img.Width-1) / 2
	cy := float64(img.Height-1) / 2
	var sx, sy, total float64
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.At(0, y, x)
			sx += v * (float64(x) - cx)
			sy += v * (cy - float64(y))
			total += v
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("empty image")
	}
	return math.Atan2(sy/total, sx/total), nil
}

// Blob draws a gaussian spot at angle φ (counter-clockwise, y up) a quarter
// of the image size away from the center.
func Blob(size int, phi float64) dataset.Image {
	img := dataset.NewImage(1, size, size)
	c := float64(size-1) / 2
	r := float64(size) / 4
	bx := c + r*math.Cos(phi)
	by := c - r*math.Sin(phi)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d2 := (float64(x)-bx)*(float64(x)-bx) + (float64(y)-by)*(float64(y)-by)
			img.Set(0, y, x, math.Exp(-d2/(2*1.5*1.5)))
		}
	}
	return img
}

// BlobDataset returns n labelled blobs at evenly spread angles.
func BlobDataset(n, size int) dataset.Memory {
	out := make(dataset.Memory, n)
	for i := range out {
		phi := 2 * math.Pi * float64(i) / float64(n)
		out[i] = dataset.Sample{Key: fmt.Sprintf("blob-%d", i), Image: Blob(size, phi), Label: i % 10}
	}
	return out
}
