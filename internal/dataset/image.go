package dataset

import (
	"fmt"
	"math"
)

// Image is a single CHW image with intensities in [0,1].
type Image struct {
	Channels int
	Height   int
	Width    int
	Pix      []float64
}

// NewImage allocates a zeroed image.
func NewImage(channels, height, width int) Image {
	return Image{
		Channels: channels,
		Height:   height,
		Width:    width,
		Pix:      make([]float64, channels*height*width),
	}
}

// Size is the number of values in the image.
func (im Image) Size() int {
	return im.Channels * im.Height * im.Width
}

// At returns the value of channel c at row y, column x.
func (im Image) At(c, y, x int) float64 {
	return im.Pix[(c*im.Height+y)*im.Width+x]
}

// Set stores v at channel c, row y, column x.
func (im Image) Set(c, y, x int, v float64) {
	im.Pix[(c*im.Height+y)*im.Width+x] = v
}

// SameShape reports whether both images have identical dimensions.
func (im Image) SameShape(other Image) bool {
	return im.Channels == other.Channels && im.Height == other.Height && im.Width == other.Width
}

// Clone returns a deep copy.
func (im Image) Clone() Image {
	out := im
	out.Pix = append([]float64(nil), im.Pix...)
	return out
}

// Validate checks dimensions and that every value is finite.
func (im Image) Validate() error {
	if im.Channels <= 0 || im.Height <= 0 || im.Width <= 0 {
		return fmt.Errorf("image: invalid shape [%d,%d,%d]", im.Channels, im.Height, im.Width)
	}
	if len(im.Pix) != im.Size() {
		return fmt.Errorf("image: %d values for shape [%d,%d,%d]", len(im.Pix), im.Channels, im.Height, im.Width)
	}
	for i, v := range im.Pix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("image: non-finite value at %d", i)
		}
	}
	return nil
}

// Sample is one labelled image. Labels are carried along but never used by
// the rotation objective.
type Sample struct {
	Key   string
	Image Image
	Label int
}

// Batch is a minibatch of images.
type Batch struct {
	Images []Image
	Labels []int
}

// Len returns the number of images in the batch.
func (b Batch) Len() int {
	return len(b.Images)
}

// Dataset is a random-access collection of samples.
type Dataset interface {
	Len() int
	Sample(i int) (Sample, error)
}

// Memory is a Dataset held entirely in memory.
type Memory []Sample

// Len returns the number of samples.
func (m Memory) Len() int {
	return len(m)
}

// Sample returns the i-th sample.
func (m Memory) Sample(i int) (Sample, error) {
	if i < 0 || i >= len(m) {
		return Sample{}, fmt.Errorf("dataset: index %d out of range [0,%d)", i, len(m))
	}
	return m[i], nil
}
