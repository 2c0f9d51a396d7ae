package augment

import (
	"math"

	"rotforge/internal/dataset"
)

// Rotate returns img rotated counter-clockwise (as displayed, rows growing
// downwards) by angle radians about the center of the pixel grid. The output
// has the input's shape; samples falling outside the frame read as zero.
// Interpolation is bilinear.
func Rotate(img dataset.Image, angle float64) dataset.Image {
	out := dataset.NewImage(img.Channels, img.Height, img.Width)
	cx := float64(img.Width-1) / 2
	cy := float64(img.Height-1) / 2
	sin, cos := math.Sincos(angle)

	for y := 0; y < img.Height; y++ {
		dy := float64(y) - cy
		for x := 0; x < img.Width; x++ {
			dx := float64(x) - cx
			// inverse map: where in the source does output (x, y) come from
			sx := cx + cos*dx - sin*dy
			sy := cy + sin*dx + cos*dy
			for c := 0; c < img.Channels; c++ {
				out.Set(c, y, x, bilinear(img, c, sx, sy))
			}
		}
	}
	return out
}

func bilinear(img dataset.Image, c int, sx, sy float64) float64 {
	// snap values within rounding noise of a grid point so integer-aligned
	// rotations reproduce pixels exactly
	if r := math.Round(sx); math.Abs(sx-r) < 1e-9 {
		sx = r
	}
	if r := math.Round(sy); math.Abs(sy-r) < 1e-9 {
		sy = r
	}
	x0 := int(math.Floor(sx))
	y0 := int(math.Floor(sy))
	fx := sx - float64(x0)
	fy := sy - float64(y0)

	v00 := pixel(img, c, y0, x0)
	v01 := pixel(img, c, y0, x0+1)
	v10 := pixel(img, c, y0+1, x0)
	v11 := pixel(img, c, y0+1, x0+1)

	top := v00*(1-fx) + v01*fx
	bottom := v10*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy
}

func pixel(img dataset.Image, c, y, x int) float64 {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return 0
	}
	return img.At(c, y, x)
}
