// Package curves renders the learning curves of a run.
package curves

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"rotforge/internal/metrics"
)

// Chart describes what to draw.
type Chart struct {
	Log *metrics.Log
	// LossName labels the loss axis, e.g. "forbenius".
	LossName string
	// ExamplesPerPoint converts a snapshot index into training examples seen
	// (store_interval × batch_size).
	ExamplesPerPoint int
}

var (
	lossColor  = color.RGBA{R: 0xe2, G: 0x4a, B: 0x33, A: 0xff}
	errorColor = color.RGBA{G: 0x80, A: 0xff}
	bandColor  = color.RGBA{G: 0x80, A: 0x33}
)

// WritePNG draws the loss curve above the mean angular error with a ±std
// band and writes a PNG of the given size.
func WritePNG(w io.Writer, c Chart, width, height vg.Length) error {
	if c.Log == nil || c.Log.Len() == 0 {
		return fmt.Errorf("plot: no snapshots to draw")
	}
	n := c.Log.Len()
	x := func(i int) float64 { return float64(i * c.ExamplesPerPoint) }

	lossPts := make(plotter.XYs, n)
	meanPts := make(plotter.XYs, n)
	band := make(plotter.XYs, 0, 2*n)
	for i := 0; i < n; i++ {
		lossPts[i] = plotter.XY{X: x(i), Y: c.Log.TrainingLoss[i]}
		meanPts[i] = plotter.XY{X: x(i), Y: c.Log.MeanError[i]}
		band = append(band, plotter.XY{X: x(i), Y: c.Log.MeanError[i] + c.Log.ErrorStd[i]})
	}
	for i := n - 1; i >= 0; i-- {
		band = append(band, plotter.XY{X: x(i), Y: c.Log.MeanError[i] - c.Log.ErrorStd[i]})
	}

	top := plot.New()
	top.Title.Text = "Learning Curves"
	top.Y.Label.Text = c.LossName + " Loss"
	lossLine, err := plotter.NewLine(lossPts)
	if err != nil {
		return fmt.Errorf("plot loss: %w", err)
	}
	lossLine.Color = lossColor
	top.Add(plotter.NewGrid(), lossLine)
	top.Legend.Add("Training Loss", lossLine)

	bottom := plot.New()
	bottom.X.Label.Text = "Training Examples"
	bottom.Y.Label.Text = "Degrees"
	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return fmt.Errorf("plot error band: %w", err)
	}
	poly.Color = bandColor
	poly.LineStyle.Width = 0
	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return fmt.Errorf("plot mean error: %w", err)
	}
	meanLine.Color = errorColor
	bottom.Add(plotter.NewGrid(), poly, meanLine)
	bottom.Legend.Add("Average Abs training error", meanLine)

	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadY: vg.Millimeter * 2}
	plots := [][]*plot.Plot{{top}, {bottom}}
	canvases := plot.Align(plots, tiles, dc)
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("plot: write png: %w", err)
	}
	return nil
}
