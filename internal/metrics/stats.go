package metrics

import "time"

// Step is the measurement of one training step.
type Step struct {
	Examples int
	Augment  time.Duration
	Compute  time.Duration
	Loss     float64
}

// Window accumulates steps between two log lines.
type Window struct {
	steps []Step
}

// Record adds one training step to the window.
func (w *Window) Record(s Step) {
	w.steps = append(w.steps, s)
}

// Snapshot summarises the recorded steps and empties the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Steps: len(w.steps)}
	if snap.Steps == 0 {
		return snap
	}
	var examples int
	var augment, compute time.Duration
	var lossSum float64
	for _, s := range w.steps {
		examples += s.Examples
		augment += s.Augment
		compute += s.Compute
		lossSum += s.Loss
	}
	if total := augment + compute; total > 0 {
		snap.ImagesPerSec = float64(examples) / total.Seconds()
	}
	n := float64(snap.Steps)
	snap.AvgAugmentMS = augment.Seconds() * 1000 / n
	snap.AvgComputeMS = compute.Seconds() * 1000 / n
	snap.MeanLoss = lossSum / n
	snap.LastLoss = w.steps[len(w.steps)-1].Loss

	w.steps = w.steps[:0]
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Steps        int
	ImagesPerSec float64
	AvgAugmentMS float64
	AvgComputeMS float64
	MeanLoss     float64
	LastLoss     float64
}
