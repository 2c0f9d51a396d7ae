// Package evaluate measures an encoder on held-out batches without touching
// its parameters: the configured loss and how well raw feature angles
// discriminate the true relative rotation.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"

	"rotforge/internal/augment"
	"rotforge/internal/dataset"
	"rotforge/internal/failure"
	"rotforge/internal/geometry"
	"rotforge/internal/loss"
	"rotforge/internal/metrics"
	"rotforge/internal/model"
)

// ErrNoBatch is returned when the evaluation source yields nothing.
var ErrNoBatch = failure.New(failure.KindEvaluation, "evaluate", "evaluation source yielded no batch")

// Setup bundles what both procedures need.
type Setup struct {
	Encoder   model.Encoder
	Augmenter *augment.Augmenter
	Loss      loss.Func
	// Batches is how many batches from the start of a fresh pass are
	// evaluated. Values below 1 mean 1.
	Batches int
}

func (s Setup) batches() int {
	if s.Batches < 1 {
		return 1
	}
	return s.Batches
}

// Loss returns the configured loss averaged over the evaluated batches. Each
// batch contributes its sum over samples.
func Loss(ctx context.Context, s Setup, src *dataset.Loader) (float64, error) {
	var total float64
	n, err := eachPair(ctx, s, src, func(pair augment.Pair, f1, f2 *mat.Dense) error {
		rotated, err := geometry.Rotate(f1, pair.Relative)
		if err != nil {
			return err
		}
		v, err := s.Loss.Value(rotated, f2)
		if err != nil {
			return err
		}
		total += v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total / float64(n), nil
}

// RotationTest predicts each relative angle as acos of the cosine similarity
// between the untransformed features of the two views and summarizes the
// signed error pooled over the evaluated batches.
func RotationTest(ctx context.Context, s Setup, src *dataset.Loader) (metrics.Discrimination, error) {
	var signed []float64
	_, err := eachPair(ctx, s, src, func(pair augment.Pair, f1, f2 *mat.Dense) error {
		cos, err := loss.CosineRows(f1, f2)
		if err != nil {
			return err
		}
		predicted := make([]float64, len(cos))
		for i, c := range cos {
			predicted[i] = math.Acos(math.Max(-1, math.Min(1, c)))
		}
		errs, err := metrics.SignedErrorsDeg(predicted, pair.Relative)
		if err != nil {
			return err
		}
		signed = append(signed, errs...)
		return nil
	})
	if err != nil {
		return metrics.Discrimination{}, err
	}
	return metrics.Summarize(signed)
}

// eachPair augments and encodes up to s.batches() batches from a fresh pass,
// in inference mode, and reports how many were visited.
func eachPair(ctx context.Context, s Setup, src *dataset.Loader, fn func(augment.Pair, *mat.Dense, *mat.Dense) error) (int, error) {
	s.Encoder.SetTraining(false)
	it := src.Iter()
	visited := 0
	for visited < s.batches() {
		if err := ctx.Err(); err != nil {
			return visited, err
		}
		batch, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return visited, failure.Wrap(failure.KindData, "evaluation batch", err)
		}
		if batch.Len() == 0 {
			break
		}
		pair, err := s.Augmenter.Augment(batch.Images)
		if err != nil {
			return visited, err
		}
		f1, err := s.Encoder.Infer(pair.View1)
		if err != nil {
			return visited, fmt.Errorf("encode view 1: %w", err)
		}
		f2, err := s.Encoder.Infer(pair.View2)
		if err != nil {
			return visited, fmt.Errorf("encode view 2: %w", err)
		}
		if err := fn(pair, f1, f2); err != nil {
			return visited, err
		}
		visited++
	}
	if visited == 0 {
		return 0, ErrNoBatch
	}
	return visited, nil
}
