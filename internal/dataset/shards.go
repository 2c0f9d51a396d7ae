package dataset

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ShardOptions configures LoadShards.
type ShardOptions struct {
	Roots      []string
	NumWorkers int
	PendingCap int
	// Limit caps the number of samples kept; zero keeps all.
	Limit int
}

// LoadShards decodes every shard beneath the roots into memory. Shards are
// decoded concurrently but the result is assembled in the deterministic
// round-robin shard order, so the dataset is identical across runs.
func LoadShards(ctx context.Context, opts ShardOptions) (Memory, error) {
	if len(opts.Roots) == 0 {
		return nil, errors.New("shards: no dataset roots provided")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	order, err := interleaveRoots(opts.Roots)
	if err != nil {
		return nil, err
	}

	perShard := make([][]Sample, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.NumWorkers)
	for i, path := range order {
		i, path := i, path
		g.Go(func() error {
			samples, err := readShard(gctx, path, opts.PendingCap)
			if err != nil {
				return fmt.Errorf("shard %s: %w", path, err)
			}
			perShard[i] = samples
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out Memory
	for _, samples := range perShard {
		out = append(out, samples...)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	if len(out) == 0 {
		return nil, errors.New("shards: no samples decoded")
	}
	first := out[0].Image
	for _, s := range out[1:] {
		if !s.Image.SameShape(first) {
			return nil, fmt.Errorf("shards: sample %s is %dx%d, want %dx%d",
				s.Key, s.Image.Height, s.Image.Width, first.Height, first.Width)
		}
	}
	return out, nil
}

func readShard(ctx context.Context, path string, pendingCap int) ([]Sample, error) {
	samples, errCh := StreamShard(ctx, path, pendingCap)
	var out []Sample
	for s := range samples {
		out = append(out, s)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}
