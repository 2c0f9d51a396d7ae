package dataset

import (
	"errors"
	"io"
	"math/rand"
)

// Loader draws minibatches from a Dataset. Shuffling uses the Loader's own
// RNG so runs are reproducible for a fixed seed.
type Loader struct {
	Dataset   Dataset
	BatchSize int
	Shuffle   bool
	RNG       *rand.Rand
}

// NewLoader validates the arguments and returns a Loader.
func NewLoader(ds Dataset, batchSize int, shuffle bool, rng *rand.Rand) (*Loader, error) {
	if ds == nil {
		return nil, errors.New("loader: nil dataset")
	}
	if batchSize <= 0 {
		return nil, errors.New("loader: batch size must be > 0")
	}
	if shuffle && rng == nil {
		return nil, errors.New("loader: shuffling requires an RNG")
	}
	return &Loader{Dataset: ds, BatchSize: batchSize, Shuffle: shuffle, RNG: rng}, nil
}

// NumBatches is the number of batches in one pass, counting a final partial batch.
func (l *Loader) NumBatches() int {
	n := l.Dataset.Len()
	return (n + l.BatchSize - 1) / l.BatchSize
}

// Iter starts a fresh pass over the dataset.
func (l *Loader) Iter() *Iterator {
	order := make([]int, l.Dataset.Len())
	for i := range order {
		order[i] = i
	}
	if l.Shuffle {
		l.RNG.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return &Iterator{loader: l, order: order}
}

// Iterator walks one pass of a Loader.
type Iterator struct {
	loader *Loader
	order  []int
	pos    int
}

// Next returns the next batch, or io.EOF once the pass is exhausted.
func (it *Iterator) Next() (Batch, error) {
	if it.pos >= len(it.order) {
		return Batch{}, io.EOF
	}
	end := it.pos + it.loader.BatchSize
	if end > len(it.order) {
		end = len(it.order)
	}
	batch := Batch{
		Images: make([]Image, 0, end-it.pos),
		Labels: make([]int, 0, end-it.pos),
	}
	for _, idx := range it.order[it.pos:end] {
		sample, err := it.loader.Dataset.Sample(idx)
		if err != nil {
			return Batch{}, err
		}
		batch.Images = append(batch.Images, sample.Image)
		batch.Labels = append(batch.Labels, sample.Label)
	}
	it.pos = end
	return batch, nil
}
