// Package dataset turns a labeled directory tree of WAV files into
// fixed-shape training examples.
//
// The expected layout is root/<emotion>/*.wav where <emotion> is a name in
// the supplied [emotion.Map]. Every example carries a time-major
// (frames × coefficients) matrix so that all examples share one shape.
package dataset

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/haivivi/moodchat/pkg/emotion"
	"github.com/haivivi/moodchat/pkg/features"
)

var (
	// ErrEmptyDataset is returned when a build yields no examples.
	ErrEmptyDataset = errors.New("dataset: no examples")

	// ErrShape is returned when an example does not have the expected
	// shape. It is the same sentinel as [features.ErrShape].
	ErrShape = features.ErrShape
)

// Example is one labeled feature matrix. Features is time-major.
type Example struct {
	Features *features.Matrix
	Label    emotion.Label
	Path     string
}

// Dataset holds every built example plus a train/validation partition of
// the same examples.
type Dataset struct {
	Examples   []Example
	Train      []Example
	Validation []Example

	// Steps and Size are the per-example (frames, coefficients) shape.
	Steps int
	Size  int
}

// Len returns the total number of examples.
func (d *Dataset) Len() int { return len(d.Examples) }

// Shape returns (N, Steps, Size).
func (d *Dataset) Shape() (int, int, int) { return len(d.Examples), d.Steps, d.Size }

// Features returns all examples as an (N, Steps, Size) tensor. Rows alias
// the example matrices.
func (d *Dataset) Features() [][][]float64 {
	out := make([][][]float64, len(d.Examples))
	for i, e := range d.Examples {
		out[i] = e.Features.RowViews()
	}
	return out
}

// Labels returns the (N,) label vector aligned with Features.
func (d *Dataset) Labels() []emotion.Label {
	out := make([]emotion.Label, len(d.Examples))
	for i, e := range d.Examples {
		out[i] = e.Label
	}
	return out
}

// Counts returns the number of examples per label.
func (d *Dataset) Counts() map[emotion.Label]int {
	out := make(map[emotion.Label]int)
	for _, e := range d.Examples {
		out[e.Label]++
	}
	return out
}

// Validate checks that the dataset is non-empty and that every example has
// shape (steps, size).
func (d *Dataset) Validate(steps, size int) error {
	if d == nil || len(d.Examples) == 0 || len(d.Train) == 0 {
		return ErrEmptyDataset
	}
	for _, set := range [][]Example{d.Examples, d.Train, d.Validation} {
		for _, e := range set {
			if err := features.CheckShape(e.Features, steps, size); err != nil {
				return err
			}
			if !e.Label.Valid() {
				return errors.New("dataset: invalid label in " + e.Path)
			}
		}
	}
	return nil
}

// Split partitions examples into train and validation sets using a PCG
// generator seeded with seed. The validation set holds ceil(n×ratio)
// examples, reduced so that training keeps at least one example.
func Split(examples []Example, ratio float64, seed uint64) (train, val []Example) {
	n := len(examples)
	nVal := ValidationCount(n, ratio)
	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	val = make([]Example, 0, nVal)
	train = make([]Example, 0, n-nVal)
	for i, idx := range perm {
		if i < nVal {
			val = append(val, examples[idx])
		} else {
			train = append(train, examples[idx])
		}
	}
	return train, val
}

// ValidationCount returns the validation set size for n examples.
func ValidationCount(n int, ratio float64) int {
	if n < 2 || ratio <= 0 {
		return 0
	}
	v := int(math.Ceil(float64(n) * ratio))
	return min(v, n-1)
}
