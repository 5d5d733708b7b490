// Package sampling provides shuffling and without-replacement sampling.
package sampling

import (
	"math/rand/v2"
)

// Source yields uniform integers in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// Global returns a Source backed by the process-wide generator.
func Global() Source {
	return globalSource{}
}

// NewSeeded returns a deterministic Source.
func NewSeeded(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Shuffle permutes items in place with Fisher-Yates.
func Shuffle[T any](src Source, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// Sample returns the first k items of a shuffled copy of items.
// k is truncated to len(items); items is not modified.
func Sample[T any](src Source, items []T, k int) []T {
	if k <= 0 {
		return []T{}
	}
	cp := make([]T, len(items))
	copy(cp, items)
	Shuffle(src, cp)
	if k > len(cp) {
		k = len(cp)
	}
	return cp[:k]
}

// Pick returns one uniformly chosen item. items must not be empty.
func Pick[T any](src Source, items []T) T {
	return items[src.IntN(len(items))]
}
