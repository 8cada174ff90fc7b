package reembed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect[T any](items []T, size int) [][]T {
	var out [][]T
	for _, b := range Batches(items, size) {
		out = append(out, b)
	}
	return out
}

func TestBatches(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, collect(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, collect(items, 5))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, collect(items, 100))
	assert.Empty(t, collect([]int{}, 3))
	assert.Empty(t, collect[int](nil, 3))
}

func TestBatches_Numbering(t *testing.T) {
	var numbers []int
	for n := range Batches(make([]string, 7), 3) {
		numbers = append(numbers, n)
	}
	assert.Equal(t, []int{0, 1, 2}, numbers)
}

func TestBatches_InvalidSizeUsesDefault(t *testing.T) {
	items := make([]int, DefaultBatchSize+1)
	batches := collect(items, 0)
	assert.Len(t, batches, 2)
	assert.Len(t, batches[0], DefaultBatchSize)
}

func TestBatches_Restartable(t *testing.T) {
	seq := Batches([]int{1, 2, 3}, 2)
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count())
}

func TestBatches_EarlyStop(t *testing.T) {
	seen := 0
	for range Batches([]int{1, 2, 3, 4}, 1) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestBatchCount(t *testing.T) {
	assert.Equal(t, 0, BatchCount(0, 20))
	assert.Equal(t, 1, BatchCount(20, 20))
	assert.Equal(t, 2, BatchCount(21, 20))
	assert.Equal(t, 2, BatchCount(DefaultBatchSize+1, 0))
}
