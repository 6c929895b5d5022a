package monitor

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecentSet_FirstInsertWins(t *testing.T) {
	r := NewRecentSet(10)

	assert.True(t, r.MarkProcessed("tx-1"))
	assert.False(t, r.MarkProcessed("tx-1"))
	assert.True(t, r.Contains("tx-1"))
	assert.Equal(t, 1, r.Len())
}

func TestRecentSet_FIFOEviction(t *testing.T) {
	r := NewRecentSet(3)

	r.MarkProcessed("a")
	r.MarkProcessed("b")
	r.MarkProcessed("c")
	assert.Equal(t, 3, r.Len())

	// Inserting a fourth key evicts the oldest.
	assert.True(t, r.MarkProcessed("d"))
	assert.False(t, r.Contains("a"))
	assert.True(t, r.Contains("b"))
	assert.True(t, r.Contains("c"))
	assert.True(t, r.Contains("d"))
	assert.Equal(t, 3, r.Len())

	// An evicted key can be processed again.
	assert.True(t, r.MarkProcessed("a"))
	assert.False(t, r.Contains("b"))
}

func TestRecentSet_ConcurrentClaims(t *testing.T) {
	r := NewRecentSet(1000)

	const workers = 16
	var wg sync.WaitGroup
	wins := make([]int, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if r.MarkProcessed(fmt.Sprintf("tx-%d", i)) {
					wins[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, n := range wins {
		total += n
	}
	assert.Equal(t, 100, total, "each key is claimed exactly once across workers")
}

func TestRecentSet_ZeroCapacity(t *testing.T) {
	r := NewRecentSet(0)
	assert.True(t, r.MarkProcessed("x"))
	assert.True(t, r.MarkProcessed("y"))
	assert.False(t, r.Contains("x"))
}
