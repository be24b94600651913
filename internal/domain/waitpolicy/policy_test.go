package waitpolicy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForBatch(t *testing.T) {
	cases := []struct {
		name string
		size int
		base time.Duration
	}{
		{"tiny batch", 1, 45 * time.Second},
		{"staircase boundary five", 5, 45 * time.Second},
		{"small batch", 6, 60 * time.Second},
		{"staircase boundary twenty", 20, 60 * time.Second},
		{"medium batch", 21, 75 * time.Second},
		{"staircase boundary fifty", 50, 75 * time.Second},
		{"large batch", 51, 120 * time.Second},
		{"very large batch", 500, 120 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ForBatch(tc.size)
			assert.Equal(t, tc.base, b.PageLoad)
		})
	}
}

func TestForBatchDerivedBudgets(t *testing.T) {
	t.Run("large batch uses fractions of base", func(t *testing.T) {
		b := ForBatch(100)
		assert.Equal(t, 60*time.Second, b.AfterAction)
		assert.Equal(t, 36*time.Second, b.FormFill)
		assert.Equal(t, 84*time.Second, b.ElementWait)
		assert.Equal(t, 24*time.Second, b.BetweenJobs)
	})

	t.Run("small batch", func(t *testing.T) {
		b := ForBatch(1)
		assert.Equal(t, 45*time.Second/2, b.AfterAction)
		assert.Equal(t, 13500*time.Millisecond, b.FormFill)
		assert.Equal(t, 31500*time.Millisecond, b.ElementWait)
		assert.Equal(t, 9*time.Second, b.BetweenJobs)
	})
}

func TestForBatchFloors(t *testing.T) {
	b := ForBatch(1)
	assert.GreaterOrEqual(t, b.AfterAction, minAfterAction)
	assert.GreaterOrEqual(t, b.FormFill, minFormFill)
	assert.GreaterOrEqual(t, b.ElementWait, minElementWait)
	assert.GreaterOrEqual(t, b.BetweenJobs, minBetweenJobs)
}

func TestForBatchMonotonic(t *testing.T) {
	prev := ForBatch(1)
	for _, size := range []int{5, 6, 20, 21, 50, 51, 200} {
		cur := ForBatch(size)
		assert.GreaterOrEqual(t, cur.PageLoad, prev.PageLoad, "size %d", size)
		assert.GreaterOrEqual(t, cur.BetweenJobs, prev.BetweenJobs, "size %d", size)
		prev = cur
	}
}

func TestTotal(t *testing.T) {
	b := ForBatch(10)
	assert.Equal(t, b.PageLoad+b.FormFill+2*b.AfterAction+b.ElementWait, b.Total())
}
