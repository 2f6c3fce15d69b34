package pipeline

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []WorkItem {
	items := make([]WorkItem, n)
	for i := range items {
		items[i] = WorkItem{Ref: fmt.Sprintf("item-%02d", i)}
	}
	return items
}

func TestPartition(t *testing.T) {
	t.Run("covers input without exceeding size", func(t *testing.T) {
		for n := 0; n <= 30; n++ {
			for size := 1; size <= 12; size++ {
				items := makeItems(n)
				chunks, err := Partition(items, size)
				require.NoError(t, err)

				var flat []WorkItem
				for i, c := range chunks {
					assert.Equal(t, i, c.Index)
					assert.LessOrEqual(t, len(c.Items), size)
					assert.NotEmpty(t, c.Items)
					flat = append(flat, c.Items...)
				}
				if n == 0 {
					assert.Empty(t, flat)
					continue
				}
				assert.Equal(t, items, flat, "n=%d size=%d", n, size)
			}
		}
	})

	t.Run("size beyond input", func(t *testing.T) {
		items := []WorkItem{{Ref: "a"}, {Ref: "b"}}
		for _, size := range []int{3, 1 << 40, math.MaxInt} {
			chunks, err := Partition(items, size)
			require.NoError(t, err)
			require.Len(t, chunks, 1, "size=%d", size)
			assert.Equal(t, items, chunks[0].Items)
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		items := makeItems(23)
		first, err := Partition(items, 5)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := Partition(items, 5)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("24 items in chunks of 10", func(t *testing.T) {
		chunks, err := Partition(makeItems(24), 10)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0].Items, 10)
		assert.Len(t, chunks[1].Items, 10)
		assert.Len(t, chunks[2].Items, 4)
	})

	t.Run("does not alias the input", func(t *testing.T) {
		items := makeItems(4)
		chunks, err := Partition(items, 2)
		require.NoError(t, err)
		chunks[0].Items[0].Retries = 7
		assert.Equal(t, 0, items[0].Retries)
	})

	t.Run("rejects size below one", func(t *testing.T) {
		for _, size := range []int{0, -3} {
			_, err := Partition(makeItems(3), size)
			require.Error(t, err)
			assert.Equal(t, KindConfig, KindOf(err))
		}
	})
}
