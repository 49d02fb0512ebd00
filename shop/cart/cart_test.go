package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	res, err := svc.Add(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, Added, res)

	res, err = svc.Add(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, res)

	ids, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)

	res, err := svc.Remove(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, NotPresent, res)

	_, _ = svc.Add(ctx, 1, 10)
	_, _ = svc.Add(ctx, 1, 20)
	res, err = svc.Remove(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, Removed, res)

	ids, _ := svc.List(ctx, 1)
	assert.Equal(t, []int64{20}, ids)

	_, _ = svc.Remove(ctx, 1, 20)
	assert.Equal(t, 0, store.Len(), "an emptied cart must not keep its key")
}

func TestClearAndRetain(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())
	for _, id := range []int64{1, 2, 3, 4} {
		_, _ = svc.Add(ctx, 7, id)
	}

	dropped, err := svc.Retain(ctx, 7, func(id int64) bool { return id%2 == 0 })
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	ids, _ := svc.List(ctx, 7)
	assert.Equal(t, []int64{2, 4}, ids)

	ok, err := svc.Contains(ctx, 7, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Clear(ctx, 7))
	ids, _ = svc.List(ctx, 7)
	assert.Empty(t, ids)
}

func TestConcurrentAddsForOneUserAreNotLost(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())

	const n = 50
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.Add(ctx, 99, id)
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	ids, err := svc.List(ctx, 99)
	require.NoError(t, err)
	assert.Len(t, ids, n)
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore())
	_, _ = svc.Add(ctx, 1, 10)
	_, _ = svc.Add(ctx, 2, 20)

	a, _ := svc.List(ctx, 1)
	b, _ := svc.List(ctx, 2)
	assert.Equal(t, []int64{10}, a)
	assert.Equal(t, []int64{20}, b)
}
