package memory

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/testutil"
)

func TestMemoryBackend_Orders(t *testing.T) {
	orders := testutil.StoredOrders(5)
	// Serve out of hash order to prove the backend keeps insertion order.
	orders[0], orders[4] = orders[4], orders[0]

	backend, err := NewMemoryBackend(orders)
	require.NoError(t, err)
	assert.Equal(t, 5, backend.Len())

	got, err := backend.Orders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.Hashes(orders), testutil.Hashes(got))

	// The backend owns its slice.
	orders[1] = testutil.StoredOrder(99, "1")
	got, err = backend.Orders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.Hash(1), got[1].Hash)
}

func TestMemoryBackend_OrderByHash(t *testing.T) {
	orders := testutil.StoredOrders(3)
	backend, err := NewMemoryBackend(orders)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := backend.OrderByHash(ctx, orders[2].Hash)
	require.NoError(t, err)
	assert.Same(t, orders[2], got)

	mixed := "0x" + strings.ToUpper(orders[1].Hash[2:])
	got, err = backend.OrderByHash(ctx, mixed)
	require.NoError(t, err)
	assert.Same(t, orders[1], got)

	for _, hash := range []string{testutil.Hash(42), "", "0x", "not a hash"} {
		got, err = backend.OrderByHash(ctx, hash)
		assert.NoError(t, err)
		assert.Nil(t, got, "hash %q", hash)
	}
}

func TestMemoryBackend_Empty(t *testing.T) {
	backend, err := NewMemoryBackend(nil)
	require.NoError(t, err)

	got, err := backend.Orders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, backend.Len())
}

func TestMemoryBackend_Rejects(t *testing.T) {
	dup := testutil.StoredOrders(3)
	dup[2] = testutil.StoredOrder(0, "7")
	_, err := NewMemoryBackend(dup)
	assert.ErrorIs(t, err, ErrDuplicateHash)

	// Hashes that differ only in case are the same hash.
	upper := testutil.StoredOrder(0, "7")
	upper.Hash = strings.ToUpper(upper.Hash)
	_, err = NewMemoryBackend([]*core.OrderWithMetadata{testutil.StoredOrder(0, "1"), upper})
	assert.ErrorIs(t, err, ErrDuplicateHash)

	_, err = NewMemoryBackend([]*core.OrderWithMetadata{nil})
	assert.Error(t, err)

	backend, err := NewMemoryBackend(testutil.StoredOrders(2))
	require.NoError(t, err)
	require.Error(t, backend.Replace(dup))
	assert.Equal(t, 2, backend.Len(), "failed replace keeps the previous snapshot")
}

func TestMemoryBackend_ReplaceWithConcurrentReaders(t *testing.T) {
	small := testutil.StoredOrders(3)
	large := testutil.StoredOrders(10)
	backend, err := NewMemoryBackend(small)
	require.NoError(t, err)

	ctx := context.Background()
	engine := core.NewEngine(backend)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 16)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, err := engine.ListOrders(ctx, core.QuerySpec{Limit: 100})
				if err != nil {
					errs <- err.Error()
					return
				}
				if n := len(got); n != len(small) && n != len(large) {
					errs <- "reader saw a partial snapshot"
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		next := small
		if i%2 == 0 {
			next = large
		}
		require.NoError(t, backend.Replace(next))
	}
	close(stop)
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}
