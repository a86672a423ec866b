package submit

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/meshmock/pkg/backend/memory"
	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Orders(context.Context) ([]*core.OrderWithMetadata, error) {
	return nil, errors.New("store down")
}

func (failingStore) OrderByHash(context.Context, string) (*core.OrderWithMetadata, error) {
	return nil, errors.New("store down")
}

func newClassifier(t *testing.T, stored ...*core.OrderWithMetadata) *StubClassifier {
	t.Helper()
	backend, err := memory.NewMemoryBackend(stored)
	require.NoError(t, err)
	return NewStubClassifier(backend, zerolog.Nop())
}

func TestStubClassifier_Accepts(t *testing.T) {
	known, err := testutil.NewOrder(1, "10").WithMetadata()
	require.NoError(t, err)
	c := newClassifier(t, known)

	fresh := testutil.NewOrder(2, "20")
	results, err := c.AddOrders(context.Background(), []*core.NewOrder{testutil.NewOrder(1, "10"), fresh}, true)
	require.NoError(t, err)
	assert.Empty(t, results.Rejected)
	require.Len(t, results.Accepted, 2)

	assert.False(t, results.Accepted[0].IsNew, "order already in the store")
	assert.Equal(t, known.Hash, results.Accepted[0].Order.Hash)

	assert.True(t, results.Accepted[1].IsNew)
	got := results.Accepted[1].Order
	assert.True(t, core.IsOrderHash(got.Hash))
	assert.Equal(t, fresh.TakerAssetAmount, got.RemainingFillableTakerAssetAmount)
	assert.Equal(t, *fresh, got.OrderCore)
}

func TestStubClassifier_RepeatedInBatch(t *testing.T) {
	c := newClassifier(t)

	results, err := c.AddOrders(context.Background(), []*core.NewOrder{
		testutil.NewOrder(3, "5"),
		testutil.NewOrder(3, "5"),
	}, false)
	require.NoError(t, err)
	require.Len(t, results.Accepted, 2)
	assert.True(t, results.Accepted[0].IsNew)
	assert.False(t, results.Accepted[1].IsNew)
	assert.Equal(t, results.Accepted[0].Order.Hash, results.Accepted[1].Order.Hash)
}

func TestStubClassifier_Rejects(t *testing.T) {
	badAddress := testutil.NewOrder(1, "10")
	badAddress.MakerAddress = "0x1234"

	badBlob := testutil.NewOrder(1, "10")
	badBlob.MakerAssetData = "0xzz"

	zeroTaker := testutil.NewOrder(1, "10")
	zeroTaker.TakerAssetAmount = "0"

	bothBad := testutil.NewOrder(1, "0")
	bothBad.TakerAssetAmount = "-3"

	tests := []struct {
		name     string
		order    *core.NewOrder
		wantCode core.RejectedOrderCode
	}{
		{"zero maker amount", testutil.NewOrder(1, "0"), core.RejectedInvalidMakerAssetAmount},
		{"non numeric maker amount", testutil.NewOrder(1, "lots"), core.RejectedInvalidMakerAssetAmount},
		{"empty maker amount", testutil.NewOrder(1, ""), core.RejectedInvalidMakerAssetAmount},
		{"zero taker amount", zeroTaker, core.RejectedInvalidTakerAssetAmount},
		{"maker checked before taker", bothBad, core.RejectedInvalidMakerAssetAmount},
		{"malformed address", badAddress, core.RejectedInvalidOrderEncoding},
		{"malformed asset data", badBlob, core.RejectedInvalidOrderEncoding},
		{"nil order", nil, core.RejectedInvalidOrderEncoding},
	}

	c := newClassifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := c.AddOrders(context.Background(), []*core.NewOrder{tt.order}, true)
			require.NoError(t, err)
			assert.Empty(t, results.Accepted)
			require.Len(t, results.Rejected, 1)

			rejected := results.Rejected[0]
			assert.Equal(t, tt.wantCode, rejected.Code)
			assert.Nil(t, rejected.Hash, "unhashable or invalid orders carry no hash")
			assert.Same(t, tt.order, rejected.Order)
			assert.NotEmpty(t, rejected.Message)
		})
	}
}

func TestStubClassifier_Mixed(t *testing.T) {
	c := newClassifier(t)
	orders := []*core.NewOrder{
		testutil.NewOrder(1, "10"),
		testutil.NewOrder(2, "0"),
		testutil.NewOrder(3, "30"),
		testutil.NewOrder(4, "x"),
	}

	results, err := c.AddOrders(context.Background(), orders, true)
	require.NoError(t, err)
	require.Len(t, results.Accepted, 2)
	require.Len(t, results.Rejected, 2)
	assert.Equal(t, "10", results.Accepted[0].Order.MakerAssetAmount)
	assert.Equal(t, "30", results.Accepted[1].Order.MakerAssetAmount)
	assert.Same(t, orders[1], results.Rejected[0].Order)
	assert.Same(t, orders[3], results.Rejected[1].Order)

	empty, err := c.AddOrders(context.Background(), nil, true)
	require.NoError(t, err)
	assert.NotNil(t, empty.Accepted)
	assert.NotNil(t, empty.Rejected)
}

func TestStubClassifier_StoreFailure(t *testing.T) {
	c := NewStubClassifier(failingStore{}, zerolog.Nop())

	results, err := c.AddOrders(context.Background(), []*core.NewOrder{testutil.NewOrder(1, "10")}, true)
	require.NoError(t, err)
	require.Len(t, results.Rejected, 1)
	assert.Equal(t, core.RejectedEthRPCRequestFailed, results.Rejected[0].Code)
	require.NotNil(t, results.Rejected[0].Hash)
	assert.True(t, core.IsOrderHash(*results.Rejected[0].Hash))
}

func TestStubClassifier_Cancelled(t *testing.T) {
	c := newClassifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.AddOrders(ctx, []*core.NewOrder{testutil.NewOrder(1, "10")}, true)
	assert.ErrorIs(t, err, context.Canceled)
}
