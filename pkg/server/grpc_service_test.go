package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/erain9/meshmock/pkg/api"
	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/testutil"
)

func startGRPC(t *testing.T, service *QueryService) *api.Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	s := NewGRPCServer(service)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return api.NewClient(conn)
}

func TestGRPCOrderQueryService(t *testing.T) {
	env := newTestEnv(t, 25)
	client := startGRPC(t, env.service)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("Order", func(t *testing.T) {
		got, err := client.Order(ctx, testutil.Hash(3))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, env.orders[3], got)

		missing, err := client.Order(ctx, testutil.Hash(300))
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("Orders_Default", func(t *testing.T) {
		got, err := client.Orders(ctx, &api.OrdersRequest{})
		require.NoError(t, err)
		assert.Equal(t, testutil.Hashes(env.orders[:20]), testutil.Hashes(got))
	})

	t.Run("Orders_WideValue", func(t *testing.T) {
		got, err := client.Orders(ctx, &api.OrdersRequest{
			Filters: []core.FilterSpec{{
				Field: core.FieldMakerAssetAmount,
				Kind:  core.Less,
				Value: "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			}},
			Limit: intPtr(100),
		})
		require.NoError(t, err)
		assert.Len(t, got, 25)
	})

	t.Run("Orders_InvalidArgument", func(t *testing.T) {
		_, err := client.Orders(ctx, &api.OrdersRequest{
			Sort: []core.SortSpec{{Field: core.FieldSalt, Direction: "UP"}},
		})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = client.Orders(ctx, &api.OrdersRequest{
			Filters: []core.FilterSpec{{Field: core.FieldSalt, Kind: core.Equal, Value: "abc"}},
		})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("AddOrders", func(t *testing.T) {
		results, err := client.AddOrders(ctx, []*core.NewOrder{
			testutil.NewOrder(70, "5"),
			testutil.NewOrder(71, "-1"),
		}, true)
		require.NoError(t, err)
		require.Len(t, results.Accepted, 1)
		assert.True(t, results.Accepted[0].IsNew)
		require.Len(t, results.Rejected, 1)
		assert.Equal(t, core.RejectedInvalidMakerAssetAmount, results.Rejected[0].Code)
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := client.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 25, stats.NumOrders)
		assert.Equal(t, "test", stats.Version)
	})
}

func TestGRPCOrderQueryService_Deadline(t *testing.T) {
	opts := testOptions()
	opts.Timeout = 20 * time.Millisecond
	env := newTestEnvWithStore(t, blockingStore{}, nil, opts)
	client := startGRPC(t, env.service)

	_, err := client.Orders(context.Background(), &api.OrdersRequest{})
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestGRPCOrderQueryService_OrderEvents(t *testing.T) {
	env := newTestEnv(t, 1)
	client := startGRPC(t, env.service)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.OrderEvents(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	results, err := env.service.AddOrders(ctx, []*core.NewOrder{testutil.NewOrder(80, "7")}, true)
	require.NoError(t, err)
	require.Len(t, results.Accepted, 1)

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, results.Accepted[0].Order.Hash, ev.Order.Hash)
	assert.Equal(t, core.EndStateAdded, ev.EndState)

	// closing the hub ends the stream
	require.NoError(t, env.hub.Close())
	_, err = stream.Recv()
	assert.Equal(t, codes.Aborted, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"query", core.ErrInvalidFilterKind, codes.InvalidArgument},
		{"order", core.ErrInvalidOrder, codes.InvalidArgument},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"other", assert.AnError, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(toStatus(tt.err)))
		})
	}
}
