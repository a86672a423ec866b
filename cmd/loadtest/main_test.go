package main

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/erain9/meshmock/pkg/api"
	"github.com/erain9/meshmock/pkg/core"
)

type fakeQuerier struct {
	calls  atomic.Int64
	failAt int64
}

func (f *fakeQuerier) Orders(_ context.Context, req *api.OrdersRequest, _ ...grpc.CallOption) ([]*core.OrderWithMetadata, error) {
	n := f.calls.Add(1)
	if f.failAt > 0 && n == f.failAt {
		return nil, errors.New("boom")
	}
	if _, err := core.CompileFilters(req.Filters); err != nil {
		return nil, err
	}
	if _, err := core.CompileSorts(req.Sort); err != nil {
		return nil, err
	}
	return nil, nil
}

func TestRunLoad(t *testing.T) {
	q := &fakeQuerier{}
	res := runLoad(context.Background(), q, loadConfig{Workers: 4, Requests: 25, Rate: 100000, Limit: 10, Seed: 1})

	assert.Equal(t, int64(100), res.Requests)
	assert.Equal(t, int64(100), q.calls.Load())
	assert.Zero(t, res.Errors)
	assert.NoError(t, res.FirstErr)
	assert.Equal(t, int64(100), res.Latencies.TotalCount())

	var out bytes.Buffer
	report(&out, res)
	assert.Contains(t, out.String(), "requests:   100 (0 errors)")
	assert.Contains(t, out.String(), "p99")
}

func TestRunLoadCountsErrors(t *testing.T) {
	q := &fakeQuerier{failAt: 3}
	res := runLoad(context.Background(), q, loadConfig{Workers: 1, Requests: 5, Rate: 100000, Limit: 1, Seed: 2})

	assert.Equal(t, int64(1), res.Errors)
	require.Error(t, res.FirstErr)
}

func TestRunLoadStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := runLoad(ctx, &fakeQuerier{}, loadConfig{Workers: 2, Requests: 10, Rate: 1, Limit: 1, Seed: 3})
	assert.Zero(t, res.Requests)
}

func TestRandomQueryIsValid(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		req := randomQuery(r, 7)
		require.NotNil(t, req.Limit)
		assert.Equal(t, 7, *req.Limit)
		_, err := core.CompileFilters(req.Filters)
		require.NoError(t, err)
		_, err = core.CompileSorts(req.Sort)
		require.NoError(t, err)
	}
}
