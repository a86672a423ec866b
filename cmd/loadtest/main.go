package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/erain9/meshmock/pkg/api"
	"github.com/erain9/meshmock/pkg/core"
)

// Histogram bounds, in microseconds.
const (
	minLatency = 1
	maxLatency = int64(60 * time.Second / time.Microsecond)
)

// querier is the part of api.Client the load test drives.
type querier interface {
	Orders(ctx context.Context, req *api.OrdersRequest, opts ...grpc.CallOption) ([]*core.OrderWithMetadata, error)
}

type loadConfig struct {
	Workers  int
	Requests int
	Rate     float64
	Limit    int
	Seed     int64
}

type loadResult struct {
	Requests  int64
	Errors    int64
	FirstErr  error
	Duration  time.Duration
	Latencies *hdrhistogram.Histogram
}

func main() {
	grpcAddr := flag.String("grpc-addr", "localhost:50051", "gRPC server address")
	workers := flag.Int("workers", 50, "concurrent workers")
	requests := flag.Int("requests", 200, "queries per worker")
	qps := flag.Float64("rate", 500, "overall queries per second")
	limit := flag.Int("limit", 20, "limit sent with each query")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := loadConfig{Workers: *workers, Requests: *requests, Rate: *qps, Limit: *limit, Seed: time.Now().UnixNano()}
	log.Info().Int("workers", cfg.Workers).Int("requests_per_worker", cfg.Requests).Float64("rate", cfg.Rate).Msg("Starting load test")

	res := runLoad(ctx, api.NewClient(conn), cfg)
	report(os.Stdout, res)
	if res.FirstErr != nil {
		log.Error().Err(res.FirstErr).Int64("errors", res.Errors).Msg("Load test saw errors")
		os.Exit(1)
	}
}

// runLoad issues cfg.Workers*cfg.Requests random queries, paced by a shared
// limiter, and records each call's latency.
func runLoad(ctx context.Context, client querier, cfg loadConfig) *loadResult {
	limiter := rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Workers)
	res := &loadResult{Latencies: hdrhistogram.New(minLatency, maxLatency, 3)}

	var mu sync.Mutex
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(cfg.Seed + int64(workerID)))
			for j := 0; j < cfg.Requests; j++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				req := randomQuery(r, cfg.Limit)
				began := time.Now()
				_, err := client.Orders(ctx, req)
				elapsed := time.Since(began)

				mu.Lock()
				res.Requests++
				_ = res.Latencies.RecordValue(elapsed.Microseconds())
				if err != nil {
					res.Errors++
					if res.FirstErr == nil {
						res.FirstErr = err
					}
				}
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	res.Duration = time.Since(start)
	return res
}

var (
	numericFields = []core.OrderField{
		core.FieldMakerAssetAmount,
		core.FieldTakerAssetAmount,
		core.FieldExpirationTimeSeconds,
		core.FieldSalt,
	}
	filterKinds = []core.FilterKind{core.Greater, core.GreaterOrEqual, core.Less, core.LessOrEqual, core.NotEqual}
)

// randomQuery builds a query with up to two numeric filters, an occasional
// maker exclusion and at most one sort key.
func randomQuery(r *rand.Rand, limit int) *api.OrdersRequest {
	req := &api.OrdersRequest{Limit: &limit}
	for i := r.Intn(3); i > 0; i-- {
		req.Filters = append(req.Filters, core.FilterSpec{
			Field: numericFields[r.Intn(len(numericFields))],
			Kind:  filterKinds[r.Intn(len(filterKinds))],
			Value: core.FilterValue(fmt.Sprintf("%d", r.Int63n(1_000_000_000_000_000_000))),
		})
	}
	// Exclude a random maker now and then so address comparisons get load too.
	if r.Intn(4) == 0 {
		if addr, err := core.GenerateFakeAddress(); err == nil {
			req.Filters = append(req.Filters, core.FilterSpec{Field: core.FieldMakerAddress, Kind: core.NotEqual, Value: core.FilterValue(addr)})
		}
	}
	if r.Intn(2) == 0 {
		dir := core.Asc
		if r.Intn(2) == 0 {
			dir = core.Desc
		}
		req.Sort = []core.SortSpec{{Field: numericFields[r.Intn(len(numericFields))], Direction: dir}}
	}
	return req
}

func report(w io.Writer, res *loadResult) {
	h := res.Latencies
	throughput := float64(res.Requests) / res.Duration.Seconds()
	fmt.Fprintf(w, "requests:   %d (%d errors)\n", res.Requests, res.Errors)
	fmt.Fprintf(w, "duration:   %v\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "throughput: %.1f req/s\n", throughput)
	fmt.Fprintf(w, "latency:    mean %v  p50 %v  p90 %v  p99 %v  max %v\n",
		micros(int64(h.Mean())),
		micros(h.ValueAtQuantile(50)),
		micros(h.ValueAtQuantile(90)),
		micros(h.ValueAtQuantile(99)),
		micros(h.Max()),
	)
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
