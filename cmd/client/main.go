package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/yaml.v3"

	"github.com/erain9/meshmock/pkg/api"
	"github.com/erain9/meshmock/pkg/core"
	"github.com/erain9/meshmock/pkg/otel"
)

var (
	serverAddr = flag.String("addr", "localhost:50051", "The server address in the format host:port")
	timeout    = flag.Duration("timeout", 10*time.Second, "Deadline for unary calls")
)

var (
	cyan  = color.New(color.FgCyan).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()
	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	// Connect to the gRPC server
	conn, err := grpc.NewClient(*serverAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otel.NewGRPCClientStatsHandler()),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to server")
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, api.NewClient(conn), flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		}
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("Command failed")
	}
}

var errUsage = errors.New("invalid usage")

// run executes one command against client.
func run(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	command, rest := args[0], args[1:]

	if command == "events" {
		return streamEvents(ctx, client, out)
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	switch command {
	case "order":
		if len(rest) != 1 {
			return fmt.Errorf("%w: order <hash>", errUsage)
		}
		return getOrder(ctx, client, rest[0], out)
	case "orders":
		return listOrders(ctx, client, rest, out)
	case "add":
		return addOrders(ctx, client, rest, out)
	case "stats":
		return getStats(ctx, client, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func getOrder(ctx context.Context, client *api.Client, hash string, out io.Writer) error {
	order, err := client.Order(ctx, hash)
	if err != nil {
		return err
	}
	if order == nil {
		fmt.Fprintf(out, "%s %s\n", red("not found:"), hash)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(w, "%s\t%s\n", cyan(k), v) }
	row("hash", order.Hash)
	row("chainId", strconv.FormatInt(order.ChainID, 10))
	row("exchangeAddress", order.ExchangeAddress)
	row("makerAddress", order.MakerAddress)
	row("makerAssetData", order.MakerAssetData)
	row("makerAssetAmount", order.MakerAssetAmount)
	row("makerFee", order.MakerFee)
	row("takerAddress", order.TakerAddress)
	row("takerAssetData", order.TakerAssetData)
	row("takerAssetAmount", order.TakerAssetAmount)
	row("takerFee", order.TakerFee)
	row("feeRecipientAddress", order.FeeRecipientAddress)
	row("expirationTimeSeconds", order.ExpirationTimeSeconds)
	row("salt", order.Salt)
	row("remainingFillableTakerAssetAmount", order.RemainingFillableTakerAssetAmount)
	return w.Flush()
}

// repeated collects every occurrence of a flag.
type repeated []string

func (r *repeated) String() string     { return strings.Join(*r, ",") }
func (r *repeated) Set(v string) error { *r = append(*r, v); return nil }

// parseOrdersArgs turns the orders command line into a request.
//
//	-filter field:KIND:value  (repeatable)
//	-sort field:DIRECTION     (repeatable; -sort none keeps store order)
//	-limit n
func parseOrdersArgs(args []string) (*api.OrdersRequest, error) {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var filters, sorts repeated
	fs.Var(&filters, "filter", "field:KIND:value")
	fs.Var(&sorts, "sort", "field:DIRECTION")
	limit := fs.Int("limit", -1, "maximum number of orders")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}

	req := &api.OrdersRequest{}
	for _, f := range filters {
		parts := strings.SplitN(f, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: filter %q is not field:KIND:value", errUsage, f)
		}
		req.Filters = append(req.Filters, core.FilterSpec{
			Field: core.OrderField(parts[0]),
			Kind:  core.FilterKind(strings.ToUpper(parts[1])),
			Value: core.FilterValue(parts[2]),
		})
	}
	for _, s := range sorts {
		if s == "none" {
			req.Sort = []core.SortSpec{}
			continue
		}
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: sort %q is not field:DIRECTION", errUsage, s)
		}
		req.Sort = append(req.Sort, core.SortSpec{
			Field:     core.OrderField(parts[0]),
			Direction: core.SortDirection(strings.ToUpper(parts[1])),
		})
	}
	if *limit >= 0 {
		req.Limit = limit
	}
	return req, nil
}

func listOrders(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	req, err := parseOrdersArgs(args)
	if err != nil {
		return err
	}
	orders, err := client.Orders(ctx, req)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		cyan("Hash"), cyan("Maker"), cyan("MakerAmount"), cyan("TakerAmount"), cyan("Remaining"))
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			o.Hash, o.MakerAddress, o.MakerAssetAmount, o.TakerAssetAmount, o.RemainingFillableTakerAssetAmount)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d orders\n", len(orders))
	return nil
}

// orderFile is the YAML layout accepted by the add command.
type orderFile struct {
	Pinned *bool            `yaml:"pinned"`
	Orders []*core.NewOrder `yaml:"orders"`
}

func readOrderFile(path string) (*orderFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var file orderFile
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &file, nil
}

func addOrders(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: add <file.yaml>", errUsage)
	}
	file, err := readOrderFile(args[0])
	if err != nil {
		return err
	}
	pinned := file.Pinned == nil || *file.Pinned

	results, err := client.AddOrders(ctx, file.Orders, pinned)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, a := range results.Accepted {
		state := "known"
		if a.IsNew {
			state = "new"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", green("ACCEPTED"), a.Order.Hash, state)
	}
	for _, r := range results.Rejected {
		hash := "-"
		if r.Hash != nil {
			hash = *r.Hash
		}
		fmt.Fprintf(w, "%s\t%s\t%s: %s\n", red("REJECTED"), hash, r.Code, r.Message)
	}
	return w.Flush()
}

func getStats(ctx context.Context, client *api.Client, out io.Writer) error {
	stats, err := client.Stats(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	row := func(k string, v interface{}) { fmt.Fprintf(w, "%s\t%v\n", cyan(k), v) }
	row("version", stats.Version)
	row("peerID", stats.PeerID)
	row("ethereumChainID", stats.EthereumChainID)
	row("latestBlock", stats.LatestBlock.Number+" "+stats.LatestBlock.Hash)
	row("numPeers", stats.NumPeers)
	row("numOrders", stats.NumOrders)
	row("numPinnedOrders", stats.NumPinnedOrders)
	row("startOfCurrentUTCDay", stats.StartOfCurrentUTCDay)
	return w.Flush()
}

func streamEvents(ctx context.Context, client *api.Client, out io.Writer) error {
	stream, err := client.OrderEvents(ctx)
	if err != nil {
		return err
	}
	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		hash := ""
		if ev.Order != nil {
			hash = ev.Order.Hash
		}
		fmt.Fprintf(out, "%s %s %s\n", ev.Timestamp, green(string(ev.EndState)), hash)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: client [-addr host:port] [-timeout d] <command> [args]")
	fmt.Fprintln(out, "  order <hash>")
	fmt.Fprintln(out, "  orders [-filter field:KIND:value]... [-sort field:ASC|DESC]... [-limit n]")
	fmt.Fprintln(out, "  add <file.yaml>")
	fmt.Fprintln(out, "  stats")
	fmt.Fprintln(out, "  events")
	fmt.Fprintln(out, "\nExamples:")
	fmt.Fprintln(out, "  orders -filter makerAssetAmount:GREATER:1000 -sort makerAssetAmount:DESC -limit 5")
	fmt.Fprintln(out, "  orders -sort none")
	fmt.Fprintln(out, "  add orders.yaml")
}
