// Package fixtures loads the order set a mock node serves.
package fixtures

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/erain9/meshmock/pkg/core"
)

//go:embed orders.yaml
var sampleOrders []byte

// ErrInvalidFixture is returned for a fixture file that cannot be served.
var ErrInvalidFixture = errors.New("invalid fixture")

type document struct {
	Orders []*core.OrderWithMetadata `yaml:"orders"`
}

// Default returns a fresh copy of the embedded sample orders.
func Default() ([]*core.OrderWithMetadata, error) {
	return Decode(bytes.NewReader(sampleOrders))
}

// Load reads orders from a YAML file. An empty path loads the embedded set.
func Load(path string) ([]*core.OrderWithMetadata, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture file: %w", err)
	}
	defer f.Close()

	orders, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return orders, nil
}

// Decode parses a fixture document and checks every record is servable: a
// well-formed unique hash and unsigned integer amounts.
func Decode(r io.Reader) ([]*core.OrderWithMetadata, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}

	seen := make(map[string]int, len(doc.Orders))
	for i, o := range doc.Orders {
		if o == nil {
			return nil, fmt.Errorf("%w: order %d is empty", ErrInvalidFixture, i)
		}
		if !core.IsOrderHash(o.Hash) {
			return nil, fmt.Errorf("%w: order %d has malformed hash %q", ErrInvalidFixture, i, o.Hash)
		}
		key := strings.ToLower(o.Hash)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: orders %d and %d share hash %s", ErrInvalidFixture, prev, i, o.Hash)
		}
		seen[key] = i

		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("%w: order %d: %v", ErrInvalidFixture, i, err)
		}
		if _, ok := core.ParseAmount(o.RemainingFillableTakerAssetAmount); !ok {
			return nil, fmt.Errorf("%w: order %d: remainingFillableTakerAssetAmount %q is not an unsigned integer",
				ErrInvalidFixture, i, o.RemainingFillableTakerAssetAmount)
		}
	}

	if doc.Orders == nil {
		doc.Orders = []*core.OrderWithMetadata{}
	}
	return doc.Orders, nil
}
