package testutil

import (
	"fmt"

	"github.com/erain9/meshmock/pkg/core"
)

const (
	TestExchange = "0x61935cbdd02287b511119ddb11aeb42f1593b7ef"
	TestMaker    = "0x6ecbe1db9ef729cbe972c83fb886247691fb6beb"
	TestWETH     = "0xf47261b0000000000000000000000000c02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	TestZRX      = "0xf47261b0000000000000000000000000e41d2489571d322189246dafa5ebde1f4699f498"
)

// Hash builds a distinct, well-formed order hash from n. Hashes sort in n order.
func Hash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

// NewOrder returns a valid unsigned-looking order whose salt is derived from n.
func NewOrder(n int, makerAmount string) *core.NewOrder {
	return &core.NewOrder{
		ChainID:               1337,
		ExchangeAddress:       TestExchange,
		MakerAddress:          TestMaker,
		MakerAssetData:        TestZRX,
		MakerAssetAmount:      makerAmount,
		MakerFeeAssetData:     "0x",
		MakerFee:              "0",
		TakerAddress:          core.NullAddress,
		TakerAssetData:        TestWETH,
		TakerAssetAmount:      "1000000000000000000",
		TakerFeeAssetData:     "0x",
		TakerFee:              "0",
		SenderAddress:         core.NullAddress,
		FeeRecipientAddress:   core.NullAddress,
		ExpirationTimeSeconds: "1893456000",
		Salt:                  fmt.Sprintf("%d", 1000+n),
		Signature:             "0x1c",
	}
}

// StoredOrder returns a stored record keyed by Hash(n).
func StoredOrder(n int, makerAmount string) *core.OrderWithMetadata {
	return &core.OrderWithMetadata{
		OrderCore:                         *NewOrder(n, makerAmount),
		Hash:                              Hash(n),
		RemainingFillableTakerAssetAmount: "1000000000000000000",
	}
}

// StoredOrders returns n records with hashes Hash(0)..Hash(n-1).
func StoredOrders(n int) []*core.OrderWithMetadata {
	orders := make([]*core.OrderWithMetadata, n)
	for i := range orders {
		orders[i] = StoredOrder(i, fmt.Sprintf("%d", (i+1)*100))
	}
	return orders
}

// Hashes lists the hashes of orders in order.
func Hashes(orders []*core.OrderWithMetadata) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.Hash
	}
	return out
}
