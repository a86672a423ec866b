package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	testExchange = "0x61935cbdd02287b511119ddb11aeb42f1593b7ef"
	testMaker    = "0x6ecbe1db9ef729cbe972c83fb886247691fb6beb"
	testWETH     = "0xf47261b0000000000000000000000000c02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	testZRX      = "0xf47261b0000000000000000000000000e41d2489571d322189246dafa5ebde1f4699f498"
)

// testHash builds a distinct, valid order hash from n.
func testHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func testOrder(n int, makerAmount string) *OrderWithMetadata {
	return &OrderWithMetadata{
		OrderCore: OrderCore{
			ChainID:               1337,
			ExchangeAddress:       testExchange,
			MakerAddress:          testMaker,
			MakerAssetData:        testZRX,
			MakerAssetAmount:      makerAmount,
			MakerFeeAssetData:     "0x",
			MakerFee:              "0",
			TakerAddress:          NullAddress,
			TakerAssetData:        testWETH,
			TakerAssetAmount:      "1000000000000000000",
			TakerFeeAssetData:     "0x",
			TakerFee:              "0",
			SenderAddress:         NullAddress,
			FeeRecipientAddress:   NullAddress,
			ExpirationTimeSeconds: "1893456000",
			Salt:                  fmt.Sprintf("%d", 1000+n),
			Signature:             "0x1c",
		},
		Hash:                              testHash(n),
		RemainingFillableTakerAssetAmount: "1000000000000000000",
	}
}

// sliceStore serves a fixed slice in order.
type sliceStore struct {
	orders []*OrderWithMetadata
	err    error
}

func (s *sliceStore) Orders(context.Context) ([]*OrderWithMetadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.orders, nil
}

func (s *sliceStore) OrderByHash(_ context.Context, hash string) (*OrderWithMetadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, o := range s.orders {
		if strings.EqualFold(o.Hash, hash) {
			return o, nil
		}
	}
	return nil, nil
}

var errStoreDown = errors.New("store down")

func hashesOf(orders []*OrderWithMetadata) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.Hash
	}
	return out
}
