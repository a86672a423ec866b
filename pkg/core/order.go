package core

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP-712 domain of the 0x v3 exchange.
const (
	ExchangeDomainName    = "0x Protocol"
	ExchangeDomainVersion = "3.0.0"
)

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "makerAddress", Type: "address"},
		{Name: "takerAddress", Type: "address"},
		{Name: "feeRecipientAddress", Type: "address"},
		{Name: "senderAddress", Type: "address"},
		{Name: "makerAssetAmount", Type: "uint256"},
		{Name: "takerAssetAmount", Type: "uint256"},
		{Name: "makerFee", Type: "uint256"},
		{Name: "takerFee", Type: "uint256"},
		{Name: "expirationTimeSeconds", Type: "uint256"},
		{Name: "salt", Type: "uint256"},
		{Name: "makerAssetData", Type: "bytes"},
		{Name: "takerAssetData", Type: "bytes"},
		{Name: "makerFeeAssetData", Type: "bytes"},
		{Name: "takerFeeAssetData", Type: "bytes"},
	},
}

// Validate checks that every field is well formed enough to be hashed.
func (o *OrderCore) Validate() error {
	addrs := []struct{ name, value string }{
		{"exchangeAddress", o.ExchangeAddress},
		{"makerAddress", o.MakerAddress},
		{"takerAddress", o.TakerAddress},
		{"senderAddress", o.SenderAddress},
		{"feeRecipientAddress", o.FeeRecipientAddress},
	}
	for _, a := range addrs {
		if !IsAddress(a.value) {
			return fmt.Errorf("%w: %s %q is not an address", ErrInvalidOrder, a.name, a.value)
		}
	}

	blobs := []struct{ name, value string }{
		{"makerAssetData", o.MakerAssetData},
		{"takerAssetData", o.TakerAssetData},
		{"makerFeeAssetData", o.MakerFeeAssetData},
		{"takerFeeAssetData", o.TakerFeeAssetData},
		{"signature", o.Signature},
	}
	for _, b := range blobs {
		if _, err := hexutil.Decode(b.value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidOrder, b.name, err)
		}
	}

	amounts := []struct{ name, value string }{
		{"makerAssetAmount", o.MakerAssetAmount},
		{"takerAssetAmount", o.TakerAssetAmount},
		{"makerFee", o.MakerFee},
		{"takerFee", o.TakerFee},
		{"expirationTimeSeconds", o.ExpirationTimeSeconds},
		{"salt", o.Salt},
	}
	for _, a := range amounts {
		if _, ok := ParseAmount(a.value); !ok {
			return fmt.Errorf("%w: %s %q is not an unsigned integer", ErrInvalidOrder, a.name, a.value)
		}
	}
	return nil
}

// ComputeHash returns the EIP-712 hash of the order as lowercase 0x hex.
func (o *OrderCore) ComputeHash() (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}

	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              ExchangeDomainName,
			Version:           ExchangeDomainVersion,
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(o.ChainID)),
			VerifyingContract: o.ExchangeAddress,
		},
		Message: apitypes.TypedDataMessage{
			"makerAddress":          o.MakerAddress,
			"takerAddress":          o.TakerAddress,
			"feeRecipientAddress":   o.FeeRecipientAddress,
			"senderAddress":         o.SenderAddress,
			"makerAssetAmount":      o.MakerAssetAmount,
			"takerAssetAmount":      o.TakerAssetAmount,
			"makerFee":              o.MakerFee,
			"takerFee":              o.TakerFee,
			"expirationTimeSeconds": o.ExpirationTimeSeconds,
			"salt":                  o.Salt,
			"makerAssetData":        o.MakerAssetData,
			"takerAssetData":        o.TakerAssetData,
			"makerFeeAssetData":     o.MakerFeeAssetData,
			"takerFeeAssetData":     o.TakerFeeAssetData,
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return "", fmt.Errorf("failed to hash domain: %w", err)
	}
	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return "", fmt.Errorf("failed to hash order: %w", err)
	}

	// keccak256("\x19\x01" || domainSeparator || structHash)
	rawData := make([]byte, 0, 2+len(domainSeparator)+len(structHash))
	rawData = append(rawData, 0x19, 0x01)
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, structHash...)
	return crypto.Keccak256Hash(rawData).Hex(), nil
}

// WithMetadata materializes a freshly submitted order: its hash is computed and
// nothing of it has been filled yet.
func (o *OrderCore) WithMetadata() (*OrderWithMetadata, error) {
	hash, err := o.ComputeHash()
	if err != nil {
		return nil, err
	}
	return &OrderWithMetadata{
		OrderCore:                         *o,
		Hash:                              hash,
		RemainingFillableTakerAssetAmount: o.TakerAssetAmount,
	}, nil
}
