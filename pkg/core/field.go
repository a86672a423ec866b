package core

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
)

// OrderField names a queryable order field.
type OrderField string

// Queryable order fields
const (
	FieldHash                              OrderField = "hash"
	FieldChainID                           OrderField = "chainId"
	FieldExchangeAddress                   OrderField = "exchangeAddress"
	FieldMakerAddress                      OrderField = "makerAddress"
	FieldMakerAssetData                    OrderField = "makerAssetData"
	FieldMakerAssetAmount                  OrderField = "makerAssetAmount"
	FieldMakerFeeAssetData                 OrderField = "makerFeeAssetData"
	FieldMakerFee                          OrderField = "makerFee"
	FieldTakerAddress                      OrderField = "takerAddress"
	FieldTakerAssetData                    OrderField = "takerAssetData"
	FieldTakerAssetAmount                  OrderField = "takerAssetAmount"
	FieldTakerFeeAssetData                 OrderField = "takerFeeAssetData"
	FieldTakerFee                          OrderField = "takerFee"
	FieldSenderAddress                     OrderField = "senderAddress"
	FieldFeeRecipientAddress               OrderField = "feeRecipientAddress"
	FieldExpirationTimeSeconds             OrderField = "expirationTimeSeconds"
	FieldSalt                              OrderField = "salt"
	FieldRemainingFillableTakerAssetAmount OrderField = "remainingFillableTakerAssetAmount"
)

// OrderFields lists every queryable field.
var OrderFields = []OrderField{
	FieldHash,
	FieldChainID,
	FieldExchangeAddress,
	FieldMakerAddress,
	FieldMakerAssetData,
	FieldMakerAssetAmount,
	FieldMakerFeeAssetData,
	FieldMakerFee,
	FieldTakerAddress,
	FieldTakerAssetData,
	FieldTakerAssetAmount,
	FieldTakerFeeAssetData,
	FieldTakerFee,
	FieldSenderAddress,
	FieldFeeRecipientAddress,
	FieldExpirationTimeSeconds,
	FieldSalt,
	FieldRemainingFillableTakerAssetAmount,
}

// fieldType decides how values of a field are compared.
type fieldType int

const (
	fieldTypeUnknown fieldType = iota
	fieldTypeHex
	fieldTypeNumeric
)

func (f OrderField) fieldType() fieldType {
	switch f {
	case FieldHash,
		FieldExchangeAddress,
		FieldMakerAddress,
		FieldMakerAssetData,
		FieldMakerFeeAssetData,
		FieldTakerAddress,
		FieldTakerAssetData,
		FieldTakerFeeAssetData,
		FieldSenderAddress,
		FieldFeeRecipientAddress:
		return fieldTypeHex
	case FieldChainID,
		FieldMakerAssetAmount,
		FieldMakerFee,
		FieldTakerAssetAmount,
		FieldTakerFee,
		FieldExpirationTimeSeconds,
		FieldSalt,
		FieldRemainingFillableTakerAssetAmount:
		return fieldTypeNumeric
	default:
		return fieldTypeUnknown
	}
}

// Valid reports whether f is one of the queryable fields.
func (f OrderField) Valid() bool {
	return f.fieldType() != fieldTypeUnknown
}

// IsNumeric reports whether f holds an integer amount.
func (f OrderField) IsNumeric() bool {
	return f.fieldType() == fieldTypeNumeric
}

// text returns the raw value of a hex or address field.
func (f OrderField) text(o *OrderWithMetadata) string {
	switch f {
	case FieldHash:
		return o.Hash
	case FieldExchangeAddress:
		return o.ExchangeAddress
	case FieldMakerAddress:
		return o.MakerAddress
	case FieldMakerAssetData:
		return o.MakerAssetData
	case FieldMakerFeeAssetData:
		return o.MakerFeeAssetData
	case FieldTakerAddress:
		return o.TakerAddress
	case FieldTakerAssetData:
		return o.TakerAssetData
	case FieldTakerFeeAssetData:
		return o.TakerFeeAssetData
	case FieldSenderAddress:
		return o.SenderAddress
	case FieldFeeRecipientAddress:
		return o.FeeRecipientAddress
	default:
		return ""
	}
}

// rawNumber returns the decimal string of a numeric field.
func (f OrderField) rawNumber(o *OrderWithMetadata) string {
	switch f {
	case FieldMakerAssetAmount:
		return o.MakerAssetAmount
	case FieldMakerFee:
		return o.MakerFee
	case FieldTakerAssetAmount:
		return o.TakerAssetAmount
	case FieldTakerFee:
		return o.TakerFee
	case FieldExpirationTimeSeconds:
		return o.ExpirationTimeSeconds
	case FieldSalt:
		return o.Salt
	case FieldRemainingFillableTakerAssetAmount:
		return o.RemainingFillableTakerAssetAmount
	default:
		return ""
	}
}

// number returns the value of a numeric field. ok is false when the stored
// string is not an integer.
func (f OrderField) number(o *OrderWithMetadata) (*big.Int, bool) {
	if f == FieldChainID {
		return big.NewInt(o.ChainID), true
	}
	return ParseAmount(f.rawNumber(o))
}

// compare orders a and b by field f: -1, 0 or +1.
func (f OrderField) compare(a, b *OrderWithMetadata) int {
	if f.IsNumeric() {
		x, okx := f.number(a)
		y, oky := f.number(b)
		switch {
		case okx && oky:
			return x.Cmp(y)
		case okx:
			return 1
		case oky:
			return -1
		}
		// Unparsable stored amounts sort below every number, ordered among
		// themselves by raw text.
		return strings.Compare(f.rawNumber(a), f.rawNumber(b))
	}
	return strings.Compare(normalizeHex(f.text(a)), normalizeHex(f.text(b)))
}

// ParseAmount parses a decimal (or 0x hex) unsigned 256-bit integer.
func ParseAmount(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	n, ok := math.ParseBig256(s)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// operand is a comparison value parsed once for the field it is compared with.
type operand struct {
	field OrderField
	text  string
	num   *big.Int
}

func newOperand(f OrderField, value string) (operand, error) {
	op := operand{field: f}
	switch f.fieldType() {
	case fieldTypeNumeric:
		n, ok := ParseAmount(value)
		if !ok {
			return operand{}, fmt.Errorf("%w: %q is not an integer for field %s", ErrInvalidFilterValue, value, f)
		}
		op.num = n
	case fieldTypeHex:
		op.text = normalizeHex(value)
	default:
		return operand{}, fmt.Errorf("%w: %q", ErrFieldNotFilterable, string(f))
	}
	return op, nil
}

// compareTo returns the sign of order[field] - operand.
func (op operand) compareTo(o *OrderWithMetadata) int {
	if op.num != nil {
		n, ok := op.field.number(o)
		if !ok {
			// An unparsable stored amount sorts below every operand.
			return -1
		}
		return n.Cmp(op.num)
	}
	return strings.Compare(normalizeHex(op.field.text(o)), op.text)
}
