package core

import (
	"encoding/json"
	"strings"
)

// OrderCore holds the signed protocol fields of a 0x order. Amounts, fees,
// expiration and salt are decimal strings so values above 64 bits survive
// every encoding hop untouched.
type OrderCore struct {
	ChainID               int64  `json:"chainId" yaml:"chainId"`
	ExchangeAddress       string `json:"exchangeAddress" yaml:"exchangeAddress"`
	MakerAddress          string `json:"makerAddress" yaml:"makerAddress"`
	MakerAssetData        string `json:"makerAssetData" yaml:"makerAssetData"`
	MakerAssetAmount      string `json:"makerAssetAmount" yaml:"makerAssetAmount"`
	MakerFeeAssetData     string `json:"makerFeeAssetData" yaml:"makerFeeAssetData"`
	MakerFee              string `json:"makerFee" yaml:"makerFee"`
	TakerAddress          string `json:"takerAddress" yaml:"takerAddress"`
	TakerAssetData        string `json:"takerAssetData" yaml:"takerAssetData"`
	TakerAssetAmount      string `json:"takerAssetAmount" yaml:"takerAssetAmount"`
	TakerFeeAssetData     string `json:"takerFeeAssetData" yaml:"takerFeeAssetData"`
	TakerFee              string `json:"takerFee" yaml:"takerFee"`
	SenderAddress         string `json:"senderAddress" yaml:"senderAddress"`
	FeeRecipientAddress   string `json:"feeRecipientAddress" yaml:"feeRecipientAddress"`
	ExpirationTimeSeconds string `json:"expirationTimeSeconds" yaml:"expirationTimeSeconds"`
	Salt                  string `json:"salt" yaml:"salt"`
	Signature             string `json:"signature" yaml:"signature"`
}

// NewOrder is an order submitted through addOrders.
type NewOrder = OrderCore

// OrderWithMetadata is an order together with the metadata derived by the
// ingestion pipeline. Records are immutable once they reach a store.
type OrderWithMetadata struct {
	OrderCore                         `yaml:",inline"`
	Hash                              string `json:"hash" yaml:"hash"`
	RemainingFillableTakerAssetAmount string `json:"remainingFillableTakerAssetAmount" yaml:"remainingFillableTakerAssetAmount"`
}

// RejectedOrderCode is a machine readable reason for rejecting a submitted
// order. The set is open; the constants below are the ones this server emits.
type RejectedOrderCode string

// Rejection codes
const (
	RejectedEthRPCRequestFailed     RejectedOrderCode = "ETH_RPC_REQUEST_FAILED"
	RejectedInvalidMakerAssetAmount RejectedOrderCode = "INVALID_MAKER_ASSET_AMOUNT"
	RejectedInvalidTakerAssetAmount RejectedOrderCode = "INVALID_TAKER_ASSET_AMOUNT"
	RejectedInvalidOrderEncoding    RejectedOrderCode = "INVALID_ORDER_ENCODING"
)

// AcceptedOrderResult pairs a materialized order with whether it was unknown
// before this submission.
type AcceptedOrderResult struct {
	Order *OrderWithMetadata `json:"order"`
	IsNew bool               `json:"isNew"`
}

// RejectedOrderResult describes why a submitted order was not accepted. Hash is
// nil when the order could not be hashed.
type RejectedOrderResult struct {
	Hash    *string           `json:"hash"`
	Order   *NewOrder         `json:"order"`
	Code    RejectedOrderCode `json:"code"`
	Message string            `json:"message"`
}

// AddOrdersResults is the outcome of an addOrders call.
type AddOrdersResults struct {
	Accepted []*AcceptedOrderResult `json:"accepted"`
	Rejected []*RejectedOrderResult `json:"rejected"`
}

// OrderEndState is the state an order moved into in an OrderEvent.
type OrderEndState string

// Order end states
const (
	EndStateAdded           OrderEndState = "ADDED"
	EndStateFilled          OrderEndState = "FILLED"
	EndStateFullyFilled     OrderEndState = "FULLY_FILLED"
	EndStateCancelled       OrderEndState = "CANCELLED"
	EndStateExpired         OrderEndState = "EXPIRED"
	EndStateUnexpired       OrderEndState = "UNEXPIRED"
	EndStateInvalid         OrderEndState = "INVALID"
	EndStateStoppedWatching OrderEndState = "STOPPED_WATCHING"
)

// ContractEvent is an on-chain event that caused an order to change state.
type ContractEvent struct {
	BlockHash  string          `json:"blockHash"`
	TxHash     string          `json:"txHash"`
	TxIndex    int             `json:"txIndex"`
	LogIndex   int             `json:"logIndex"`
	IsRemoved  bool            `json:"isRemoved"`
	Address    string          `json:"address"`
	Kind       string          `json:"kind"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// OrderEvent reports a change in an order's state. Timestamp is RFC3339.
type OrderEvent struct {
	Timestamp      string             `json:"timestamp"`
	Order          *OrderWithMetadata `json:"order"`
	EndState       OrderEndState      `json:"endState"`
	ContractEvents []ContractEvent    `json:"contractEvents"`
}

// LatestBlock identifies the most recent block the node has processed.
type LatestBlock struct {
	Number string `json:"number"`
	Hash   string `json:"hash"`
}

// Stats is a read-only snapshot of node metadata.
type Stats struct {
	Version                           string      `json:"version"`
	PubSubTopic                       string      `json:"pubSubTopic"`
	Rendezvous                        string      `json:"rendezvous"`
	PeerID                            string      `json:"peerID"`
	EthereumChainID                   int64       `json:"ethereumChainID"`
	LatestBlock                       LatestBlock `json:"latestBlock"`
	NumPeers                          int         `json:"numPeers"`
	NumOrders                         int         `json:"numOrders"`
	NumOrdersIncludingRemoved         int         `json:"numOrdersIncludingRemoved"`
	NumPinnedOrders                   int         `json:"numPinnedOrders"`
	MaxExpirationTime                 string      `json:"maxExpirationTime"`
	StartOfCurrentUTCDay              string      `json:"startOfCurrentUTCDay"`
	EthRPCRequestsSentInCurrentUTCDay int         `json:"ethRPCRequestsSentInCurrentUTCDay"`
	EthRPCRateLimitExpiredRequests    int         `json:"ethRPCRateLimitExpiredRequests"`
}

// normalizeHex lowercases a hex string so checksummed and plain forms compare equal.
func normalizeHex(s string) string {
	return strings.ToLower(s)
}
