// Package api defines the OrderQueryService gRPC contract. Messages travel as
// google.protobuf.Struct values holding the same JSON documents the HTTP
// endpoints serve, so the service needs no generated code.
package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/erain9/meshmock/pkg/core"
)

// OrderRequest looks up a single order.
type OrderRequest struct {
	Hash string `json:"hash"`
}

// OrderResponse carries the looked up order, which is null when absent.
type OrderResponse struct {
	Order *core.OrderWithMetadata `json:"order"`
}

// OrdersRequest is a list query. A null Sort asks for the default hash order;
// an empty list keeps store order. A nil Limit asks for the default limit.
type OrdersRequest struct {
	Filters []core.FilterSpec `json:"filters"`
	Sort    []core.SortSpec   `json:"sort"`
	Limit   *int              `json:"limit,omitempty"`
}

// OrdersResponse carries the matching orders.
type OrdersResponse struct {
	Orders []*core.OrderWithMetadata `json:"orders"`
}

// AddOrdersRequest submits orders. Pinned defaults to true.
type AddOrdersRequest struct {
	Orders []*core.NewOrder `json:"orders"`
	Pinned *bool            `json:"pinned,omitempty"`
}

// IsPinned reports the effective pinned flag.
func (r *AddOrdersRequest) IsPinned() bool {
	return r.Pinned == nil || *r.Pinned
}

// StatsRequest asks for node statistics.
type StatsRequest struct{}

// OrderEventsRequest subscribes to order events.
type OrderEventsRequest struct{}

// ToStruct encodes v as a Struct through its JSON form.
func ToStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return s, nil
}

// structChecker reports wire values a message refuses before JSON decoding.
type structChecker interface {
	checkStruct(s *structpb.Struct) error
}

// checkStruct rejects numeric filter values. Struct numbers are doubles, so
// amounts past 2^53 would arrive already rounded.
func (r *OrdersRequest) checkStruct(s *structpb.Struct) error {
	for i, f := range s.GetFields()["filters"].GetListValue().GetValues() {
		value := f.GetStructValue().GetFields()["value"]
		if _, ok := value.GetKind().(*structpb.Value_NumberValue); ok {
			return fmt.Errorf("%w: filters[%d].value must be a string, got number %v",
				core.ErrInvalidFilterValue, i, value.GetNumberValue())
		}
	}
	return nil
}

// FromStruct decodes s into v through its JSON form. A nil Struct decodes as
// an empty object.
func FromStruct(s *structpb.Struct, v interface{}) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	if c, ok := v.(structChecker); ok {
		if err := c.checkStruct(s); err != nil {
			return err
		}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
