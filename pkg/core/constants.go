package core

import "errors"

// Errors
var (
	ErrInvalidFilterKind    = errors.New("invalid filter kind")
	ErrInvalidSortDirection = errors.New("invalid sort direction")
	ErrFieldNotFilterable   = errors.New("field is not filterable")
	ErrFieldNotSortable     = errors.New("field is not sortable")
	ErrInvalidFilterValue   = errors.New("invalid filter value")
	ErrInvalidOrder         = errors.New("invalid order")
)

// IsQueryError reports whether err was caused by a malformed query rather than
// by the store or the transport.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrInvalidFilterKind) ||
		errors.Is(err, ErrInvalidSortDirection) ||
		errors.Is(err, ErrFieldNotFilterable) ||
		errors.Is(err, ErrFieldNotSortable) ||
		errors.Is(err, ErrInvalidFilterValue)
}
