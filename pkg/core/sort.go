package core

import "fmt"

// SortDirection is the direction of a sort key.
type SortDirection string

// Sort directions
const (
	Asc  SortDirection = "ASC"
	Desc SortDirection = "DESC"
)

// SortSpec orders results by Field in Direction.
type SortSpec struct {
	Field     OrderField    `json:"field"`
	Direction SortDirection `json:"direction"`
}

func (s SortSpec) String() string {
	return fmt.Sprintf("%s %s", s.Field, s.Direction)
}

// DefaultSort is the ordering applied when a caller does not ask for one.
var DefaultSort = []SortSpec{{Field: FieldHash, Direction: Asc}}

// Comparator returns -1, 0 or +1 as a sorts before, with or after b.
type Comparator func(a, b *OrderWithMetadata) int

// noOrder is the comparator of an empty sort list: everything ties.
func noOrder(a, b *OrderWithMetadata) int { return 0 }

// CompileSorts compiles specs into one comparator. The first spec is the
// primary key; each following spec only breaks ties left by the ones before it.
func CompileSorts(specs []SortSpec) (Comparator, error) {
	if len(specs) == 0 {
		return noOrder, nil
	}
	keys := make([]Comparator, len(specs))
	for i, spec := range specs {
		key, err := compileSort(spec)
		if err != nil {
			return nil, fmt.Errorf("compile sort %d: %w", i, err)
		}
		keys[i] = key
	}
	return func(a, b *OrderWithMetadata) int {
		for _, key := range keys {
			if c := key(a, b); c != 0 {
				return c
			}
		}
		return 0
	}, nil
}

func compileSort(spec SortSpec) (Comparator, error) {
	if !spec.Field.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotSortable, string(spec.Field))
	}
	field := spec.Field
	switch spec.Direction {
	case Asc:
		return func(a, b *OrderWithMetadata) int { return field.compare(a, b) }, nil
	case Desc:
		return func(a, b *OrderWithMetadata) int { return field.compare(b, a) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortDirection, string(spec.Direction))
	}
}
