package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilters_EmptyAcceptsAll(t *testing.T) {
	match, err := CompileFilters(nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.True(t, match(testOrder(i, "1")))
	}

	match, err = CompileFilters([]FilterSpec{})
	require.NoError(t, err)
	assert.True(t, match(testOrder(0, "1")))
}

func TestCompileFilters_Kinds(t *testing.T) {
	tests := []struct {
		kind   FilterKind
		amount string
		value  string
		want   bool
	}{
		{Equal, "10", "10", true},
		{Equal, "10", "9", false},
		{NotEqual, "10", "9", true},
		{NotEqual, "10", "10", false},
		{Greater, "10", "9", true},
		{Greater, "10", "10", false},
		{GreaterOrEqual, "10", "10", true},
		{GreaterOrEqual, "9", "10", false},
		{Less, "9", "10", true},
		{Less, "10", "10", false},
		{LessOrEqual, "10", "10", true},
		{LessOrEqual, "11", "10", false},
	}

	for _, tt := range tests {
		name := string(tt.kind) + "_" + tt.amount + "_" + tt.value
		t.Run(name, func(t *testing.T) {
			match, err := CompileFilters([]FilterSpec{
				{Field: FieldMakerAssetAmount, Kind: tt.kind, Value: FilterValue(tt.value)},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, match(testOrder(1, tt.amount)))
		})
	}
}

func TestCompileFilters_NumericNotLexicographic(t *testing.T) {
	match, err := CompileFilters([]FilterSpec{
		{Field: FieldMakerAssetAmount, Kind: Greater, Value: "9"},
	})
	require.NoError(t, err)

	// "10" < "9" as strings, but 10 > 9 as numbers.
	assert.True(t, match(testOrder(1, "10")))
	assert.False(t, match(testOrder(2, "8")))
}

func TestCompileFilters_BeyondUint64(t *testing.T) {
	huge := "340282366920938463463374607431768211456" // 2^128
	match, err := CompileFilters([]FilterSpec{
		{Field: FieldMakerAssetAmount, Kind: Greater, Value: "18446744073709551616"}, // 2^64
	})
	require.NoError(t, err)
	assert.True(t, match(testOrder(1, huge)))
	assert.False(t, match(testOrder(2, "18446744073709551615")))
}

func TestCompileFilters_ChainID(t *testing.T) {
	match, err := CompileFilters([]FilterSpec{
		{Field: FieldChainID, Kind: Equal, Value: "1337"},
	})
	require.NoError(t, err)
	assert.True(t, match(testOrder(1, "1")))

	match, err = CompileFilters([]FilterSpec{
		{Field: FieldChainID, Kind: Less, Value: "1337"},
	})
	require.NoError(t, err)
	assert.False(t, match(testOrder(1, "1")))
}

func TestCompileFilters_HexFields(t *testing.T) {
	order := testOrder(1, "1")

	match, err := CompileFilters([]FilterSpec{
		{Field: FieldMakerAddress, Kind: Equal, Value: FilterValue(strings.ToUpper(testMaker[2:]))},
	})
	require.NoError(t, err)
	assert.False(t, match(order), "missing 0x prefix must not match")

	match, err = CompileFilters([]FilterSpec{
		{Field: FieldMakerAddress, Kind: Equal, Value: FilterValue("0x" + strings.ToUpper(testMaker[2:]))},
	})
	require.NoError(t, err)
	assert.True(t, match(order), "checksummed and lowercase addresses are the same address")

	match, err = CompileFilters([]FilterSpec{
		{Field: FieldTakerAddress, Kind: NotEqual, Value: NullAddress},
	})
	require.NoError(t, err)
	assert.False(t, match(order))

	// Ordering on hex fields is byte-wise and must not fail.
	match, err = CompileFilters([]FilterSpec{
		{Field: FieldHash, Kind: Greater, Value: FilterValue(testHash(1))},
	})
	require.NoError(t, err)
	assert.False(t, match(testOrder(1, "1")))
	assert.True(t, match(testOrder(2, "1")))
}

func TestCompileFilters_Conjunction(t *testing.T) {
	specs := []FilterSpec{
		{Field: FieldMakerAssetAmount, Kind: GreaterOrEqual, Value: "10"},
		{Field: FieldMakerAssetAmount, Kind: Less, Value: "20"},
		{Field: FieldHash, Kind: NotEqual, Value: FilterValue(testHash(3))},
	}
	match, err := CompileFilters(specs)
	require.NoError(t, err)

	singles := make([]Predicate, len(specs))
	for i, spec := range specs {
		singles[i], err = CompileFilters([]FilterSpec{spec})
		require.NoError(t, err)
	}

	amounts := []string{"5", "10", "15", "15", "20", "25"}
	for i, amount := range amounts {
		o := testOrder(i, amount)
		want := true
		for _, single := range singles {
			want = want && single(o)
		}
		assert.Equal(t, want, match(o), "order %d amount %s", i, amount)
	}

	assert.True(t, match(testOrder(2, "15")))
	assert.False(t, match(testOrder(3, "15")))
}

func TestCompileFilters_Errors(t *testing.T) {
	tests := []struct {
		name    string
		spec    FilterSpec
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown kind",
			spec:    FilterSpec{Field: FieldHash, Kind: "CONTAINS", Value: "0x"},
			wantErr: ErrInvalidFilterKind,
			wantMsg: "CONTAINS",
		},
		{
			name:    "unknown field",
			spec:    FilterSpec{Field: "price", Kind: Equal, Value: "1"},
			wantErr: ErrFieldNotFilterable,
			wantMsg: "price",
		},
		{
			name:    "non numeric value on numeric field",
			spec:    FilterSpec{Field: FieldMakerFee, Kind: Equal, Value: "ten"},
			wantErr: ErrInvalidFilterValue,
			wantMsg: "ten",
		},
		{
			name:    "empty value on numeric field",
			spec:    FilterSpec{Field: FieldSalt, Kind: Equal, Value: ""},
			wantErr: ErrInvalidFilterValue,
		},
		{
			name:    "negative value on numeric field",
			spec:    FilterSpec{Field: FieldSalt, Kind: Equal, Value: "-1"},
			wantErr: ErrInvalidFilterValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := []FilterSpec{
				{Field: FieldHash, Kind: Equal, Value: FilterValue(testHash(1))},
				tt.spec,
			}
			match, err := CompileFilters(specs)
			require.Error(t, err)
			assert.Nil(t, match)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsQueryError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestFilterValue_UnmarshalJSON(t *testing.T) {
	var spec FilterSpec
	require.NoError(t, json.Unmarshal([]byte(`{"field":"makerAssetAmount","kind":"GREATER","value":"50000000000000000"}`), &spec))
	assert.Equal(t, FilterValue("50000000000000000"), spec.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"field":"chainId","kind":"EQUAL","value":1337}`), &spec))
	assert.Equal(t, FieldChainID, spec.Field)
	assert.Equal(t, FilterValue("1337"), spec.Value)

	// Numbers past float64 precision keep every digit.
	require.NoError(t, json.Unmarshal([]byte(`{"field":"salt","kind":"EQUAL","value":123456789012345678901234567890}`), &spec))
	assert.Equal(t, FilterValue("123456789012345678901234567890"), spec.Value)

	assert.Error(t, json.Unmarshal([]byte(`{"field":"salt","kind":"EQUAL","value":true}`), &spec))
}
