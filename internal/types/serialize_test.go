package types

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppg-community/ppg-go/internal/wire"
)

func TestSerialize_Defaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want wire.RawParameter
	}{
		{"nil becomes null", nil, wire.NullParam()},
		{"string passes through", "hello", wire.TextParam("hello")},
		{"true", true, wire.TextParam("t")},
		{"false", false, wire.TextParam("f")},
		{"int", 7, wire.TextParam("7")},
		{"int64", int64(-12), wire.TextParam("-12")},
		{"float64", 3.5, wire.TextParam("3.5")},
		{"time.Time", ts, wire.TextParam(ts.Format(time.RFC3339Nano))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Serialize(nil, tt.in)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSerialize_UserSerializerTakesPrecedence(t *testing.T) {
	t.Parallel()

	type customID int
	extra := SerializerTable{
		func(v any) (wire.RawParameter, bool) {
			id, ok := v.(customID)
			if !ok {
				return wire.RawParameter{}, false
			}
			return wire.TextParam("custom:" + string(rune('0'+int(id)))), true
		},
	}

	got := Serialize(extra, customID(5))
	assert.Equal(t, wire.TextParam("custom:5"), got)
}

func TestSerialize_RawParameterPassesThroughUnchanged(t *testing.T) {
	t.Parallel()

	rp := wire.BytesParam([]byte{1, 2, 3}, wire.FormatBinary)
	assert.Equal(t, rp, Serialize(nil, rp))
}

func TestSerialize_FallbackCoercion(t *testing.T) {
	t.Parallel()

	type unknownStruct struct{ X int }
	got := Serialize(nil, unknownStruct{X: 9})
	assert.Equal(t, wire.TextParam("{9}"), got)
}

func TestSerializeAll_RandomizedIntegers(t *testing.T) {
	t.Parallel()

	faker := gofakeit.New(42)
	args := make([]any, 20)
	for i := range args {
		args[i] = faker.Number(-1_000_000, 1_000_000)
	}

	params := SerializeAll(nil, args)
	require.Len(t, params, len(args))
}
