// Package types implements the pluggable serializer/parser dispatch tables
// that sit between caller-supplied Go values and the wire package's raw
// parameters and string-or-null row values.
package types

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ppg-community/ppg-go/internal/wire"
)

// Serializer attempts to turn v into a raw parameter. ok is false if this
// serializer does not recognize v's shape, letting the dispatcher probe the
// next one in the list.
type Serializer func(v any) (wire.RawParameter, bool)

// SerializerTable is an ordered probing list: user-supplied serializers are
// tried first, then the defaults, so a caller can override a default's
// behavior for a type it also handles.
type SerializerTable []Serializer

// DefaultSerializers is the pluggable table shipped by this module: Date to
// ISO-8601 text, integers to decimal text, bool to "t"/"f", floats to
// decimal text.
func DefaultSerializers() SerializerTable {
	return SerializerTable{
		serializeTime,
		serializeBool,
		serializeInteger,
		serializeFloat,
	}
}

func serializeTime(v any) (wire.RawParameter, bool) {
	t, ok := v.(time.Time)
	if !ok {
		return wire.RawParameter{}, false
	}
	return wire.TextParam(t.UTC().Format(time.RFC3339Nano)), true
}

func serializeBool(v any) (wire.RawParameter, bool) {
	b, ok := v.(bool)
	if !ok {
		return wire.RawParameter{}, false
	}
	if b {
		return wire.TextParam("t"), true
	}
	return wire.TextParam("f"), true
}

func serializeInteger(v any) (wire.RawParameter, bool) {
	switch n := v.(type) {
	case int:
		return wire.TextParam(strconv.FormatInt(int64(n), 10)), true
	case int8:
		return wire.TextParam(strconv.FormatInt(int64(n), 10)), true
	case int16:
		return wire.TextParam(strconv.FormatInt(int64(n), 10)), true
	case int32:
		return wire.TextParam(strconv.FormatInt(int64(n), 10)), true
	case int64:
		return wire.TextParam(strconv.FormatInt(n, 10)), true
	case uint:
		return wire.TextParam(strconv.FormatUint(uint64(n), 10)), true
	case uint32:
		return wire.TextParam(strconv.FormatUint(uint64(n), 10)), true
	case uint64:
		return wire.TextParam(strconv.FormatUint(n, 10)), true
	default:
		return wire.RawParameter{}, false
	}
}

func serializeFloat(v any) (wire.RawParameter, bool) {
	switch n := v.(type) {
	case float32:
		return wire.TextParam(strconv.FormatFloat(float64(n), 'g', -1, 32)), true
	case float64:
		return wire.TextParam(strconv.FormatFloat(n, 'g', -1, 64)), true
	default:
		return wire.RawParameter{}, false
	}
}

// Serialize dispatches v through extra (caller-supplied, tried first) then
// defaults. nil becomes a null raw parameter unconditionally, before any
// serializer is probed, and a wire.RawParameter is returned unchanged. A
// string passes through as a text parameter without needing a matching
// serializer, and a []byte becomes a binary parameter. Anything else that
// matches nothing is
// coerced via fmt.Sprintf("%v", v) as a last resort, mirroring the spec's
// "everything else is coerced via a string-conversion path".
func Serialize(extra SerializerTable, v any) wire.RawParameter {
	if v == nil {
		return wire.NullParam()
	}
	if rp, ok := v.(wire.RawParameter); ok {
		return rp
	}
	for _, s := range extra {
		if rp, ok := s(v); ok {
			return rp
		}
	}
	for _, s := range DefaultSerializers() {
		if rp, ok := s(v); ok {
			return rp
		}
	}
	if s, ok := v.(string); ok {
		return wire.TextParam(s)
	}
	if b, ok := v.([]byte); ok {
		return wire.BytesParam(b, wire.FormatBinary)
	}
	return wire.TextParam(fmt.Sprintf("%v", v))
}

// SerializeAll serializes an ordered argument list in place.
func SerializeAll(extra SerializerTable, args []any) []wire.RawParameter {
	params := make([]wire.RawParameter, len(args))
	for i, a := range args {
		params[i] = Serialize(extra, a)
	}
	return params
}
