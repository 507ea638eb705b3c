package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

// Oid is a Postgres type identifier, the discriminator the parser table
// dispatches on.
type Oid int

// The subset of well-known oids this table ships default parsers for.
const (
	OidBool    Oid = 16
	OidInt8    Oid = 20
	OidInt2    Oid = 21
	OidInt4    Oid = 23
	OidText    Oid = 25
	OidJSON    Oid = 114
	OidFloat4  Oid = 700
	OidFloat8  Oid = 701
	OidVarchar Oid = 1043
	OidJSONB   Oid = 3802
)

// Parser decodes one row value already known not to be SQL NULL. Parsers
// need not handle null themselves; Parse intercepts it before dispatch.
type Parser func(raw string) (any, error)

// ParserTable maps an oid to the parser that decodes its column values.
type ParserTable map[Oid]Parser

// DefaultParsers is the pluggable table shipped by this module.
func DefaultParsers() ParserTable {
	return ParserTable{
		OidBool:    parseBool,
		OidInt2:    parseInt,
		OidInt4:    parseInt,
		OidInt8:    parseBigInt,
		OidFloat4:  parseFloat,
		OidFloat8:  parseFloat,
		OidText:    parseText,
		OidVarchar: parseText,
		OidJSON:    parseJSON,
		OidJSONB:   parseJSON,
	}
}

func parseBool(raw string) (any, error) {
	switch raw {
	case "t", "true":
		return true, nil
	case "f", "false":
		return false, nil
	default:
		return nil, fmt.Errorf("ppg: invalid boolean value %q", raw)
	}
}

func parseInt(raw string) (any, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ppg: invalid integer value %q: %w", raw, err)
	}
	return n, nil
}

// parseBigInt decodes int8/bigint into *big.Int rather than int64, since the
// wire representation (decimal text) may exceed 64 bits in principle and the
// spec names this column's default type as "bignum".
func parseBigInt(raw string) (any, error) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("ppg: invalid bigint value %q", raw)
	}
	return n, nil
}

func parseFloat(raw string) (any, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("ppg: invalid float value %q: %w", raw, err)
	}
	return f, nil
}

func parseText(raw string) (any, error) {
	return raw, nil
}

func parseJSON(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("ppg: invalid json value: %w", err)
	}
	return v, nil
}

// Parse dispatches a single row value by oid. extra is probed before
// defaults so a caller can override a default parser for an oid it also
// handles; an oid neither table recognizes returns the raw string
// unchanged. raw == nil (SQL NULL) always returns (nil, nil) without
// consulting either table, per the spec's "parsers MUST handle null
// explicitly" — handled once here instead of in every parser.
func Parse(extra ParserTable, oid Oid, raw *string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if p, ok := extra[oid]; ok {
		return p(*raw)
	}
	if p, ok := DefaultParsers()[oid]; ok {
		return p(*raw)
	}
	return *raw, nil
}

// ParseRow decodes an entire row's raw values by oids, in order.
func ParseRow(extra ParserTable, oids []Oid, raw []*string) ([]any, error) {
	out := make([]any, len(raw))
	for i, v := range raw {
		var oid Oid
		if i < len(oids) {
			oid = oids[i]
		}
		decoded, err := Parse(extra, oid, v)
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}
