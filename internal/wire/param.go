package wire

import (
	"io"

	"github.com/ppg-community/ppg-go/internal/ppgerr"
)

// paramKind discriminates the RawParameter union. RawParameter models the
// tagged union from the data model: null, a string, a byte array tagged
// text-or-binary, or a bounded byte stream of known length tagged
// text-or-binary.
type paramKind int

const (
	paramNull paramKind = iota
	paramText
	paramBytes
	paramStream
)

// RawParameter is the value produced by the serializer table and consumed by
// the frame encoder. Construct one with NullParam, TextParam, BytesParam, or
// StreamParam; the zero value is equivalent to NullParam.
type RawParameter struct {
	kind   paramKind
	text   string
	bytes  []byte
	format Format
	stream io.Reader
	length int64
}

// NullParam is the SQL NULL parameter.
func NullParam() RawParameter {
	return RawParameter{kind: paramNull}
}

// TextParam is a UTF-8 string parameter.
func TextParam(s string) RawParameter {
	return RawParameter{kind: paramText, text: s}
}

// BytesParam is an in-memory byte slice, tagged text or binary. Text-tagged
// bytes must themselves be valid UTF-8; this is checked at encode time, not
// at construction time, matching the teacher's pattern of deferring
// validation to the point where an error can carry full context.
func BytesParam(b []byte, format Format) RawParameter {
	return RawParameter{kind: paramBytes, bytes: b, format: format}
}

// StreamParam is a finite lazy byte sequence with a declared length, tagged
// text or binary. It is consumed exactly once.
func StreamParam(r io.Reader, length int64, format Format) RawParameter {
	return RawParameter{kind: paramStream, stream: r, length: length, format: format}
}

// byteLength returns the parameter's byte length for the purpose of the
// inline/extended threshold decision. For text parameters it is the UTF-8
// encoded length; for a stream it is the declared length, not a count of
// bytes actually read.
func (p RawParameter) byteLength() int64 {
	switch p.kind {
	case paramNull:
		return 0
	case paramText:
		return int64(len(p.text))
	case paramBytes:
		return int64(len(p.bytes))
	case paramStream:
		return p.length
	default:
		return 0
	}
}

func (p RawParameter) validate() error {
	switch p.kind {
	case paramNull, paramText, paramBytes, paramStream:
		return nil
	default:
		return ppgerr.NewValidationError("unsupported raw parameter shape")
	}
}
