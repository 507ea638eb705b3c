package wire

import (
	"encoding/base64"
	"io"
	"unicode/utf8"

	"github.com/ppg-community/ppg-go/internal/ppgerr"
)

// InlineThreshold is the exact byte-length boundary (inclusive) below which a
// parameter is carried inline in the query descriptor rather than as its own
// extended frame.
const InlineThreshold = 1024

// Encode turns a statement and its raw parameters into the ordered frame
// sequence the transport must write: one query descriptor, followed by one
// extended frame per extended descriptor, in the same order those
// descriptors appear in the parameter list.
func Encode(kind StatementKind, sql string, params []RawParameter) (QueryDescriptor, []ExtendedFrame, error) {
	desc := QueryDescriptor{}
	if kind == Exec {
		desc.Exec = sql
	} else {
		desc.Query = sql
	}

	if len(params) == 0 {
		return desc, nil, nil
	}

	descriptors := make([]ParamDescriptor, 0, len(params))
	var extended []ExtendedFrame

	for i, p := range params {
		if err := p.validate(); err != nil {
			return QueryDescriptor{}, nil, err
		}

		pd, ext, err := encodeOne(p)
		if err != nil {
			return QueryDescriptor{}, nil, wrapIndexErr(i, err)
		}
		descriptors = append(descriptors, pd)
		if ext != nil {
			extended = append(extended, *ext)
		}
	}

	desc.Parameters = descriptors
	return desc, extended, nil
}

func wrapIndexErr(i int, err error) error {
	if ve, ok := err.(*ppgerr.ValidationError); ok {
		return ppgerr.NewValidationError("parameter %d: %s", i, ve.Message)
	}
	return err
}

func encodeOne(p RawParameter) (ParamDescriptor, *ExtendedFrame, error) {
	switch p.kind {
	case paramNull:
		return ParamDescriptor{Type: FormatText.String()}, nil, nil

	case paramText:
		n := p.byteLength()
		if n <= InlineThreshold {
			v := p.text
			return ParamDescriptor{Type: "text", Value: &v}, nil, nil
		}
		return extendedDescriptor(FormatText, n), &ExtendedFrame{
			URN:    FormatText.ParamURN(),
			Format: FormatText,
			Data:   []byte(p.text),
		}, nil

	case paramBytes:
		n := p.byteLength()
		if p.format == FormatBinary {
			if n <= InlineThreshold {
				v := base64.StdEncoding.EncodeToString(p.bytes)
				return ParamDescriptor{Type: "binary", Value: &v}, nil, nil
			}
			return extendedDescriptor(FormatBinary, n), &ExtendedFrame{
				URN:    FormatBinary.ParamURN(),
				Format: FormatBinary,
				Data:   p.bytes,
			}, nil
		}
		// text format bytes: text can arrive as bytes, but must be valid UTF-8.
		if !utf8.Valid(p.bytes) {
			return ParamDescriptor{}, nil, ppgerr.NewValidationError("text-format byte parameter is not valid UTF-8")
		}
		if n <= InlineThreshold {
			v := string(p.bytes)
			return ParamDescriptor{Type: "text", Value: &v}, nil, nil
		}
		return extendedDescriptor(FormatText, n), &ExtendedFrame{
			URN:    FormatText.ParamURN(),
			Format: FormatText,
			Data:   p.bytes,
		}, nil

	case paramStream:
		n := p.length
		if n <= InlineThreshold {
			data, err := readExactly(p.stream, n)
			if err != nil {
				return ParamDescriptor{}, nil, err
			}
			if p.format == FormatBinary {
				v := base64.StdEncoding.EncodeToString(data)
				return ParamDescriptor{Type: "binary", Value: &v}, nil, nil
			}
			if !utf8.Valid(data) {
				return ParamDescriptor{}, nil, ppgerr.NewValidationError("text-format stream parameter is not valid UTF-8")
			}
			v := string(data)
			return ParamDescriptor{Type: "text", Value: &v}, nil, nil
		}
		return extendedDescriptor(p.format, n), &ExtendedFrame{
			URN:    p.format.ParamURN(),
			Format: p.format,
			Reader: streamReader{r: p.stream, n: n},
		}, nil

	default:
		return ParamDescriptor{}, nil, ppgerr.NewValidationError("unsupported raw parameter shape")
	}
}

func extendedDescriptor(f Format, n int64) ParamDescriptor {
	return ParamDescriptor{Type: f.String(), ByteSize: &n}
}

func readExactly(r io.Reader, n int64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ppgerr.NewValidationError("failed to consume stream parameter: %v", err)
	}
	return buf, nil
}

// streamReader adapts an io.Reader with a declared length into
// ReadCloserWithLen without buffering, so the HTTP transport can forward it
// chunk by chunk instead of materializing it in memory.
type streamReader struct {
	r io.Reader
	n int64
}

func (s streamReader) Read(p []byte) (int, error) { return s.r.Read(p) }
func (s streamReader) Len() int64                  { return s.n }
