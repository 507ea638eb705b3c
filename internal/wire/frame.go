package wire

import "encoding/json"

// StatementKind is either a query (returns rows, or a 0-row CommandComplete)
// or an exec (returns a single rowsAffected row under a synthetic schema).
type StatementKind int

const (
	Query StatementKind = iota
	Exec
)

func (k StatementKind) String() string {
	if k == Exec {
		return "exec"
	}
	return "query"
}

// ParamDescriptor is the JSON shape of one parameter inside a query
// descriptor frame: inline carries Value (string, or base64 for binary, or
// null), extended carries only ByteSize. A descriptor is extended iff
// ByteSize is set; that controls which of Value/ByteSize is marshaled,
// since an inline null must serialize as an explicit "value":null rather
// than being omitted.
type ParamDescriptor struct {
	Type     string
	Value    *string
	ByteSize *int64
}

func (d ParamDescriptor) MarshalJSON() ([]byte, error) {
	if d.ByteSize != nil {
		return json.Marshal(struct {
			Type     string `json:"type"`
			ByteSize int64  `json:"byteSize"`
		}{Type: d.Type, ByteSize: *d.ByteSize})
	}
	return json.Marshal(struct {
		Type  string  `json:"type"`
		Value *string `json:"value"`
	}{Type: d.Type, Value: d.Value})
}

func (d *ParamDescriptor) UnmarshalJSON(data []byte) error {
	var shape struct {
		Type     string  `json:"type"`
		Value    *string `json:"value"`
		ByteSize *int64  `json:"byteSize"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	d.Type, d.Value, d.ByteSize = shape.Type, shape.Value, shape.ByteSize
	return nil
}

// QueryDescriptor is the outbound query descriptor frame.
type QueryDescriptor struct {
	Query      string            `json:"query,omitempty"`
	Exec       string            `json:"exec,omitempty"`
	Parameters []ParamDescriptor `json:"parameters,omitempty"`
}

// ExtendedFrame is an outbound extended parameter frame: the actual bytes of
// a parameter too large to inline, in descriptor order.
type ExtendedFrame struct {
	URN    URN
	Format Format
	// Data holds the frame payload once fully materialized. The encoder
	// either fills this directly (in-memory parameters) or leaves it nil
	// and leaves Reader set for a caller that wants to stream rather than
	// buffer (the HTTP transport forwards a stream chunk-by-chunk instead
	// of buffering it here).
	Data   []byte
	Reader ReadCloserWithLen
}

// ReadCloserWithLen is a finite lazy byte sequence of known length, read
// exactly once. io.Reader that also knows its declared length without
// requiring a seek.
type ReadCloserWithLen interface {
	Read(p []byte) (int, error)
	Len() int64
}

// Column describes one result column: its projection name and its Postgres
// type oid, which the parser table uses to decode row values.
type Column struct {
	Name string `json:"name"`
	Oid  int    `json:"typeOid"`
}

// DataRowDescription is the inbound frame announcing the result schema.
type DataRowDescription struct {
	Columns []Column `json:"columns"`
}

// DataRow is one inbound row: an ordered vector of string-or-null values.
type DataRow struct {
	Values []*string `json:"values"`
}

// ErrorPayload is the inbound error frame's payload: a required SQLSTATE
// code and message, plus whatever extra fields the server attached.
type ErrorPayload struct {
	Message string
	Code    string
	Extra   map[string]any
}

// InboundKind discriminates the four inbound frame shapes.
type InboundKind int

const (
	InboundUnknown InboundKind = iota
	InboundDescription
	InboundDataRow
	InboundComplete
	InboundError
)

// InboundFrame is the discriminated result of classifying one decoded
// inbound JSON payload.
type InboundFrame struct {
	Kind        InboundKind
	Description DataRowDescription
	Row         DataRow
	Error       ErrorPayload
}

// ClassifyInbound dispatches a decoded inbound JSON object by shape, exactly
// as the protocol defines it: presence of "columns" means a description,
// presence of "values" means a data row, "complete":true means the
// terminal success frame, presence of "error" means the terminal failure
// frame. Anything else is InboundUnknown and must be ignored by callers for
// forward compatibility, except on the WebSocket transport where it is a
// fatal protocol violation (the WebSocket demux, not this function, applies
// that distinction).
func ClassifyInbound(data []byte) (InboundFrame, error) {
	var shape struct {
		Columns  json.RawMessage `json:"columns"`
		Values   json.RawMessage `json:"values"`
		Complete json.RawMessage `json:"complete"`
		Error    json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return InboundFrame{}, err
	}

	switch {
	case shape.Columns != nil:
		var desc DataRowDescription
		if err := json.Unmarshal(data, &desc); err != nil {
			return InboundFrame{}, err
		}
		return InboundFrame{Kind: InboundDescription, Description: desc}, nil

	case shape.Values != nil:
		var row DataRow
		if err := json.Unmarshal(data, &row); err != nil {
			return InboundFrame{}, err
		}
		return InboundFrame{Kind: InboundDataRow, Row: row}, nil

	case shape.Complete != nil:
		var c struct {
			Complete bool `json:"complete"`
		}
		if err := json.Unmarshal(data, &c); err != nil {
			return InboundFrame{}, err
		}
		if c.Complete {
			return InboundFrame{Kind: InboundComplete}, nil
		}
		return InboundFrame{Kind: InboundUnknown}, nil

	case shape.Error != nil:
		var e struct {
			Error map[string]any `json:"error"`
		}
		if err := json.Unmarshal(data, &e); err != nil {
			return InboundFrame{}, err
		}
		payload := ErrorPayload{Extra: map[string]any{}}
		for k, v := range e.Error {
			switch k {
			case "message":
				if s, ok := v.(string); ok {
					payload.Message = s
				}
			case "code":
				if s, ok := v.(string); ok {
					payload.Code = s
				}
			default:
				payload.Extra[k] = v
			}
		}
		return InboundFrame{Kind: InboundError, Error: payload}, nil

	default:
		return InboundFrame{Kind: InboundUnknown}, nil
	}
}
