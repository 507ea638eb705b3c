package wire

// URN is a stable string identifier used both as a frame discriminator on
// the WebSocket wire and as a multipart form field name over HTTP.
type URN string

const (
	URNQueryProfile      URN = "urn:prisma:query"
	URNQueryDescriptor   URN = "urn:prisma:query:descriptor"
	URNParamText         URN = "urn:prisma:query:param:text"
	URNParamBinary       URN = "urn:prisma:query:param:binary"
	URNResultDescription URN = "urn:prisma:query:result:description"
	URNResultDataRow     URN = "urn:prisma:query:result:datarow"
	URNResultComplete    URN = "urn:prisma:query:result:complete"
	URNResultError       URN = "urn:prisma:query:result:error"
)

// Format distinguishes the two ways a byte payload can be tagged: text means
// the bytes are UTF-8 and round-trip as a string, binary means they are
// opaque and round-trip as base64 (inline) or raw bytes (extended).
type Format int

const (
	FormatText Format = iota
	FormatBinary
)

func (f Format) String() string {
	if f == FormatBinary {
		return "binary"
	}
	return "text"
}

// ParamURN returns the extended-frame URN that carries a parameter of the
// given format.
func (f Format) ParamURN() URN {
	if f == FormatBinary {
		return URNParamBinary
	}
	return URNParamText
}
