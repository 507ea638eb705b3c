package httptransport

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"time"

	"github.com/google/uuid"

	"github.com/ppg-community/ppg-go/internal/wire"
)

// newBoundary produces a boundary of the shape the protocol requires:
// "----PPG<timestamp><random>". The random component comes from
// github.com/google/uuid rather than hand-rolled randomness so a collision
// with anything in the payload is astronomically unlikely.
func newBoundary() string {
	return fmt.Sprintf("----PPG%d%s", time.Now().UnixNano(), uuidAlnum())
}

func uuidAlnum() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}

// writeMultipartBody streams desc and extended as multipart/form-data parts
// in frame order onto w, which is typically the write end of an io.Pipe so
// the HTTP request body is sent as it is produced rather than buffered
// whole in memory.
func writeMultipartBody(w io.Writer, boundary string, desc wire.QueryDescriptor, extended []wire.ExtendedFrame) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}

	descPart, err := mw.CreatePart(partHeader(wire.URNQueryDescriptor, "application/json; profile=%q", wire.URNQueryDescriptor))
	if err != nil {
		return err
	}
	if err := json.NewEncoder(descPart).Encode(desc); err != nil {
		return err
	}

	for _, ext := range extended {
		contentType := "text/plain; charset=utf-8; profile=%q"
		if ext.Format == wire.FormatBinary {
			contentType = "application/octet-stream; profile=%q"
		}
		part, err := mw.CreatePart(partHeader(ext.URN, contentType, ext.URN))
		if err != nil {
			return err
		}
		if ext.Data != nil {
			if _, err := part.Write(ext.Data); err != nil {
				return err
			}
			continue
		}
		if ext.Reader != nil {
			// Forward the declared-length stream chunk by chunk instead of
			// buffering it, per the spec's "for HTTP, they are forwarded
			// chunk-by-chunk into the multipart stream".
			if _, err := io.CopyN(part, ext.Reader, ext.Reader.Len()); err != nil {
				return err
			}
		}
	}

	return mw.Close()
}

func partHeader(name wire.URN, contentTypeFormat string, contentTypeArgs ...any) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, string(name)))
	h.Set("Content-Type", fmt.Sprintf(contentTypeFormat, contentTypeArgs...))
	return h
}
