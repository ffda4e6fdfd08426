// Package transcoder defines the pluggable document serialization
// collaborator: how Go values become wire bytes (plus protocol flags/
// datatype) and back.
package transcoder

import "encoding/json"

// Datatype bits, carried in the frame header's DataType field.
const (
	DatatypeRaw  uint8 = 0x00
	DatatypeJSON uint8 = 0x01
)

// Flags mirrors the legacy "common flags" encoding used to tag a stored
// value's format for interop with other SDKs.
const (
	FlagJSON uint32 = 0x02000000
)

// Transcoder converts between Go values and the (bytes, flags, datatype)
// triple stored on the wire.
type Transcoder interface {
	Encode(v any) (value []byte, flags uint32, datatype uint8, err error)
	Decode(value []byte, flags uint32, datatype uint8, out any) error
}

// JSONTranscoder is the default Transcoder: every value is JSON-encoded,
// matching the SDK's document-oriented default.
type JSONTranscoder struct{}

// Encode implements Transcoder.
func (JSONTranscoder) Encode(v any) ([]byte, uint32, uint8, error) {
	if raw, ok := v.([]byte); ok {
		return raw, FlagJSON, DatatypeJSON, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, 0, 0, err
	}
	return b, FlagJSON, DatatypeJSON, nil
}

// Decode implements Transcoder. out must be a pointer, as with
// json.Unmarshal, unless it is *[]byte in which case the raw bytes are
// returned unmodified.
func (JSONTranscoder) Decode(value []byte, flags uint32, datatype uint8, out any) error {
	if raw, ok := out.(*[]byte); ok {
		*raw = append([]byte(nil), value...)
		return nil
	}
	return json.Unmarshal(value, out)
}

// RawBinaryTranscoder passes values through unmodified, for callers
// managing their own serialization (e.g. storing pre-encoded payloads).
type RawBinaryTranscoder struct{}

// Encode implements Transcoder.
func (RawBinaryTranscoder) Encode(v any) ([]byte, uint32, uint8, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, 0, 0, errNotBytes
	}
	return b, 0, DatatypeRaw, nil
}

// Decode implements Transcoder.
func (RawBinaryTranscoder) Decode(value []byte, flags uint32, datatype uint8, out any) error {
	dst, ok := out.(*[]byte)
	if !ok {
		return errNotBytes
	}
	*dst = append([]byte(nil), value...)
	return nil
}

var errNotBytes = transcoderError("transcoder: RawBinaryTranscoder requires a []byte value")

type transcoderError string

func (e transcoderError) Error() string { return string(e) }
