package memd

import (
	"encoding/binary"
	"fmt"
)

// Response is the decoded result of one completed operation: the header
// fields a caller needs plus the raw extras/key/value slices. GetValue
// interprets Value per opcode.
type Response struct {
	Header
	Extras []byte
	Key    []byte
	Value  []byte
}

// DecodeResponse parses the already-read body (extras+key+value, of length
// h.TotalBodyLen) into a Response. The codec calls ReadExtras-equivalent
// splitting here; opcode-specific interpretation happens in GetValue.
func DecodeResponse(h Header, body []byte) (Response, error) {
	extrasLen := int(h.ExtrasLength)
	keyLen := int(h.KeyLength)
	if extrasLen+keyLen > len(body) {
		return Response{}, fmt.Errorf("%w: extras+key %d exceeds body %d", ErrMalformedFrame, extrasLen+keyLen, len(body))
	}

	resp := Response{
		Header: h,
		Extras: body[:extrasLen],
		Key:    body[extrasLen : extrasLen+keyLen],
		Value:  body[extrasLen+keyLen:],
	}
	return resp, nil
}

// GetValue interprets resp.Value per opcode, applying the decode contract
// each opcode defines. Most opcodes return the value unchanged; a handful
// (counters, GetCidByName) have a fixed binary payload layout.
func (resp Response) GetValue() ([]byte, error) {
	switch resp.OpCode {
	case OpIncrement, OpDecrement:
		if len(resp.Value) < 8 {
			return nil, fmt.Errorf("%w: counter value too short (%d bytes)", ErrMalformedFrame, len(resp.Value))
		}
		return resp.Value[:8], nil
	case OpGetCidByName:
		// The whole value is returned; it must be long enough to hold the
		// 4-byte big-endian cid that CollectionID reads from its tail.
		if len(resp.Value) < 4 {
			return nil, fmt.Errorf("%w: GetCidByName value too short", ErrMalformedFrame)
		}
		return resp.Value, nil
	default:
		return resp.Value, nil
	}
}

// CounterValue decodes the 8-byte big-endian post-operation value carried
// by a successful Increment/Decrement response.
func (resp Response) CounterValue() (uint64, error) {
	v, err := resp.GetValue()
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// CollectionID decodes the 4-byte big-endian collection id from a
// GetCidByName response value: the last 4 bytes of Value.
func (resp Response) CollectionID() (uint32, error) {
	v, err := resp.GetValue()
	if err != nil {
		return 0, err
	}
	if len(v) < 4 {
		return 0, fmt.Errorf("%w: GetCidByName value too short for cid", ErrMalformedFrame)
	}
	// cid occupies the last 4 bytes of the value (manifest uid + scope id
	// precede it for collection-manifest-aware servers).
	off := len(v) - 4
	return binary.BigEndian.Uint32(v[off : off+4]), nil
}

// IsSuccess reports whether the response status indicates success.
func (resp Response) IsSuccess() bool {
	return resp.Status == StatusSuccess
}
