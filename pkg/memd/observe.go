package memd

import (
	"encoding/binary"
	"fmt"
)

// ObserveStatus is the per-key persistence state reported by an Observe
// response, distinct from the frame-level StatusCode: Observe always
// succeeds at the protocol level and reports existence through this byte
// instead.
type ObserveStatus uint8

const (
	ObserveFound            ObserveStatus = 0x00
	ObservePersisted        ObserveStatus = 0x01
	ObserveNotFound         ObserveStatus = 0x80
	ObserveLogicalDeleted   ObserveStatus = 0x81
)

// Exists reports whether this status represents a live document.
func (s ObserveStatus) Exists() bool {
	return s == ObserveFound || s == ObservePersisted
}

// ObserveResult is one key's entry in a decoded Observe response.
type ObserveResult struct {
	VBucket uint16
	Key     string
	Status  ObserveStatus
	Cas     uint64
}

// DecodeObserveResponse parses an Observe response body: a sequence of
// (vbucket uint16, key-length uint16, key, status uint8, cas uint64)
// tuples, one per key that was queried.
func DecodeObserveResponse(body []byte) ([]ObserveResult, error) {
	var results []ObserveResult
	for off := 0; off < len(body); {
		if off+5 > len(body) {
			return nil, fmt.Errorf("%w: truncated observe entry header", ErrMalformedFrame)
		}
		vb := binary.BigEndian.Uint16(body[off : off+2])
		keyLen := int(binary.BigEndian.Uint16(body[off+2 : off+4]))
		off += 4
		if off+keyLen+9 > len(body) {
			return nil, fmt.Errorf("%w: truncated observe entry body", ErrMalformedFrame)
		}
		key := string(body[off : off+keyLen])
		off += keyLen
		status := ObserveStatus(body[off])
		off++
		cas := binary.BigEndian.Uint64(body[off : off+8])
		off += 8

		results = append(results, ObserveResult{VBucket: vb, Key: key, Status: status, Cas: cas})
	}
	return results, nil
}
