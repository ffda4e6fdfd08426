package memd

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MaxBodyLength is the negotiated maximum frame body size. The codec
// refuses to emit a frame whose total body exceeds this.
const MaxBodyLength = 20 * 1024 * 1024 // 20MiB, matches the server-side default.

// Request is the wire-level representation of one outgoing operation.
// Higher layers (the KV dispatcher) build a Request from an Operation and
// hand it to a Connection for framing.
type Request struct {
	OpCode  OpCode
	Cid     *uint32 // nil => default collection, no cid prefix
	Key     string
	Extras  []byte
	Value   []byte
	Cas     uint64
	VBucket uint16
	Opaque  uint32 // assigned by the connection at dispatch time
}

// Encode serializes req into the wire frame: header, extras, key, value.
// It returns ErrFrameTooLarge if the resulting body would exceed
// MaxBodyLength.
func (req Request) Encode() ([]byte, error) {
	key := CollectionPrefixedKey(req.Cid, req.Key)

	bodyLen := len(req.Extras) + len(key) + len(req.Value)
	if bodyLen > MaxBodyLength {
		return nil, fmt.Errorf("%w: body %d exceeds max %d", ErrFrameTooLarge, bodyLen, MaxBodyLength)
	}
	if len(key) > 0xffff {
		return nil, fmt.Errorf("%w: key length %d exceeds uint16", ErrFrameTooLarge, len(key))
	}
	if len(req.Extras) > 0xff {
		return nil, fmt.Errorf("%w: extras length %d exceeds uint8", ErrFrameTooLarge, len(req.Extras))
	}

	h := Header{
		Magic:        MagicReq,
		OpCode:       req.OpCode,
		KeyLength:    uint16(len(key)),
		ExtrasLength: uint8(len(req.Extras)),
		DataType:     0,
		VBucket:      req.VBucket,
		TotalBodyLen: uint32(bodyLen),
		Opaque:       req.Opaque,
		Cas:          req.Cas,
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+bodyLen))
	if err := h.WriteTo(buf); err != nil {
		return nil, err
	}
	buf.Write(req.Extras)
	buf.Write(key)
	buf.Write(req.Value)
	return buf.Bytes(), nil
}

// ErrFrameTooLarge is returned when a request would exceed the negotiated
// maximum frame body size.
var ErrFrameTooLarge = fmt.Errorf("memd: frame exceeds maximum body length")

// --- Opcode-specific extras builders -------------------------------------

// SetExtras builds the extras for Set/Add/Replace: flags (4 bytes) followed
// by expiry (4 bytes).
func SetExtras(flags uint32, expiry uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], flags)
	binary.BigEndian.PutUint32(buf[4:8], expiry)
	return buf
}

// CounterExtras builds the extras for Increment/Decrement: delta (8 bytes),
// initial value (8 bytes), expiry (4 bytes).
func CounterExtras(delta, initial uint64, expiry uint32) []byte {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint64(buf[0:8], delta)
	binary.BigEndian.PutUint64(buf[8:16], initial)
	binary.BigEndian.PutUint32(buf[16:20], expiry)
	return buf
}

// TouchExtras builds the extras for Touch/GetAndTouch: expiry (4 bytes).
func TouchExtras(expiry uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, expiry)
	return buf
}

// GetAndLockExtras builds the extras for GetAndLock: lock time in seconds
// (4 bytes).
func GetAndLockExtras(lockTimeSeconds uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, lockTimeSeconds)
	return buf
}

// ObserveValue builds the value payload for an Observe request: a sequence
// of (vbucket uint16, key-length uint16, key) tuples.
func ObserveValue(vbucket uint16, key string) []byte {
	buf := make([]byte, 0, 4+len(key))
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], vbucket)
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint16(tmp[:], uint16(len(key)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, key...)
	return buf
}
