package memd

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the fixed length of a memcached binary protocol header:
// magic, opcode, key length, extras length, datatype, vbucket/status,
// total body length, opaque, and CAS.
const HeaderSize = 24

// Header is the parsed 24-byte frame header shared by requests and
// responses. VBucket and Status alias the same wire field: a request
// carries the target vBucket id there, a response carries the status code.
type Header struct {
	Magic         Magic
	OpCode        OpCode
	KeyLength     uint16
	ExtrasLength  uint8
	DataType      uint8
	VBucket       uint16
	Status        StatusCode
	TotalBodyLen  uint32
	Opaque        uint32
	Cas           uint64
}

// ReadHeader reads and parses the fixed 24-byte header from r.
//
// EOF on the very first byte is returned unwrapped so callers (the
// connection read loop) can distinguish a clean peer disconnect from a
// truncated-mid-frame read.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return Header{}, io.EOF
		}
		return Header{}, fmt.Errorf("memd: read header: %w", err)
	}

	h := Header{
		Magic:        Magic(buf[0]),
		OpCode:       OpCode(buf[1]),
		KeyLength:    binary.BigEndian.Uint16(buf[2:4]),
		ExtrasLength: buf[4],
		DataType:     buf[5],
		VBucket:      binary.BigEndian.Uint16(buf[6:8]),
		Status:       StatusCode(binary.BigEndian.Uint16(buf[6:8])),
		TotalBodyLen: binary.BigEndian.Uint32(buf[8:12]),
		Opaque:       binary.BigEndian.Uint32(buf[12:16]),
		Cas:          binary.BigEndian.Uint64(buf[16:24]),
	}

	if h.Magic != MagicReq && h.Magic != MagicRes {
		return Header{}, fmt.Errorf("%w: bad magic 0x%x", ErrMalformedFrame, buf[0])
	}
	return h, nil
}

// WriteTo serializes the header in place, writing VBucket for requests and
// Status for responses into the shared wire field.
func (h Header) WriteTo(w io.Writer) error {
	var buf [HeaderSize]byte
	buf[0] = byte(h.Magic)
	buf[1] = byte(h.OpCode)
	binary.BigEndian.PutUint16(buf[2:4], h.KeyLength)
	buf[4] = h.ExtrasLength
	buf[5] = h.DataType
	if h.Magic == MagicReq {
		binary.BigEndian.PutUint16(buf[6:8], h.VBucket)
	} else {
		binary.BigEndian.PutUint16(buf[6:8], uint16(h.Status))
	}
	binary.BigEndian.PutUint32(buf[8:12], h.TotalBodyLen)
	binary.BigEndian.PutUint32(buf[12:16], h.Opaque)
	binary.BigEndian.PutUint64(buf[16:24], h.Cas)

	_, err := w.Write(buf[:])
	if err != nil {
		return fmt.Errorf("memd: write header: %w", err)
	}
	return nil
}

// ErrMalformedFrame is returned (optionally wrapped) by the codec when a
// frame cannot be parsed at all. It is a client-side failure, distinct from
// any status code the server could report.
var ErrMalformedFrame = fmt.Errorf("memd: malformed frame")
