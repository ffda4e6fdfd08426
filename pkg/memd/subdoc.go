package memd

import (
	"encoding/binary"
	"fmt"
)

// MaxSubDocSpecs is the maximum number of OperationSpec entries that fit in
// one lookup-in/mutate-in envelope.
const MaxSubDocSpecs = 16

// PathFlag are per-spec modifiers (xattr access, create-parents, …).
type PathFlag uint8

const (
	PathFlagNone    PathFlag = 0x00
	PathFlagXattr   PathFlag = 0x04
	PathFlagExpandMacros PathFlag = 0x10
)

// OperationSpec is one entry of a lookup-in/mutate-in envelope: an
// in-document path operation with an optional value (mutations only). Its
// OpCode is the per-spec sub-document opcode (distinct from the outer
// envelope OpCode, which is always OpSubMultiLoo/OpSubMultiMut for a
// multi-spec request).
type OperationSpec struct {
	OpCode OpCode
	Flags  PathFlag
	Path   string
	Value  []byte // nil for lookups and value-less mutations (e.g. Delete)
}

// EncodeSpecs serializes an ordered sequence of specs for a multi-spec
// lookup/mutate envelope: each spec as
// (op-code, flags, path-length uint16, path, [value-length uint32, value]).
//
// Returns ErrTooManySpecs if len(specs) > MaxSubDocSpecs; callers (the
// dispatcher) are expected to substitute a whole-document fetch before
// reaching this point rather than rely on this error.
func EncodeSpecs(specs []OperationSpec, isMutation bool) ([]byte, error) {
	if len(specs) > MaxSubDocSpecs {
		return nil, fmt.Errorf("%w: %d specs exceeds max %d", ErrTooManySpecs, len(specs), MaxSubDocSpecs)
	}

	var buf []byte
	for _, s := range specs {
		entry := make([]byte, 4, 4+len(s.Path))
		entry[0] = byte(s.OpCode)
		entry[1] = byte(s.Flags)
		binary.BigEndian.PutUint16(entry[2:4], uint16(len(s.Path)))
		entry = append(entry, s.Path...)

		if isMutation {
			var valLen [4]byte
			binary.BigEndian.PutUint32(valLen[:], uint32(len(s.Value)))
			entry = append(entry, valLen[:]...)
			entry = append(entry, s.Value...)
		}
		buf = append(buf, entry...)
	}
	return buf, nil
}

// ErrTooManySpecs is returned by EncodeSpecs when the caller requested more
// paths than the protocol allows in one envelope.
var ErrTooManySpecs = fmt.Errorf("memd: too many sub-document specs")

// SpecResult is one entry of a decoded multi-lookup/mutate response: a
// per-path status and payload. Partial failure is represented per-spec; the
// outer response status reflects whether the envelope itself succeeded.
type SpecResult struct {
	Status  StatusCode
	Value   []byte
}

// DecodeSpecResults parses the parallel sequence of (status, length,
// payload) entries making up a multi-lookup/mutate response body.
func DecodeSpecResults(body []byte) ([]SpecResult, error) {
	var results []SpecResult
	for off := 0; off < len(body); {
		if off+6 > len(body) {
			return nil, fmt.Errorf("%w: truncated sub-doc result header", ErrMalformedFrame)
		}
		status := StatusCode(binary.BigEndian.Uint16(body[off : off+2]))
		length := binary.BigEndian.Uint32(body[off+2 : off+6])
		off += 6

		if off+int(length) > len(body) {
			return nil, fmt.Errorf("%w: truncated sub-doc result value", ErrMalformedFrame)
		}
		results = append(results, SpecResult{Status: status, Value: body[off : off+int(length)]})
		off += int(length)
	}
	return results, nil
}

// DocumentExptimeSpec returns the xattr spec used to fetch
// `$document.exptime` alongside a projected get — used when the caller's
// options request include_expiry.
func DocumentExptimeSpec() OperationSpec {
	return OperationSpec{
		OpCode: OpSubGet,
		Flags:  PathFlagXattr,
		Path:   "$document.exptime",
	}
}
