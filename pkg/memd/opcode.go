// Package memd implements the memcached binary protocol used by Couchbase
// Server for key/value traffic: request/response framing, the opcode and
// status enumerations, per-opcode extras layout, and sub-document
// composition.
package memd

// Magic identifies whether a 24-byte header begins a request or a response.
type Magic uint8

const (
	// MagicReq marks a client request header (0x80).
	MagicReq Magic = 0x80
	// MagicRes marks a server response header (0x81).
	MagicRes Magic = 0x81
)

// OpCode is the closed enumeration of memcached-binary-protocol operations
// this engine knows how to frame and decode.
type OpCode uint8

const (
	OpGet          OpCode = 0x00
	OpSet          OpCode = 0x01
	OpAdd          OpCode = 0x02
	OpReplace      OpCode = 0x03
	OpDelete       OpCode = 0x04
	OpIncrement    OpCode = 0x05
	OpDecrement    OpCode = 0x06
	OpAppend       OpCode = 0x0e
	OpPrepend      OpCode = 0x0f
	OpTouch        OpCode = 0x1c
	OpGetAndTouch  OpCode = 0x1d
	OpGetAndLock   OpCode = 0x94
	OpUnlock       OpCode = 0x95
	OpObserve      OpCode = 0x92
	OpGetCidByName OpCode = 0xbb

	OpSASLListMechs OpCode = 0x20
	OpSASLAuth      OpCode = 0x21
	OpSASLStep      OpCode = 0x22
	OpHello         OpCode = 0x1f

	// Sub-document family (0xc5-0xd1).
	OpSubGet       OpCode = 0xc5
	OpSubExists    OpCode = 0xc6
	OpSubDictAdd   OpCode = 0xc7
	OpSubDictSet   OpCode = 0xc8
	OpSubDelete    OpCode = 0xc9
	OpSubReplace   OpCode = 0xca
	OpSubArrPushL  OpCode = 0xcb
	OpSubArrPushF  OpCode = 0xcc
	OpSubArrInsert OpCode = 0xcd
	OpSubArrAddU   OpCode = 0xce
	OpSubCounter   OpCode = 0xcf
	OpSubMultiLoo  OpCode = 0xd0
	OpSubMultiMut  OpCode = 0xd1

	// Durability-aware (SYNC_WRITE) variants.
	OpSetWithMeta OpCode = 0xa2
)

// Idempotent reports whether repeating this opcode has no side effect beyond
// the first successful application — true for pure reads and CID lookups.
func (op OpCode) Idempotent() bool {
	switch op {
	case OpGet, OpGetAndTouch, OpGetAndLock, OpObserve, OpGetCidByName,
		OpSubGet, OpSubExists, OpSubMultiLoo:
		return true
	default:
		return false
	}
}

// IsSubDoc reports whether the opcode belongs to the sub-document family.
func (op OpCode) IsSubDoc() bool {
	switch op {
	case OpSubGet, OpSubExists, OpSubDictAdd, OpSubDictSet, OpSubDelete,
		OpSubReplace, OpSubArrPushL, OpSubArrPushF, OpSubArrInsert,
		OpSubArrAddU, OpSubCounter, OpSubMultiLoo, OpSubMultiMut:
		return true
	default:
		return false
	}
}

// IsMultiSubDoc reports whether the opcode is the multi-spec lookup/mutate
// envelope rather than a single-spec sub-doc operation.
func (op OpCode) IsMultiSubDoc() bool {
	return op == OpSubMultiLoo || op == OpSubMultiMut
}

func (op OpCode) String() string {
	switch op {
	case OpGet:
		return "Get"
	case OpSet:
		return "Set"
	case OpAdd:
		return "Add"
	case OpReplace:
		return "Replace"
	case OpDelete:
		return "Delete"
	case OpIncrement:
		return "Increment"
	case OpDecrement:
		return "Decrement"
	case OpAppend:
		return "Append"
	case OpPrepend:
		return "Prepend"
	case OpTouch:
		return "Touch"
	case OpGetAndTouch:
		return "GetAndTouch"
	case OpGetAndLock:
		return "GetAndLock"
	case OpUnlock:
		return "Unlock"
	case OpObserve:
		return "Observe"
	case OpGetCidByName:
		return "GetCidByName"
	case OpSASLListMechs:
		return "SASLListMechs"
	case OpSASLAuth:
		return "SASLAuth"
	case OpSASLStep:
		return "SASLStep"
	case OpHello:
		return "Hello"
	case OpSubMultiLoo:
		return "SubDocLookup"
	case OpSubMultiMut:
		return "SubDocMutation"
	default:
		if op.IsSubDoc() {
			return "SubDoc"
		}
		return "Unknown"
	}
}

// DurabilityLevel is a hint describing the durability requirement for a
// mutation; 0 means "no durability requirement beyond the active vBucket".
type DurabilityLevel uint8

const (
	DurabilityNone DurabilityLevel = iota
	DurabilityMajority
	DurabilityMajorityAndPersistActive
	DurabilityPersistToMajority
)
