// Package kverrors provides the error taxonomy surfaced by the KV
// dispatcher: a small closed set of semantic ErrorKind values, each backed
// by one or more protocol status codes, plus the KVError type that carries
// the kind, the raw status, the originating opcode, and the key as given.
package kverrors

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

// ErrorKind is the semantic classification of a failed KV operation.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindKeyNotFound
	KindKeyExists
	KindValueTooLarge
	KindInvalidArgument
	KindTemporaryFailure
	KindTimeout
	KindLocked
	KindDurability
	KindAuth
	KindInternalOrRetryable
	KindPathNotFound
	KindPathMismatch
	KindPathInvalid
	KindPathTooBig
	KindSubdocGeneric
	KindTransport
	KindClient
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindKeyNotFound:
		return "KeyNotFound"
	case KindKeyExists:
		return "KeyExists"
	case KindValueTooLarge:
		return "ValueTooLarge"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindTemporaryFailure:
		return "TemporaryFailure"
	case KindTimeout:
		return "Timeout"
	case KindLocked:
		return "Locked"
	case KindDurability:
		return "Durability"
	case KindAuth:
		return "Auth"
	case KindInternalOrRetryable:
		return "InternalOrRetryable"
	case KindPathNotFound:
		return "PathNotFound"
	case KindPathMismatch:
		return "PathMismatch"
	case KindPathInvalid:
		return "PathInvalid"
	case KindPathTooBig:
		return "PathTooBig"
	case KindSubdocGeneric:
		return "SubdocGeneric"
	case KindTransport:
		return "Transport"
	case KindClient:
		return "Client"
	case KindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// KVError is the error type returned by every public KV operation that
// fails. It always carries Kind and the raw status it was derived from
// (zero for Transport/Timeout/Cancelled, which have no wire status, and
// StatusClientDecodeFailure for Client).
type KVError struct {
	Kind   ErrorKind
	Status memd.StatusCode
	OpCode memd.OpCode
	Key    string // caller is responsible for redaction before logging
	Cause  error
}

func (e *KVError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (opcode=%s, status=0x%x): %v", e.Kind, e.Kind, e.OpCode, uint16(e.Status), e.Cause)
	}
	return fmt.Sprintf("%s (opcode=%s, status=0x%x)", e.Kind, e.OpCode, uint16(e.Status))
}

func (e *KVError) Unwrap() error { return e.Cause }

// Is reports whether target is a *KVError with the same Kind, so callers
// can write `errors.Is(err, kverrors.New(kverrors.KindKeyNotFound, ...))`
// style checks, or more commonly `kverrors.Kind(err) == kverrors.KindKeyNotFound`.
func (e *KVError) Is(target error) bool {
	var other *KVError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs a KVError of the given kind for the given opcode/key,
// wrapping cause (which may be nil).
func New(kind ErrorKind, op memd.OpCode, key string, status memd.StatusCode, cause error) *KVError {
	return &KVError{Kind: kind, Status: status, OpCode: op, Key: key, Cause: cause}
}

// Kind extracts the ErrorKind from err if it is (or wraps) a *KVError,
// returning KindUnknown otherwise.
func Kind(err error) ErrorKind {
	var kv *KVError
	if errors.As(err, &kv) {
		return kv.Kind
	}
	return KindUnknown
}

// statusKinds maps each protocol status this engine recognizes to its
// semantic kind, per the taxonomy table.
var statusKinds = map[memd.StatusCode]ErrorKind{
	memd.StatusKeyNotFound:      KindKeyNotFound,
	memd.StatusKeyExists:        KindKeyExists,
	memd.StatusValueTooLarge:    KindValueTooLarge,
	memd.StatusInvalidArguments: KindInvalidArgument,

	memd.StatusTemporaryFailure: KindTemporaryFailure,
	memd.StatusOutOfMemory:      KindTemporaryFailure,
	memd.StatusBusy:             KindTemporaryFailure,

	memd.StatusLocked: KindLocked,

	memd.StatusDocumentMutationLost:     KindDurability,
	memd.StatusDocumentMutationDetected: KindDurability,
	memd.StatusNoReplicasFound:          KindDurability,
	memd.StatusDurabilityInvalidLevel:   KindDurability,
	memd.StatusDurabilityImpossible:     KindDurability,
	memd.StatusSyncWriteInProgress:      KindDurability,
	memd.StatusSyncWriteAmbiguous:       KindDurability,

	memd.StatusEAccess:   KindAuth,
	memd.StatusAuthError: KindAuth,

	memd.StatusRollback:          KindInternalOrRetryable,
	memd.StatusNotMyVBucket:      KindInternalOrRetryable,
	memd.StatusNoBucket:          KindInternalOrRetryable,
	memd.StatusNotInitialized:    KindInternalOrRetryable,
	memd.StatusNotSupported:      KindInternalOrRetryable,
	memd.StatusUnknownCommand:    KindInternalOrRetryable,
	memd.StatusInternalError:     KindInternalOrRetryable,
	memd.StatusUnknownCollection: KindInternalOrRetryable,

	memd.StatusSubDocPathNotFound: KindPathNotFound,
	memd.StatusSubDocPathMismatch: KindPathMismatch,
	memd.StatusSubDocPathInvalid:  KindPathInvalid,
	memd.StatusSubDocPathTooBig:   KindPathTooBig,

	memd.StatusSubDocDocTooDeep:      KindSubdocGeneric,
	memd.StatusSubDocValueCantInsert: KindSubdocGeneric,
	memd.StatusSubDocDocNotJSON:      KindSubdocGeneric,
	memd.StatusSubDocNumRange:        KindSubdocGeneric,
	memd.StatusSubDocDeltaRange:      KindSubdocGeneric,
	memd.StatusSubDocPathExists:      KindSubdocGeneric,
	memd.StatusSubDocValueTooDeep:    KindSubdocGeneric,
	memd.StatusSubDocInvalidCombo:    KindSubdocGeneric,
	memd.StatusSubDocMultiPathFail:   KindSubdocGeneric,

	memd.StatusClientDecodeFailure: KindClient,
}

// FromStatus maps a raw protocol status code to its semantic ErrorKind and
// constructs the corresponding KVError. Unrecognized statuses (including
// the documented-ambiguous NodeUnavailable/Failure codes, which this
// engine does not assign distinct wire values to) fall back to
// KindInternalOrRetryable per the Open Questions decision in SPEC_FULL.md.
func FromStatus(op memd.OpCode, key string, status memd.StatusCode) *KVError {
	kind, ok := statusKinds[status]
	if !ok {
		kind = KindInternalOrRetryable
	}
	return New(kind, op, key, status, nil)
}

// NewTransport wraps a connection-level failure (dead connection, I/O
// error) as a Transport error.
func NewTransport(op memd.OpCode, key string, cause error) *KVError {
	return New(KindTransport, op, key, 0, cause)
}

// NewTimeout wraps a context-deadline expiry as a Timeout error, distinct
// from explicit caller cancellation.
func NewTimeout(op memd.OpCode, key string) *KVError {
	return New(KindTimeout, op, key, 0, nil)
}

// NewCancelled wraps explicit caller cancellation, distinct from Timeout.
func NewCancelled(op memd.OpCode, key string, cause error) *KVError {
	return New(KindCancelled, op, key, 0, cause)
}

// FromContextErr classifies a ctx.Done() wakeup as Timeout or Cancelled:
// a context whose deadline expired is a Timeout, distinct from explicit
// caller cancellation (context.Canceled, or a parent context cancelled for
// some other reason). Call sites that select on ctx.Done() use this instead
// of assuming every wakeup is a cancellation.
func FromContextErr(op memd.OpCode, key string, err error) *KVError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(op, key)
	}
	return NewCancelled(op, key, err)
}

// NewClient wraps a local decode failure as a Client error.
func NewClient(op memd.OpCode, key string, cause error) *KVError {
	return New(KindClient, op, key, memd.StatusClientDecodeFailure, cause)
}

// RequiresConfigRefresh reports whether status indicates the request landed
// on the wrong node for its vBucket and the caller should refresh its
// cluster map before retrying, per the propagation policy.
func RequiresConfigRefresh(status memd.StatusCode) bool {
	return status == memd.StatusNotMyVBucket
}

// RequiresCidRefresh reports whether status indicates the request's cached
// collection id is stale and must be re-resolved (via a fresh GetCidByName)
// before the dispatcher retries.
func RequiresCidRefresh(status memd.StatusCode) bool {
	return status == memd.StatusUnknownCollection
}
