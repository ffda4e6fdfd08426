package kverrors

import (
	"errors"
	"testing"

	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

func TestFromStatusMapsKnownCodes(t *testing.T) {
	tests := []struct {
		name   string
		status memd.StatusCode
		want   ErrorKind
	}{
		{"key not found", memd.StatusKeyNotFound, KindKeyNotFound},
		{"key exists", memd.StatusKeyExists, KindKeyExists},
		{"value too large", memd.StatusValueTooLarge, KindValueTooLarge},
		{"temp failure", memd.StatusTemporaryFailure, KindTemporaryFailure},
		{"out of memory maps to temp failure", memd.StatusOutOfMemory, KindTemporaryFailure},
		{"busy maps to temp failure", memd.StatusBusy, KindTemporaryFailure},
		{"locked", memd.StatusLocked, KindLocked},
		{"sync write ambiguous is durability", memd.StatusSyncWriteAmbiguous, KindDurability},
		{"eaccess is auth", memd.StatusEAccess, KindAuth},
		{"not my vbucket is retryable", memd.StatusNotMyVBucket, KindInternalOrRetryable},
		{"subdoc path not found", memd.StatusSubDocPathNotFound, KindPathNotFound},
		{"subdoc doc too deep is generic", memd.StatusSubDocDocTooDeep, KindSubdocGeneric},
		{"unknown status falls back to retryable", memd.StatusCode(0x9999), KindInternalOrRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus(memd.OpGet, "k", tt.status)
			if err.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.want)
			}
			if Kind(err) != tt.want {
				t.Errorf("kverrors.Kind(err) = %v, want %v", Kind(err), tt.want)
			}
		})
	}
}

func TestKindOfNonKVErrorIsUnknown(t *testing.T) {
	if got := Kind(errors.New("boom")); got != KindUnknown {
		t.Errorf("Kind = %v, want KindUnknown", got)
	}
}

func TestKVErrorIsMatchesSameKindOnly(t *testing.T) {
	a := New(KindTimeout, memd.OpGet, "k1", 0, nil)
	b := New(KindTimeout, memd.OpSet, "k2", 0, nil)
	c := New(KindTransport, memd.OpGet, "k1", 0, nil)

	if !errors.Is(a, b) {
		t.Error("expected same-kind errors to match via errors.Is")
	}
	if errors.Is(a, c) {
		t.Error("expected different-kind errors not to match")
	}
}

func TestRequiresConfigRefresh(t *testing.T) {
	if !RequiresConfigRefresh(memd.StatusNotMyVBucket) {
		t.Error("expected NotMyVBucket to require a config refresh")
	}
	if RequiresConfigRefresh(memd.StatusKeyNotFound) {
		t.Error("did not expect KeyNotFound to require a config refresh")
	}
}

func TestNewTransportWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransport(memd.OpGet, "k", cause)
	if err.Kind != KindTransport {
		t.Errorf("Kind = %v, want KindTransport", err.Kind)
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the original cause")
	}
}
