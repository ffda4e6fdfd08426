package memd

import (
	"encoding/binary"
	"testing"
)

func TestDecodeResponseSplitsExtrasKeyValue(t *testing.T) {
	h := Header{
		Magic:        MagicRes,
		OpCode:       OpGet,
		KeyLength:    0,
		ExtrasLength: 4,
		Status:       StatusSuccess,
	}
	body := append([]byte{0, 0, 0xca, 0xfe}, []byte(`{"v":1}`)...)

	resp, err := DecodeResponse(h, body)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if len(resp.Extras) != 4 {
		t.Errorf("extras len = %d, want 4", len(resp.Extras))
	}
	if string(resp.Value) != `{"v":1}` {
		t.Errorf("value = %q", resp.Value)
	}
	if !resp.IsSuccess() {
		t.Error("expected success")
	}
}

func TestGetCidByNameDecodesCidAtOffset(t *testing.T) {
	// Build a GetCidByName value where the cid occupies the trailing 4
	// bytes, per scenario 4 of the spec (manifest uid + scope id precede
	// it for a collection-manifest-aware server).
	value := make([]byte, 12)
	binary.BigEndian.PutUint32(value[8:12], 123)

	h := Header{OpCode: OpGetCidByName, Status: StatusSuccess}
	resp, err := DecodeResponse(h, value)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}

	cid, err := resp.CollectionID()
	if err != nil {
		t.Fatalf("CollectionID: %v", err)
	}
	if cid != 123 {
		t.Errorf("cid = %d, want 123", cid)
	}
}

func TestCounterValueDecodesBigEndianUint64(t *testing.T) {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, 42)

	h := Header{OpCode: OpIncrement, Status: StatusSuccess}
	resp, err := DecodeResponse(h, value)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}

	got, err := resp.CounterValue()
	if err != nil {
		t.Fatalf("CounterValue: %v", err)
	}
	if got != 42 {
		t.Errorf("counter = %d, want 42", got)
	}
}

func TestDecodeResponseRejectsTruncatedBody(t *testing.T) {
	h := Header{ExtrasLength: 10, KeyLength: 10}
	if _, err := DecodeResponse(h, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated body")
	}
}
