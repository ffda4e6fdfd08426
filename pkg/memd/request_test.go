package memd

import (
	"bytes"
	"testing"
)

func TestRequestEncodeRoundTrip(t *testing.T) {
	cid := uint32(7)
	req := Request{
		OpCode:  OpSet,
		Cid:     &cid,
		Key:     "doc-1",
		Extras:  SetExtras(0xcafe, 0),
		Value:   []byte(`{"v":1}`),
		Cas:     0,
		VBucket: 42,
		Opaque:  99,
	}

	frame, err := req.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	h, err := ReadHeader(bytes.NewReader(frame[:HeaderSize]))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.OpCode != OpSet {
		t.Errorf("opcode = %v, want Set", h.OpCode)
	}
	if h.VBucket != 42 {
		t.Errorf("vbucket = %d, want 42", h.VBucket)
	}
	if h.Opaque != 99 {
		t.Errorf("opaque = %d, want 99", h.Opaque)
	}

	wantKey := CollectionPrefixedKey(&cid, "doc-1")
	if int(h.KeyLength) != len(wantKey) {
		t.Errorf("key length = %d, want %d", h.KeyLength, len(wantKey))
	}

	body := frame[HeaderSize:]
	gotKey := body[h.ExtrasLength : int(h.ExtrasLength)+int(h.KeyLength)]
	if !bytes.Equal(gotKey, wantKey) {
		t.Errorf("key = %x, want %x", gotKey, wantKey)
	}
}

func TestRequestEncodeRejectsOversizedBody(t *testing.T) {
	req := Request{
		OpCode: OpSet,
		Key:    "k",
		Value:  make([]byte, MaxBodyLength+1),
	}
	if _, err := req.Encode(); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestCollectionPrefixedKeyDefaultCollection(t *testing.T) {
	key := CollectionPrefixedKey(nil, "doc")
	if string(key) != "doc" {
		t.Errorf("key = %q, want %q (no cid prefix)", key, "doc")
	}
}

func TestCollectionPrefixedKeyRoundTrip(t *testing.T) {
	cid := uint32(300) // exercises multi-byte uLEB128
	key := CollectionPrefixedKey(&cid, "doc")

	gotCid, n, ok := DecodeULEB128(key)
	if !ok {
		t.Fatal("DecodeULEB128 failed")
	}
	if gotCid != cid {
		t.Errorf("cid = %d, want %d", gotCid, cid)
	}
	if string(key[n:]) != "doc" {
		t.Errorf("remaining key = %q, want %q", key[n:], "doc")
	}
}
