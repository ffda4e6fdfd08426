package transcoder

import "testing"

type sample struct {
	Name string `json:"name"`
}

func TestJSONTranscoderRoundTrip(t *testing.T) {
	tc := JSONTranscoder{}

	value, flags, datatype, err := tc.Encode(sample{Name: "alice"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if datatype != DatatypeJSON {
		t.Errorf("datatype = %d, want %d", datatype, DatatypeJSON)
	}
	if flags != FlagJSON {
		t.Errorf("flags = %#x, want %#x", flags, FlagJSON)
	}

	var out sample
	if err := tc.Decode(value, flags, datatype, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != "alice" {
		t.Errorf("decoded name = %q, want alice", out.Name)
	}
}

func TestJSONTranscoderPassesRawBytesThrough(t *testing.T) {
	tc := JSONTranscoder{}
	raw := []byte(`{"already":"encoded"}`)

	value, _, _, err := tc.Encode(raw)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(value) != string(raw) {
		t.Errorf("Encode([]byte) = %q, want passthrough %q", value, raw)
	}
}

func TestRawBinaryTranscoderRejectsNonBytes(t *testing.T) {
	tc := RawBinaryTranscoder{}
	if _, _, _, err := tc.Encode(sample{Name: "x"}); err == nil {
		t.Fatal("expected error encoding a non-[]byte value")
	}
}

func TestRawBinaryTranscoderRoundTrip(t *testing.T) {
	tc := RawBinaryTranscoder{}
	in := []byte{1, 2, 3}

	value, _, datatype, err := tc.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if datatype != DatatypeRaw {
		t.Errorf("datatype = %d, want %d", datatype, DatatypeRaw)
	}

	var out []byte
	if err := tc.Decode(value, 0, datatype, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(out) != string(in) {
		t.Errorf("decoded = %v, want %v", out, in)
	}
}
