package memd

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeObserveEntry(vb uint16, key string, status ObserveStatus, cas uint64) []byte {
	buf := make([]byte, 0, 4+len(key)+9)
	var tmp2 [2]byte
	binary.BigEndian.PutUint16(tmp2[:], vb)
	buf = append(buf, tmp2[:]...)
	binary.BigEndian.PutUint16(tmp2[:], uint16(len(key)))
	buf = append(buf, tmp2[:]...)
	buf = append(buf, key...)
	buf = append(buf, byte(status))
	var tmp8 [8]byte
	binary.BigEndian.PutUint64(tmp8[:], cas)
	buf = append(buf, tmp8[:]...)
	return buf
}

func TestDecodeObserveResponseSingleKey(t *testing.T) {
	body := encodeObserveEntry(12, "doc1", ObservePersisted, 0xdeadbeef)

	results, err := DecodeObserveResponse(body)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, ObserveResult{VBucket: 12, Key: "doc1", Status: ObservePersisted, Cas: 0xdeadbeef}, results[0])
}

func TestDecodeObserveResponseMultipleKeys(t *testing.T) {
	var body []byte
	body = append(body, encodeObserveEntry(1, "a", ObserveFound, 1)...)
	body = append(body, encodeObserveEntry(2, "bb", ObserveNotFound, 0)...)
	body = append(body, encodeObserveEntry(3, "ccc", ObserveLogicalDeleted, 99)...)

	results, err := DecodeObserveResponse(body)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "a", results[0].Key)
	require.Equal(t, "bb", results[1].Key)
	require.Equal(t, "ccc", results[2].Key)
	require.True(t, results[0].Status.Exists())
	require.False(t, results[1].Status.Exists())
	require.False(t, results[2].Status.Exists())
}

func TestDecodeObserveResponseEmptyBody(t *testing.T) {
	results, err := DecodeObserveResponse(nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDecodeObserveResponseTruncated(t *testing.T) {
	body := encodeObserveEntry(1, "doc1", ObserveFound, 1)

	_, err := DecodeObserveResponse(body[:len(body)-3])
	require.Error(t, err)
}

func TestObserveStatusExists(t *testing.T) {
	require.True(t, ObserveFound.Exists())
	require.True(t, ObservePersisted.Exists())
	require.False(t, ObserveNotFound.Exists())
	require.False(t, ObserveLogicalDeleted.Exists())
}
