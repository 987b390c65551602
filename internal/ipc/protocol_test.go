package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	msg, err := Encode(MsgSetOpacity, 42, &OpacityRequest{Handle: 0xBEEF, Percent: 40})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))
	assert.Equal(t, HeaderSize+len(msg.Payload), buf.Len())

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgSetOpacity, got.Header.Type)
	assert.Equal(t, uint32(42), got.Header.RequestID)

	var req OpacityRequest
	require.NoError(t, got.Decode(&req))
	assert.Equal(t, uint64(0xBEEF), req.Handle)
	assert.Equal(t, 40, req.Percent)
}

func TestEmptyPayload(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))
	assert.Equal(t, HeaderSize, buf.Len())

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgPing, got.Header.Type)
	assert.Empty(t, got.Payload)
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	raw := make([]byte, HeaderSize)
	raw[0] = 0xDE
	raw[1] = 0xAD
	_, err := ReadHeader(bytes.NewReader(raw))
	assert.ErrorContains(t, err, "invalid magic")
}

func TestReadHeaderRejectsFutureVersion(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)
	msg.Header.Version = ProtocolVersion + 1

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))
	_, err := ReadHeader(&buf)
	assert.ErrorContains(t, err, "unsupported protocol version")
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	h := Header{
		Magic:   ProtocolMagic,
		Version: ProtocolVersion,
		Type:    MsgPing,
		Length:  maxPayload + 1,
	}
	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))
	_, err := ReadMessage(&buf)
	assert.ErrorContains(t, err, "payload too large")
}
