package httpproto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFrame(t *testing.T, fut interface {
	Done() bool
}) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !fut.Done() {
		if time.Now().After(deadline) {
			t.Fatal("frame never parsed")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestReadWebSocketFrame_MaskedBinaryFrame is spec.md §8's literal scenario
// 3: a masked binary frame carrying "hey mister" under mask "orin".
func TestReadWebSocketFrame_MaskedBinaryFrame(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)

	payload := []byte("hey mister")
	mask := []byte("orin")
	masked := append([]byte(nil), payload...)
	unmask(masked, mask)

	wire := []byte{0x82, 0x8A}
	wire = append(wire, mask...)
	wire = append(wire, masked...)

	fut := ReadWebSocketFrame(l, raw)
	raw.AddReceivedChunk(wire)

	waitFrame(t, fut)
	frame, err := fut.Result()
	require.NoError(t, err)
	assert.True(t, frame.Fin)
	assert.Equal(t, OpBinary, frame.Opcode)
	assert.True(t, frame.Masked)
	assert.Equal(t, "hey mister", string(frame.Payload))
}

func TestReadWebSocketFrame_ExtendedLength16(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)

	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}

	wire := EncodeWebSocketFrame(OpBinary, payload, nil)
	fut := ReadWebSocketFrame(l, raw)
	raw.AddReceivedChunk(wire)

	waitFrame(t, fut)
	frame, err := fut.Result()
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Payload)
}

func TestReadWebSocketFrame_ReservedBitsRejected(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadWebSocketFrame(l, raw)

	raw.AddReceivedChunk([]byte{0xC2, 0x00})

	waitFrame(t, fut)
	_, err := fut.Result()
	assert.ErrorIs(t, err, ErrReservedBitsSet)
}

func TestReadWebSocketFrame_InvalidOpcodeRejected(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadWebSocketFrame(l, raw)

	raw.AddReceivedChunk([]byte{0x83, 0x00})

	waitFrame(t, fut)
	_, err := fut.Result()
	assert.ErrorIs(t, err, ErrInvalidOpcode)
}

func TestReadWebSocketFrame_FragmentedControlFrameRejected(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadWebSocketFrame(l, raw)

	// FIN bit (0x80) unset on a ping (opcode 0x9).
	raw.AddReceivedChunk([]byte{0x09, 0x00})

	waitFrame(t, fut)
	_, err := fut.Result()
	assert.ErrorIs(t, err, ErrControlFrameFragmented)
}

func TestReadWebSocketFrame_OversizedControlFrameRejected(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)
	fut := ReadWebSocketFrame(l, raw)

	raw.AddReceivedChunk([]byte{0x89, 126, 0, 200})
	raw.AddReceivedChunk(make([]byte, 200))

	waitFrame(t, fut)
	_, err := fut.Result()
	assert.ErrorIs(t, err, ErrControlFrameTooLarge)
}

func TestEncodeWebSocketFrame_MaskedRoundTrip(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)

	mask := []byte{0x01, 0x02, 0x03, 0x04}
	wire := EncodeWebSocketFrame(OpText, []byte("round trip"), mask)

	fut := ReadWebSocketFrame(l, raw)
	raw.AddReceivedChunk(wire)

	waitFrame(t, fut)
	frame, err := fut.Result()
	require.NoError(t, err)
	assert.Equal(t, "round trip", string(frame.Payload))
}

func TestEncodeWebSocketFrame_UnmaskedServerFrame(t *testing.T) {
	l := newTestLoop(t)
	raw := NewPayloadStream(nil)

	wire := EncodeWebSocketFrame(OpClose, nil, nil)
	fut := ReadWebSocketFrame(l, raw)
	raw.AddReceivedChunk(wire)

	waitFrame(t, fut)
	frame, err := fut.Result()
	require.NoError(t, err)
	assert.Equal(t, OpClose, frame.Opcode)
	assert.False(t, frame.Masked)
	assert.Empty(t, frame.Payload)
}
