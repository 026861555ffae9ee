package httpproto

import (
	"encoding/binary"
	"errors"

	"github.com/HuyaneMatsu/scarletio/core"
)

// WebSocket opcodes (spec.md §6, "Opcode set").
const (
	OpContinuation = 0x0
	OpText         = 0x1
	OpBinary       = 0x2
	OpClose        = 0x8
	OpPing         = 0x9
	OpPong         = 0xA
)

// ErrReservedBitsSet is returned when a frame's RSV1-3 bits are non-zero
// with no extension negotiated to explain them.
var ErrReservedBitsSet = errors.New("httpproto: reserved bits set on websocket frame")

// ErrControlFrameTooLarge is returned for a control frame payload over 125
// bytes (spec.md §4.7, "control frames ≤ 125 bytes and not fragmented").
var ErrControlFrameTooLarge = errors.New("httpproto: control frame payload exceeds 125 bytes")

// ErrControlFrameFragmented is returned for a control frame with FIN unset.
var ErrControlFrameFragmented = errors.New("httpproto: control frame must not be fragmented")

// ErrInvalidOpcode is returned for an opcode outside the permitted set.
var ErrInvalidOpcode = errors.New("httpproto: invalid websocket opcode")

// WebSocketFrame is a single parsed frame (spec.md §4.7, "WebSocket frame
// reader").
type WebSocketFrame struct {
	Fin     bool
	Opcode  int
	Masked  bool
	Payload []byte
}

func validOpcode(op int) bool {
	switch op {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	default:
		return false
	}
}

func isControlOpcode(op int) bool {
	return op == OpClose || op == OpPing || op == OpPong
}

// ReadWebSocketFrame reads and validates exactly one frame from raw (spec.md
// §4.7, "WebSocket frame reader"; §6, "WebSocket frame format").
func ReadWebSocketFrame(l *core.Loop, raw *PayloadStream) *core.Future[*WebSocketFrame] {
	fut := core.CreateFuture[*WebSocketFrame](l)
	core.CreateTask[struct{}](l, func(y *core.Yielder) (struct{}, error) {
		frame, err := readFrame(y, l, raw)
		if err != nil {
			_ = fut.SetException(err)
		} else {
			_ = fut.SetResult(frame)
		}
		return struct{}{}, nil
	})
	return fut
}

func readFrame(y *core.Yielder, l *core.Loop, raw *PayloadStream) (*WebSocketFrame, error) {
	head, err := awaitExactly(y, l, raw, 2)
	if err != nil {
		return nil, err
	}
	fin := head[0]&0x80 != 0
	rsv := head[0] & 0x70
	opcode := int(head[0] & 0x0F)
	masked := head[1]&0x80 != 0
	length := int64(head[1] & 0x7F)

	if rsv != 0 {
		return nil, ErrReservedBitsSet
	}
	if !validOpcode(opcode) {
		return nil, ErrInvalidOpcode
	}
	if isControlOpcode(opcode) && !fin {
		return nil, ErrControlFrameFragmented
	}

	switch length {
	case 126:
		ext, err := awaitExactly(y, l, raw, 2)
		if err != nil {
			return nil, err
		}
		length = int64(binary.BigEndian.Uint16(ext))
	case 127:
		ext, err := awaitExactly(y, l, raw, 8)
		if err != nil {
			return nil, err
		}
		length = int64(binary.BigEndian.Uint64(ext))
	}

	if isControlOpcode(opcode) && length > 125 {
		return nil, ErrControlFrameTooLarge
	}

	var maskKey []byte
	if masked {
		maskKey, err = awaitExactly(y, l, raw, 4)
		if err != nil {
			return nil, err
		}
	}

	payload, err := awaitExactly(y, l, raw, int(length))
	if err != nil {
		return nil, err
	}
	if masked {
		unmask(payload, maskKey)
	}

	return &WebSocketFrame{Fin: fin, Opcode: opcode, Masked: masked, Payload: payload}, nil
}

// unmask XORs payload in place with mask[i % 4] (spec.md §6, "Payload
// XOR-masked with mask[i % 4]").
func unmask(payload, mask []byte) {
	for i := range payload {
		payload[i] ^= mask[i%4]
	}
}

// EncodeWebSocketFrame serializes a frame for writing. Client-side writers
// must mask; maskKey is nil for unmasked server-side writes.
func EncodeWebSocketFrame(opcode int, payload []byte, maskKey []byte) []byte {
	out := make([]byte, 0, len(payload)+14)

	first := byte(0x80) | byte(opcode&0x0F) // always FIN-set; fragmentation is not emitted
	out = append(out, first)

	masked := maskKey != nil
	lengthByte := byte(0)
	if masked {
		lengthByte = 0x80
	}

	switch {
	case len(payload) < 126:
		out = append(out, lengthByte|byte(len(payload)))
	case len(payload) <= 0xFFFF:
		out = append(out, lengthByte|126)
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], uint16(len(payload)))
		out = append(out, buf[:]...)
	default:
		out = append(out, lengthByte|127)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(len(payload)))
		out = append(out, buf[:]...)
	}

	if masked {
		out = append(out, maskKey...)
		maskedPayload := append([]byte(nil), payload...)
		unmask(maskedPayload, maskKey)
		out = append(out, maskedPayload...)
	} else {
		out = append(out, payload...)
	}
	return out
}
