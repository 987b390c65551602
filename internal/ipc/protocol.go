// Package ipc provides communication between the veild daemon and its front
// ends (veilctl, pickers, third-party tools).
//
// The protocol is a fixed 16-byte header (magic, version, type, request id,
// payload length) followed by a JSON payload, request/response over a local
// stream socket. No network surface: the socket is a filesystem unix socket,
// which modern Windows supports natively.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"veil/internal/engine"
	"veil/internal/winapi"
)

// Protocol version for compatibility checking.
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x56495043 // "VIPC"
)

// MessageType identifies the type of IPC message.
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing     MessageType = 0x0001
	MsgPong     MessageType = 0x0002
	MsgError    MessageType = 0x0005
	MsgShutdown MessageType = 0x0006
	MsgAck      MessageType = 0x0007

	// Window operations (0x01xx)
	MsgListWindows      MessageType = 0x0100
	MsgListWindowsResp  MessageType = 0x0101
	MsgSelect           MessageType = 0x0102
	MsgSetOpacity       MessageType = 0x0104
	MsgSetClickThrough  MessageType = 0x0106
	MsgRemoveTopmost    MessageType = 0x0108
	MsgRestore          MessageType = 0x010A
	MsgRestoreAll       MessageType = 0x010C
	MsgGetRecord        MessageType = 0x010E
	MsgGetRecordResp    MessageType = 0x010F
	MsgStatus           MessageType = 0x0110
	MsgStatusResp       MessageType = 0x0111
)

// Header is the fixed-size message header (16 bytes).
type Header struct {
	Magic     uint32
	Version   uint8
	Flags     uint8
	Type      MessageType
	RequestID uint32
	Length    uint32 // payload length, not including the header
}

// HeaderSize is the size of the header in bytes.
const HeaderSize = 16

// maxPayload bounds a single message; a window list is a few kilobytes.
const maxPayload = 4 * 1024 * 1024

// Message wraps a header and payload.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates a message with the given type and JSON payload.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Encode marshals v and wraps it in a message.
func Encode(msgType MessageType, requestID uint32, v any) (*Message, error) {
	if v == nil {
		return NewMessage(msgType, requestID, nil), nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %d payload: %w", msgType, err)
	}
	return NewMessage(msgType, requestID, payload), nil
}

// Decode unmarshals the message payload into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("unmarshal %d payload: %w", m.Header.Type, err)
	}
	return nil
}

// Write writes the header to a writer.
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads and validates a header from a reader.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}
	return h, nil
}

// Write writes the message to a writer.
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads a complete message from a reader.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > maxPayload {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Request/response payloads.

// HandleRequest targets one window.
type HandleRequest struct {
	Handle uint64 `json:"handle"`
}

// OpacityRequest sets a window's opacity percent.
type OpacityRequest struct {
	Handle  uint64 `json:"handle"`
	Percent int    `json:"percent"`
}

// ClickThroughRequest sets a window's passthrough and lock state.
type ClickThroughRequest struct {
	Handle uint64 `json:"handle"`
	Enable bool   `json:"enable"`
	Lock   bool   `json:"lock"`
}

// ListWindowsResponse carries the enumerated windows.
type ListWindowsResponse struct {
	Windows []winapi.WindowInfo `json:"windows"`
}

// RecordResponse carries a window's state readout.
type RecordResponse struct {
	Found  bool        `json:"found"`
	Record engine.View `json:"record,omitempty"`
}

// StatusResponse carries the daemon status readout.
type StatusResponse struct {
	Version      string        `json:"version"`
	StartedAt    time.Time     `json:"started_at"`
	Uptime       time.Duration `json:"uptime"`
	BackendOK    bool          `json:"backend_ok"`
	Backend      string        `json:"backend"`
	Tracked      int           `json:"tracked"`
	Selected     uint64        `json:"selected"`
	ModifierHeld bool          `json:"modifier_held"`
	Records      []engine.View `json:"records,omitempty"`
}

// ErrorResponse is sent when an operation fails.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrUnknown        = 1
	ErrInvalidRequest = 2
	ErrStaleWindow    = 3
	ErrUnsupported    = 4
	ErrInternalError  = 5
)

// Error makes ErrorResponse usable as an error value on the client side.
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("daemon error %d: %s", e.Code, e.Message)
}
