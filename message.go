package jsongate

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const AppName = "jsongate_rpc_v1"

// MessageType represents the type of gateway message
type MessageType string

const (
	MessageTypeCall      MessageType = "call"
	MessageTypeResponse  MessageType = "response"
	MessageTypeError     MessageType = "error"
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypeShutdown  MessageType = "shutdown"
)

// Canonical codec failure reasons, kept stable because callers match on
// them across language boundaries.
const (
	reasonWrongParameterCount = "wrong parameter count"
	reasonNotJSON             = "content is not json format"
)

// CodecError is a binding or serialization failure surfaced to the
// caller. Reason is one of the canonical strings above; Err, when set,
// carries the underlying cause.
type CodecError struct {
	Reason string
	Err    error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

// Unwrap returns the wrapped cause for errors.Is/As support
func (e *CodecError) Unwrap() error {
	return e.Err
}

// Is matches any CodecError with the same reason, regardless of cause
func (e *CodecError) Is(target error) bool {
	t, ok := target.(*CodecError)
	return ok && t.Reason == e.Reason
}

// Sentinels for errors.Is matching against the two codec failure modes.
var (
	ErrWrongParameterCount error = &CodecError{Reason: reasonWrongParameterCount}
	ErrNotJSON             error = &CodecError{Reason: reasonNotJSON}
)

// RemoteCallError represents an error reported by the remote gateway
type RemoteCallError struct {
	Message string
	Err     error
}

func (e *RemoteCallError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// EncodingJSON is the generic frame's encoding indicator for JSON payloads
const EncodingJSON = "json"

// Message is the gateway wire envelope. A generic call carries Target
// ("service.Method") plus Frame, the three-component generic argument
// frame: [encoding indicator, type-name overrides, JSON payload]. The
// encoding indicator is consumed by the transport layer; the codec only
// reads components 1 and 2. Responses carry the serialized result as
// raw JSON bytes, passed through untouched.
type Message struct {
	App       string         `msgpack:"app"`
	ID        string         `msgpack:"id"`
	Type      string         `msgpack:"type"`
	Timestamp float64        `msgpack:"timestamp"`
	Target    string         `msgpack:"target,omitempty"`
	Frame     []any          `msgpack:"frame,omitempty"`
	Namespace string         `msgpack:"namespace,omitempty"`
	Result    []byte         `msgpack:"result,omitempty"`
	Error     string         `msgpack:"error,omitempty"`
	Metadata  map[string]any `msgpack:"metadata,omitempty"`
}

// NewMessage creates a new envelope with defaults
func NewMessage() *Message {
	return &Message{
		App:       AppName,
		ID:        uuid.New().String(),
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
}

// CreateGenericCall creates a generic call envelope. typeNames may be
// nil when the caller requests no overrides; payload is the raw JSON
// argument document.
func CreateGenericCall(target string, typeNames []string, payload []byte, msgID string) *Message {
	msg := NewMessage()
	msg.Type = string(MessageTypeCall)
	msg.Target = target
	msg.Frame = []any{EncodingJSON, typeNames, payload}
	if msgID != "" {
		msg.ID = msgID
	}
	return msg
}

// CreateResponse creates a response envelope carrying serialized JSON
func CreateResponse(result []byte, msgID string) *Message {
	msg := NewMessage()
	msg.Type = string(MessageTypeResponse)
	msg.Result = result
	msg.ID = msgID
	return msg
}

// CreateError creates an error envelope
func CreateError(err string, msgID string) *Message {
	msg := NewMessage()
	msg.Type = string(MessageTypeError)
	msg.Error = err
	msg.ID = msgID
	return msg
}

// CreateHeartbeat creates a heartbeat request envelope
func CreateHeartbeat(msgID string) *Message {
	msg := NewMessage()
	msg.Type = string(MessageTypeHeartbeat)
	msg.Metadata = map[string]any{
		"hb_timestamp": float64(time.Now().UnixNano()) / 1e9,
	}
	if msgID != "" {
		msg.ID = msgID
	}
	return msg
}

// CreateHeartbeatResponse echoes a heartbeat with the original timestamp
func CreateHeartbeatResponse(requestID string, originalTimestamp float64) *Message {
	msg := NewMessage()
	msg.Type = string(MessageTypeHeartbeat)
	msg.ID = requestID
	msg.Metadata = map[string]any{
		"hb_timestamp": originalTimestamp,
		"hb_response":  true,
	}
	return msg
}

// Pack serializes the envelope to msgpack
func (m *Message) Pack() ([]byte, error) {
	return msgpack.Marshal(m)
}

const (
	maxMessageSize = 10 * 1024 * 1024 // 10MB
	maxFrameLength = 16
	maxTypeNames   = 256
	maxPayloadSize = 8 * 1024 * 1024
)

// Unpack deserializes an envelope from msgpack with safety validations
func Unpack(data []byte) (*Message, error) {
	if len(data) > maxMessageSize {
		return nil, fmt.Errorf("message size %d exceeds limit %d", len(data), maxMessageSize)
	}

	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	if math.IsNaN(msg.Timestamp) || math.IsInf(msg.Timestamp, 0) {
		msg.Timestamp = 0.0
	}

	if err := validateFrame(msg.Frame); err != nil {
		return nil, fmt.Errorf("invalid generic frame: %w", err)
	}
	if len(msg.Result) > maxPayloadSize {
		return nil, fmt.Errorf("result size %d exceeds limit %d", len(msg.Result), maxPayloadSize)
	}

	return &msg, nil
}

// validateFrame clamps the generic frame against wire abuse before any
// component is interpreted. The frame is positional; components beyond
// the expected three are tolerated but bounded.
func validateFrame(frame []any) error {
	if frame == nil {
		return nil
	}
	if len(frame) > maxFrameLength {
		return fmt.Errorf("frame length %d exceeds limit %d", len(frame), maxFrameLength)
	}
	if len(frame) < 3 {
		return nil
	}
	names, payload := splitGenericFrame(frame)
	if len(names) > maxTypeNames {
		return fmt.Errorf("type-name count %d exceeds limit %d", len(names), maxTypeNames)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("payload size %d exceeds limit %d", len(payload), maxPayloadSize)
	}
	return nil
}
