package protocol

import (
	"encoding/json"
	"time"
)

// MessageType enumerates all conversation socket message types.
type MessageType string

const (
	// Client -> Server
	MsgStart   MessageType = "start"
	MsgMessage MessageType = "message"
	MsgEnd     MessageType = "end"

	// Server -> Client
	MsgStarted MessageType = "started"
	MsgReply   MessageType = "reply"
	MsgEnded   MessageType = "ended"
	MsgError   MessageType = "error"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Client -> Server payloads ---

// MessagePayload carries one recorded utterance. Audio is base64 in JSON.
type MessagePayload struct {
	Audio    []byte `json:"audio"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name,omitempty"`
}

// --- Server -> Client payloads ---

type StartedPayload struct {
	Message   string    `json:"message"`
	Audio     []byte    `json:"audio"`
	Timestamp time.Time `json:"timestamp"`
}

type ReplyPayload struct {
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	Audio       []byte    `json:"audio"`
	Timestamp   time.Time `json:"timestamp"`
}

type EndedPayload struct {
	EndedAt time.Time `json:"ended_at"`
}

// ErrorPayload reports a failed request. Kind is one of core.ErrorKind's values.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Request echoes the client message type that failed.
	Request MessageType `json:"request,omitempty"`
}
