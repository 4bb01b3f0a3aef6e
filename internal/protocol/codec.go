// Package protocol implements the relay wire codec: JSON text frames, one
// message per frame, validated on decode and timestamped on encode.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// DecodeError describes a rejected inbound message. It always maps to the
// INVALID_MESSAGE error code; Reason is safe to echo back to the client.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return e.Reason
}

func decodeErrorf(format string, args ...interface{}) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// Decode parses and validates one client frame. Malformed payloads and
// unrecognized types yield a *DecodeError, never a panic.
func Decode(data []byte) (*ClientMessage, *DecodeError) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, decodeErrorf("malformed JSON payload")
	}

	switch msg.Type {
	case TypeSessionBind:
		if msg.UserID == "" || msg.SessionID == "" {
			return nil, decodeErrorf("session.bind requires non-empty user_id and session_id")
		}
	case TypeAssistantSpeak:
		if msg.Text == "" {
			return nil, decodeErrorf("assistant.speak requires non-empty text")
		}
	case TypePing:
		// No payload.
	case "":
		return nil, decodeErrorf("message is missing a type")
	default:
		return nil, decodeErrorf("unrecognized message type %q", msg.Type)
	}

	return &msg, nil
}

// Encode serializes one server message, injecting the generation timestamp.
func Encode(msg ServerMessage) ([]byte, error) {
	msg.stamp(time.Now().UTC().Format(time.RFC3339Nano))
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	return data, nil
}

func encodeAudio(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeAudio recovers raw audio bytes from a frame's transport encoding.
func DecodeAudio(frame *AudioFrame) ([]byte, error) {
	return base64.StdEncoding.DecodeString(frame.DataB64)
}
