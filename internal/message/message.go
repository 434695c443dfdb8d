// internal/message/message.go
// Wire envelope for frames exchanged over the relay socket.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types carried in the "type" field.
const (
	TypeRegister         = "register"
	TypeInvitation       = "invitation"
	TypeResponse         = "response"
	TypeUserState        = "userState"
	TypeSentInvitation   = "sentInvitation"
	TypeInvitationFailed = "invitationFailed"
	TypeError            = "error"
)

// Values of the "response" field on TypeResponse frames.
const (
	ResponseAccept  = "accept"
	ResponseDecline = "decline"
)

var (
	ErrInvalidPayload = errors.New("invalid message payload")
	ErrMissingType    = errors.New("missing message type")
	ErrMissingField   = errors.New("missing required field")
)

// Envelope is a decoded inbound frame. The routed fields are extracted
// for dispatch; the original object is retained in full so invitation
// and response payloads can be forwarded with every field intact.
type Envelope struct {
	Type     string
	UserID   string
	From     string
	To       string
	Response string

	data []byte
	raw  map[string]json.RawMessage
}

// Decode parses a text frame into an Envelope. It fails on anything
// that is not a JSON object with a string "type" field.
func Decode(data []byte) (*Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ErrInvalidPayload
	}
	env := &Envelope{data: data, raw: raw}
	env.Type = stringField(raw, "type")
	if env.Type == "" {
		return nil, ErrMissingType
	}
	env.UserID = stringField(raw, "userID")
	env.From = stringField(raw, "from")
	env.To = stringField(raw, "to")
	env.Response = stringField(raw, "response")
	return env, nil
}

func stringField(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// Validate checks the required fields for the envelope's type. Frames
// that fail validation must be rejected before any state mutation.
func (e *Envelope) Validate() error {
	switch e.Type {
	case TypeRegister:
		if e.UserID == "" {
			return fmt.Errorf("%w: userID", ErrMissingField)
		}
	case TypeInvitation:
		if e.From == "" {
			return fmt.Errorf("%w: from", ErrMissingField)
		}
		if e.To == "" {
			return fmt.Errorf("%w: to", ErrMissingField)
		}
	case TypeResponse:
		if e.From == "" {
			return fmt.Errorf("%w: from", ErrMissingField)
		}
		if e.To == "" {
			return fmt.Errorf("%w: to", ErrMissingField)
		}
		if e.Response == "" {
			return fmt.Errorf("%w: response", ErrMissingField)
		}
	}
	return nil
}

// Forward returns the original frame bytes for unchanged forwarding.
func (e *Envelope) Forward() []byte {
	return e.data
}

// Retag re-encodes the original payload with the "type" field
// overwritten, leaving every other field as received.
func (e *Envelope) Retag(newType string) ([]byte, error) {
	clone := make(map[string]json.RawMessage, len(e.raw))
	for k, v := range e.raw {
		clone[k] = v
	}
	t, err := json.Marshal(newType)
	if err != nil {
		return nil, err
	}
	clone["type"] = t
	return json.Marshal(clone)
}

// UserState is the server reply to a register frame.
type UserState struct {
	Type                 string `json:"type"`
	HasPendingInvitation bool   `json:"hasPendingInvitation"`
	InActiveGame         bool   `json:"inActiveGame"`
}

// Notice is a server-originated message with human-readable text, used
// for invitationFailed and protocol error replies.
type Notice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
