// Package bus carries typed notifications between the agent and every open
// popup. Delivery is fire-and-forget: publishers never wait for receivers.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the closed set of message types.
type Type string

const (
	RefreshBookmarks Type = "refreshBookmarks"
	ForceLogout      Type = "forceLogout"
	SaveBookmark     Type = "saveBookmark"
)

// Valid reports whether t is one of the known message types.
func (t Type) Valid() bool {
	switch t {
	case RefreshBookmarks, ForceLogout, SaveBookmark:
		return true
	}
	return false
}

// SavePayload accompanies a SaveBookmark message.
type SavePayload struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	OwnerID  string         `json:"owner_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Message is one bus notification.
type Message struct {
	Type    Type         `json:"type"`
	Payload *SavePayload `json:"payload,omitempty"`
}

var (
	ErrUnknownType    = errors.New("bus: unknown message type")
	ErrMissingPayload = errors.New("bus: saveBookmark requires a payload")
	ErrClosed         = errors.New("bus: closed")
)

// Validate checks the message type and that SaveBookmark carries a payload.
// An empty URL is left for the receiver to reject.
func (m Message) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	if m.Type == SaveBookmark && m.Payload == nil {
		return ErrMissingPayload
	}
	return nil
}

// Bus publishes messages to every live subscriber.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context) (Subscription, error)
	Close() error
}

// Subscription delivers messages in publish order until closed.
type Subscription interface {
	C() <-chan Message
	Close() error
}

// external is the shape sent by allow-listed web origins.
type external struct {
	Refresh bool `json:"refresh"`
	Logout  bool `json:"logout"`
}

// DecodeExternal maps an external {refresh:true} or {logout:true} message to
// its bus message. When both flags are set, logout wins.
func DecodeExternal(raw []byte) (Message, error) {
	var ext external
	if err := json.Unmarshal(raw, &ext); err != nil {
		return Message{}, fmt.Errorf("bus: decode external message: %w", err)
	}
	switch {
	case ext.Logout:
		return Message{Type: ForceLogout}, nil
	case ext.Refresh:
		return Message{Type: RefreshBookmarks}, nil
	default:
		return Message{}, ErrUnknownType
	}
}
