package protocol

import (
	"encoding/json"
	"fmt"

	"roulette/internal/constants"
)

type EventType string

// Client -> server events.
const (
	EventJoinQueue EventType = "join_queue"
	EventSignal    EventType = "signal"
	EventMessage   EventType = "message"
	EventNext      EventType = "next"
)

// Server -> client events.
const (
	EventConnected   EventType = "connected"
	EventWaiting     EventType = "waiting"
	EventPaired      EventType = "paired"
	EventPartnerLeft EventType = "partner_left"
	EventError       EventType = "error"
)

// Event is the wire envelope for every websocket message, both directions.
// Data is opaque to the server: handshake offers, answers and candidates are
// ferried between peers without inspection.
type Event struct {
	Type      EventType       `json:"type"`
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	PeerID    string          `json:"peerId,omitempty"`
	Country   string          `json:"country,omitempty"`
	Interests []string        `json:"interests,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// ValidateInbound checks a client-sent event before dispatch.
func ValidateInbound(ev Event) error {
	switch ev.Type {
	case EventJoinQueue:
		if len(ev.Country) > constants.MaxCountryLength {
			return fmt.Errorf("country too long")
		}
		if len(ev.Interests) > constants.MaxInterests {
			return fmt.Errorf("too many interests (max %d)", constants.MaxInterests)
		}
		for _, tag := range ev.Interests {
			if tag == "" || len(tag) > constants.MaxInterestLength {
				return fmt.Errorf("invalid interest tag")
			}
		}
	case EventSignal:
		if ev.To == "" {
			return fmt.Errorf("signal missing to")
		}
		if len(ev.Data) == 0 {
			return fmt.Errorf("signal missing data")
		}
	case EventMessage:
		if ev.To == "" {
			return fmt.Errorf("message missing to")
		}
	case EventNext:
		// no payload
	default:
		return fmt.Errorf("unsupported event type %q", ev.Type)
	}
	return nil
}
