package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const messageVersion = 1

// EventMessage is the wire form of a ledger event.
type EventMessage struct {
	Version     int        `json:"version"`
	Event       core.Event `json:"event"`
	PublishedAt time.Time  `json:"published_at"`
}

func NewEventMessage(e core.Event) *EventMessage {
	return &EventMessage{
		Version:     messageVersion,
		Event:       e,
		PublishedAt: time.Now(),
	}
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message and rejects unknown versions.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Version != messageVersion {
		return nil, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	if msg.Event.Type == "" {
		return nil, fmt.Errorf("message without event type")
	}
	return &msg, nil
}
