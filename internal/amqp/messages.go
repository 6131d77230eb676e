package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"acctlog/internal/notify"
)

// MessageSchema is bumped when the wire shape of EventMessage changes.
const MessageSchema = 1

// EventMessage is the broker payload carrying a notify.Event.
type EventMessage struct {
	Schema    int          `json:"schema"`
	Event     notify.Event `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewEventMessage(ev notify.Event) *EventMessage {
	return &EventMessage{Schema: MessageSchema, Event: ev, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON parses and checks a broker payload.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event.Kind == "" {
		return nil, errors.New("event message without kind")
	}
	return &msg, nil
}
