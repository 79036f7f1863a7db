package amqp

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type EventType string

const (
	EventMonthClosed  EventType = "month.closed"
	EventMonthDeleted EventType = "month.deleted"
)

// MonthEvent announces a change to the closed-month history. It carries only
// the month ID; consumers read the snapshot from the shared store.
type MonthEvent struct {
	Type      EventType `json:"type"`
	MonthID   string    `json:"monthId"`
	Month     string    `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMonthClosedEvent(id, label string) *MonthEvent {
	return &MonthEvent{Type: EventMonthClosed, MonthID: id, Month: label, Timestamp: time.Now()}
}

func NewMonthDeletedEvent(id string) *MonthEvent {
	return &MonthEvent{Type: EventMonthDeleted, MonthID: id, Timestamp: time.Now()}
}

// ToJSON converts the event to JSON bytes
func (m *MonthEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MonthEventFromJSON decodes an event and rejects unknown types or a missing ID.
func MonthEventFromJSON(data []byte) (*MonthEvent, error) {
	var msg MonthEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventMonthClosed, EventMonthDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.MonthID == "" {
		return nil, fmt.Errorf("event %s without month id", msg.Type)
	}
	return &msg, nil
}
