package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventSeedCompleted is the event name carried by SeedCompletedMessage.
const EventSeedCompleted = "seed.completed"

// SeedCompletedMessage announces that the transactions store was replaced.
// Consumers re-read the API; the message carries no records.
type SeedCompletedMessage struct {
	Event       string    `json:"event"`
	Records     int       `json:"records"`
	Size        string    `json:"size"`
	Source      string    `json:"source"`
	CompletedAt time.Time `json:"completed_at"`
}

func NewSeedCompletedMessage(records int, size, source string) *SeedCompletedMessage {
	return &SeedCompletedMessage{
		Event:       EventSeedCompleted,
		Records:     records,
		Size:        size,
		Source:      source,
		CompletedAt: time.Now().UTC(),
	}
}

func (m *SeedCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SeedCompletedMessageFromJSON decodes a message and checks its event name.
func SeedCompletedMessageFromJSON(data []byte) (*SeedCompletedMessage, error) {
	var msg SeedCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event != EventSeedCompleted {
		return nil, fmt.Errorf("unexpected event %q", msg.Event)
	}
	return &msg, nil
}
