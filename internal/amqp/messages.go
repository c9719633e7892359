package amqp

import (
	"encoding/json"
	"time"
)

// CheckInRecordedMessage signals that a check-in was written and should be
// exported. It carries only the ID and version; the worker loads the full
// rows from the database.
type CheckInRecordedMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCheckInRecordedMessage creates a new export message
func NewCheckInRecordedMessage(id, version int64) *CheckInRecordedMessage {
	return &CheckInRecordedMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CheckInRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CheckInRecordedMessageFromJSON creates a message from JSON bytes
func CheckInRecordedMessageFromJSON(data []byte) (*CheckInRecordedMessage, error) {
	var msg CheckInRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
