package models

import (
	"encoding/json"
	"time"
)

// Message is the envelope a snapshot is published in. Data holds the
// snapshot's JSON unchanged.
type Message struct {
	Topic     string          `json:"topic"`
	Session   string          `json:"session"`
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data"`
}

// NewMessage marshals data into a Message for the given topic.
func NewMessage(topic, session string, seq uint64, data interface{}) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:     topic,
		Session:   session,
		Seq:       seq,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}
