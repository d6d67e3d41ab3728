package models

import "time"

// RawMessage is an incoming text message as delivered by the message source.
// It is transient input to a scan pass.
type RawMessage struct {
	Sender           string `json:"sender"`
	Body             string `json:"body"`
	ReceivedAtMillis int64  `json:"received_at_millis"`
}

// ReceivedAt returns the receive time as a UTC time.Time
func (m RawMessage) ReceivedAt() time.Time {
	return time.UnixMilli(m.ReceivedAtMillis).UTC()
}
