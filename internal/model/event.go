package model

import "time"

const (
	EventKindSnapshot       = "snapshot"
	EventKindConnectionLost = "connection_lost"
)

// JournalEvent is one persisted record of a processed snapshot or alert.
type JournalEvent struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	StatusText     string    `json:"status_text"`
	Connected      bool      `json:"connected"`
	ConnectionType string    `json:"connection_type"`
	SSID           *string   `json:"ssid,omitempty"`
	Reachable      *bool     `json:"reachable,omitempty"`
	Appended       bool      `json:"appended"`
	ObservedAt     time.Time `json:"observed_at"`
}
