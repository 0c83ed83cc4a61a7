package model

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionType is the raw transport reported by a connectivity source.
type ConnectionType string

const (
	ConnectionWiFi      ConnectionType = "wifi"
	ConnectionCellular  ConnectionType = "cellular"
	ConnectionEthernet  ConnectionType = "ethernet"
	ConnectionBluetooth ConnectionType = "bluetooth"
	ConnectionVPN       ConnectionType = "vpn"
	ConnectionOther     ConnectionType = "other"
	ConnectionUnknown   ConnectionType = "unknown"
)

// ConnectionDetails carries transport specific data. Only Wi-Fi fills SSID.
type ConnectionDetails struct {
	SSID string `json:"ssid,omitempty"`
}

// ConnectivitySnapshot is one point-in-time reading of device connectivity.
type ConnectivitySnapshot struct {
	Connected         bool               `json:"is_connected"`
	InternetReachable *bool              `json:"is_internet_reachable"`
	Type              ConnectionType     `json:"type"`
	Details           *ConnectionDetails `json:"details,omitempty"`
}

// SSID returns the network name when the snapshot is a Wi-Fi link that reports one.
func (s ConnectivitySnapshot) SSID() (string, bool) {
	if s.Type != ConnectionWiFi || s.Details == nil {
		return "", false
	}
	ssid := strings.TrimSpace(s.Details.SSID)
	return ssid, ssid != ""
}

// WithoutSSID returns a copy with the SSID cleared. Details stay present.
func (s ConnectivitySnapshot) WithoutSSID() ConnectivitySnapshot {
	if s.Details == nil {
		return s
	}
	details := *s.Details
	details.SSID = ""
	s.Details = &details
	return s
}

// StatusText renders the history wording for a snapshot.
func (s ConnectivitySnapshot) StatusText() string {
	if !s.Connected {
		return "desconectado"
	}
	if ssid, ok := s.SSID(); ok {
		return "conectado ao Wi-Fi " + ssid
	}
	return "conectado via " + string(s.Type)
}

// HistoryEntry is one line of the connection history log.
type HistoryEntry struct {
	Timestamp  string    `json:"timestamp"`
	StatusText string    `json:"status_text"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewHistoryEntry stamps statusText with the HH:MM wall clock of at.
func NewHistoryEntry(at time.Time, statusText string) HistoryEntry {
	return HistoryEntry{
		Timestamp:  fmt.Sprintf("%02d:%02d", at.Hour(), at.Minute()),
		StatusText: statusText,
		ObservedAt: at,
	}
}

func (e HistoryEntry) String() string {
	return e.Timestamp + " - " + e.StatusText
}

// MonitorState is the state owned by a connectivity monitor session.
type MonitorState struct {
	Current  *ConnectivitySnapshot `json:"current"`
	Previous *ConnectivitySnapshot `json:"previous"`
	History  []HistoryEntry        `json:"history"`
}

// Clone returns a deep copy safe to hand to readers.
func (s MonitorState) Clone() MonitorState {
	out := MonitorState{
		Current:  cloneSnapshot(s.Current),
		Previous: cloneSnapshot(s.Previous),
	}
	if len(s.History) > 0 {
		out.History = make([]HistoryEntry, len(s.History))
		copy(out.History, s.History)
	}
	return out
}

func cloneSnapshot(s *ConnectivitySnapshot) *ConnectivitySnapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.InternetReachable != nil {
		v := *s.InternetReachable
		c.InternetReachable = &v
	}
	if s.Details != nil {
		d := *s.Details
		c.Details = &d
	}
	return &c
}

// PermissionStatus is the result of a foreground location permission request.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
)

// Update describes the outcome of processing one snapshot.
type Update struct {
	Snapshot       ConnectivitySnapshot `json:"snapshot"`
	StatusText     string               `json:"status_text"`
	Entry          *HistoryEntry        `json:"entry,omitempty"`
	ConnectionLost bool                 `json:"connection_lost"`
	ObservedAt     time.Time            `json:"observed_at"`
}
