package model

const (
	textLoading        = "Carregando..."
	textUnavailable    = "Indisponível"
	textNotApplicable  = "Não aplicável"
	textUnknown        = "—"
	textConnected      = "Conectado"
	textDisconnected   = "Desconectado"
	textGranted        = "Concedida"
	textNotGranted     = "Não concedida"
	EmptyHistoryText   = "Nenhum registro no histórico"
	ConnectionLostText = "Sua conexão com a internet foi perdida."
	ConnectionLostHead = "Conexão Perdida"
)

// Display is the human-readable view of the current connection.
type Display struct {
	Loaded             bool   `json:"loaded"`
	StatusText         string `json:"status_text"`
	ConnectionTypeText string `json:"connection_type_text"`
	SSIDText           string `json:"ssid_text"`
	ReachabilityText   string `json:"reachability_text"`
	PermissionText     string `json:"permission_text"`
}

// BuildDisplay derives display strings from current, which may be nil before
// the first observation.
func BuildDisplay(current *ConnectivitySnapshot, permission PermissionStatus) Display {
	out := Display{PermissionText: permissionText(permission)}
	if current == nil {
		out.StatusText = textLoading
		out.ConnectionTypeText = textLoading
		out.SSIDText = textUnavailable
		out.ReachabilityText = textUnknown
		return out
	}

	out.Loaded = true
	out.StatusText = textDisconnected
	if current.Connected {
		out.StatusText = textConnected
	}
	out.ConnectionTypeText = connectionTypeText(*current)
	out.SSIDText = ssidText(*current)
	out.ReachabilityText = reachabilityText(current.InternetReachable)
	return out
}

func connectionTypeText(s ConnectivitySnapshot) string {
	if !s.Connected {
		return textDisconnected
	}
	switch s.Type {
	case ConnectionWiFi:
		return "Wi-Fi"
	case ConnectionCellular:
		return "Cellular/Dados móveis"
	case ConnectionEthernet:
		return "Ethernet"
	case ConnectionBluetooth:
		return "Bluetooth"
	case ConnectionVPN:
		return "VPN"
	case ConnectionOther:
		return "Outro tipo"
	default:
		return string(s.Type)
	}
}

func ssidText(s ConnectivitySnapshot) string {
	if s.Details == nil {
		return textUnavailable
	}
	if ssid, ok := s.SSID(); ok {
		return ssid
	}
	return textNotApplicable
}

func reachabilityText(v *bool) string {
	switch {
	case v == nil:
		return textUnknown
	case *v:
		return "Sim"
	default:
		return "Não"
	}
}

func permissionText(p PermissionStatus) string {
	if p == PermissionGranted {
		return textGranted
	}
	return textNotGranted
}
