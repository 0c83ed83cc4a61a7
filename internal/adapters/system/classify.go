package system

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

// sysClassNet is swapped in tests.
var sysClassNet = "/sys/class/net"

var typePrefixes = []struct {
	prefix string
	kind   model.ConnectionType
}{
	{"wlan", model.ConnectionWiFi},
	{"wlp", model.ConnectionWiFi},
	{"wlx", model.ConnectionWiFi},
	{"wl", model.ConnectionWiFi},
	{"ath", model.ConnectionWiFi},
	{"wwan", model.ConnectionCellular},
	{"wwp", model.ConnectionCellular},
	{"rmnet", model.ConnectionCellular},
	{"ccmni", model.ConnectionCellular},
	{"ppp", model.ConnectionCellular},
	{"tun", model.ConnectionVPN},
	{"tap", model.ConnectionVPN},
	{"utun", model.ConnectionVPN},
	{"wg", model.ConnectionVPN},
	{"ipsec", model.ConnectionVPN},
	{"bnep", model.ConnectionBluetooth},
	{"bt", model.ConnectionBluetooth},
	{"eth", model.ConnectionEthernet},
	{"en", model.ConnectionEthernet},
	{"em", model.ConnectionEthernet},
}

// ClassifyInterface maps an interface name to a connection type. wireless
// overrides name based detection.
func ClassifyInterface(name string, wireless bool) model.ConnectionType {
	if wireless {
		return model.ConnectionWiFi
	}
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return model.ConnectionUnknown
	}
	for _, p := range typePrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.kind
		}
	}
	return model.ConnectionOther
}

// isWireless reports whether sysfs exposes 802.11 attributes for the interface.
func isWireless(name string) bool {
	for _, leaf := range []string{"wireless", "phy80211"} {
		if _, err := os.Stat(filepath.Join(sysClassNet, name, leaf)); err == nil {
			return true
		}
	}
	return false
}
