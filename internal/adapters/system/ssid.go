package system

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// readSSID asks wireless-tools for the SSID the interface is associated with.
func readSSID(ctx context.Context, iface string) (string, error) {
	out, err := exec.CommandContext(ctx, "iwgetid", iface, "--raw").Output()
	if err != nil {
		return "", fmt.Errorf("iwgetid %s: %w", iface, err)
	}
	return strings.TrimSpace(string(out)), nil
}
