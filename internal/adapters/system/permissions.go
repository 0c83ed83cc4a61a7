package system

import (
	"context"

	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

// StaticPermissions answers location permission requests from configuration.
// On a headless host there is no prompt; the operator opts in to exposing
// Wi-Fi network names.
type StaticPermissions struct {
	AllowSSID bool
}

func (p StaticPermissions) RequestForegroundLocation(context.Context) (model.PermissionStatus, error) {
	if p.AllowSSID {
		return model.PermissionGranted, nil
	}
	return model.PermissionDenied, nil
}
