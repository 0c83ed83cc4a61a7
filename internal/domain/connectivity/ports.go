package connectivity

import (
	"context"

	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

// Snapshot is a single connectivity reading.
type Snapshot = model.ConnectivitySnapshot

// Update is the outcome of processing one snapshot.
type Update = model.Update

// Subscription is an active connectivity change subscription.
type Subscription interface {
	Unsubscribe()
}

// Source delivers connectivity snapshots from the host platform.
type Source interface {
	// Subscribe calls fn for every connectivity change until the returned
	// subscription is cancelled.
	Subscribe(ctx context.Context, fn func(Snapshot)) (Subscription, error)
	// Fetch reads the current connectivity once.
	Fetch(ctx context.Context) (Snapshot, error)
}

// PermissionProvider negotiates access needed to read Wi-Fi network names.
type PermissionProvider interface {
	RequestForegroundLocation(ctx context.Context) (model.PermissionStatus, error)
}

// NotificationSink surfaces the loss-of-connection alert to the user.
type NotificationSink interface {
	NotifyConnectionLost(ctx context.Context, snapshot Snapshot) error
}

// Observer receives every processed update. Implementations must not block.
type Observer interface {
	Observe(update Update)
}

// Service exposes monitor use-cases to HTTP and background layers.
type Service interface {
	Start(ctx context.Context) error
	Stop()
	Refresh(ctx context.Context) error
	Running() bool
	State() model.MonitorState
	History() []model.HistoryEntry
	DisplaySnapshot() model.Display
}
