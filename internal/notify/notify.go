package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/micro-ha/connectivity-monitor/addon/internal/domain/connectivity"
	"github.com/micro-ha/connectivity-monitor/addon/internal/model"
)

// LogSink writes the connection-lost alert to the process log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) NotifyConnectionLost(_ context.Context, snapshot model.ConnectivitySnapshot) error {
	s.logger.Warn(model.ConnectionLostText, "title", model.ConnectionLostHead, "type", string(snapshot.Type))
	return nil
}

// Fanout delivers an alert to every sink and joins their errors.
type Fanout []connectivity.NotificationSink

func (f Fanout) NotifyConnectionLost(ctx context.Context, snapshot model.ConnectivitySnapshot) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.NotifyConnectionLost(ctx, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
