package dispatch

import (
	"context"
	"log/slog"
	"time"
)

// LogNotifier reports disclosures as structured log records.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, d Disclosure) error {
	attrs := []any{
		"id", d.Appointment.ID,
		"title", d.Appointment.Title,
		"location", d.Appointment.Location,
		"trigger_at", d.TriggerAt.Format(time.RFC3339),
		"starts_at", d.Start.Format(time.RFC3339),
	}
	if d.Position != nil {
		attrs = append(attrs, "latitude", d.Position.Latitude, "longitude", d.Position.Longitude)
	}
	n.logger.InfoContext(ctx, "location sharing started", attrs...)
	return nil
}
