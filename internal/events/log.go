package events

import (
	"context"
	"log/slog"

	"github.com/Simplici0/parcelrate/internal/logging"
)

// LogNotifier writes events to the log when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
	rec Recorder
}

func NewLogNotifier(logger *slog.Logger, rec Recorder) *LogNotifier {
	return &LogNotifier{log: logging.Component(logger, "events"), rec: rec}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	n.log.InfoContext(ctx, "shipment event",
		"event_id", e.ID,
		"type", e.Type,
		"shipment_id", e.ShipmentID,
		"tracking_number", e.TrackingNumber,
		"status", e.Status,
		"total_cost", e.TotalCost.StringFixed(2),
	)
	if n.rec != nil {
		n.rec.RecordNotification(e.Type, nil)
	}
	return nil
}
