package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types published for shipments.
const (
	ShipmentCreated       = "shipment.created"
	ShipmentUpdated       = "shipment.updated"
	ShipmentStatusChanged = "shipment.status_changed"
)

// Event is the payload sent to downstream consumers after a shipment
// change has been committed.
type Event struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	ShipmentID     int64           `json:"shipment_id"`
	TrackingNumber string          `json:"tracking_number"`
	Status         string          `json:"status"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType string, shipmentID int64, trackingNumber, status string, total decimal.Decimal) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		ShipmentID:     shipmentID,
		TrackingNumber: trackingNumber,
		Status:         status,
		TotalCost:      total,
		OccurredAt:     time.Now().UTC(),
	}
}

// Notifier delivers events. Callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Recorder receives one call per notification attempt.
type Recorder interface {
	RecordNotification(eventType string, err error)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
