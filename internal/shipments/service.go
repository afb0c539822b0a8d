package shipments

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Simplici0/parcelrate/internal/db"
	"github.com/Simplici0/parcelrate/internal/events"
	"github.com/Simplici0/parcelrate/internal/logging"
	"github.com/Simplici0/parcelrate/internal/pricing"
)

const maxTrackingAttempts = 5

// Snapshotter loads the reference tables the engine prices against.
type Snapshotter interface {
	Snapshot(ctx context.Context, q db.Queryer) (pricing.Snapshot, error)
}

// Recorder counts recalculations.
type Recorder interface {
	RecordRecalculation(trigger string)
}

// Service owns the shipment lifecycle. Every write recomputes the cost with
// the engine inside the same transaction that persists it.
type Service struct {
	db       *sql.DB
	refs     Snapshotter
	notifier events.Notifier
	rec      Recorder
	log      *slog.Logger

	now            func() time.Time
	trackingNumber func() (string, error)
}

func NewService(database *sql.DB, refs Snapshotter, notifier events.Notifier, rec Recorder, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &Service{
		db:             database,
		refs:           refs,
		notifier:       notifier,
		rec:            rec,
		log:            logging.Component(logger, "shipments"),
		now:            func() time.Time { return time.Now().UTC() },
		trackingNumber: newTrackingNumber,
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Shipment, error) {
	if err := validateParties(in.Sender, in.Recipient); err != nil {
		return Shipment{}, err
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = pricing.PaymentOnline
	}

	now := s.now()
	sh := Shipment{
		Sender:        in.Sender,
		Recipient:     in.Recipient,
		ServiceTypeID: in.ServiceTypeID,
		Weight:        in.Weight,
		Dimensions:    in.Dimensions,
		CityID:        in.CityID,
		Extras:        in.Extras,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: initialPaymentStatus(in.PaymentMethod),
		Status:        StatusPending,
		Notes:         strings.TrimSpace(in.Notes),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		snap, err := s.refs.Snapshot(ctx, tx)
		if err != nil {
			return err
		}
		if sh.Cost, err = pricing.Calculate(snap, sh.pricingInput()); err != nil {
			return err
		}
		if sh.TrackingNumber, err = s.uniqueTrackingNumber(ctx, tx); err != nil {
			return err
		}
		if sh.ID, err = insert(ctx, tx, sh); err != nil {
			return err
		}
		if err := replaceExtras(ctx, tx, sh.ID, sh.Cost.Breakdown.Extras); err != nil {
			return err
		}
		initial := TrackingEntry{
			Status:      StatusPending,
			Location:    "Order Received",
			Description: "Shipment request created",
			At:          now,
		}
		if err := appendTracking(ctx, tx, sh.ID, initial); err != nil {
			return err
		}
		sh.Tracking = []TrackingEntry{initial}
		sh.Extras = appliedExtras(sh.Cost.Breakdown.Extras)
		return nil
	})
	if err != nil {
		return Shipment{}, fmt.Errorf("create shipment: %w", err)
	}

	s.log.InfoContext(ctx, "shipment created",
		"shipment_id", sh.ID,
		"tracking_number", sh.TrackingNumber,
		"total_cost", sh.Cost.Totals.TotalCost.StringFixed(2),
	)
	s.publish(ctx, events.ShipmentCreated, sh)
	return sh, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Shipment, error) {
	return load(ctx, s.db, id)
}

// GetByTracking looks a shipment up by its public tracking number.
func (s *Service) GetByTracking(ctx context.Context, trackingNumber string) (Shipment, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM shipments WHERE tracking_number = ?`,
		strings.ToUpper(strings.TrimSpace(trackingNumber)),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Shipment{}, ErrNotFound
	}
	if err != nil {
		return Shipment{}, fmt.Errorf("query tracking number: %w", err)
	}
	return load(ctx, s.db, id)
}

// List returns shipments newest first. Extras and tracking history are not
// loaded.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Shipment, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `SELECT ` + shipmentColumns + ` FROM shipments`
	args := []any{}
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	out := make([]Shipment, 0)
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipments: %w", err)
	}
	return out, nil
}

// Update applies a partial edit and recomputes every cost field.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Shipment, error) {
	var sh Shipment
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if sh, err = load(ctx, tx, id); err != nil {
			return err
		}
		if in.Version != 0 && in.Version != sh.Version {
			return ErrVersionConflict
		}
		if sh.Status.Final() {
			return fmt.Errorf("%w: shipment is %s and can no longer be edited", ErrInvalidInput, sh.Status)
		}

		in.apply(&sh)
		if err := validateParties(sh.Sender, sh.Recipient); err != nil {
			return err
		}
		snap, err := s.refs.Snapshot(ctx, tx)
		if err != nil {
			return err
		}
		if sh.Cost, err = pricing.Calculate(snap, sh.pricingInput()); err != nil {
			return err
		}
		return s.persist(ctx, tx, &sh)
	})
	if err != nil {
		return Shipment{}, fmt.Errorf("update shipment %d: %w", id, err)
	}

	s.recordRecalculation("update")
	s.publish(ctx, events.ShipmentUpdated, sh)
	return sh, nil
}

// Recalculate reprices a stored shipment against the current reference
// data. Nothing is written when the cost is unchanged.
func (s *Service) Recalculate(ctx context.Context, id int64, trigger string) (Shipment, bool, error) {
	var (
		sh      Shipment
		changed bool
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if sh, err = load(ctx, tx, id); err != nil {
			return err
		}
		snap, err := s.refs.Snapshot(ctx, tx)
		if err != nil {
			return err
		}
		res, err := pricing.Calculate(snap, sh.pricingInput())
		if err != nil {
			return err
		}
		same, err := sameCost(sh.Cost, res)
		if err != nil || same {
			return err
		}
		sh.Cost = res
		changed = true
		return s.persist(ctx, tx, &sh)
	})
	if err != nil {
		return Shipment{}, false, fmt.Errorf("recalculate shipment %d: %w", id, err)
	}

	s.recordRecalculation(trigger)
	if changed {
		s.log.InfoContext(ctx, "shipment repriced",
			"shipment_id", sh.ID,
			"trigger", trigger,
			"total_cost", sh.Cost.Totals.TotalCost.StringFixed(2),
		)
		s.publish(ctx, events.ShipmentUpdated, sh)
	}
	return sh, changed, nil
}

// UpdateStatus moves a shipment along its delivery lifecycle and appends a
// tracking entry. Cost fields are recomputed with the rest of the row.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status, location, description string) (Shipment, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		return Shipment{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	var (
		sh       Shipment
		repriced bool
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if sh, err = load(ctx, tx, id); err != nil {
			return err
		}
		if sh.Status.Final() && sh.Status != status {
			return fmt.Errorf("%w: shipment is already %s", ErrInvalidInput, sh.Status)
		}

		sh.Status = status
		if status == StatusDelivered && sh.PaymentStatus == PaymentCODPending {
			sh.PaymentStatus = PaymentCODPaid
		}
		if !status.Final() {
			if repriced, err = s.reprice(ctx, tx, &sh); err != nil {
				return err
			}
		}
		if err := s.persist(ctx, tx, &sh); err != nil {
			return err
		}

		if description == "" {
			description = "Status changed to " + string(status)
		}
		entry := TrackingEntry{Status: status, Location: strings.TrimSpace(location), Description: description, At: sh.UpdatedAt}
		if err := appendTracking(ctx, tx, sh.ID, entry); err != nil {
			return err
		}
		sh.Tracking = append(sh.Tracking, entry)
		return nil
	})
	if err != nil {
		return Shipment{}, fmt.Errorf("update status of shipment %d: %w", id, err)
	}

	if repriced {
		s.recordRecalculation("status")
	}
	s.publish(ctx, events.ShipmentStatusChanged, sh)
	return sh, nil
}

// reprice refreshes sh.Cost for a status move. A shipment whose reference
// data has since been retired keeps its stored cost.
func (s *Service) reprice(ctx context.Context, tx *sql.Tx, sh *Shipment) (bool, error) {
	snap, err := s.refs.Snapshot(ctx, tx)
	if err != nil {
		return false, err
	}
	res, err := pricing.Calculate(snap, sh.pricingInput())
	var pe *pricing.Error
	if errors.As(err, &pe) {
		s.log.WarnContext(ctx, "keeping stored cost, repricing failed",
			"shipment_id", sh.ID,
			"kind", string(pe.Kind),
			"error", err,
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	sh.Cost = res
	return true, nil
}

// persist saves sh against its loaded version and refreshes the extras.
func (s *Service) persist(ctx context.Context, tx *sql.Tx, sh *Shipment) error {
	sh.UpdatedAt = s.now()
	if err := save(ctx, tx, *sh, sh.Version); err != nil {
		return err
	}
	sh.Version++
	if err := replaceExtras(ctx, tx, sh.ID, sh.Cost.Breakdown.Extras); err != nil {
		return err
	}
	sh.Extras = appliedExtras(sh.Cost.Breakdown.Extras)
	return nil
}

func (s *Service) uniqueTrackingNumber(ctx context.Context, tx *sql.Tx) (string, error) {
	for i := 0; i < maxTrackingAttempts; i++ {
		tn, err := s.trackingNumber()
		if err != nil {
			return "", err
		}
		taken, err := trackingNumberTaken(ctx, tx, tn)
		if err != nil {
			return "", err
		}
		if !taken {
			return tn, nil
		}
	}
	return "", fmt.Errorf("no free tracking number after %d attempts", maxTrackingAttempts)
}

func (s *Service) publish(ctx context.Context, eventType string, sh Shipment) {
	e := events.New(eventType, sh.ID, sh.TrackingNumber, string(sh.Status), sh.Cost.Totals.TotalCost)
	if err := s.notifier.Notify(ctx, e); err != nil {
		s.log.WarnContext(ctx, "publish shipment event", "type", eventType, "shipment_id", sh.ID, "error", err)
	}
}

func (s *Service) recordRecalculation(trigger string) {
	if s.rec != nil {
		s.rec.RecordRecalculation(trigger)
	}
}

func validateParties(sender, recipient Party) error {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"sender_name", sender.Name},
		{"sender_address", sender.Address},
		{"recipient_name", recipient.Name},
		{"recipient_address", recipient.Address},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

func appliedExtras(lines []pricing.ExtraLine) []pricing.ExtraSelection {
	out := make([]pricing.ExtraSelection, 0, len(lines))
	for _, l := range lines {
		out = append(out, pricing.ExtraSelection{ID: l.ID, Quantity: l.Quantity})
	}
	return out
}

func sameCost(a, b pricing.Result) (bool, error) {
	ja, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("encode cost breakdown: %w", err)
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("encode cost breakdown: %w", err)
	}
	return bytes.Equal(ja, jb), nil
}
