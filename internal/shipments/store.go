package shipments

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/parcelrate/internal/db"
	"github.com/Simplici0/parcelrate/internal/pricing"
)

const shipmentColumns = `
	id, tracking_number,
	sender_name, sender_email, sender_phone, sender_address, sender_country_id,
	recipient_name, recipient_email, recipient_phone, recipient_address, recipient_country_id,
	service_type_id, city_id, weight, length, width, height,
	payment_method, payment_status, status, notes,
	cost_breakdown, version, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (Shipment, error) {
	var (
		sh                     Shipment
		cityID                 sql.NullInt64
		weight                 decimal.NullDecimal
		length, width, height  decimal.NullDecimal
		breakdown              string
		createdAt, updatedAt   string
		payment, paymentStatus string
		status                 string
	)
	err := row.Scan(
		&sh.ID, &sh.TrackingNumber,
		&sh.Sender.Name, &sh.Sender.Email, &sh.Sender.Phone, &sh.Sender.Address, &sh.Sender.CountryID,
		&sh.Recipient.Name, &sh.Recipient.Email, &sh.Recipient.Phone, &sh.Recipient.Address, &sh.Recipient.CountryID,
		&sh.ServiceTypeID, &cityID, &weight, &length, &width, &height,
		&payment, &paymentStatus, &status, &sh.Notes,
		&breakdown, &sh.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return sh, err
	}

	sh.PaymentMethod = pricing.PaymentMethod(payment)
	sh.PaymentStatus = PaymentStatus(paymentStatus)
	sh.Status = Status(status)
	if cityID.Valid {
		id := cityID.Int64
		sh.CityID = &id
	}
	if weight.Valid {
		w := weight.Decimal
		sh.Weight = &w
	}
	if length.Valid && width.Valid && height.Valid {
		sh.Dimensions = &pricing.Dimensions{Length: length.Decimal, Width: width.Decimal, Height: height.Decimal}
	}
	if err := json.Unmarshal([]byte(breakdown), &sh.Cost); err != nil {
		return sh, fmt.Errorf("decode cost breakdown of shipment %d: %w", sh.ID, err)
	}
	if sh.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return sh, fmt.Errorf("parse created_at of shipment %d: %w", sh.ID, err)
	}
	if sh.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return sh, fmt.Errorf("parse updated_at of shipment %d: %w", sh.ID, err)
	}
	return sh, nil
}

// load reads one shipment with its extras and tracking history.
func load(ctx context.Context, q db.Queryer, id int64) (Shipment, error) {
	sh, err := scanShipment(q.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return sh, ErrNotFound
	}
	if err != nil {
		return sh, fmt.Errorf("query shipment %d: %w", id, err)
	}

	if sh.Extras, err = loadExtras(ctx, q, id); err != nil {
		return sh, err
	}
	if sh.Tracking, err = loadTracking(ctx, q, id); err != nil {
		return sh, err
	}
	return sh, nil
}

func loadExtras(ctx context.Context, q db.Queryer, id int64) ([]pricing.ExtraSelection, error) {
	rows, err := q.QueryContext(ctx, `SELECT extra_id, quantity FROM shipment_extras WHERE shipment_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query shipment extras: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.ExtraSelection, 0)
	for rows.Next() {
		var sel pricing.ExtraSelection
		if err := rows.Scan(&sel.ID, &sel.Quantity); err != nil {
			return nil, fmt.Errorf("scan shipment extra: %w", err)
		}
		out = append(out, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipment extras: %w", err)
	}
	return out, nil
}

func loadTracking(ctx context.Context, q db.Queryer, id int64) ([]TrackingEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT status, location, description, created_at
		FROM shipment_tracking
		WHERE shipment_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query tracking history: %w", err)
	}
	defer rows.Close()

	out := make([]TrackingEntry, 0)
	for rows.Next() {
		var (
			e      TrackingEntry
			status string
			at     string
		)
		if err := rows.Scan(&status, &e.Location, &e.Description, &at); err != nil {
			return nil, fmt.Errorf("scan tracking entry: %w", err)
		}
		e.Status = Status(status)
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse tracking timestamp: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking history: %w", err)
	}
	return out, nil
}

// costColumns flattens a calculation into the stored cost columns, in the
// order used by insert and save.
func costColumns(res pricing.Result) ([]any, error) {
	breakdown, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode cost breakdown: %w", err)
	}

	var volumetric decimal.NullDecimal
	if res.Weight.VolumetricWeight != nil {
		volumetric = decimal.NewNullDecimal(pricing.Round(*res.Weight.VolumetricWeight))
	}
	b := res.Breakdown
	return []any{
		res.Route.ZoneID,
		res.Weight.ChargeableWeight,
		volumetric,
		b.ServicePrice,
		b.BaseRate,
		b.PerKgRate,
		b.WeightCharge,
		b.TotalAdditionalCharges,
		b.ExtrasTotal,
		b.CityDeliveryCharge,
		b.CODAmount,
		res.Totals.Subtotal,
		res.Totals.TotalCost,
		string(breakdown),
	}, nil
}

func inputColumns(sh Shipment) []any {
	var cityID sql.NullInt64
	if sh.CityID != nil {
		cityID = sql.NullInt64{Int64: *sh.CityID, Valid: true}
	}
	var weight, length, width, height decimal.NullDecimal
	if sh.Weight != nil {
		weight = decimal.NewNullDecimal(*sh.Weight)
	}
	if sh.Dimensions != nil {
		length = decimal.NewNullDecimal(sh.Dimensions.Length)
		width = decimal.NewNullDecimal(sh.Dimensions.Width)
		height = decimal.NewNullDecimal(sh.Dimensions.Height)
	}
	return []any{
		sh.Sender.Name, sh.Sender.Email, sh.Sender.Phone, sh.Sender.Address, sh.Sender.CountryID,
		sh.Recipient.Name, sh.Recipient.Email, sh.Recipient.Phone, sh.Recipient.Address, sh.Recipient.CountryID,
		sh.ServiceTypeID, cityID, weight, length, width, height,
		string(sh.PaymentMethod), string(sh.PaymentStatus), string(sh.Status), sh.Notes,
	}
}

func insert(ctx context.Context, tx *sql.Tx, sh Shipment) (int64, error) {
	cost, err := costColumns(sh.Cost)
	if err != nil {
		return 0, err
	}
	args := append([]any{sh.TrackingNumber}, inputColumns(sh)...)
	args = append(args, cost...)
	args = append(args, sh.Version, formatTime(sh.CreatedAt), formatTime(sh.UpdatedAt))

	res, err := tx.ExecContext(ctx, `
		INSERT INTO shipments (
			tracking_number,
			sender_name, sender_email, sender_phone, sender_address, sender_country_id,
			recipient_name, recipient_email, recipient_phone, recipient_address, recipient_country_id,
			service_type_id, city_id, weight, length, width, height,
			payment_method, payment_status, status, notes,
			zone_id, chargeable_weight, volumetric_weight,
			service_price, base_rate, per_kg_rate, weight_charge,
			total_additional_charges, extras_charges, city_delivery_charge, cod_amount,
			subtotal, total_cost, cost_breakdown,
			version, created_at, updated_at
		) VALUES (
			?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?
		)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("insert shipment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read shipment id: %w", err)
	}
	return id, nil
}

// save writes inputs and derived cost columns of sh if the stored version is
// still expected, and bumps the version.
func save(ctx context.Context, tx *sql.Tx, sh Shipment, expected int) error {
	cost, err := costColumns(sh.Cost)
	if err != nil {
		return err
	}
	args := append(inputColumns(sh), cost...)
	args = append(args, formatTime(sh.UpdatedAt), sh.ID, expected)

	res, err := tx.ExecContext(ctx, `
		UPDATE shipments
		SET
			sender_name = ?, sender_email = ?, sender_phone = ?, sender_address = ?, sender_country_id = ?,
			recipient_name = ?, recipient_email = ?, recipient_phone = ?, recipient_address = ?, recipient_country_id = ?,
			service_type_id = ?, city_id = ?, weight = ?, length = ?, width = ?, height = ?,
			payment_method = ?, payment_status = ?, status = ?, notes = ?,
			zone_id = ?, chargeable_weight = ?, volumetric_weight = ?,
			service_price = ?, base_rate = ?, per_kg_rate = ?, weight_charge = ?,
			total_additional_charges = ?, extras_charges = ?, city_delivery_charge = ?, cod_amount = ?,
			subtotal = ?, total_cost = ?, cost_breakdown = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("update shipment %d: %w", sh.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update shipment %d: %w", sh.ID, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// replaceExtras stores the applied extras with their effective quantities.
func replaceExtras(ctx context.Context, tx *sql.Tx, id int64, lines []pricing.ExtraLine) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM shipment_extras WHERE shipment_id = ?`, id); err != nil {
		return fmt.Errorf("clear shipment extras: %w", err)
	}
	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shipment_extras (shipment_id, extra_id, quantity)
			VALUES (?, ?, ?)
		`, id, l.ID, l.Quantity); err != nil {
			return fmt.Errorf("insert shipment extra: %w", err)
		}
	}
	return nil
}

func appendTracking(ctx context.Context, tx *sql.Tx, id int64, e TrackingEntry) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO shipment_tracking (shipment_id, status, location, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, string(e.Status), e.Location, e.Description, formatTime(e.At)); err != nil {
		return fmt.Errorf("insert tracking entry: %w", err)
	}
	return nil
}

// newTrackingNumber returns TRK followed by nine random digits.
func newTrackingNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000_000))
	if err != nil {
		return "", fmt.Errorf("generate tracking number: %w", err)
	}
	return fmt.Sprintf("TRK%09d", n.Int64()), nil
}

func trackingNumberTaken(ctx context.Context, tx *sql.Tx, tn string) (bool, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM shipments WHERE tracking_number = ?)`, tn).Scan(&exists); err != nil {
		return false, fmt.Errorf("check tracking number: %w", err)
	}
	return exists, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
