package buy4me

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Simplici0/parcelrate/internal/db"
	"github.com/Simplici0/parcelrate/internal/logging"
	"github.com/Simplici0/parcelrate/internal/pricing"
)

// Snapshotter loads the reference tables used for the city charge.
type Snapshotter interface {
	Snapshot(ctx context.Context, q db.Queryer) (pricing.Snapshot, error)
}

// Service manages Buy4Me requests. Every mutation recomputes the request
// total in the transaction that writes it.
type Service struct {
	db   *sql.DB
	refs Snapshotter
	log  *slog.Logger
	now  func() time.Time
}

func NewService(database *sql.DB, refs Snapshotter, logger *slog.Logger) *Service {
	return &Service{
		db:   database,
		refs: refs,
		log:  logging.Component(logger, "buy4me"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateRequest(ctx context.Context, in CreateInput) (Request, error) {
	address := strings.TrimSpace(in.ShippingAddress)
	if address == "" {
		return Request{}, fmt.Errorf("%w: shipping_address is required", ErrInvalidInput)
	}
	items := make([]Item, 0, len(in.Items))
	for i, ii := range in.Items {
		it, err := ii.item()
		if err != nil {
			return Request{}, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, it)
	}

	now := s.now()
	var id int64
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := checkCity(ctx, tx, in.CityID); err != nil {
			return err
		}
		var cityID sql.NullInt64
		if in.CityID != nil {
			cityID = sql.NullInt64{Int64: *in.CityID, Valid: true}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO buy4me_requests (customer_email, shipping_address, notes, city_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, strings.TrimSpace(in.CustomerEmail), address, in.Notes, cityID, string(StatusDraft), formatTime(now), formatTime(now))
		if err != nil {
			return fmt.Errorf("insert buy4me request: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("read buy4me request id: %w", err)
		}
		for _, it := range items {
			if err := insertItem(ctx, tx, id, it, now); err != nil {
				return err
			}
		}
		return s.recompute(ctx, tx, id, false)
	})
	if err != nil {
		return Request{}, fmt.Errorf("create buy4me request: %w", err)
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	s.log.InfoContext(ctx, "buy4me request created", "request_id", req.ID, "items", len(req.Items), "total_cost", req.TotalCost.StringFixed(2))
	return req, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return load(ctx, s.db, id)
}

func (s *Service) AddItem(ctx context.Context, requestID int64, in ItemInput) (Request, error) {
	it, err := in.item()
	if err != nil {
		return Request{}, err
	}
	return s.mutate(ctx, requestID, "add item", true, func(tx *sql.Tx, _ Request) error {
		return insertItem(ctx, tx, requestID, it, s.now())
	})
}

func (s *Service) UpdateItem(ctx context.Context, requestID, itemID int64, p ItemPatch) (Request, error) {
	return s.mutate(ctx, requestID, "update item", true, func(tx *sql.Tx, req Request) error {
		it, ok := findItem(req.Items, itemID)
		if !ok {
			return ErrNotFound
		}
		p.apply(&it)
		if err := validateItem(it); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE buy4me_items
			SET product_name = ?, product_url = ?, quantity = ?, color = ?, size = ?, notes = ?,
				unit_price = ?, store_to_warehouse_delivery_charge = ?
			WHERE id = ? AND request_id = ?
		`, it.ProductName, it.ProductURL, it.Quantity, it.Color, it.Size, it.Notes,
			it.UnitPrice, it.StoreToWarehouseCharge, itemID, requestID)
		if err != nil {
			return fmt.Errorf("update buy4me item %d: %w", itemID, err)
		}
		return nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, requestID, itemID int64) (Request, error) {
	return s.mutate(ctx, requestID, "remove item", true, func(tx *sql.Tx, req Request) error {
		if _, ok := findItem(req.Items, itemID); !ok {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM buy4me_items WHERE id = ? AND request_id = ?`, itemID, requestID); err != nil {
			return fmt.Errorf("delete buy4me item %d: %w", itemID, err)
		}
		return nil
	})
}

// SetCity changes the delivery city; nil removes it.
func (s *Service) SetCity(ctx context.Context, requestID int64, cityID *int64) (Request, error) {
	return s.mutate(ctx, requestID, "set city", true, func(tx *sql.Tx, _ Request) error {
		if err := checkCity(ctx, tx, cityID); err != nil {
			return err
		}
		var v sql.NullInt64
		if cityID != nil {
			v = sql.NullInt64{Int64: *cityID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE buy4me_requests SET city_id = ? WHERE id = ?`, v, requestID); err != nil {
			return fmt.Errorf("update buy4me city: %w", err)
		}
		return nil
	})
}

// UpdateStatus moves the request along its lifecycle. Completed and
// cancelled requests are closed for good and keep their last total.
func (s *Service) UpdateStatus(ctx context.Context, requestID int64, status Status) (Request, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		return Request{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.mutate(ctx, requestID, "update status", !status.closed(), func(tx *sql.Tx, _ Request) error {
		if _, err := tx.ExecContext(ctx, `UPDATE buy4me_requests SET status = ? WHERE id = ?`, string(status), requestID); err != nil {
			return fmt.Errorf("update buy4me status: %w", err)
		}
		return nil
	})
}

// mutate runs fn against an open request and, when reprice is set,
// recomputes its total in the same transaction.
func (s *Service) mutate(ctx context.Context, requestID int64, op string, reprice bool, fn func(tx *sql.Tx, req Request) error) (Request, error) {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		req, err := load(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.Status.closed() {
			return fmt.Errorf("%w: status is %s", ErrClosed, req.Status)
		}
		if err := fn(tx, req); err != nil {
			return err
		}
		if !reprice {
			return s.touch(ctx, tx, req)
		}
		return s.recompute(ctx, tx, requestID, true)
	})
	if err != nil {
		return Request{}, fmt.Errorf("%s on buy4me request %d: %w", op, requestID, err)
	}
	return s.Get(ctx, requestID)
}

// recompute stores the city charge and total derived from the current
// items. bump increments the version. A city retired after it was chosen
// keeps its stored charge.
func (s *Service) recompute(ctx context.Context, tx *sql.Tx, id int64, bump bool) error {
	req, err := load(ctx, tx, id)
	if err != nil {
		return err
	}
	snap, err := s.refs.Snapshot(ctx, tx)
	if err != nil {
		return err
	}
	city, err := pricing.CityDeliveryCharge(snap, req.CityID)
	var pe *pricing.Error
	if errors.As(err, &pe) {
		s.log.WarnContext(ctx, "keeping stored city charge",
			"request_id", id,
			"city_id", *req.CityID,
			"error", err,
		)
		city = req.CityDeliveryCharge
	} else if err != nil {
		return err
	}
	total := pricing.Round(ItemsTotal(req.Items).Add(city))

	version := req.Version
	if bump {
		version++
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE buy4me_requests
		SET city_delivery_charge = ?, total_cost = ?, version = ?, updated_at = ?
		WHERE id = ?
	`, city, total, version, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("update buy4me total: %w", err)
	}
	return nil
}

// touch bumps the version without repricing.
func (s *Service) touch(ctx context.Context, tx *sql.Tx, req Request) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE buy4me_requests SET version = ?, updated_at = ? WHERE id = ?
	`, req.Version+1, formatTime(s.now()), req.ID)
	if err != nil {
		return fmt.Errorf("update buy4me version: %w", err)
	}
	return nil
}

func load(ctx context.Context, q db.Queryer, id int64) (Request, error) {
	var (
		req                  Request
		cityID               sql.NullInt64
		status               string
		createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, customer_email, shipping_address, notes, city_id, city_delivery_charge, total_cost,
			status, payment_status, version, created_at, updated_at
		FROM buy4me_requests
		WHERE id = ?
	`, id).Scan(&req.ID, &req.CustomerEmail, &req.ShippingAddress, &req.Notes, &cityID,
		&req.CityDeliveryCharge, &req.TotalCost, &status, &req.PaymentStatus, &req.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return req, ErrNotFound
	}
	if err != nil {
		return req, fmt.Errorf("query buy4me request %d: %w", id, err)
	}
	req.Status = Status(status)
	if cityID.Valid {
		v := cityID.Int64
		req.CityID = &v
	}
	if req.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return req, fmt.Errorf("parse created_at: %w", err)
	}
	if req.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return req, fmt.Errorf("parse updated_at: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, request_id, product_name, product_url, quantity, color, size, notes,
			unit_price, store_to_warehouse_delivery_charge, currency, created_at
		FROM buy4me_items
		WHERE request_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return req, fmt.Errorf("query buy4me items: %w", err)
	}
	defer rows.Close()

	req.Items = make([]Item, 0)
	for rows.Next() {
		var (
			it Item
			at string
		)
		if err := rows.Scan(&it.ID, &it.RequestID, &it.ProductName, &it.ProductURL, &it.Quantity, &it.Color,
			&it.Size, &it.Notes, &it.UnitPrice, &it.StoreToWarehouseCharge, &it.Currency, &at); err != nil {
			return req, fmt.Errorf("scan buy4me item: %w", err)
		}
		if it.CreatedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return req, fmt.Errorf("parse item created_at: %w", err)
		}
		req.Items = append(req.Items, it)
	}
	if err := rows.Err(); err != nil {
		return req, fmt.Errorf("iterate buy4me items: %w", err)
	}
	return req, nil
}

func insertItem(ctx context.Context, tx *sql.Tx, requestID int64, it Item, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO buy4me_items (
			request_id, product_name, product_url, quantity, color, size, notes,
			unit_price, store_to_warehouse_delivery_charge, currency, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, requestID, it.ProductName, it.ProductURL, it.Quantity, it.Color, it.Size, it.Notes,
		it.UnitPrice, it.StoreToWarehouseCharge, it.Currency, formatTime(at))
	if err != nil {
		return fmt.Errorf("insert buy4me item: %w", err)
	}
	return nil
}

// checkCity rejects an unknown or inactive city before it reaches the
// foreign key.
func checkCity(ctx context.Context, q db.Queryer, cityID *int64) error {
	if cityID == nil {
		return nil
	}
	var ok bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cities WHERE id = ? AND active)`, *cityID).Scan(&ok); err != nil {
		return fmt.Errorf("check city: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: city with id %d does not exist or is not active", ErrInvalidInput, *cityID)
	}
	return nil
}

func findItem(items []Item, id int64) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
