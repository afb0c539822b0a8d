package refdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/parcelrate/internal/db"
	"github.com/Simplici0/parcelrate/internal/pricing"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// CreateCountry inserts an active country.
func (s *Store) CreateCountry(ctx context.Context, c pricing.Country) (pricing.Country, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	if c.Name == "" || c.Code == "" {
		return c, invalid("name and code are required")
	}
	if c.Type != pricing.CountryDeparture && c.Type != pricing.CountryDestination {
		return c, invalid("country_type must be DEPARTURE or DESTINATION")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO countries (name, code, country_type, active)
		VALUES (?, ?, ?, TRUE)
	`, c.Name, c.Code, string(c.Type))
	if err != nil {
		return c, fmt.Errorf("insert country: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return c, fmt.Errorf("read country id: %w", err)
	}
	c.Active = true
	return c, nil
}

// CreateZone inserts a zone with its departure and destination links. Every
// linked country must exist with the matching type.
func (s *Store) CreateZone(ctx context.Context, z pricing.Zone) (pricing.Zone, error) {
	z.Name = strings.TrimSpace(z.Name)
	if z.Name == "" {
		return z, invalid("name is required")
	}
	if len(z.DepartureCountryIDs) == 0 || len(z.DestinationCountryIDs) == 0 {
		return z, invalid("a zone needs at least one departure and one destination country")
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := checkCountries(ctx, tx, z.DepartureCountryIDs, pricing.CountryDeparture); err != nil {
			return err
		}
		if err := checkCountries(ctx, tx, z.DestinationCountryIDs, pricing.CountryDestination); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO zones (name, description, active)
			VALUES (?, ?, TRUE)
		`, z.Name, z.Description)
		if err != nil {
			return fmt.Errorf("insert zone: %w", err)
		}
		if z.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("read zone id: %w", err)
		}

		if err := insertLinks(ctx, tx, `INSERT INTO zone_departure_countries (zone_id, country_id) VALUES (?, ?)`, z.ID, z.DepartureCountryIDs); err != nil {
			return fmt.Errorf("link departure countries: %w", err)
		}
		if err := insertLinks(ctx, tx, `INSERT INTO zone_destination_countries (zone_id, country_id) VALUES (?, ?)`, z.ID, z.DestinationCountryIDs); err != nil {
			return fmt.Errorf("link destination countries: %w", err)
		}
		return nil
	})
	if err != nil {
		return z, err
	}
	z.Active = true
	return z, nil
}

func checkCountries(ctx context.Context, tx *sql.Tx, ids []int64, want pricing.CountryType) error {
	for _, id := range ids {
		var kind string
		err := tx.QueryRowContext(ctx, `SELECT country_type FROM countries WHERE id = ?`, id).Scan(&kind)
		if errors.Is(err, sql.ErrNoRows) {
			return invalid("country %d does not exist", id)
		}
		if err != nil {
			return fmt.Errorf("query country %d: %w", id, err)
		}
		if pricing.CountryType(kind) != want {
			return invalid("country %d is not a %s country", id, strings.ToLower(string(want)))
		}
	}
	return nil
}

func insertLinks(ctx context.Context, tx *sql.Tx, query string, owner int64, ids []int64) error {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := tx.ExecContext(ctx, query, owner, id); err != nil {
			return err
		}
	}
	return nil
}

// CreateServiceType inserts an active service type.
func (s *Store) CreateServiceType(ctx context.Context, st pricing.ServiceType) (pricing.ServiceType, error) {
	st.Name = strings.TrimSpace(st.Name)
	if st.Name == "" {
		return st, invalid("name is required")
	}
	if st.Price.IsNegative() {
		return st, invalid("price must be >= 0")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO service_types (name, description, delivery_time, price, active)
		VALUES (?, ?, ?, ?, TRUE)
	`, st.Name, st.Description, st.DeliveryTime, st.Price)
	if err != nil {
		return st, fmt.Errorf("insert service type: %w", err)
	}
	if st.ID, err = res.LastInsertId(); err != nil {
		return st, fmt.Errorf("read service type id: %w", err)
	}
	st.Active = true
	return st, nil
}

// CreateWeightRate inserts a weight band for an existing zone and service.
func (s *Store) CreateWeightRate(ctx context.Context, r pricing.WeightRate) (pricing.WeightRate, error) {
	switch {
	case r.MinWeight.IsNegative():
		return r, invalid("min_weight must be >= 0")
	case r.MaxWeight.LessThan(r.MinWeight):
		return r, invalid("max_weight must be >= min_weight")
	case r.PerKgRate.IsNegative() || r.BaseRate.IsNegative():
		return r, invalid("rates must be >= 0")
	}
	if err := s.mustExist(ctx, "zones", r.ZoneID); err != nil {
		return r, err
	}
	if err := s.mustExist(ctx, "service_types", r.ServiceTypeID); err != nil {
		return r, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO weight_rates (zone_id, service_type_id, min_weight, max_weight, base_rate, per_kg_rate, active)
		VALUES (?, ?, ?, ?, ?, ?, TRUE)
	`, r.ZoneID, r.ServiceTypeID, r.MinWeight, r.MaxWeight, r.BaseRate, r.PerKgRate)
	if err != nil {
		return r, fmt.Errorf("insert weight rate: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return r, fmt.Errorf("read weight rate id: %w", err)
	}
	r.Active = true
	return r, nil
}

// CreateDimensionalFactor inserts a volumetric divisor for a service type.
func (s *Store) CreateDimensionalFactor(ctx context.Context, f pricing.DimensionalFactor) (pricing.DimensionalFactor, error) {
	if f.Factor <= 0 {
		return f, invalid("factor must be > 0")
	}
	if err := s.mustExist(ctx, "service_types", f.ServiceTypeID); err != nil {
		return f, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dimensional_factors (service_type_id, factor, active)
		VALUES (?, ?, TRUE)
	`, f.ServiceTypeID, f.Factor)
	if err != nil {
		return f, fmt.Errorf("insert dimensional factor: %w", err)
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return f, fmt.Errorf("read dimensional factor id: %w", err)
	}
	f.Active = true
	return f, nil
}

// CreateAdditionalCharge inserts a charge and its zone and service links.
func (s *Store) CreateAdditionalCharge(ctx context.Context, c pricing.AdditionalCharge) (pricing.AdditionalCharge, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return c, invalid("name is required")
	}
	if err := validateCharge(c.Type, c.Value); err != nil {
		return c, err
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO additional_charges (name, description, charge_type, value, active)
			VALUES (?, ?, ?, ?, TRUE)
		`, c.Name, c.Description, string(c.Type), c.Value)
		if err != nil {
			return fmt.Errorf("insert additional charge: %w", err)
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("read additional charge id: %w", err)
		}

		if err := insertLinks(ctx, tx, `INSERT INTO additional_charge_zones (charge_id, zone_id) VALUES (?, ?)`, c.ID, c.ZoneIDs); err != nil {
			return invalid("link zones: %v", err)
		}
		if err := insertLinks(ctx, tx, `INSERT INTO additional_charge_service_types (charge_id, service_type_id) VALUES (?, ?)`, c.ID, c.ServiceTypeIDs); err != nil {
			return invalid("link service types: %v", err)
		}
		return nil
	})
	if err != nil {
		return c, err
	}
	c.Active = true
	return c, nil
}

// CreateExtra inserts an active extra.
func (s *Store) CreateExtra(ctx context.Context, e pricing.Extra) (pricing.Extra, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return e, invalid("name is required")
	}
	if err := validateCharge(e.Type, e.Value); err != nil {
		return e, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO extras (name, description, charge_type, value, active)
		VALUES (?, ?, ?, ?, TRUE)
	`, e.Name, e.Description, string(e.Type), e.Value)
	if err != nil {
		return e, fmt.Errorf("insert extra: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return e, fmt.Errorf("read extra id: %w", err)
	}
	e.Active = true
	return e, nil
}

// CreateCity inserts an active city.
func (s *Store) CreateCity(ctx context.Context, c pricing.City) (pricing.City, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return c, invalid("name is required")
	}
	if c.DeliveryCharge.IsNegative() {
		return c, invalid("delivery_charge must be >= 0")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cities (name, delivery_charge, active)
		VALUES (?, ?, TRUE)
	`, c.Name, c.DeliveryCharge)
	if err != nil {
		return c, fmt.Errorf("insert city: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return c, fmt.Errorf("read city id: %w", err)
	}
	c.Active = true
	return c, nil
}

// UpsertCurrency creates a currency or replaces its name and rate.
func (s *Store) UpsertCurrency(ctx context.Context, c pricing.Currency) (pricing.Currency, error) {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	if len(c.Code) != 3 {
		return c, invalid("code must have 3 letters")
	}
	if !c.ConversionRate.IsPositive() {
		return c, invalid("conversion_rate must be > 0")
	}
	if c.Name == "" {
		c.Name = c.Code
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO currencies (code, name, conversion_rate)
		VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			conversion_rate = excluded.conversion_rate,
			updated_at = CURRENT_TIMESTAMP
	`, c.Code, c.Name, c.ConversionRate)
	if err != nil {
		return c, fmt.Errorf("upsert currency: %w", err)
	}
	return c, nil
}

// SetCODFeePercent stores the active COD surcharge percentage.
func (s *Store) SetCODFeePercent(ctx context.Context, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return invalid("cod fee must be between 0 and 100")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dynamic_rates (name, rate_type, charge_type, value, active)
		VALUES ('Cash on delivery fee', ?, ?, ?, TRUE)
		ON CONFLICT(rate_type) DO UPDATE SET
			charge_type = excluded.charge_type,
			value = excluded.value,
			active = TRUE,
			updated_at = CURRENT_TIMESTAMP
	`, codFeeRateType, string(pricing.ChargePercentage), pct)
	if err != nil {
		return fmt.Errorf("upsert cod fee: %w", err)
	}
	s.log.Info("cod fee updated", "percent", pct.String())
	return nil
}

// activatable maps the admin resource names onto their tables.
var activatable = map[string]string{
	"countries":           "countries",
	"zones":               "zones",
	"service-types":       "service_types",
	"rates":               "weight_rates",
	"dimensional-factors": "dimensional_factors",
	"additional-charges":  "additional_charges",
	"extras":              "extras",
	"cities":              "cities",
	"cod-fee":             "dynamic_rates",
}

// SetActive toggles the active flag of one reference row.
func (s *Store) SetActive(ctx context.Context, resource string, id int64, active bool) error {
	table, ok := activatable[resource]
	if !ok {
		return invalid("unknown resource %q", resource)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("update %s active flag: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s active flag: %w", table, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.log.Info("reference row toggled", "resource", resource, "id", id, "active", active)
	return nil
}

func (s *Store) mustExist(ctx context.Context, table string, id int64) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = ?)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s existence: %w", table, err)
	}
	if !exists {
		return invalid("%s %d does not exist", strings.TrimSuffix(table, "s"), id)
	}
	return nil
}

func validateCharge(t pricing.ChargeType, v decimal.Decimal) error {
	if !t.Valid() {
		return invalid("charge_type must be FIXED or PERCENTAGE")
	}
	if v.IsNegative() {
		return invalid("value must be >= 0")
	}
	if t == pricing.ChargePercentage && v.GreaterThan(decimal.NewFromInt(100)) {
		return invalid("percentage value must be <= 100")
	}
	return nil
}
