package refdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/parcelrate/internal/db"
	"github.com/Simplici0/parcelrate/internal/logging"
	"github.com/Simplici0/parcelrate/internal/pricing"
)

var (
	// ErrInvalidInput wraps every validation failure of an admin mutation.
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("reference record not found")
)

const codFeeRateType = "COD_FEE"

// Store reads and edits the reference tables the pricing engine runs on.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

func NewStore(database *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: database, log: logging.Component(logger, "refdata")}
}

// Snapshot loads every reference table through q, which may be the database
// or an open transaction. Inactive rows are included; the engine filters.
func (s *Store) Snapshot(ctx context.Context, q db.Queryer) (pricing.Snapshot, error) {
	if q == nil {
		q = s.db
	}

	var (
		t   pricing.Tables
		err error
	)
	if t.Countries, err = loadCountries(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}
	if t.Zones, err = loadZones(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}
	if t.ServiceTypes, err = loadServiceTypes(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}
	if t.WeightRates, err = loadWeightRates(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}
	if t.DimensionalFactors, err = loadDimensionalFactors(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}
	if t.AdditionalCharges, err = loadAdditionalCharges(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}
	if t.Extras, err = loadExtras(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}
	if t.Cities, err = loadCities(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}
	if t.Currencies, err = loadCurrencies(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}
	if t.CODFeePercent, err = loadCODFee(ctx, q); err != nil {
		return pricing.Snapshot{}, err
	}

	return pricing.NewSnapshot(t), nil
}

func loadCountries(ctx context.Context, q db.Queryer) ([]pricing.Country, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, code, country_type, active FROM countries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.Country, 0)
	for rows.Next() {
		var c pricing.Country
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Type, &c.Active); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate countries: %w", err)
	}
	return out, nil
}

func loadZones(ctx context.Context, q db.Queryer) ([]pricing.Zone, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, description, active FROM zones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query zones: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.Zone, 0)
	for rows.Next() {
		var z pricing.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.Description, &z.Active); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zones: %w", err)
	}
	rows.Close()

	departures, err := loadLinks(ctx, q, `SELECT zone_id, country_id FROM zone_departure_countries ORDER BY zone_id, country_id`)
	if err != nil {
		return nil, fmt.Errorf("load zone departure countries: %w", err)
	}
	destinations, err := loadLinks(ctx, q, `SELECT zone_id, country_id FROM zone_destination_countries ORDER BY zone_id, country_id`)
	if err != nil {
		return nil, fmt.Errorf("load zone destination countries: %w", err)
	}
	for i := range out {
		out[i].DepartureCountryIDs = departures[out[i].ID]
		out[i].DestinationCountryIDs = destinations[out[i].ID]
	}
	return out, nil
}

// loadLinks reads a two-column join table into owner id → linked ids.
func loadLinks(ctx context.Context, q db.Queryer, query string) (map[int64][]int64, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make(map[int64][]int64)
	for rows.Next() {
		var owner, linked int64
		if err := rows.Scan(&owner, &linked); err != nil {
			return nil, err
		}
		links[owner] = append(links[owner], linked)
	}
	return links, rows.Err()
}

func loadServiceTypes(ctx context.Context, q db.Queryer) ([]pricing.ServiceType, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, description, delivery_time, price, active
		FROM service_types
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query service types: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.ServiceType, 0)
	for rows.Next() {
		var st pricing.ServiceType
		if err := rows.Scan(&st.ID, &st.Name, &st.Description, &st.DeliveryTime, &st.Price, &st.Active); err != nil {
			return nil, fmt.Errorf("scan service type: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service types: %w", err)
	}
	return out, nil
}

func loadWeightRates(ctx context.Context, q db.Queryer) ([]pricing.WeightRate, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, zone_id, service_type_id, min_weight, max_weight, base_rate, per_kg_rate, active
		FROM weight_rates
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query weight rates: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.WeightRate, 0)
	for rows.Next() {
		var r pricing.WeightRate
		if err := rows.Scan(&r.ID, &r.ZoneID, &r.ServiceTypeID, &r.MinWeight, &r.MaxWeight, &r.BaseRate, &r.PerKgRate, &r.Active); err != nil {
			return nil, fmt.Errorf("scan weight rate: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weight rates: %w", err)
	}
	return out, nil
}

func loadDimensionalFactors(ctx context.Context, q db.Queryer) ([]pricing.DimensionalFactor, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, service_type_id, factor, active FROM dimensional_factors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query dimensional factors: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.DimensionalFactor, 0)
	for rows.Next() {
		var f pricing.DimensionalFactor
		if err := rows.Scan(&f.ID, &f.ServiceTypeID, &f.Factor, &f.Active); err != nil {
			return nil, fmt.Errorf("scan dimensional factor: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dimensional factors: %w", err)
	}
	return out, nil
}

func loadAdditionalCharges(ctx context.Context, q db.Queryer) ([]pricing.AdditionalCharge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, description, charge_type, value, active
		FROM additional_charges
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query additional charges: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.AdditionalCharge, 0)
	for rows.Next() {
		var c pricing.AdditionalCharge
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Type, &c.Value, &c.Active); err != nil {
			return nil, fmt.Errorf("scan additional charge: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate additional charges: %w", err)
	}
	rows.Close()

	zones, err := loadLinks(ctx, q, `SELECT charge_id, zone_id FROM additional_charge_zones ORDER BY charge_id, zone_id`)
	if err != nil {
		return nil, fmt.Errorf("load additional charge zones: %w", err)
	}
	services, err := loadLinks(ctx, q, `SELECT charge_id, service_type_id FROM additional_charge_service_types ORDER BY charge_id, service_type_id`)
	if err != nil {
		return nil, fmt.Errorf("load additional charge service types: %w", err)
	}
	for i := range out {
		out[i].ZoneIDs = zones[out[i].ID]
		out[i].ServiceTypeIDs = services[out[i].ID]
	}
	return out, nil
}

func loadExtras(ctx context.Context, q db.Queryer) ([]pricing.Extra, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, description, charge_type, value, active FROM extras ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query extras: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.Extra, 0)
	for rows.Next() {
		var e pricing.Extra
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Type, &e.Value, &e.Active); err != nil {
			return nil, fmt.Errorf("scan extra: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extras: %w", err)
	}
	return out, nil
}

func loadCities(ctx context.Context, q db.Queryer) ([]pricing.City, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, delivery_charge, active FROM cities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.City, 0)
	for rows.Next() {
		var c pricing.City
		if err := rows.Scan(&c.ID, &c.Name, &c.DeliveryCharge, &c.Active); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cities: %w", err)
	}
	return out, nil
}

func loadCurrencies(ctx context.Context, q db.Queryer) ([]pricing.Currency, error) {
	rows, err := q.QueryContext(ctx, `SELECT code, name, conversion_rate FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query currencies: %w", err)
	}
	defer rows.Close()

	out := make([]pricing.Currency, 0)
	for rows.Next() {
		var c pricing.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.ConversionRate); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currencies: %w", err)
	}
	return out, nil
}

func loadCODFee(ctx context.Context, q db.Queryer) (*decimal.Decimal, error) {
	var value decimal.Decimal
	err := q.QueryRowContext(ctx, `
		SELECT value
		FROM dynamic_rates
		WHERE rate_type = ? AND charge_type = ? AND active = 1
	`, codFeeRateType, string(pricing.ChargePercentage)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cod fee: %w", err)
	}
	return &value, nil
}
