package seed

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

//go:embed reference.yaml
var referenceYAML []byte

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
	// ReferenceData also loads the bundled countries, zones, rates and
	// charges.
	ReferenceData bool
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

type reference struct {
	Countries []struct {
		Code string `yaml:"code"`
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	} `yaml:"countries"`
	ServiceTypes []struct {
		Name         string `yaml:"name"`
		Description  string `yaml:"description"`
		DeliveryTime string `yaml:"delivery_time"`
		Price        string `yaml:"price"`
	} `yaml:"service_types"`
	Zones []struct {
		Name        string   `yaml:"name"`
		Departure   []string `yaml:"departure"`
		Destination []string `yaml:"destination"`
	} `yaml:"zones"`
	WeightRates []struct {
		Zone    string `yaml:"zone"`
		Service string `yaml:"service"`
		Min     string `yaml:"min"`
		Max     string `yaml:"max"`
		Base    string `yaml:"base"`
		PerKg   string `yaml:"per_kg"`
	} `yaml:"weight_rates"`
	DimensionalFactors []struct {
		Service string `yaml:"service"`
		Factor  int    `yaml:"factor"`
	} `yaml:"dimensional_factors"`
	AdditionalCharges []struct {
		Name     string   `yaml:"name"`
		Type     string   `yaml:"type"`
		Value    string   `yaml:"value"`
		Zones    []string `yaml:"zones"`
		Services []string `yaml:"services"`
	} `yaml:"additional_charges"`
	Extras []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Type        string `yaml:"type"`
		Value       string `yaml:"value"`
	} `yaml:"extras"`
	Cities []struct {
		Name           string `yaml:"name"`
		DeliveryCharge string `yaml:"delivery_charge"`
	} `yaml:"cities"`
	Currencies []struct {
		Code string `yaml:"code"`
		Name string `yaml:"name"`
		Rate string `yaml:"rate"`
	} `yaml:"currencies"`
	CODFeePercent string `yaml:"cod_fee_percent"`
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	var ref reference
	if cfg.ReferenceData {
		if err := yaml.Unmarshal(referenceYAML, &ref); err != nil {
			return Stats{}, fmt.Errorf("parse reference data: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	s := &seeder{tx: tx}
	if err := s.admin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if cfg.ReferenceData {
		if err := s.reference(ref); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return s.stats, nil
}

type seeder struct {
	tx    *sql.Tx
	stats Stats
}

// ensure runs insert when exists reports no matching row, and returns the
// id of the existing or inserted row.
func (s *seeder) ensure(what, exists string, existsArgs []any, insert string, insertArgs ...any) (int64, error) {
	var id int64
	err := s.tx.QueryRow(exists, existsArgs...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check %s existence: %w", what, err)
	}

	res, err := s.tx.Exec(insert, insertArgs...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", what, err)
	}
	s.stats.Inserts++
	if id, err = res.LastInsertId(); err != nil {
		return 0, fmt.Errorf("read %s id: %w", what, err)
	}
	return id, nil
}

func (s *seeder) admin(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := s.tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := s.tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, string(hash)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	s.stats.Inserts++
	return nil
}

func (s *seeder) reference(ref reference) error {
	departure := map[string]int64{}
	destination := map[string]int64{}
	for _, c := range ref.Countries {
		id, err := s.ensure("country "+c.Code,
			`SELECT id FROM countries WHERE code = ? AND country_type = ?`, []any{c.Code, c.Type},
			`INSERT INTO countries (name, code, country_type) VALUES (?, ?, ?)`, c.Name, c.Code, c.Type)
		if err != nil {
			return err
		}
		if c.Type == "DEPARTURE" {
			departure[c.Code] = id
		} else {
			destination[c.Code] = id
		}
	}

	services := map[string]int64{}
	for _, st := range ref.ServiceTypes {
		price, err := parseDecimal("service "+st.Name, st.Price)
		if err != nil {
			return err
		}
		id, err := s.ensure("service type "+st.Name,
			`SELECT id FROM service_types WHERE name = ?`, []any{st.Name},
			`INSERT INTO service_types (name, description, delivery_time, price) VALUES (?, ?, ?, ?)`,
			st.Name, st.Description, st.DeliveryTime, price)
		if err != nil {
			return err
		}
		services[st.Name] = id
	}

	zones := map[string]int64{}
	for _, z := range ref.Zones {
		before := s.stats.Inserts
		id, err := s.ensure("zone "+z.Name,
			`SELECT id FROM zones WHERE name = ?`, []any{z.Name},
			`INSERT INTO zones (name) VALUES (?)`, z.Name)
		if err != nil {
			return err
		}
		zones[z.Name] = id
		if s.stats.Inserts == before {
			continue
		}
		if err := s.links(`INSERT INTO zone_departure_countries (zone_id, country_id) VALUES (?, ?)`, id, departure, z.Departure); err != nil {
			return err
		}
		if err := s.links(`INSERT INTO zone_destination_countries (zone_id, country_id) VALUES (?, ?)`, id, destination, z.Destination); err != nil {
			return err
		}
	}

	for _, r := range ref.WeightRates {
		zoneID, serviceID, err := pair(zones, r.Zone, services, r.Service)
		if err != nil {
			return err
		}
		what := fmt.Sprintf("weight rate %s/%s %s-%s", r.Zone, r.Service, r.Min, r.Max)
		vals, err := parseDecimals(what, r.Min, r.Max, r.Base, r.PerKg)
		if err != nil {
			return err
		}
		if _, err := s.ensure(what,
			`SELECT id FROM weight_rates WHERE zone_id = ? AND service_type_id = ? AND min_weight = ? AND max_weight = ?`,
			[]any{zoneID, serviceID, vals[0], vals[1]},
			`INSERT INTO weight_rates (zone_id, service_type_id, min_weight, max_weight, base_rate, per_kg_rate) VALUES (?, ?, ?, ?, ?, ?)`,
			zoneID, serviceID, vals[0], vals[1], vals[2], vals[3]); err != nil {
			return err
		}
	}

	for _, f := range ref.DimensionalFactors {
		serviceID, ok := services[f.Service]
		if !ok {
			return fmt.Errorf("dimensional factor: unknown service %q", f.Service)
		}
		if _, err := s.ensure("dimensional factor "+f.Service,
			`SELECT id FROM dimensional_factors WHERE service_type_id = ?`, []any{serviceID},
			`INSERT INTO dimensional_factors (service_type_id, factor) VALUES (?, ?)`, serviceID, f.Factor); err != nil {
			return err
		}
	}

	for _, c := range ref.AdditionalCharges {
		value, err := parseDecimal("additional charge "+c.Name, c.Value)
		if err != nil {
			return err
		}
		before := s.stats.Inserts
		id, err := s.ensure("additional charge "+c.Name,
			`SELECT id FROM additional_charges WHERE name = ?`, []any{c.Name},
			`INSERT INTO additional_charges (name, charge_type, value) VALUES (?, ?, ?)`, c.Name, c.Type, value)
		if err != nil {
			return err
		}
		if s.stats.Inserts == before {
			continue
		}
		if err := s.links(`INSERT INTO additional_charge_zones (charge_id, zone_id) VALUES (?, ?)`, id, zones, c.Zones); err != nil {
			return err
		}
		if err := s.links(`INSERT INTO additional_charge_service_types (charge_id, service_type_id) VALUES (?, ?)`, id, services, c.Services); err != nil {
			return err
		}
	}

	for _, e := range ref.Extras {
		value, err := parseDecimal("extra "+e.Name, e.Value)
		if err != nil {
			return err
		}
		if _, err := s.ensure("extra "+e.Name,
			`SELECT id FROM extras WHERE name = ?`, []any{e.Name},
			`INSERT INTO extras (name, description, charge_type, value) VALUES (?, ?, ?, ?)`,
			e.Name, e.Description, e.Type, value); err != nil {
			return err
		}
	}

	for _, c := range ref.Cities {
		charge, err := parseDecimal("city "+c.Name, c.DeliveryCharge)
		if err != nil {
			return err
		}
		if _, err := s.ensure("city "+c.Name,
			`SELECT id FROM cities WHERE name = ?`, []any{c.Name},
			`INSERT INTO cities (name, delivery_charge) VALUES (?, ?)`, c.Name, charge); err != nil {
			return err
		}
	}

	for _, c := range ref.Currencies {
		rate, err := parseDecimal("currency "+c.Code, c.Rate)
		if err != nil {
			return err
		}
		if err := s.ensureCurrency(c.Code, c.Name, rate); err != nil {
			return err
		}
	}

	if ref.CODFeePercent != "" {
		pct, err := parseDecimal("cod fee", ref.CODFeePercent)
		if err != nil {
			return err
		}
		if _, err := s.ensure("cod fee",
			`SELECT id FROM dynamic_rates WHERE rate_type = 'COD_FEE'`, nil,
			`INSERT INTO dynamic_rates (name, rate_type, charge_type, value) VALUES ('COD fee', 'COD_FEE', 'PERCENTAGE', ?)`, pct); err != nil {
			return err
		}
	}
	return nil
}

// ensureCurrency is keyed by code, which is also the primary key.
func (s *seeder) ensureCurrency(code, name string, rate decimal.Decimal) error {
	var exists bool
	if err := s.tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM currencies WHERE code = ?)`, code).Scan(&exists); err != nil {
		return fmt.Errorf("check currency %s existence: %w", code, err)
	}
	if exists {
		return nil
	}
	if _, err := s.tx.Exec(`INSERT INTO currencies (code, name, conversion_rate) VALUES (?, ?, ?)`, code, name, rate); err != nil {
		return fmt.Errorf("insert currency %s: %w", code, err)
	}
	s.stats.Inserts++
	return nil
}

func (s *seeder) links(query string, owner int64, ids map[string]int64, names []string) error {
	for _, name := range names {
		id, ok := ids[name]
		if !ok {
			return fmt.Errorf("link %d: unknown reference %q", owner, name)
		}
		if _, err := s.tx.Exec(query, owner, id); err != nil {
			return fmt.Errorf("link %d to %s: %w", owner, name, err)
		}
	}
	return nil
}

func pair(zones map[string]int64, zone string, services map[string]int64, service string) (int64, int64, error) {
	zoneID, ok := zones[zone]
	if !ok {
		return 0, 0, fmt.Errorf("unknown zone %q", zone)
	}
	serviceID, ok := services[service]
	if !ok {
		return 0, 0, fmt.Errorf("unknown service %q", service)
	}
	return zoneID, serviceID, nil
}

func parseDecimal(what, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: parse %q: %w", what, raw, err)
	}
	return v, nil
}

func parseDecimals(what string, raw ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(raw))
	for _, r := range raw {
		v, err := parseDecimal(what, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
