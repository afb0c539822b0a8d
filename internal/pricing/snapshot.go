package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CountryType marks whether a country can ship from or ship to.
type CountryType string

const (
	CountryDeparture   CountryType = "DEPARTURE"
	CountryDestination CountryType = "DESTINATION"
)

// ChargeType selects how a charge value is applied.
type ChargeType string

const (
	ChargeFixed      ChargeType = "FIXED"
	ChargePercentage ChargeType = "PERCENTAGE"
)

// Valid reports whether t is a known charge type.
func (t ChargeType) Valid() bool {
	return t == ChargeFixed || t == ChargePercentage
}

// DefaultDimensionalFactor is used when a service type has no active factor.
const DefaultDimensionalFactor = 5000

// Country is a departure or destination country.
type Country struct {
	ID     int64
	Name   string
	Code   string
	Type   CountryType
	Active bool
}

// Zone groups departure and destination countries that share rate tables.
type Zone struct {
	ID                    int64
	Name                  string
	Description           string
	DepartureCountryIDs   []int64
	DestinationCountryIDs []int64
	Active                bool
}

// Links reports whether the zone connects sender to recipient.
func (z Zone) Links(senderID, recipientID int64) bool {
	return containsID(z.DepartureCountryIDs, senderID) && containsID(z.DestinationCountryIDs, recipientID)
}

// ServiceType is a delivery service with a flat price.
type ServiceType struct {
	ID           int64
	Name         string
	Description  string
	DeliveryTime string
	Price        decimal.Decimal
	Active       bool
}

// WeightRate is an inclusive weight band for a zone and service type.
type WeightRate struct {
	ID            int64
	ZoneID        int64
	ServiceTypeID int64
	MinWeight     decimal.Decimal
	MaxWeight     decimal.Decimal
	BaseRate      decimal.Decimal
	PerKgRate     decimal.Decimal
	Active        bool
}

// Covers reports whether w falls inside [MinWeight, MaxWeight].
func (r WeightRate) Covers(w decimal.Decimal) bool {
	return r.MinWeight.LessThanOrEqual(w) && r.MaxWeight.GreaterThanOrEqual(w)
}

func (r WeightRate) span() decimal.Decimal {
	return r.MaxWeight.Sub(r.MinWeight)
}

// DimensionalFactor is the volumetric divisor for a service type.
type DimensionalFactor struct {
	ID            int64
	ServiceTypeID int64
	Factor        int
	Active        bool
}

// AdditionalCharge applies to every shipment on a linked zone and service type.
type AdditionalCharge struct {
	ID             int64
	Name           string
	Description    string
	Type           ChargeType
	Value          decimal.Decimal
	ZoneIDs        []int64
	ServiceTypeIDs []int64
	Active         bool
}

// Extra is an optional add-on selected per shipment.
type Extra struct {
	ID          int64
	Name        string
	Description string
	Type        ChargeType
	Value       decimal.Decimal
	Active      bool
}

// City carries the fixed last-mile delivery charge.
type City struct {
	ID             int64
	Name           string
	DeliveryCharge decimal.Decimal
	Active         bool
}

// Currency converts against the base currency: 1 base unit = ConversionRate units.
type Currency struct {
	Code           string
	Name           string
	ConversionRate decimal.Decimal
}

// Tables is the raw reference data a Snapshot is built from.
type Tables struct {
	Countries          []Country
	Zones              []Zone
	ServiceTypes       []ServiceType
	WeightRates        []WeightRate
	DimensionalFactors []DimensionalFactor
	AdditionalCharges  []AdditionalCharge
	Extras             []Extra
	Cities             []City
	Currencies         []Currency
	// CODFeePercent overrides the default COD surcharge when set.
	CODFeePercent *decimal.Decimal
}

// Snapshot is a read-only view of the reference data for one calculation.
// Slices are ordered by id so every lookup is deterministic.
type Snapshot struct {
	tables       Tables
	countries    map[int64]Country
	serviceTypes map[int64]ServiceType
	extras       map[int64]Extra
	cities       map[int64]City
	currencies   map[string]Currency
}

// NewSnapshot copies and indexes t.
func NewSnapshot(t Tables) Snapshot {
	s := Snapshot{
		tables: Tables{
			Countries:          append([]Country(nil), t.Countries...),
			Zones:              append([]Zone(nil), t.Zones...),
			ServiceTypes:       append([]ServiceType(nil), t.ServiceTypes...),
			WeightRates:        append([]WeightRate(nil), t.WeightRates...),
			DimensionalFactors: append([]DimensionalFactor(nil), t.DimensionalFactors...),
			AdditionalCharges:  append([]AdditionalCharge(nil), t.AdditionalCharges...),
			Extras:             append([]Extra(nil), t.Extras...),
			Cities:             append([]City(nil), t.Cities...),
			Currencies:         append([]Currency(nil), t.Currencies...),
		},
		countries:    make(map[int64]Country, len(t.Countries)),
		serviceTypes: make(map[int64]ServiceType, len(t.ServiceTypes)),
		extras:       make(map[int64]Extra, len(t.Extras)),
		cities:       make(map[int64]City, len(t.Cities)),
		currencies:   make(map[string]Currency, len(t.Currencies)),
	}
	if t.CODFeePercent != nil {
		pct := *t.CODFeePercent
		s.tables.CODFeePercent = &pct
	}

	sort.Slice(s.tables.Countries, func(i, j int) bool { return s.tables.Countries[i].ID < s.tables.Countries[j].ID })
	sort.Slice(s.tables.Zones, func(i, j int) bool { return s.tables.Zones[i].ID < s.tables.Zones[j].ID })
	sort.Slice(s.tables.ServiceTypes, func(i, j int) bool { return s.tables.ServiceTypes[i].ID < s.tables.ServiceTypes[j].ID })
	sort.Slice(s.tables.WeightRates, func(i, j int) bool { return s.tables.WeightRates[i].ID < s.tables.WeightRates[j].ID })
	sort.Slice(s.tables.DimensionalFactors, func(i, j int) bool {
		return s.tables.DimensionalFactors[i].ID < s.tables.DimensionalFactors[j].ID
	})
	sort.Slice(s.tables.AdditionalCharges, func(i, j int) bool {
		return s.tables.AdditionalCharges[i].ID < s.tables.AdditionalCharges[j].ID
	})
	sort.Slice(s.tables.Extras, func(i, j int) bool { return s.tables.Extras[i].ID < s.tables.Extras[j].ID })
	sort.Slice(s.tables.Cities, func(i, j int) bool { return s.tables.Cities[i].ID < s.tables.Cities[j].ID })
	sort.Slice(s.tables.Currencies, func(i, j int) bool { return s.tables.Currencies[i].Code < s.tables.Currencies[j].Code })

	for _, c := range s.tables.Countries {
		s.countries[c.ID] = c
	}
	for _, st := range s.tables.ServiceTypes {
		s.serviceTypes[st.ID] = st
	}
	for _, e := range s.tables.Extras {
		s.extras[e.ID] = e
	}
	for _, c := range s.tables.Cities {
		s.cities[c.ID] = c
	}
	for _, c := range s.tables.Currencies {
		s.currencies[strings.ToUpper(c.Code)] = c
	}

	return s
}

// Country returns the country with id, active or not.
func (s Snapshot) Country(id int64) (Country, bool) {
	c, ok := s.countries[id]
	return c, ok
}

// ServiceType returns the service type with id, active or not.
func (s Snapshot) ServiceType(id int64) (ServiceType, bool) {
	st, ok := s.serviceTypes[id]
	return st, ok
}

// Extra returns the extra with id, active or not.
func (s Snapshot) Extra(id int64) (Extra, bool) {
	e, ok := s.extras[id]
	return e, ok
}

// City returns the city with id, active or not.
func (s Snapshot) City(id int64) (City, bool) {
	c, ok := s.cities[id]
	return c, ok
}

// Currency returns the currency for code, case-insensitively.
func (s Snapshot) Currency(code string) (Currency, bool) {
	c, ok := s.currencies[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Countries lists countries ordered by id.
func (s Snapshot) Countries() []Country { return append([]Country(nil), s.tables.Countries...) }

// Zones lists zones ordered by id.
func (s Snapshot) Zones() []Zone { return append([]Zone(nil), s.tables.Zones...) }

// ServiceTypes lists service types ordered by id.
func (s Snapshot) ServiceTypes() []ServiceType {
	return append([]ServiceType(nil), s.tables.ServiceTypes...)
}

// WeightRates lists weight rates ordered by id.
func (s Snapshot) WeightRates() []WeightRate { return append([]WeightRate(nil), s.tables.WeightRates...) }

// Extras lists extras ordered by id.
func (s Snapshot) Extras() []Extra { return append([]Extra(nil), s.tables.Extras...) }

// Cities lists cities ordered by id.
func (s Snapshot) Cities() []City { return append([]City(nil), s.tables.Cities...) }

// Currencies lists currencies ordered by code.
func (s Snapshot) Currencies() []Currency { return append([]Currency(nil), s.tables.Currencies...) }

// CODFeePercent is the configured COD surcharge percentage, or the default.
func (s Snapshot) CODFeePercent() decimal.Decimal {
	if s.tables.CODFeePercent != nil {
		return *s.tables.CODFeePercent
	}
	return defaultCODPercent
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
