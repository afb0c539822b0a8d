package refdata

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/parcelrate/internal/db"
	"github.com/Simplici0/parcelrate/internal/logging"
	"github.com/Simplici0/parcelrate/internal/migrations"
	"github.com/Simplici0/parcelrate/internal/pricing"
)

func openStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "refdata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, migrations.Up(database))

	return NewStore(database, logging.Discard()), database
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// buildNetwork creates the minimal reference data for one priced route.
func buildNetwork(t *testing.T, s *Store) (from, to pricing.Country, zone pricing.Zone, st pricing.ServiceType) {
	t.Helper()
	ctx := context.Background()

	var err error
	from, err = s.CreateCountry(ctx, pricing.Country{Name: "Malaysia", Code: "my", Type: pricing.CountryDeparture})
	require.NoError(t, err)
	to, err = s.CreateCountry(ctx, pricing.Country{Name: "Singapore", Code: "SG", Type: pricing.CountryDestination})
	require.NoError(t, err)

	zone, err = s.CreateZone(ctx, pricing.Zone{
		Name:                  "Asia",
		DepartureCountryIDs:   []int64{from.ID},
		DestinationCountryIDs: []int64{to.ID},
	})
	require.NoError(t, err)

	st, err = s.CreateServiceType(ctx, pricing.ServiceType{Name: "Express", DeliveryTime: "1-2 days", Price: d("50.00")})
	require.NoError(t, err)

	_, err = s.CreateWeightRate(ctx, pricing.WeightRate{
		ZoneID: zone.ID, ServiceTypeID: st.ID,
		MinWeight: d("0"), MaxWeight: d("100"), PerKgRate: d("5.00"),
	})
	require.NoError(t, err)
	return from, to, zone, st
}

func TestSnapshotLoadsWhatAdminCreated(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	from, to, zone, st := buildNetwork(t, s)

	_, err := s.CreateDimensionalFactor(ctx, pricing.DimensionalFactor{ServiceTypeID: st.ID, Factor: 4000})
	require.NoError(t, err)
	_, err = s.CreateAdditionalCharge(ctx, pricing.AdditionalCharge{
		Name: "Fuel", Type: pricing.ChargeFixed, Value: d("10.00"),
		ZoneIDs: []int64{zone.ID}, ServiceTypeIDs: []int64{st.ID},
	})
	require.NoError(t, err)
	city, err := s.CreateCity(ctx, pricing.City{Name: "Johor Bahru", DeliveryCharge: d("20.00")})
	require.NoError(t, err)
	_, err = s.CreateExtra(ctx, pricing.Extra{Name: "Fragile", Type: pricing.ChargePercentage, Value: d("10")})
	require.NoError(t, err)
	_, err = s.UpsertCurrency(ctx, pricing.Currency{Code: "usd", Name: "US Dollar", ConversionRate: d("0.2123")})
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx, nil)
	require.NoError(t, err)

	c, ok := snap.Country(from.ID)
	require.True(t, ok)
	assert.Equal(t, "MY", c.Code)

	zones := snap.Zones()
	require.Len(t, zones, 1)
	assert.True(t, zones[0].Links(from.ID, to.ID))

	assert.Equal(t, 4000, pricing.DimensionalFactorFor(snap, st.ID))

	cur, ok := snap.Currency("USD")
	require.True(t, ok)
	assert.True(t, cur.ConversionRate.Equal(d("0.2123")))

	res, err := pricing.Calculate(snap, pricing.Input{
		SenderCountryID:    from.ID,
		RecipientCountryID: to.ID,
		ServiceTypeID:      st.ID,
		Weight:             func() *decimal.Decimal { w := d("5"); return &w }(),
		CityID:             &city.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "105.00", res.Totals.TotalCost.StringFixed(2))
}

func TestSnapshotThroughTransaction(t *testing.T) {
	s, database := openStore(t)
	ctx := context.Background()
	buildNetwork(t, s)

	tx, err := database.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	snap, err := s.Snapshot(ctx, tx)
	require.NoError(t, err)
	assert.Len(t, snap.ServiceTypes(), 1)
}

func TestCODFeeOverride(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	snap, err := s.Snapshot(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "5", snap.CODFeePercent().String())

	require.NoError(t, s.SetCODFeePercent(ctx, d("7.5")))
	require.NoError(t, s.SetCODFeePercent(ctx, d("8")))

	snap, err = s.Snapshot(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "8", snap.CODFeePercent().String())

	require.ErrorIs(t, s.SetCODFeePercent(ctx, d("101")), ErrInvalidInput)
}

func TestSetActive(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	_, _, zone, _ := buildNetwork(t, s)

	require.NoError(t, s.SetActive(ctx, "zones", zone.ID, false))

	snap, err := s.Snapshot(ctx, nil)
	require.NoError(t, err)
	assert.False(t, snap.Zones()[0].Active)

	require.ErrorIs(t, s.SetActive(ctx, "zones", 9999, true), ErrNotFound)
	require.ErrorIs(t, s.SetActive(ctx, "users", 1, true), ErrInvalidInput)
}

func TestCreateValidation(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	from, to, zone, st := buildNetwork(t, s)

	_, err := s.CreateZone(ctx, pricing.Zone{
		Name:                  "Backwards",
		DepartureCountryIDs:   []int64{to.ID},
		DestinationCountryIDs: []int64{from.ID},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreateWeightRate(ctx, pricing.WeightRate{
		ZoneID: zone.ID, ServiceTypeID: st.ID, MinWeight: d("10"), MaxWeight: d("5"), PerKgRate: d("1"),
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreateWeightRate(ctx, pricing.WeightRate{
		ZoneID: 777, ServiceTypeID: st.ID, MinWeight: d("0"), MaxWeight: d("5"), PerKgRate: d("1"),
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreateExtra(ctx, pricing.Extra{Name: "Odd", Type: "SOMETIMES", Value: d("1")})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.UpsertCurrency(ctx, pricing.Currency{Code: "EURO", ConversionRate: d("1")})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.CreateAdditionalCharge(ctx, pricing.AdditionalCharge{
		Name: "Ghost", Type: pricing.ChargeFixed, Value: d("1"), ZoneIDs: []int64{4242},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}
