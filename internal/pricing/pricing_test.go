package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	departureID   int64 = 100001
	destinationID int64 = 100002
	serviceID     int64 = 200001
	zoneID        int64 = 300001
	cityID        int64 = 400001
	fixedExtraID  int64 = 500001
	pctExtraID    int64 = 500002
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func idp(id int64) *int64 { return &id }

func assertMoney(t *testing.T, name string, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), name)
}

// fixtureTables mirrors the calculator fixtures: $50 service, $5/kg on
// 0-100kg, one fixed $10 fuel surcharge, a $20 city and a $15 extra.
func fixtureTables() Tables {
	return Tables{
		Countries: []Country{
			{ID: departureID, Name: "Test Departure", Code: "TD", Type: CountryDeparture, Active: true},
			{ID: destinationID, Name: "Test Destination", Code: "DS", Type: CountryDestination, Active: true},
		},
		Zones: []Zone{{
			ID: zoneID, Name: "Test Zone",
			DepartureCountryIDs:   []int64{departureID},
			DestinationCountryIDs: []int64{destinationID},
			Active:                true,
		}},
		ServiceTypes: []ServiceType{
			{ID: serviceID, Name: "Test Service", DeliveryTime: "1-2 days", Price: d("50.00"), Active: true},
		},
		WeightRates: []WeightRate{
			{ID: 1, ZoneID: zoneID, ServiceTypeID: serviceID, MinWeight: d("0"), MaxWeight: d("100"), PerKgRate: d("5.00"), Active: true},
		},
		DimensionalFactors: []DimensionalFactor{{ID: 1, ServiceTypeID: serviceID, Factor: 5000, Active: true}},
		AdditionalCharges: []AdditionalCharge{{
			ID: 1, Name: "Fuel Surcharge", Type: ChargeFixed, Value: d("10.00"),
			ZoneIDs: []int64{zoneID}, ServiceTypeIDs: []int64{serviceID}, Active: true,
		}},
		Extras: []Extra{
			{ID: fixedExtraID, Name: "Food Stuff", Type: ChargeFixed, Value: d("15.00"), Active: true},
			{ID: pctExtraID, Name: "Insurance", Type: ChargePercentage, Value: d("10"), Active: true},
		},
		Cities: []City{{ID: cityID, Name: "Test City", DeliveryCharge: d("20.00"), Active: true}},
		Currencies: []Currency{
			{Code: "MYR", Name: "Ringgit", ConversionRate: d("1")},
			{Code: "USD", Name: "US Dollar", ConversionRate: d("0.2123")},
			{Code: "EUR", Name: "Euro", ConversionRate: d("0.1957")},
		},
	}
}

func baseInput() Input {
	return Input{
		SenderCountryID:    departureID,
		RecipientCountryID: destinationID,
		ServiceTypeID:      serviceID,
		Weight:             dp("5"),
		PaymentMethod:      PaymentOnline,
	}
}

func TestCalculate_WeightOnly(t *testing.T) {
	res, err := Calculate(NewSnapshot(fixtureTables()), baseInput())
	require.NoError(t, err)

	assertMoney(t, "weight_charge", "25.00", res.Breakdown.WeightCharge)
	assertMoney(t, "service_price", "50.00", res.Breakdown.ServicePrice)
	require.Len(t, res.Breakdown.AdditionalCharges, 1)
	assertMoney(t, "additional", "10.00", res.Breakdown.TotalAdditionalCharges)
	assertMoney(t, "total", "85.00", res.Totals.TotalCost)
	assert.Nil(t, res.Weight.VolumetricWeight)
	assert.Equal(t, zoneID, res.Route.ZoneID)
}

func TestCalculate_WithCity(t *testing.T) {
	in := baseInput()
	in.CityID = idp(cityID)

	res, err := Calculate(NewSnapshot(fixtureTables()), in)
	require.NoError(t, err)

	assertMoney(t, "city", "20.00", res.Breakdown.CityDeliveryCharge)
	assertMoney(t, "total", "105.00", res.Totals.TotalCost)
}

func TestCalculate_WithFixedExtras(t *testing.T) {
	in := baseInput()
	in.Extras = []ExtraSelection{{ID: fixedExtraID, Quantity: 2}}

	res, err := Calculate(NewSnapshot(fixtureTables()), in)
	require.NoError(t, err)

	require.Len(t, res.Breakdown.Extras, 1)
	assertMoney(t, "extra", "30.00", res.Breakdown.Extras[0].Amount)
	assertMoney(t, "extras_total", "30.00", res.Breakdown.ExtrasTotal)
	assertMoney(t, "total", "115.00", res.Totals.TotalCost)
}

func TestCalculate_VolumetricWeightWins(t *testing.T) {
	in := baseInput()
	in.Dimensions = &Dimensions{Length: d("100"), Width: d("100"), Height: d("40")}

	res, err := Calculate(NewSnapshot(fixtureTables()), in)
	require.NoError(t, err)

	require.NotNil(t, res.Weight.VolumetricWeight)
	assertMoney(t, "volumetric", "80.00", *res.Weight.VolumetricWeight)
	assertMoney(t, "chargeable", "80.00", res.Weight.ChargeableWeight)
	assertMoney(t, "weight_charge", "400.00", res.Breakdown.WeightCharge)
	assertMoney(t, "total", "460.00", res.Totals.TotalCost)
}

func TestCalculate_CODSurchargeOnPreCODSubtotal(t *testing.T) {
	in := baseInput()
	in.PaymentMethod = PaymentCOD

	res, err := Calculate(NewSnapshot(fixtureTables()), in)
	require.NoError(t, err)

	assertMoney(t, "subtotal", "85.00", res.Totals.Subtotal)
	assertMoney(t, "cod", "4.25", res.Breakdown.CODAmount)
	assertMoney(t, "total", "89.25", res.Totals.TotalCost)
}

func TestCalculate_CODFeeOverride(t *testing.T) {
	tables := fixtureTables()
	tables.CODFeePercent = dp("10")
	in := baseInput()
	in.PaymentMethod = PaymentCOD

	res, err := Calculate(NewSnapshot(tables), in)
	require.NoError(t, err)

	assertMoney(t, "cod", "8.50", res.Breakdown.CODAmount)
	assertMoney(t, "cod percent", "10.00", res.Breakdown.CODPercent)
}

func TestCalculate_InvalidOriginCountry(t *testing.T) {
	in := baseInput()
	in.SenderCountryID = 999

	_, err := Calculate(NewSnapshot(fixtureTables()), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRouteNotFound))

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "origin_country", perr.Field)
}

func TestCalculate_DestinationUsedAsOriginIsRejected(t *testing.T) {
	in := baseInput()
	in.SenderCountryID = destinationID

	_, err := Calculate(NewSnapshot(fixtureTables()), in)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindRouteNotFound, perr.Kind)
	assert.Equal(t, "origin_country", perr.Field)
}

func TestCalculate_NoZoneForRoute(t *testing.T) {
	tables := fixtureTables()
	tables.Zones[0].Active = false

	_, err := Calculate(NewSnapshot(tables), baseInput())
	require.ErrorIs(t, err, ErrRouteNotFound)
	assert.Contains(t, err.Error(), "no shipping zone found for Test Departure to Test Destination")
}

func TestCalculate_RateNotFound(t *testing.T) {
	in := baseInput()
	in.Weight = dp("150")

	_, err := Calculate(NewSnapshot(fixtureTables()), in)
	require.ErrorIs(t, err, ErrRateNotFound)
}

func TestCalculate_MissingDimensions(t *testing.T) {
	in := baseInput()
	in.Weight = nil
	in.Dimensions = &Dimensions{Length: d("10"), Width: d("0"), Height: d("10")}

	_, err := Calculate(NewSnapshot(fixtureTables()), in)
	require.ErrorIs(t, err, ErrMissingDimensions)
}

func TestCalculate_InvalidCityFailsStrictPath(t *testing.T) {
	in := baseInput()
	in.CityID = idp(42)

	_, err := Calculate(NewSnapshot(fixtureTables()), in)
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestCalculate_UnknownExtraFailsStrictPath(t *testing.T) {
	in := baseInput()
	in.Extras = []ExtraSelection{{ID: 7, Quantity: 1}}

	_, err := Calculate(NewSnapshot(fixtureTables()), in)
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestQuote_CollectsPartialExtraFailures(t *testing.T) {
	in := baseInput()
	in.Extras = []ExtraSelection{{ID: fixedExtraID, Quantity: 2}, {ID: 7}}

	res := Quote(NewSnapshot(fixtureTables()), in)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "extra with id 7")
	assertMoney(t, "total", "115.00", res.Totals.TotalCost)
}

func TestQuote_RouteFailureIsReported(t *testing.T) {
	in := baseInput()
	in.RecipientCountryID = 0

	res := Quote(NewSnapshot(fixtureTables()), in)

	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "destination_country")
	assert.True(t, res.Totals.TotalCost.IsZero())
}

func TestCalculate_IsIdempotent(t *testing.T) {
	snap := NewSnapshot(fixtureTables())
	in := baseInput()
	in.CityID = idp(cityID)
	in.Extras = []ExtraSelection{{ID: fixedExtraID, Quantity: 2}, {ID: pctExtraID, Quantity: 1}}
	in.PaymentMethod = PaymentCOD

	first, err := Calculate(snap, in)
	require.NoError(t, err)
	second, err := Calculate(snap, in)
	require.NoError(t, err)

	assert.True(t, first.Totals.TotalCost.Equal(second.Totals.TotalCost))
	assert.Equal(t, first.Breakdown.Extras, second.Breakdown.Extras)
}

func TestParsePaymentMethod(t *testing.T) {
	cases := map[string]PaymentMethod{"": PaymentOnline, "online": PaymentOnline, "COD": PaymentCOD, " cod ": PaymentCOD}
	for raw, want := range cases {
		got, ok := ParsePaymentMethod(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := ParsePaymentMethod("card")
	assert.False(t, ok)
}
