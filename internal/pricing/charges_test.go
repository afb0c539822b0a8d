package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightCharge_RoundsAndIsMonotonic(t *testing.T) {
	rate := d("3.33")
	prev := decimal.Zero
	for _, w := range []string{"0.01", "0.50", "1", "1.37", "2.5", "10", "99.99"} {
		got := WeightCharge(d(w), rate)
		assert.Equal(t, Round(d(w).Mul(rate)).String(), got.String(), w)
		assert.True(t, got.GreaterThanOrEqual(prev), "weight charge decreased at %s", w)
		prev = got
	}
}

func TestRound_HalfEven(t *testing.T) {
	assert.Equal(t, "2.12", Round(d("2.125")).String())
	assert.Equal(t, "2.14", Round(d("2.135")).String())
	assert.Equal(t, "2.13", Round(d("2.1251")).String())
}

func TestAdditionalCharges_PercentageOfWeightCharge(t *testing.T) {
	tables := fixtureTables()
	tables.AdditionalCharges = append(tables.AdditionalCharges, AdditionalCharge{
		ID: 2, Name: "Remote Area", Type: ChargePercentage, Value: d("10"),
		ZoneIDs: []int64{zoneID}, ServiceTypeIDs: []int64{serviceID}, Active: true,
	}, AdditionalCharge{
		ID: 3, Name: "Other Zone Only", Type: ChargeFixed, Value: d("99"),
		ZoneIDs: []int64{zoneID + 1}, ServiceTypeIDs: []int64{serviceID}, Active: true,
	}, AdditionalCharge{
		ID: 4, Name: "Inactive", Type: ChargeFixed, Value: d("99"),
		ZoneIDs: []int64{zoneID}, ServiceTypeIDs: []int64{serviceID}, Active: false,
	})

	lines, total := AdditionalCharges(NewSnapshot(tables), zoneID, serviceID, d("25"))

	require.Len(t, lines, 2)
	assert.Equal(t, "Fuel Surcharge", lines[0].Name)
	assertMoney(t, "pct amount", "2.50", lines[1].Amount)
	assertMoney(t, "total", "12.50", total)
}

func TestApplyExtras_FixedAndPercentage(t *testing.T) {
	lines, total, problems := ApplyExtras(NewSnapshot(fixtureTables()), []ExtraSelection{
		{ID: fixedExtraID, Quantity: 2},
		{ID: pctExtraID, Quantity: 2},
	}, d("25"))

	assert.Empty(t, problems)
	require.Len(t, lines, 2)
	assertMoney(t, "fixed", "30.00", lines[0].Amount)
	assertMoney(t, "percentage", "5.00", lines[1].Amount)
	assertMoney(t, "total", "35.00", total)
}

func TestApplyExtras_DefaultsQuantityAndSkipsInvalid(t *testing.T) {
	tables := fixtureTables()
	tables.Extras[1].Active = false

	lines, total, problems := ApplyExtras(NewSnapshot(tables), []ExtraSelection{
		{ID: fixedExtraID},
		{ID: pctExtraID, Quantity: 1},
		{ID: fixedExtraID, Quantity: -1},
	}, d("25"))

	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
	assertMoney(t, "total", "15.00", total)
	assert.Len(t, problems, 2)
}

func TestCityDeliveryCharge(t *testing.T) {
	snap := NewSnapshot(fixtureTables())

	got, err := CityDeliveryCharge(snap, nil)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = CityDeliveryCharge(snap, idp(cityID))
	require.NoError(t, err)
	assertMoney(t, "city", "20.00", got)

	_, err = CityDeliveryCharge(snap, idp(1))
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestCODSurcharge(t *testing.T) {
	snap := NewSnapshot(fixtureTables())

	assertMoney(t, "cod", "5.00", CODSurcharge(snap, PaymentCOD, d("100.00")))
	assertMoney(t, "online", "0.00", CODSurcharge(snap, PaymentOnline, d("100.00")))
}
