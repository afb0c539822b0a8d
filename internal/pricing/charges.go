package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred           = decimal.NewFromInt(100)
	defaultCODPercent = decimal.NewFromInt(5)
)

// ChargeLine is one applied additional charge.
type ChargeLine struct {
	ID     int64
	Name   string
	Type   ChargeType
	Value  decimal.Decimal
	Amount decimal.Decimal
}

// ExtraSelection asks for an extra; Quantity 0 means 1.
type ExtraSelection struct {
	ID       int64
	Quantity int
}

// ExtraLine is one applied extra.
type ExtraLine struct {
	ID       int64
	Name     string
	Type     ChargeType
	Value    decimal.Decimal
	Quantity int
	Amount   decimal.Decimal
}

// percentOf is base × pct / 100 rounded to cents.
func percentOf(base, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred))
}

// AdditionalCharges applies every active charge linked to both the zone and
// the service type. Percentages are taken of base, the weight charge.
func AdditionalCharges(snap Snapshot, zoneID, serviceTypeID int64, base decimal.Decimal) ([]ChargeLine, decimal.Decimal) {
	lines := make([]ChargeLine, 0)
	total := decimal.Zero
	for _, c := range snap.tables.AdditionalCharges {
		if !c.Active || !containsID(c.ZoneIDs, zoneID) || !containsID(c.ServiceTypeIDs, serviceTypeID) {
			continue
		}
		amount := Round(c.Value)
		if c.Type == ChargePercentage {
			amount = percentOf(base, c.Value)
		}
		lines = append(lines, ChargeLine{ID: c.ID, Name: c.Name, Type: c.Type, Value: c.Value, Amount: amount})
		total = total.Add(amount)
	}
	return lines, total
}

// ApplyExtras prices each selection in order. Unknown or inactive extras and
// negative quantities are skipped and reported in the returned messages.
func ApplyExtras(snap Snapshot, selections []ExtraSelection, base decimal.Decimal) ([]ExtraLine, decimal.Decimal, []string) {
	lines := make([]ExtraLine, 0, len(selections))
	total := decimal.Zero
	var problems []string

	for _, sel := range selections {
		qty := sel.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			problems = append(problems, fmt.Sprintf("extra %d: quantity must be a positive integer", sel.ID))
			continue
		}
		extra, ok := snap.Extra(sel.ID)
		if !ok || !extra.Active {
			problems = append(problems, fmt.Sprintf("extra with id %d does not exist or is not active", sel.ID))
			continue
		}

		q := decimal.NewFromInt(int64(qty))
		var amount decimal.Decimal
		switch extra.Type {
		case ChargePercentage:
			amount = percentOf(base, extra.Value).Mul(q)
		default:
			amount = Round(extra.Value.Mul(q))
		}

		lines = append(lines, ExtraLine{
			ID:       extra.ID,
			Name:     extra.Name,
			Type:     extra.Type,
			Value:    extra.Value,
			Quantity: qty,
			Amount:   amount,
		})
		total = total.Add(amount)
	}
	return lines, total, problems
}

// CityDeliveryCharge is zero when no city is requested. A requested city
// that is unknown or inactive is an error, not a free delivery.
func CityDeliveryCharge(snap Snapshot, cityID *int64) (decimal.Decimal, error) {
	if cityID == nil {
		return decimal.Zero, nil
	}
	city, ok := snap.City(*cityID)
	if !ok || !city.Active {
		return decimal.Zero, newError(KindInvalidReference, "city", "city with id %d does not exist or is not active", *cityID)
	}
	return Round(city.DeliveryCharge), nil
}

// CODSurcharge is a percentage of the pre-COD subtotal for cash on delivery,
// zero otherwise.
func CODSurcharge(snap Snapshot, method PaymentMethod, subtotal decimal.Decimal) decimal.Decimal {
	if method != PaymentCOD {
		return decimal.Zero
	}
	return percentOf(subtotal, snap.CODFeePercent())
}
