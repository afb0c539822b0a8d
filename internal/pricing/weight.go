package pricing

import "github.com/shopspring/decimal"

// Dimensions are package measurements in centimetres.
type Dimensions struct {
	Length decimal.Decimal
	Width  decimal.Decimal
	Height decimal.Decimal
}

// complete reports whether every side is strictly positive.
func (d *Dimensions) complete() bool {
	return d != nil && d.Length.IsPositive() && d.Width.IsPositive() && d.Height.IsPositive()
}

// Volume is L×W×H in cubic centimetres.
func (d Dimensions) Volume() decimal.Decimal {
	return d.Length.Mul(d.Width).Mul(d.Height)
}

// WeightResult is the outcome of the chargeable weight step.
type WeightResult struct {
	ActualWeight *decimal.Decimal
	// VolumetricWeight is nil when no dimensions were supplied.
	VolumetricWeight *decimal.Decimal
	Factor           int
	ChargeableWeight decimal.Decimal
}

// DimensionalFactorFor returns the divisor for a service type, falling back
// to DefaultDimensionalFactor.
func DimensionalFactorFor(snap Snapshot, serviceTypeID int64) int {
	for _, f := range snap.tables.DimensionalFactors {
		if f.Active && f.ServiceTypeID == serviceTypeID && f.Factor > 0 {
			return f.Factor
		}
	}
	return DefaultDimensionalFactor
}

// ChargeableWeight derives the billed weight from an actual weight, a full
// dimension triple, or both. A non-positive weight counts as not supplied.
func ChargeableWeight(snap Snapshot, serviceTypeID int64, weight *decimal.Decimal, dims *Dimensions) (WeightResult, error) {
	var res WeightResult

	hasWeight := weight != nil && weight.IsPositive()
	if !hasWeight && !dims.complete() {
		return res, newError(KindMissingDimensions, "weight",
			"either a weight greater than 0 or length, width and height greater than 0 must be provided")
	}

	chargeable := decimal.Zero
	if hasWeight {
		w := *weight
		res.ActualWeight = &w
		chargeable = w
	}

	if dims.complete() {
		res.Factor = DimensionalFactorFor(snap, serviceTypeID)
		vol := dims.Volume().Div(decimal.NewFromInt(int64(res.Factor)))
		res.VolumetricWeight = &vol
		if vol.GreaterThan(chargeable) {
			chargeable = vol
		}
	}

	res.ChargeableWeight = Round(chargeable)
	return res, nil
}
