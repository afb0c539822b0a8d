package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod affects the COD surcharge only.
type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "ONLINE"
	PaymentCOD    PaymentMethod = "COD"
)

// ParsePaymentMethod accepts ONLINE or COD in any case; empty means ONLINE.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", PaymentOnline:
		return PaymentOnline, true
	case PaymentCOD:
		return PaymentCOD, true
	default:
		return "", false
	}
}

// Input represents the shipment-level inputs of a cost calculation.
type Input struct {
	SenderCountryID    int64
	RecipientCountryID int64
	ServiceTypeID      int64
	Weight             *decimal.Decimal
	Dimensions         *Dimensions
	CityID             *int64
	Extras             []ExtraSelection
	PaymentMethod      PaymentMethod
}

// Route identifies the resolved zone and service.
type Route struct {
	ZoneID        int64
	ZoneName      string
	ServiceTypeID int64
	ServiceName   string
	DeliveryTime  string
}

// Breakdown contains every line of the shipment cost.
type Breakdown struct {
	ServicePrice           decimal.Decimal
	BaseRate               decimal.Decimal
	PerKgRate              decimal.Decimal
	WeightCharge           decimal.Decimal
	AdditionalCharges      []ChargeLine
	TotalAdditionalCharges decimal.Decimal
	Extras                 []ExtraLine
	ExtrasTotal            decimal.Decimal
	CityDeliveryCharge     decimal.Decimal
	CODPercent             decimal.Decimal
	CODAmount              decimal.Decimal
}

// Totals contains roll-up values of the calculation.
type Totals struct {
	// Subtotal is everything before the COD surcharge.
	Subtotal  decimal.Decimal
	TotalCost decimal.Decimal
}

// Result groups the full calculation output.
type Result struct {
	Route     Route
	Weight    WeightResult
	Breakdown Breakdown
	Totals    Totals
	// Errors is only filled by Quote.
	Errors []string
}

// Calculate prices a shipment for the creation and update paths. Any
// problem, including a single unknown extra, fails the whole calculation.
func Calculate(snap Snapshot, in Input) (Result, error) {
	return run(snap, in, true)
}

// Quote prices a shipment on a best-effort basis. Failures are collected in
// Result.Errors; callers treat a non-empty list as a rejected request.
func Quote(snap Snapshot, in Input) Result {
	res, err := run(snap, in, false)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	return res
}

func run(snap Snapshot, in Input, strict bool) (Result, error) {
	res := Result{Errors: make([]string, 0)}

	service, ok := snap.ServiceType(in.ServiceTypeID)
	if !ok || !service.Active {
		return res, newError(KindInvalidReference, "service_type", "service type with id %d does not exist or is not active", in.ServiceTypeID)
	}
	res.Route.ServiceTypeID = service.ID
	res.Route.ServiceName = service.Name
	res.Route.DeliveryTime = service.DeliveryTime

	zone, err := ResolveZone(snap, in.SenderCountryID, in.RecipientCountryID)
	if err != nil {
		return res, err
	}
	res.Route.ZoneID = zone.ID
	res.Route.ZoneName = zone.Name

	weight, err := ChargeableWeight(snap, service.ID, in.Weight, in.Dimensions)
	if err != nil {
		return res, err
	}
	res.Weight = weight

	rate, err := LookupRate(snap, zone.ID, service.ID, weight.ChargeableWeight)
	if err != nil {
		return res, err
	}

	b := &res.Breakdown
	b.ServicePrice = Round(service.Price)
	b.BaseRate = rate.BaseRate
	b.PerKgRate = rate.PerKgRate
	b.WeightCharge = WeightCharge(weight.ChargeableWeight, rate.PerKgRate)
	b.AdditionalCharges, b.TotalAdditionalCharges = AdditionalCharges(snap, zone.ID, service.ID, b.WeightCharge)

	var problems []string
	b.Extras, b.ExtrasTotal, problems = ApplyExtras(snap, in.Extras, b.WeightCharge)
	if len(problems) > 0 {
		if strict {
			return res, newError(KindInvalidReference, "extras", "%s", strings.Join(problems, "; "))
		}
		res.Errors = append(res.Errors, problems...)
	}

	b.CityDeliveryCharge, err = CityDeliveryCharge(snap, in.CityID)
	if err != nil {
		if strict {
			return res, err
		}
		res.Errors = append(res.Errors, err.Error())
	}

	subtotal := b.ServicePrice.
		Add(b.WeightCharge).
		Add(b.TotalAdditionalCharges).
		Add(b.ExtrasTotal).
		Add(b.CityDeliveryCharge)

	if in.PaymentMethod == PaymentCOD {
		b.CODPercent = snap.CODFeePercent()
	}
	b.CODAmount = CODSurcharge(snap, in.PaymentMethod, subtotal)

	res.Totals = Totals{
		Subtotal:  Round(subtotal),
		TotalCost: Round(subtotal.Add(b.CODAmount)),
	}
	return res, nil
}
