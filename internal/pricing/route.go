package pricing

import "github.com/shopspring/decimal"

// ResolveZone finds the active zone connecting sender to recipient. When
// several zones match, the lowest id wins.
func ResolveZone(snap Snapshot, senderID, recipientID int64) (Zone, error) {
	sender, ok := snap.Country(senderID)
	if !ok || !sender.Active || sender.Type != CountryDeparture {
		return Zone{}, newError(KindRouteNotFound, "origin_country", "invalid departure country %d", senderID)
	}
	recipient, ok := snap.Country(recipientID)
	if !ok || !recipient.Active || recipient.Type != CountryDestination {
		return Zone{}, newError(KindRouteNotFound, "destination_country", "invalid destination country %d", recipientID)
	}

	for _, z := range snap.tables.Zones {
		if z.Active && z.Links(senderID, recipientID) {
			return z, nil
		}
	}
	return Zone{}, newError(KindRouteNotFound, "", "no shipping zone found for %s to %s", sender.Name, recipient.Name)
}

// LookupRate returns the active band of zone and service type containing w.
// Overlapping bands resolve to the narrowest one, then the lowest id.
func LookupRate(snap Snapshot, zoneID, serviceTypeID int64, w decimal.Decimal) (WeightRate, error) {
	var (
		best  WeightRate
		found bool
	)
	for _, r := range snap.tables.WeightRates {
		if !r.Active || r.ZoneID != zoneID || r.ServiceTypeID != serviceTypeID || !r.Covers(w) {
			continue
		}
		if !found || r.span().LessThan(best.span()) {
			best = r
			found = true
		}
	}
	if !found {
		return WeightRate{}, newError(KindRateNotFound, "weight", "no rate found for weight %skg", w.StringFixed(2))
	}
	return best, nil
}

// WeightCharge is w × perKg rounded to cents.
func WeightCharge(w, perKg decimal.Decimal) decimal.Decimal {
	return Round(w.Mul(perKg))
}
