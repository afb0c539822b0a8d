package pricing

import "github.com/shopspring/decimal"

// Round is the single rounding rule of the engine: two places, half to even.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Convert moves amount from one currency to another through the base
// currency: amount / from.rate × to.rate, rounded to cents.
func Convert(snap Snapshot, from string, amount decimal.Decimal, to string) (decimal.Decimal, error) {
	src, ok := snap.Currency(from)
	if !ok {
		return decimal.Zero, newError(KindCurrencyNotFound, "from_currency", "currency %q not found", from)
	}
	dst, ok := snap.Currency(to)
	if !ok {
		return decimal.Zero, newError(KindCurrencyNotFound, "to_currency", "currency %q not found", to)
	}
	if !src.ConversionRate.IsPositive() {
		return decimal.Zero, newError(KindCurrencyNotFound, "from_currency", "currency %q has no usable conversion rate", src.Code)
	}

	inBase := amount.Div(src.ConversionRate)
	return Round(inBase.Mul(dst.ConversionRate)), nil
}
