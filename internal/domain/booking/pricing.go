package booking

import "math"

// Pricing turns a slot's base price into the charged breakdown.
type Pricing struct {
	CommissionPercent float64
	TaxPercent        float64
}

type Breakdown struct {
	Base     int64
	Fee      int64
	Tax      int64
	Discount int64
	Total    int64
}

func (p Pricing) Breakdown(base, discount int64) (Breakdown, error) {
	if base < 0 || discount < 0 {
		return Breakdown{}, ErrInvalidAmount
	}
	fee := percentOf(base, p.CommissionPercent)
	tax := percentOf(base, p.TaxPercent)
	if discount > base+fee+tax {
		return Breakdown{}, ErrInvalidAmount
	}
	return Breakdown{
		Base:     base,
		Fee:      fee,
		Tax:      tax,
		Discount: discount,
		Total:    base + fee + tax - discount,
	}, nil
}

func percentOf(amount int64, pct float64) int64 {
	return int64(math.Round(float64(amount) * pct / 100))
}
