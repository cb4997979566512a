package domain

import "time"

// DiscountType distinguishes percentage discounts from fixed-amount ones.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// PromoCode applies a discount to an event price during registration.
// MaxUses of zero means unlimited.
type PromoCode struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue float64
	MaxUses       int
	CurrentUses   int
	ValidFrom     time.Time
	ValidUntil    time.Time
	Active        bool
}

// Redeemable reports whether the code can still be applied at the given time.
func (p PromoCode) Redeemable(at time.Time) bool {
	if !p.Active {
		return false
	}
	if p.MaxUses > 0 && p.CurrentUses >= p.MaxUses {
		return false
	}
	return !at.Before(p.ValidFrom) && !at.After(p.ValidUntil)
}

// Apply returns the discounted price, clamped at zero.
func (p PromoCode) Apply(price float64) float64 {
	var discounted float64
	switch p.DiscountType {
	case DiscountPercentage:
		discounted = price * (1 - p.DiscountValue/100)
	case DiscountFixed:
		discounted = price - p.DiscountValue
	default:
		return price
	}
	if discounted < 0 {
		return 0
	}
	return discounted
}
