package discount

import (
	"errors"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/greenlot/backend-dispensary/internal/customer"
	"github.com/greenlot/backend-dispensary/internal/pricing"
)

var (
	// ErrMinimumSpendUnmet indicates the cart subtotal did not meet the discount requirement.
	ErrMinimumSpendUnmet = errors.New("discount minimum spend not met")
	// ErrCustomerRequired is returned when the discount predicate needs a customer and none is attached.
	ErrCustomerRequired = errors.New("discount requires a customer")
	// ErrCustomerTypeNotEligible indicates the customer classification is outside the discount's set.
	ErrCustomerTypeNotEligible = errors.New("discount not available for this customer type")
	// ErrNewCustomerOnly indicates the discount is restricted to first-time customers.
	ErrNewCustomerOnly = errors.New("discount is for new customers only")
)

// Kind enumerates supported discount mechanics.
type Kind string

const (
	KindPercent Kind = "percent"
	KindFixed   Kind = "fixed"
	KindBogo    Kind = "bogo"
	KindLoyalty Kind = "loyalty"
)

// Eligibility is the optional predicate gating a discount. It is evaluated
// once, at apply time; a later change to the customer does not revoke an
// already-applied discount.
type Eligibility struct {
	MinSubtotal     pricing.Money             `json:"minSubtotal,omitempty"`
	CustomerTypes   []customer.Classification `json:"customerTypes,omitempty"`
	NewCustomerOnly bool                      `json:"newCustomerOnly,omitempty"`
}

// Discount describes a named cart-level price reduction. Percent magnitudes
// are stored in basis points; fixed and loyalty magnitudes in minor units.
type Discount struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Kind        Kind          `json:"kind"`
	PercentBps  int           `json:"percentBps,omitempty"`
	Value       pricing.Money `json:"value,omitempty"`
	Eligibility *Eligibility  `json:"eligibility,omitempty"`
}

// CheckEligibility evaluates the discount predicate against the current cart
// subtotal and customer snapshot.
func CheckEligibility(d Discount, subtotal pricing.Money, profile *customer.Profile) error {
	e := d.Eligibility
	if e == nil {
		return nil
	}
	if e.MinSubtotal > 0 && subtotal < e.MinSubtotal {
		return ErrMinimumSpendUnmet
	}
	if len(e.CustomerTypes) > 0 {
		if profile == nil {
			return ErrCustomerRequired
		}
		if !slices.Contains(e.CustomerTypes, profile.Classification) {
			return ErrCustomerTypeNotEligible
		}
	}
	if e.NewCustomerOnly {
		if profile == nil {
			return ErrCustomerRequired
		}
		if !profile.NewCustomer {
			return ErrNewCustomerOnly
		}
	}
	return nil
}

// Amount computes a single discount's contribution. Percentage discounts are
// always taken against the pre-discount, pre-tax subtotal; that same base is
// used at settlement so preview and record agree.
func Amount(d Discount, lines []pricing.Line, subtotal pricing.Money) pricing.Money {
	switch d.Kind {
	case KindPercent:
		if d.PercentBps <= 0 {
			return 0
		}
		return (subtotal * int64(d.PercentBps)) / 10000
	case KindFixed, KindLoyalty:
		if d.Value < 0 {
			return 0
		}
		return d.Value
	case KindBogo:
		return bogoAmount(lines)
	}
	return 0
}

// ComputeAmount sums applied discounts additively against the shared subtotal
// base. Stacking never compounds: each percentage is taken off the original
// subtotal, not off the running remainder.
func ComputeAmount(applied []Discount, lines []pricing.Line, subtotal pricing.Money) pricing.Money {
	var total pricing.Money
	for _, d := range applied {
		total += Amount(d, lines, subtotal)
	}
	return total
}

// bogoAmount gives one unit free on the cheapest line that carries at least
// two units.
func bogoAmount(lines []pricing.Line) pricing.Money {
	two := decimal.NewFromInt(2)
	var cheapest pricing.Money
	found := false
	for _, ln := range lines {
		if ln.Quantity.LessThan(two) || ln.UnitPrice <= 0 {
			continue
		}
		if !found || ln.UnitPrice < cheapest {
			cheapest = ln.UnitPrice
			found = true
		}
	}
	if !found {
		return 0
	}
	return cheapest
}
