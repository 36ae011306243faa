package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value stored in minor units.
type Money = int64

// DefaultTaxBps is the tax rate used when a product carries none. Policy
// default, overridable via PRICING_DEFAULT_TAX_BPS.
const DefaultTaxBps = 800

// Line describes a priced cart line. Quantity is expressed in the product's
// unit of measure and may be fractional for weighed goods.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice Money
	TaxBps    int
	Subtotal  Money
	Tax       Money
	Total     Money
}

// Summary aggregates computed cart components.
type Summary struct {
	Subtotal  Money
	Tax       Money
	Discount  Money
	Total     Money
	ItemCount decimal.Decimal
}

// ComputeLine prices a quantity at the captured unit price and tax rate.
// The unit price and tax rate are inputs, not a catalog read: callers capture
// them once when the line is created so later catalog changes cannot leak in.
func ComputeLine(qty decimal.Decimal, unitPrice Money, taxBps int) Line {
	if unitPrice < 0 {
		unitPrice = 0
	}
	if taxBps < 0 {
		taxBps = 0
	}
	subtotal := decimal.NewFromInt(unitPrice).Mul(qty).Round(0).IntPart()
	if subtotal < 0 {
		subtotal = 0
	}
	tax := (subtotal * int64(taxBps)) / 10000
	return Line{
		Quantity:  qty,
		UnitPrice: unitPrice,
		TaxBps:    taxBps,
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     subtotal + tax,
	}
}

// Compute folds priced lines and an aggregate discount amount into cart
// totals. The grand total is clamped at zero: a discount stack can never
// drive a cart negative.
func Compute(lines []Line, discount Money) Summary {
	summary := Summary{ItemCount: decimal.Zero}
	for _, ln := range lines {
		if ln.Quantity.Sign() <= 0 {
			continue
		}
		summary.Subtotal += ln.Subtotal
		summary.Tax += ln.Tax
		summary.ItemCount = summary.ItemCount.Add(ln.Quantity)
	}
	if discount < 0 {
		discount = 0
	}
	summary.Discount = discount
	total := summary.Subtotal + summary.Tax - discount
	if total < 0 {
		total = 0
	}
	summary.Total = total
	return summary
}
