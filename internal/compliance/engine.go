package compliance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greenlot/backend-dispensary/internal/customer"
)

// Rules carries the jurisdiction parameters the evaluator consumes. They are
// supplied by configuration, never derived here.
type Rules struct {
	AdultUseMinAge int
	LimitUnit      string
}

// Line is the slice of cart state the evaluator needs per cart line.
type Line struct {
	ProductID   string
	Category    string
	MedicalOnly bool
	Quantity    decimal.Decimal
}

// Result reports pass/fail plus every current violation, ordered by check
// definition, not severity. Callers wanting severity-first display sort at
// the presentation boundary.
type Result struct {
	Pass       bool     `json:"pass"`
	Violations []string `json:"violations"`
}

// Evaluator runs the ordered regulatory checks that gate checkout.
type Evaluator struct {
	Rules Rules
	Now   func() time.Time
}

func (e Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Evaluator) unit() string {
	if u := strings.TrimSpace(e.Rules.LimitUnit); u != "" {
		return u
	}
	return "g"
}

// Evaluate runs every check and returns all current violations in one pass so
// the operator can resolve everything before re-attempting. Only the
// missing-customer check short-circuits: the remaining checks are meaningless
// without a profile.
func (e Evaluator) Evaluate(profile *customer.Profile, lines []Line) Result {
	if profile == nil {
		return Result{Violations: []string{"No customer selected"}}
	}

	now := e.now()
	var violations []string

	if minAge := e.Rules.AdultUseMinAge; minAge > 0 &&
		profile.Classification == customer.ClassificationAdultUse &&
		profile.Age(now) < minAge {
		violations = append(violations, fmt.Sprintf("Customer under %d for adult-use cannabis", minAge))
	}

	if profile.Identification.ExpiresAt.Before(now) {
		violations = append(violations, "ID has expired")
	}

	if hasMedicalOnly(lines) && !medicalCardValid(profile) {
		violations = append(violations, "Medical card missing or unverified for medical-only products")
	}

	qty := totalQuantity(lines)
	if v, violated := e.limitViolation("daily", profile.Daily, qty); violated {
		violations = append(violations, v)
	}
	if v, violated := e.limitViolation("monthly", profile.Monthly, qty); violated {
		violations = append(violations, v)
	}

	return Result{Pass: len(violations) == 0, Violations: violations}
}

// limitViolation compares the attempted cart quantity against the remaining
// allowance of a purchase-limit window. The message names both amounts so the
// operator can act on it at the register.
func (e Evaluator) limitViolation(window string, w customer.LimitWindow, qty decimal.Decimal) (string, bool) {
	if w.Limit.Sign() <= 0 {
		return "", false
	}
	remaining := w.Remaining()
	if qty.LessThanOrEqual(remaining) {
		return "", false
	}
	unit := e.unit()
	return fmt.Sprintf("Cart quantity %s %s exceeds remaining %s limit of %s %s",
		qty.String(), unit, window, remaining.String(), unit), true
}

func hasMedicalOnly(lines []Line) bool {
	for _, ln := range lines {
		if ln.MedicalOnly {
			return true
		}
	}
	return false
}

func medicalCardValid(profile *customer.Profile) bool {
	return profile.MedicalCard != nil && profile.MedicalCard.Verified
}

func totalQuantity(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, ln := range lines {
		if ln.Quantity.Sign() > 0 {
			total = total.Add(ln.Quantity)
		}
	}
	return total
}
