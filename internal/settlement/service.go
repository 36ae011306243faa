package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/greenlot/backend-dispensary/internal/cart"
	"github.com/greenlot/backend-dispensary/internal/discount"
	"github.com/greenlot/backend-dispensary/internal/events"
	"github.com/greenlot/backend-dispensary/internal/obs"
	"github.com/greenlot/backend-dispensary/internal/pricing"
)

// ErrNotFound indicates the requested transaction record does not exist.
var ErrNotFound = errors.New("transaction not found")

// ErrCartEmpty rejects settlement of a session with no lines.
var ErrCartEmpty = errors.New("cart is empty")

// ErrComplianceBlocked is the sentinel matched by compliance failures.
var ErrComplianceBlocked = errors.New("settlement blocked by compliance")

// ErrPaymentMethodMissing rejects settlement without a recognised payment
// method.
var ErrPaymentMethodMissing = errors.New("payment method missing or unsupported")

// ErrInsufficientTender rejects cash settlement below the grand total.
var ErrInsufficientTender = errors.New("tendered amount below total")

// ComplianceError carries the violations that blocked a settlement attempt.
type ComplianceError struct {
	Violations []string
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("settlement blocked by compliance: %s", strings.Join(e.Violations, "; "))
}

// Is lets errors.Is match the sentinel while callers keep the violation list.
func (e *ComplianceError) Is(target error) bool {
	return target == ErrComplianceBlocked
}

// Method enumerates accepted payment methods.
type Method string

const (
	MethodCash  Method = "cash"
	MethodDebit Method = "debit"
)

// Valid reports whether the method is accepted at the register.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodDebit:
		return true
	}
	return false
}

// RecordLine is a line frozen into a settled transaction.
type RecordLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice pricing.Money   `json:"unitPrice"`
	TaxBps    int             `json:"taxBps"`
	Subtotal  pricing.Money   `json:"subtotal"`
	Tax       pricing.Money   `json:"tax"`
	Total     pricing.Money   `json:"total"`
}

// AppliedDiscount is a discount frozen at its settlement-time amount. Later
// catalog edits never change what a settled record reports.
type AppliedDiscount struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Kind   discount.Kind `json:"kind"`
	Amount pricing.Money `json:"amount"`
}

// Record is the immutable result of a settled checkout.
type Record struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"sessionId"`
	CustomerID    string            `json:"customerId,omitempty"`
	Lines         []RecordLine      `json:"lines"`
	Discounts     []AppliedDiscount `json:"discounts"`
	Subtotal      pricing.Money     `json:"subtotal"`
	DiscountTotal pricing.Money     `json:"discountTotal"`
	Tax           pricing.Money     `json:"tax"`
	Total         pricing.Money     `json:"total"`
	Method        Method            `json:"method"`
	Tendered      pricing.Money     `json:"tendered"`
	Change        pricing.Money     `json:"change"`
	Currency      string            `json:"currency"`
	Notes         string            `json:"notes,omitempty"`
	SettledAt     time.Time         `json:"settledAt"`
}

// RecordStore persists settled transactions.
type RecordStore interface {
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (Record, error)
}

// Service turns a passing checkout session into an immutable transaction
// record.
type Service struct {
	Cart     *cart.Service
	Records  RecordStore
	Bus      *events.Bus
	Logger   zerolog.Logger
	Currency string
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Settle runs the compliance gate, validates tender, freezes the cart into a
// record and closes the session. The session survives every failure so the
// operator can fix the cause and retry.
func (s *Service) Settle(ctx context.Context, sessionID string, method Method, tendered pricing.Money, notes string) (Record, error) {
	if s == nil || s.Cart == nil || s.Records == nil {
		return Record{}, errors.New("settlement service not configured")
	}
	co, err := s.Cart.Checkout(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}
	if len(co.Session.Lines) == 0 {
		s.count(method, "empty_cart")
		return Record{}, ErrCartEmpty
	}
	if !co.Compliance.Pass {
		s.count(method, "compliance_blocked")
		s.countViolations(co.Compliance.Violations)
		return Record{}, &ComplianceError{Violations: co.Compliance.Violations}
	}
	if !method.Valid() {
		s.count(method, "bad_method")
		return Record{}, ErrPaymentMethodMissing
	}

	total := co.Summary.Total
	var change pricing.Money
	switch method {
	case MethodCash:
		if tendered < total {
			s.count(method, "insufficient_tender")
			return Record{}, ErrInsufficientTender
		}
		change = tendered - total
	case MethodDebit:
		// card captures the exact amount
		tendered = total
		change = 0
	}

	record := Record{
		ID:            uuid.NewString(),
		SessionID:     co.Session.ID,
		Lines:         recordLines(co.Session.Lines, co.Lines),
		Discounts:     freezeDiscounts(co.Applied, co.Lines, co.Summary.Subtotal),
		Subtotal:      co.Summary.Subtotal,
		DiscountTotal: co.Summary.Discount,
		Tax:           co.Summary.Tax,
		Total:         total,
		Method:        method,
		Tendered:      tendered,
		Change:        change,
		Currency:      s.Currency,
		Notes:         strings.TrimSpace(notes),
		SettledAt:     s.now(),
	}
	if co.Session.Customer != nil {
		record.CustomerID = co.Session.Customer.ID
	}

	if err := s.Records.Save(ctx, record); err != nil {
		s.count(method, "store_error")
		return Record{}, fmt.Errorf("save transaction: %w", err)
	}

	if s.Bus != nil {
		if _, err := s.Bus.Emit(ctx, events.TopicTransactionSettled, record.ID, map[string]any{
			"transactionId": record.ID,
			"sessionId":     record.SessionID,
			"total":         record.Total,
			"method":        record.Method,
			"settledAt":     record.SettledAt,
		}); err != nil {
			s.Logger.Warn().Err(err).Str("transaction_id", record.ID).Msg("emit transaction settled")
		}
	}

	s.Cart.Close(sessionID)
	s.count(method, "settled")
	for _, d := range record.Discounts {
		if obs.DiscountAppliedTotal != nil {
			obs.DiscountAppliedTotal.WithLabelValues(string(d.Kind)).Inc()
		}
	}
	return record, nil
}

// Transaction returns a settled record by identifier.
func (s *Service) Transaction(ctx context.Context, id string) (Record, error) {
	if s == nil || s.Records == nil {
		return Record{}, errors.New("settlement service not configured")
	}
	return s.Records.Get(ctx, id)
}

func (s *Service) count(method Method, result string) {
	if obs.SettlementTotal == nil {
		return
	}
	label := string(method)
	if label == "" {
		label = "none"
	}
	obs.SettlementTotal.WithLabelValues(label, result).Inc()
}

func (s *Service) countViolations(violations []string) {
	if obs.ComplianceViolationTotal == nil {
		return
	}
	for _, v := range violations {
		obs.ComplianceViolationTotal.WithLabelValues(violationCheck(v)).Inc()
	}
}

// violationCheck buckets a violation message into a stable metric label.
func violationCheck(violation string) string {
	switch {
	case violation == "No customer selected":
		return "customer_missing"
	case strings.HasPrefix(violation, "Customer under"):
		return "age"
	case violation == "ID has expired":
		return "id_expired"
	case strings.HasPrefix(violation, "Medical card"):
		return "medical_card"
	case strings.Contains(violation, "daily limit"):
		return "daily_limit"
	case strings.Contains(violation, "monthly limit"):
		return "monthly_limit"
	}
	return "other"
}

func recordLines(lines []cart.Line, priced []pricing.Line) []RecordLine {
	out := make([]RecordLine, 0, len(lines))
	for i, ln := range lines {
		out = append(out, RecordLine{
			ProductID: ln.ProductID,
			Name:      ln.Name,
			Category:  ln.Category,
			Unit:      ln.Unit,
			Quantity:  ln.Quantity,
			UnitPrice: ln.UnitPrice,
			TaxBps:    ln.TaxBps,
			Subtotal:  priced[i].Subtotal,
			Tax:       priced[i].Tax,
			Total:     priced[i].Total,
		})
	}
	return out
}

// freezeDiscounts captures each discount at the amount it contributed against
// the settlement-time subtotal.
func freezeDiscounts(applied []discount.Discount, lines []pricing.Line, subtotal pricing.Money) []AppliedDiscount {
	out := make([]AppliedDiscount, 0, len(applied))
	for _, d := range applied {
		out = append(out, AppliedDiscount{
			ID:     d.ID,
			Name:   d.Name,
			Kind:   d.Kind,
			Amount: discount.Amount(d, lines, subtotal),
		})
	}
	return out
}
