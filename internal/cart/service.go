package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/greenlot/backend-dispensary/internal/catalog"
	"github.com/greenlot/backend-dispensary/internal/compliance"
	"github.com/greenlot/backend-dispensary/internal/customer"
	"github.com/greenlot/backend-dispensary/internal/discount"
	"github.com/greenlot/backend-dispensary/internal/events"
	"github.com/greenlot/backend-dispensary/internal/obs"
	"github.com/greenlot/backend-dispensary/internal/pricing"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrLineNotFound indicates the session carries no line for the product.
var ErrLineNotFound = errors.New("line not found")

// ErrQuantityNotPositive rejects zero or negative quantities.
var ErrQuantityNotPositive = errors.New("quantity must be positive")

// ErrQuantityExceedsStock rejects quantities above the catalog's available
// amount.
var ErrQuantityExceedsStock = errors.New("quantity exceeds available stock")

// ErrDiscountNotFound indicates the discount identifier is not in the catalog.
var ErrDiscountNotFound = errors.New("discount not found")

// Service encapsulates checkout session operations: lines, discounts,
// customer attachment and the computed preview.
type Service struct {
	Sessions      *Store
	Catalog       catalog.Lookup
	Discounts     discount.Catalog
	Compliance    compliance.Evaluator
	Bus           *events.Bus
	Logger        zerolog.Logger
	DefaultTaxBps int
}

// LineView is a priced line as returned to the register.
type LineView struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand,omitempty"`
	Category    string          `json:"category"`
	Unit        string          `json:"unit"`
	MedicalOnly bool            `json:"medicalOnly"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   pricing.Money   `json:"unitPrice"`
	TaxBps      int             `json:"taxBps"`
	Subtotal    pricing.Money   `json:"subtotal"`
	Tax         pricing.Money   `json:"tax"`
	Total       pricing.Money   `json:"total"`
}

// AppliedDiscountView reports one applied discount with its current amount.
type AppliedDiscountView struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Kind   discount.Kind `json:"kind"`
	Amount pricing.Money `json:"amount"`
}

// TotalsView aggregates the computed cart components.
type TotalsView struct {
	Subtotal  pricing.Money   `json:"subtotal"`
	Discount  pricing.Money   `json:"discount"`
	Tax       pricing.Money   `json:"tax"`
	Total     pricing.Money   `json:"total"`
	ItemCount decimal.Decimal `json:"itemCount"`
}

// View is the full session preview returned by every session endpoint.
type View struct {
	ID         string                `json:"id"`
	Lines      []LineView            `json:"lines"`
	Discounts  []AppliedDiscountView `json:"discounts"`
	Customer   *customer.Profile     `json:"customer,omitempty"`
	Totals     TotalsView            `json:"totals"`
	Compliance compliance.Result     `json:"compliance"`
	CreatedAt  time.Time             `json:"createdAt"`
	ExpiresAt  time.Time             `json:"expiresAt"`
}

// Checkout bundles the session state settlement consumes.
type Checkout struct {
	Session    Session
	Lines      []pricing.Line
	Applied    []discount.Discount
	Summary    pricing.Summary
	Compliance compliance.Result
}

// Create opens a new empty session.
func (s *Service) Create(ctx context.Context) (View, error) {
	if s == nil || s.Sessions == nil {
		return View{}, errors.New("cart service not configured")
	}
	sess := s.Sessions.Create()
	if s.Bus != nil {
		if _, err := s.Bus.Emit(ctx, events.TopicSessionOpened, sess.ID, nil); err != nil {
			s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("emit session opened")
		}
	}
	s.trackOpenSessions()
	return s.view(sess), nil
}

// Get returns the current session preview.
func (s *Service) Get(ctx context.Context, sessionID string) (View, error) {
	if s == nil || s.Sessions == nil {
		return View{}, errors.New("cart service not configured")
	}
	sess, err := s.Sessions.Get(sessionID)
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// AddLine puts a product on the session. Adding a product that is already in
// the cart replaces its quantity; the originally captured unit price and tax
// rate are kept.
func (s *Service) AddLine(ctx context.Context, sessionID, productID string, qty decimal.Decimal) (View, error) {
	if s == nil || s.Sessions == nil {
		return View{}, errors.New("cart service not configured")
	}
	if s.Catalog == nil {
		return View{}, errors.New("catalog not configured")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return View{}, fmt.Errorf("productId is required: %w", ErrInvalidInput)
	}
	if qty.Sign() <= 0 {
		return View{}, ErrQuantityNotPositive
	}
	product, err := s.Catalog.Product(ctx, productID)
	if err != nil {
		return View{}, err
	}
	if qty.GreaterThan(product.Available) {
		return View{}, ErrQuantityExceedsStock
	}
	sess, err := s.Sessions.Update(sessionID, func(sess *Session) error {
		if i := sess.lineIndex(productID); i >= 0 {
			sess.Lines[i].Quantity = qty
			return nil
		}
		sess.Lines = append(sess.Lines, Line{
			ProductID:   product.ID,
			Name:        product.Name,
			Brand:       product.Brand,
			Category:    product.Category,
			Unit:        product.Unit,
			MedicalOnly: product.MedicalOnly,
			Quantity:    qty,
			UnitPrice:   product.Price,
			TaxBps:      s.taxBps(product.TaxBps),
		})
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// UpdateQuantity changes a line's quantity. A quantity of zero or less
// removes the line. The captured unit price never changes.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, productID string, qty decimal.Decimal) (View, error) {
	if s == nil || s.Sessions == nil {
		return View{}, errors.New("cart service not configured")
	}
	if qty.Sign() <= 0 {
		return s.RemoveLine(ctx, sessionID, productID)
	}
	// stock bound is best effort: an unreachable catalog must not block a
	// quantity change on a line that is already in the cart
	if s.Catalog != nil {
		product, err := s.Catalog.Product(ctx, productID)
		if err == nil && qty.GreaterThan(product.Available) {
			return View{}, ErrQuantityExceedsStock
		}
	}
	sess, err := s.Sessions.Update(sessionID, func(sess *Session) error {
		i := sess.lineIndex(productID)
		if i < 0 {
			return ErrLineNotFound
		}
		sess.Lines[i].Quantity = qty
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// RemoveLine deletes a line from the session.
func (s *Service) RemoveLine(ctx context.Context, sessionID, productID string) (View, error) {
	if s == nil || s.Sessions == nil {
		return View{}, errors.New("cart service not configured")
	}
	sess, err := s.Sessions.Update(sessionID, func(sess *Session) error {
		i := sess.lineIndex(productID)
		if i < 0 {
			return ErrLineNotFound
		}
		sess.Lines = append(sess.Lines[:i], sess.Lines[i+1:]...)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// Clear resets the cart to empty: every line and every applied discount is
// dropped. The attached customer stays on the session.
func (s *Service) Clear(ctx context.Context, sessionID string) (View, error) {
	if s == nil || s.Sessions == nil {
		return View{}, errors.New("cart service not configured")
	}
	sess, err := s.Sessions.Update(sessionID, func(sess *Session) error {
		sess.Lines = nil
		sess.DiscountIDs = nil
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// ApplyDiscount attaches a catalog discount after checking its eligibility
// against the current subtotal and customer. Re-applying an already applied
// discount is a no-op.
func (s *Service) ApplyDiscount(ctx context.Context, sessionID, discountID string) (View, error) {
	if s == nil || s.Sessions == nil {
		return View{}, errors.New("cart service not configured")
	}
	if s.Discounts == nil {
		return View{}, errors.New("discount catalog not configured")
	}
	d, ok := s.Discounts.Get(strings.TrimSpace(discountID))
	if !ok {
		return View{}, ErrDiscountNotFound
	}
	sess, err := s.Sessions.Update(sessionID, func(sess *Session) error {
		if sess.hasDiscount(d.ID) {
			return nil
		}
		subtotal := pricing.Compute(priceLines(sess.Lines), 0).Subtotal
		if err := discount.CheckEligibility(d, subtotal, sess.Customer); err != nil {
			return err
		}
		sess.DiscountIDs = append(sess.DiscountIDs, d.ID)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// RemoveDiscount detaches a discount. Removing one that is not applied is a
// no-op.
func (s *Service) RemoveDiscount(ctx context.Context, sessionID, discountID string) (View, error) {
	if s == nil || s.Sessions == nil {
		return View{}, errors.New("cart service not configured")
	}
	sess, err := s.Sessions.Update(sessionID, func(sess *Session) error {
		for i, applied := range sess.DiscountIDs {
			if applied == discountID {
				sess.DiscountIDs = append(sess.DiscountIDs[:i], sess.DiscountIDs[i+1:]...)
				break
			}
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// AttachCustomer binds a customer snapshot to the session. Discounts already
// applied stay applied even if the new customer would not qualify; the
// compliance preview reflects the new customer immediately.
func (s *Service) AttachCustomer(ctx context.Context, sessionID string, profile customer.Profile) (View, error) {
	if s == nil || s.Sessions == nil {
		return View{}, errors.New("cart service not configured")
	}
	if !profile.Classification.Valid() {
		return View{}, fmt.Errorf("unknown classification %q: %w", profile.Classification, ErrInvalidInput)
	}
	sess, err := s.Sessions.Update(sessionID, func(sess *Session) error {
		sess.Customer = &profile
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// Checkout resolves the full session state for settlement without mutating
// the session.
func (s *Service) Checkout(ctx context.Context, sessionID string) (Checkout, error) {
	if s == nil || s.Sessions == nil {
		return Checkout{}, errors.New("cart service not configured")
	}
	sess, err := s.Sessions.Get(sessionID)
	if err != nil {
		return Checkout{}, err
	}
	lines := priceLines(sess.Lines)
	applied := s.resolveDiscounts(sess.DiscountIDs)
	subtotal := pricing.Compute(lines, 0).Subtotal
	amount := discount.ComputeAmount(applied, lines, subtotal)
	return Checkout{
		Session:    sess,
		Lines:      lines,
		Applied:    applied,
		Summary:    pricing.Compute(lines, amount),
		Compliance: s.Compliance.Evaluate(sess.Customer, complianceLines(sess.Lines)),
	}, nil
}

// Close drops a session after settlement.
func (s *Service) Close(sessionID string) {
	if s == nil || s.Sessions == nil {
		return
	}
	s.Sessions.Delete(sessionID)
	s.trackOpenSessions()
}

func (s *Service) trackOpenSessions() {
	if obs.SessionOpenGauge != nil {
		obs.SessionOpenGauge.Set(float64(s.Sessions.Len()))
	}
}

func (s *Service) view(sess Session) View {
	lines := priceLines(sess.Lines)
	applied := s.resolveDiscounts(sess.DiscountIDs)
	subtotal := pricing.Compute(lines, 0).Subtotal

	discountViews := make([]AppliedDiscountView, 0, len(applied))
	var amount pricing.Money
	for _, d := range applied {
		value := discount.Amount(d, lines, subtotal)
		amount += value
		discountViews = append(discountViews, AppliedDiscountView{ID: d.ID, Name: d.Name, Kind: d.Kind, Amount: value})
	}
	summary := pricing.Compute(lines, amount)

	lineViews := make([]LineView, 0, len(sess.Lines))
	for i, ln := range sess.Lines {
		lineViews = append(lineViews, LineView{
			ProductID:   ln.ProductID,
			Name:        ln.Name,
			Brand:       ln.Brand,
			Category:    ln.Category,
			Unit:        ln.Unit,
			MedicalOnly: ln.MedicalOnly,
			Quantity:    ln.Quantity,
			UnitPrice:   ln.UnitPrice,
			TaxBps:      ln.TaxBps,
			Subtotal:    lines[i].Subtotal,
			Tax:         lines[i].Tax,
			Total:       lines[i].Total,
		})
	}

	return View{
		ID:        sess.ID,
		Lines:     lineViews,
		Discounts: discountViews,
		Customer:  sess.Customer,
		Totals: TotalsView{
			Subtotal:  summary.Subtotal,
			Discount:  summary.Discount,
			Tax:       summary.Tax,
			Total:     summary.Total,
			ItemCount: summary.ItemCount,
		},
		Compliance: s.Compliance.Evaluate(sess.Customer, complianceLines(sess.Lines)),
		CreatedAt:  sess.CreatedAt,
		ExpiresAt:  sess.ExpiresAt,
	}
}

// resolveDiscounts maps applied identifiers back to catalog entries,
// preserving application order. Identifiers that left the catalog since they
// were applied are skipped.
func (s *Service) resolveDiscounts(ids []string) []discount.Discount {
	if s.Discounts == nil || len(ids) == 0 {
		return nil
	}
	out := make([]discount.Discount, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.Discounts.Get(id); ok {
			out = append(out, d)
		}
	}
	return out
}

func (s *Service) taxBps(override *int) int {
	if override != nil && *override >= 0 {
		return *override
	}
	if s.DefaultTaxBps > 0 {
		return s.DefaultTaxBps
	}
	return pricing.DefaultTaxBps
}

func priceLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, ln := range lines {
		out = append(out, pricing.ComputeLine(ln.Quantity, ln.UnitPrice, ln.TaxBps))
	}
	return out
}

func complianceLines(lines []Line) []compliance.Line {
	out := make([]compliance.Line, 0, len(lines))
	for _, ln := range lines {
		out = append(out, compliance.Line{
			ProductID:   ln.ProductID,
			Category:    ln.Category,
			MedicalOnly: ln.MedicalOnly,
			Quantity:    ln.Quantity,
		})
	}
	return out
}
