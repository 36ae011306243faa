package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenlot/backend-dispensary/internal/catalog"
	"github.com/greenlot/backend-dispensary/internal/compliance"
	"github.com/greenlot/backend-dispensary/internal/customer"
	"github.com/greenlot/backend-dispensary/internal/discount"
)

type stubLookup struct {
	products map[string]catalog.Product
}

func (s stubLookup) Product(_ context.Context, id string) (catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := NewStore(time.Hour)
	store.Now = func() time.Time { return testNow }
	lookup := stubLookup{products: map[string]catalog.Product{
		"flower-og": {
			ID: "flower-og", Name: "OG Kush", Category: "flower", Unit: "g",
			Price: 1000, Available: decimal.NewFromInt(100),
		},
		"tincture-rx": {
			ID: "tincture-rx", Name: "RSO Tincture", Category: "tincture", Unit: "unit",
			MedicalOnly: true, Price: 4500, Available: decimal.NewFromInt(10),
		},
		"preroll": {
			ID: "preroll", Name: "Classic Preroll", Category: "preroll", Unit: "unit",
			Price: 800, Available: decimal.NewFromInt(50),
		},
	}}
	return &Service{
		Sessions:   store,
		Catalog:    lookup,
		Discounts:  discount.BuiltinSample(),
		Compliance: compliance.Evaluator{Rules: compliance.Rules{AdultUseMinAge: 21, LimitUnit: "g"}, Now: func() time.Time { return testNow }},
	}
}

func validCustomer() customer.Profile {
	return customer.Profile{
		ID:             "cust-1",
		Name:           "Jordan Reyes",
		DateOfBirth:    time.Date(1990, 3, 2, 0, 0, 0, 0, time.UTC),
		Classification: customer.ClassificationAdultUse,
		Identification: customer.Identification{ExpiresAt: testNow.AddDate(2, 0, 0), Verified: true},
		Daily:          customer.LimitWindow{Limit: decimal.NewFromInt(28)},
		Monthly:        customer.LimitWindow{Limit: decimal.NewFromInt(224)},
	}
}

func TestAddLinePricesAtCapturedRate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	view, err := svc.AddLine(ctx, sess.ID, "flower-og", decimal.NewFromInt(2))
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(2000), view.Lines[0].Subtotal)
	assert.Equal(t, int64(160), view.Lines[0].Tax)
	assert.Equal(t, int64(2160), view.Totals.Total)
}

func TestAddLineReplacesQuantityKeepsPrice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, sess.ID, "flower-og", decimal.NewFromInt(2))
	require.NoError(t, err)

	// catalog price change must not leak into the existing line
	svc.Catalog = stubLookup{products: map[string]catalog.Product{
		"flower-og": {ID: "flower-og", Name: "OG Kush", Category: "flower", Unit: "g",
			Price: 9999, Available: decimal.NewFromInt(100)},
	}}

	view, err := svc.AddLine(ctx, sess.ID, "flower-og", decimal.NewFromInt(3))
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.True(t, decimal.NewFromInt(3).Equal(view.Lines[0].Quantity))
	assert.Equal(t, int64(1000), view.Lines[0].UnitPrice)
}

func TestAddLineRejectsBadQuantities(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, sess.ID, "flower-og", decimal.Zero)
	assert.ErrorIs(t, err, ErrQuantityNotPositive)

	_, err = svc.AddLine(ctx, sess.ID, "flower-og", decimal.NewFromInt(101))
	assert.ErrorIs(t, err, ErrQuantityExceedsStock)

	_, err = svc.AddLine(ctx, sess.ID, "no-such", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, sess.ID, "flower-og", decimal.NewFromInt(2))
	require.NoError(t, err)

	view, err := svc.UpdateQuantity(ctx, sess.ID, "flower-og", decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Equal(t, int64(0), view.Totals.Total)
}

func TestClearResetsLinesAndDiscounts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AttachCustomer(ctx, sess.ID, validCustomer())
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, sess.ID, "flower-og", decimal.NewFromInt(3))
	require.NoError(t, err)
	_, err = svc.ApplyDiscount(ctx, sess.ID, "early-bird")
	require.NoError(t, err)

	view, err := svc.Clear(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Empty(t, view.Discounts)
	assert.Equal(t, int64(0), view.Totals.Total)
	// the attached customer is kept for the next ring-up
	require.NotNil(t, view.Customer)
	assert.Equal(t, "cust-1", view.Customer.ID)
}

type unreachableLookup struct{}

func (unreachableLookup) Product(context.Context, string) (catalog.Product, error) {
	return catalog.Product{}, errors.New("catalog unreachable")
}

func TestUpdateQuantityProceedsWhenCatalogUnreachable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, sess.ID, "flower-og", decimal.NewFromInt(2))
	require.NoError(t, err)

	svc.Catalog = unreachableLookup{}
	view, err := svc.UpdateQuantity(ctx, sess.ID, "flower-og", decimal.NewFromInt(5))
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(view.Lines[0].Quantity))
}

func TestRemoveLineUnknownProduct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.RemoveLine(ctx, sess.ID, "flower-og")
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestApplyDiscountChecksEligibilityOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AddLine(ctx, sess.ID, "flower-og", decimal.NewFromInt(2))
	require.NoError(t, err)

	// new-customer discount without a customer attached
	_, err = svc.ApplyDiscount(ctx, sess.ID, "first-visit")
	assert.ErrorIs(t, err, discount.ErrCustomerRequired)

	profile := validCustomer()
	profile.NewCustomer = true
	_, err = svc.AttachCustomer(ctx, sess.ID, profile)
	require.NoError(t, err)

	view, err := svc.ApplyDiscount(ctx, sess.ID, "first-visit")
	require.NoError(t, err)
	require.Len(t, view.Discounts, 1)
	assert.Equal(t, int64(300), view.Discounts[0].Amount)
	assert.Equal(t, int64(1860), view.Totals.Total)

	// re-apply is a no-op
	view, err = svc.ApplyDiscount(ctx, sess.ID, "first-visit")
	require.NoError(t, err)
	assert.Len(t, view.Discounts, 1)

	// replacing the customer does not revoke the applied discount
	returning := validCustomer()
	view, err = svc.AttachCustomer(ctx, sess.ID, returning)
	require.NoError(t, err)
	assert.Len(t, view.Discounts, 1)
}

func TestApplyDiscountUnknownID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.ApplyDiscount(ctx, sess.ID, "no-such")
	assert.ErrorIs(t, err, ErrDiscountNotFound)
}

func TestRemoveDiscountIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	view, err := svc.RemoveDiscount(ctx, sess.ID, "early-bird")
	require.NoError(t, err)
	assert.Empty(t, view.Discounts)
}

func TestComplianceReflectsSessionState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	view, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, view.Compliance.Pass)
	assert.Equal(t, []string{"No customer selected"}, view.Compliance.Violations)

	_, err = svc.AttachCustomer(ctx, sess.ID, validCustomer())
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, sess.ID, "tincture-rx", decimal.NewFromInt(1))
	require.NoError(t, err)

	view, err = svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, view.Compliance.Pass)
	assert.Contains(t, view.Compliance.Violations, "Medical card missing or unverified for medical-only products")
}

func TestSessionExpiry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	svc.Sessions.Now = func() time.Time { return testNow.Add(2 * time.Hour) }
	_, err = svc.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckoutBundlesFrozenState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Create(ctx)
	require.NoError(t, err)

	_, err = svc.AttachCustomer(ctx, sess.ID, validCustomer())
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, sess.ID, "preroll", decimal.NewFromInt(2))
	require.NoError(t, err)
	_, err = svc.ApplyDiscount(ctx, sess.ID, "bogo-preroll")
	require.NoError(t, err)

	co, err := svc.Checkout(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, co.Compliance.Pass)
	require.Len(t, co.Applied, 1)
	assert.Equal(t, discount.KindBogo, co.Applied[0].Kind)
	assert.Equal(t, int64(800), co.Summary.Discount)
	assert.Equal(t, int64(1600), co.Summary.Subtotal)
}
