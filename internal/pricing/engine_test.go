package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeLine(t *testing.T) {
	line := ComputeLine(decimal.NewFromInt(2), 1000, 800)
	if line.Subtotal != 2000 {
		t.Fatalf("expected subtotal 2000, got %d", line.Subtotal)
	}
	if line.Tax != 160 {
		t.Fatalf("expected tax 160, got %d", line.Tax)
	}
	if line.Total != 2160 {
		t.Fatalf("expected total 2160, got %d", line.Total)
	}
}

func TestComputeLineFractionalQuantity(t *testing.T) {
	// 3.5 g at $12.00/g.
	line := ComputeLine(decimal.RequireFromString("3.5"), 1200, 800)
	if line.Subtotal != 4200 {
		t.Fatalf("expected subtotal 4200, got %d", line.Subtotal)
	}
	if line.Tax != 336 {
		t.Fatalf("expected tax 336, got %d", line.Tax)
	}
}

func TestComputeClampsTotalAtZero(t *testing.T) {
	lines := []Line{ComputeLine(decimal.NewFromInt(1), 500, 0)}
	summary := Compute(lines, 10_000)
	if summary.Total != 0 {
		t.Fatalf("expected total clamped to 0, got %d", summary.Total)
	}
	if summary.Subtotal != 500 {
		t.Fatalf("expected subtotal 500, got %d", summary.Subtotal)
	}
}

func TestComputeSkipsNonPositiveQuantities(t *testing.T) {
	lines := []Line{
		ComputeLine(decimal.NewFromInt(2), 1000, 800),
		{Quantity: decimal.Zero, Subtotal: 999, Tax: 99},
	}
	summary := Compute(lines, 0)
	if summary.Subtotal != 2000 {
		t.Fatalf("expected subtotal 2000, got %d", summary.Subtotal)
	}
	if !summary.ItemCount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected item count 2, got %s", summary.ItemCount)
	}
}
