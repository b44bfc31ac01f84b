package cart

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"dropfee/internal/modules/pricing"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestAddItem_MergeKeepsFirstPriceSnapshot(t *testing.T) {
	c := NewCart("cust-1")
	if err := c.AddItem("p1", "Dumplings", 2, d("80")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := c.AddItem("p1", "Dumplings", 1, d("95")); err != nil {
		t.Fatalf("AddItem repeat: %v", err)
	}
	if len(c.Items) != 1 {
		t.Fatalf("expected single merged line, got %d", len(c.Items))
	}
	if c.Items[0].Quantity != 3 || !c.Items[0].PriceAtPurchase.Equal(d("80")) {
		t.Fatalf("unexpected merged line %+v", c.Items[0])
	}

	c.RemoveItem("p1")
	if err := c.AddItem("p1", "Dumplings", 1, d("95")); err != nil {
		t.Fatalf("AddItem after remove: %v", err)
	}
	if !c.Items[0].PriceAtPurchase.Equal(d("95")) {
		t.Fatalf("expected fresh snapshot after removal, got %s", c.Items[0].PriceAtPurchase)
	}
}

func TestAddItem_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		qty     int
		price   string
		wantErr error
	}{
		{"zero quantity", 0, "10", ErrInvalidQuantity},
		{"negative quantity", -2, "10", ErrInvalidQuantity},
		{"negative price", 1, "-0.01", ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCart("cust-1")
			if err := c.AddItem("p1", "x", tt.qty, d(tt.price)); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(c.Items) != 0 {
				t.Fatal("rejected add must not change the cart")
			}
		})
	}
}

func TestSetQuantityAndRemove(t *testing.T) {
	c := NewCart("cust-1")
	c.RestaurantID = "rest-1"
	_ = c.AddItem("p1", "Noodles", 1, d("120"))

	if err := c.SetQuantity("p1", 4); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if c.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", c.Items[0].Quantity)
	}
	if err := c.SetQuantity("p1", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if err := c.SetQuantity("missing", 1); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	c.RemoveItem("missing")
	if len(c.Items) != 1 {
		t.Fatal("removing an unknown product must be a no-op")
	}
	c.RemoveItem("p1")
	if len(c.Items) != 0 || c.RestaurantID != "" {
		t.Fatalf("expected empty unbound cart, got %+v", c)
	}
}

func TestRecomputeTotals(t *testing.T) {
	c := NewCart("cust-1")
	_ = c.AddItem("p1", "Tea", 3, d("45.5"))
	_ = c.AddItem("p2", "Bun", 2, d("30"))
	fee := &pricing.FeeBreakdown{FinalCharge: d("50")}

	c.RecomputeTotals(fee)
	if !c.ItemsSubtotal.Equal(d("196.5")) {
		t.Fatalf("expected subtotal 196.5, got %s", c.ItemsSubtotal)
	}
	if !c.TotalPrice.Equal(d("246.5")) || c.TotalQuantity != 5 {
		t.Fatalf("unexpected totals: price %s qty %d", c.TotalPrice, c.TotalQuantity)
	}

	before := *c
	c.RecomputeTotals(fee)
	if !c.TotalPrice.Equal(before.TotalPrice) || !c.ItemsSubtotal.Equal(before.ItemsSubtotal) ||
		c.TotalQuantity != before.TotalQuantity || c.Fee != before.Fee {
		t.Fatal("recompute is not idempotent")
	}

	c.RecomputeTotals(nil)
	if !c.TotalPrice.Equal(d("196.5")) || !c.DeliveryCharge.IsZero() {
		t.Fatalf("expected totals without delivery, got %s", c.TotalPrice)
	}
}
