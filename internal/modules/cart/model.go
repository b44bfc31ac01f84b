// README: Cart model; totals are always recomputed from the item list.
package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dropfee/internal/modules/pricing"
	"dropfee/internal/types"
)

var (
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrItemNotFound       = errors.New("cart item not found")
	ErrRestaurantMismatch = errors.New("cart belongs to another restaurant")
	ErrInvalidCart        = errors.New("invalid cart request")
	ErrConflict           = errors.New("cart update conflict")
)

type Item struct {
	ProductID       types.ID        `json:"productId"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase"`
}

type Delivery struct {
	Pickup types.Point `json:"pickup"`
	Drop   types.Point `json:"drop"`
}

type Cart struct {
	CustomerID     types.ID              `json:"customerId"`
	RestaurantID   types.ID              `json:"restaurantId,omitempty"`
	Items          []Item                `json:"items"`
	Delivery       *Delivery             `json:"delivery,omitempty"`
	Fee            *pricing.FeeBreakdown `json:"fee,omitempty"`
	ItemsSubtotal  decimal.Decimal       `json:"itemsSubtotal"`
	DeliveryCharge decimal.Decimal       `json:"deliveryCharge"`
	TotalPrice     decimal.Decimal       `json:"totalPrice"`
	TotalQuantity  int                   `json:"totalQuantity"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

func NewCart(customerID types.ID) *Cart {
	return &Cart{CustomerID: customerID, Items: []Item{}}
}

// AddItem merges repeat adds of a product into one line. The line keeps the price
// captured by the first add for as long as it exists in the cart.
func (c *Cart) AddItem(productID types.ID, name string, quantity int, unitPriceNow decimal.Decimal) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidQuantity, quantity)
	}
	if unitPriceNow.IsNegative() {
		return fmt.Errorf("%w: unit price must be >= 0", ErrInvalidPrice)
	}
	if productID == "" {
		return fmt.Errorf("%w: productId is required", ErrInvalidCart)
	}
	if i := c.indexOf(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, Item{
		ProductID:       productID,
		Name:            name,
		Quantity:        quantity,
		PriceAtPurchase: unitPriceNow,
	})
	return nil
}

func (c *Cart) SetQuantity(productID types.ID, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidQuantity, quantity)
	}
	i := c.indexOf(productID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, productID)
	}
	c.Items[i].Quantity = quantity
	return nil
}

func (c *Cart) Contains(productID types.ID) bool {
	return c.indexOf(productID) >= 0
}

// RemoveItem is a no-op for products not in the cart.
func (c *Cart) RemoveItem(productID types.ID) {
	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	if len(c.Items) == 0 {
		c.RestaurantID = ""
	}
}

// Subtotal sums quantity x priceAtPurchase over every line.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.PriceAtPurchase.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// RecomputeTotals rebuilds every derived field from the items and fee; calling it
// twice leaves the cart unchanged.
func (c *Cart) RecomputeTotals(fee *pricing.FeeBreakdown) {
	quantity := 0
	for _, it := range c.Items {
		quantity += it.Quantity
	}
	c.Fee = fee
	c.TotalQuantity = quantity
	c.ItemsSubtotal = types.RoundMoney(c.Subtotal())
	c.DeliveryCharge = decimal.Zero
	if fee != nil {
		c.DeliveryCharge = fee.FinalCharge
	}
	c.TotalPrice = types.RoundMoney(c.ItemsSubtotal.Add(c.DeliveryCharge))
}

func (c *Cart) indexOf(productID types.ID) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
