// README: Cart service applies item mutations and re-quotes delivery before saving.
package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dropfee/internal/logger"
	"dropfee/internal/modules/geo"
	"dropfee/internal/modules/pricing"
	"dropfee/internal/types"
)

type Repository interface {
	Get(ctx context.Context, customerID types.ID) (*Cart, error)
	Update(ctx context.Context, customerID types.ID, fn func(*Cart) error) (*Cart, error)
	Delete(ctx context.Context, customerID types.ID) error
}

type FeeQuoter interface {
	ComputeFee(ctx context.Context, req pricing.FeeRequest) (pricing.FeeBreakdown, error)
}

type Service struct {
	repo Repository
	fees FeeQuoter
	now  func() time.Time
	logg *logger.Logger
}

func NewService(repo Repository, fees FeeQuoter, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, fees: fees, now: time.Now, logg: logg}
}

type AddItemCommand struct {
	RestaurantID types.ID
	ProductID    types.ID
	Name         string
	Quantity     int
	UnitPrice    decimal.Decimal
}

// Get returns an empty cart for customers without one.
func (s *Service) Get(ctx context.Context, customerID types.ID) (*Cart, error) {
	if err := checkCustomer(customerID); err != nil {
		return nil, err
	}
	c, err := s.repo.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = NewCart(customerID)
		c.RecomputeTotals(nil)
	}
	return c, nil
}

func (s *Service) AddItem(ctx context.Context, customerID types.ID, cmd AddItemCommand) (*Cart, error) {
	if strings.TrimSpace(string(cmd.RestaurantID)) == "" {
		return nil, fmt.Errorf("%w: restaurantId is required", ErrInvalidCart)
	}
	return s.mutate(ctx, customerID, func(c *Cart) error {
		if c.RestaurantID != "" && c.RestaurantID != cmd.RestaurantID {
			return fmt.Errorf("%w: cart is bound to %s", ErrRestaurantMismatch, c.RestaurantID)
		}
		if err := c.AddItem(cmd.ProductID, cmd.Name, cmd.Quantity, cmd.UnitPrice); err != nil {
			return err
		}
		c.RestaurantID = cmd.RestaurantID
		return nil
	})
}

func (s *Service) SetQuantity(ctx context.Context, customerID, productID types.ID, quantity int) (*Cart, error) {
	return s.mutate(ctx, customerID, func(c *Cart) error {
		return c.SetQuantity(productID, quantity)
	})
}

// RemoveItem writes nothing when the product is not in the cart.
func (s *Service) RemoveItem(ctx context.Context, customerID, productID types.ID) (*Cart, error) {
	current, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !current.Contains(productID) {
		return current, nil
	}
	return s.mutate(ctx, customerID, func(c *Cart) error {
		c.RemoveItem(productID)
		return nil
	})
}

func (s *Service) SetDelivery(ctx context.Context, customerID types.ID, d Delivery) (*Cart, error) {
	if err := geo.ValidatePoint(d.Pickup); err != nil {
		return nil, fmt.Errorf("pickup: %w", err)
	}
	if err := geo.ValidatePoint(d.Drop); err != nil {
		return nil, fmt.Errorf("drop: %w", err)
	}
	return s.mutate(ctx, customerID, func(c *Cart) error {
		c.Delivery = &d
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, customerID types.ID) error {
	if err := checkCustomer(customerID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, customerID)
}

// mutate applies fn, then re-quotes delivery and recomputes totals before saving.
func (s *Service) mutate(ctx context.Context, customerID types.ID, fn func(*Cart) error) (*Cart, error) {
	if err := checkCustomer(customerID); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, customerID, func(c *Cart) error {
		if err := fn(c); err != nil {
			return err
		}
		fee, err := s.quote(ctx, c)
		if err != nil {
			return err
		}
		c.RecomputeTotals(fee)
		c.UpdatedAt = s.now().UTC()
		return nil
	})
}

// quote prices delivery against the current subtotal; nil when there is nothing to deliver.
func (s *Service) quote(ctx context.Context, c *Cart) (*pricing.FeeBreakdown, error) {
	if c.Delivery == nil || len(c.Items) == 0 {
		return nil, nil
	}
	fee, err := s.fees.ComputeFee(ctx, pricing.FeeRequest{
		RestaurantID:  c.RestaurantID,
		Pickup:        c.Delivery.Pickup,
		Drop:          c.Delivery.Drop,
		RequestTime:   s.now(),
		OrderSubtotal: c.Subtotal(),
	})
	if err != nil {
		return nil, fmt.Errorf("quote delivery: %w", err)
	}
	return &fee, nil
}

func checkCustomer(customerID types.ID) error {
	if strings.TrimSpace(string(customerID)) == "" {
		return fmt.Errorf("%w: customerId is required", ErrInvalidCart)
	}
	return nil
}
