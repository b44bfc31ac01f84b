// README: Customer cart handlers; every mutation returns the recomputed cart.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"dropfee/internal/logger"
	"dropfee/internal/modules/cart"
	"dropfee/internal/types"
)

type CartHandler struct {
	carts *cart.Service
	logg  *logger.Logger
}

func NewCartHandler(carts *cart.Service, logg *logger.Logger) *CartHandler {
	return &CartHandler{carts: carts, logg: logg}
}

type addItemRequest struct {
	RestaurantID string           `json:"restaurantId" validate:"required"`
	ProductID    string           `json:"productId" validate:"required"`
	Name         string           `json:"name" validate:"max=200"`
	Quantity     int              `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unitPrice" validate:"required"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type deliveryRequest struct {
	Pickup *pointDTO `json:"pickup" validate:"required"`
	Drop   *pointDTO `json:"drop" validate:"required"`
}

type cartItemResponse struct {
	ProductID       types.ID `json:"productId"`
	Name            string   `json:"name"`
	Quantity        int      `json:"quantity"`
	PriceAtPurchase float64  `json:"priceAtPurchase"`
	LineTotal       float64  `json:"lineTotal"`
}

type cartResponse struct {
	CustomerID     types.ID           `json:"customerId"`
	RestaurantID   types.ID           `json:"restaurantId,omitempty"`
	Items          []cartItemResponse `json:"items"`
	Delivery       *cart.Delivery     `json:"delivery"`
	Fee            *feeResponse       `json:"fee"`
	ItemsSubtotal  float64            `json:"itemsSubtotal"`
	DeliveryCharge float64            `json:"deliveryCharge"`
	TotalPrice     float64            `json:"totalPrice"`
	TotalQuantity  int                `json:"totalQuantity"`
	UpdatedAt      *time.Time         `json:"updatedAt,omitempty"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	items := make([]cartItemResponse, len(c.Items))
	for i, it := range c.Items {
		items[i] = cartItemResponse{
			ProductID:       it.ProductID,
			Name:            it.Name,
			Quantity:        it.Quantity,
			PriceAtPurchase: money(it.PriceAtPurchase),
			LineTotal:       money(it.PriceAtPurchase.Mul(decimal.NewFromInt(int64(it.Quantity)))),
		}
	}
	out := cartResponse{
		CustomerID:     c.CustomerID,
		RestaurantID:   c.RestaurantID,
		Items:          items,
		Delivery:       c.Delivery,
		ItemsSubtotal:  money(c.ItemsSubtotal),
		DeliveryCharge: money(c.DeliveryCharge),
		TotalPrice:     money(c.TotalPrice),
		TotalQuantity:  c.TotalQuantity,
	}
	if c.Fee != nil {
		fee := newFeeResponse(*c.Fee)
		out.Fee = &fee
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func (h *CartHandler) Get(c *gin.Context) {
	customerID, ok := customerParam(c)
	if !ok {
		return
	}
	ct, err := h.carts.Get(c.Request.Context(), customerID)
	h.respond(c, ct, err)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	customerID, ok := customerParam(c)
	if !ok {
		return
	}
	var req addItemRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := h.carts.AddItem(c.Request.Context(), customerID, cart.AddItemCommand{
		RestaurantID: types.ID(req.RestaurantID),
		ProductID:    types.ID(req.ProductID),
		Name:         req.Name,
		Quantity:     req.Quantity,
		UnitPrice:    *req.UnitPrice,
	})
	h.respond(c, ct, err)
}

func (h *CartHandler) SetQuantity(c *gin.Context) {
	customerID, ok := customerParam(c)
	if !ok {
		return
	}
	var req setQuantityRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := h.carts.SetQuantity(c.Request.Context(), customerID, types.ID(c.Param("productId")), req.Quantity)
	h.respond(c, ct, err)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	customerID, ok := customerParam(c)
	if !ok {
		return
	}
	ct, err := h.carts.RemoveItem(c.Request.Context(), customerID, types.ID(c.Param("productId")))
	h.respond(c, ct, err)
}

func (h *CartHandler) SetDelivery(c *gin.Context) {
	customerID, ok := customerParam(c)
	if !ok {
		return
	}
	var req deliveryRequest
	if !bindJSON(c, &req) {
		return
	}
	ct, err := h.carts.SetDelivery(c.Request.Context(), customerID, cart.Delivery{
		Pickup: req.Pickup.point(),
		Drop:   req.Drop.point(),
	})
	h.respond(c, ct, err)
}

func (h *CartHandler) Clear(c *gin.Context) {
	customerID, ok := customerParam(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), customerID); err != nil {
		writeDomainError(c, h.logg, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) respond(c *gin.Context, ct *cart.Cart, err error) {
	if err != nil {
		writeDomainError(c, h.logg, err)
		return
	}
	writeJSON(c, http.StatusOK, newCartResponse(ct))
}

func customerParam(c *gin.Context) (types.ID, bool) {
	id := c.Param("customerId")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid customer id")
		return "", false
	}
	return types.ID(id), true
}
