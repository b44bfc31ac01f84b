// README: Delivery fee quote endpoint.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"dropfee/internal/logger"
	"dropfee/internal/modules/pricing"
	"dropfee/internal/types"
)

type FeeHandler struct {
	fees *pricing.Service
	logg *logger.Logger
}

func NewFeeHandler(fees *pricing.Service, logg *logger.Logger) *FeeHandler {
	return &FeeHandler{fees: fees, logg: logg}
}

type feeRequest struct {
	RestaurantID  string           `json:"restaurantId"`
	Pickup        *pointDTO        `json:"pickup" validate:"required"`
	Drop          *pointDTO        `json:"drop" validate:"required"`
	RequestTime   *time.Time       `json:"requestTime"`
	OrderSubtotal *decimal.Decimal `json:"orderSubtotal"`
}

type feeResponse struct {
	BaseCharge          float64   `json:"baseCharge"`
	DistanceKm          float64   `json:"distanceKm"`
	DistanceCharge      float64   `json:"distanceCharge"`
	ZoneMultiplier      float64   `json:"zoneMultiplier"`
	PeakMultiplier      float64   `json:"peakMultiplier"`
	PeakHour            bool      `json:"peakHour"`
	AppliedMultiplier   float64   `json:"appliedMultiplier"`
	AppliedZoneID       *types.ID `json:"appliedZoneId"`
	SurgeSource         string    `json:"surgeSource"`
	RawCharge           float64   `json:"rawCharge"`
	FreeDeliveryApplied bool      `json:"freeDeliveryApplied"`
	FinalCharge         float64   `json:"finalCharge"`
	SettingsSource      string    `json:"settingsSource"`
	ZoneSnapshotVersion int64     `json:"zoneSnapshotVersion"`
	SettingsVersion     int64     `json:"settingsVersion"`
	ComputedAt          time.Time `json:"computedAt"`
}

func newFeeResponse(b pricing.FeeBreakdown) feeResponse {
	return feeResponse{
		BaseCharge:          money(b.BaseCharge),
		DistanceKm:          b.DistanceKm,
		DistanceCharge:      money(b.DistanceCharge),
		ZoneMultiplier:      ratio(b.ZoneMultiplier),
		PeakMultiplier:      ratio(b.PeakMultiplier),
		PeakHour:            b.PeakHour,
		AppliedMultiplier:   ratio(b.AppliedMultiplier),
		AppliedZoneID:       b.AppliedZoneID,
		SurgeSource:         string(b.SurgeSource),
		RawCharge:           money(b.RawCharge),
		FreeDeliveryApplied: b.FreeDeliveryApplied,
		FinalCharge:         money(b.FinalCharge),
		SettingsSource:      b.SettingsSource,
		ZoneSnapshotVersion: b.ZoneSnapshotVersion,
		SettingsVersion:     b.SettingsVersion,
		ComputedAt:          b.RequestTime,
	}
}

func (h *FeeHandler) Quote(c *gin.Context) {
	var req feeRequest
	if !bindJSON(c, &req) {
		return
	}
	in := pricing.FeeRequest{
		RestaurantID: types.ID(req.RestaurantID),
		Pickup:       req.Pickup.point(),
		Drop:         req.Drop.point(),
	}
	if req.RequestTime != nil {
		in.RequestTime = *req.RequestTime
	}
	if req.OrderSubtotal != nil {
		in.OrderSubtotal = *req.OrderSubtotal
	}

	b, err := h.fees.ComputeFee(c.Request.Context(), in)
	if err != nil {
		writeDomainError(c, h.logg, err)
		return
	}
	writeJSON(c, http.StatusOK, newFeeResponse(b))
}
