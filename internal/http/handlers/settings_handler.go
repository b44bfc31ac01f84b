// README: Admin delivery-settings handlers and the effective-settings inspector.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"dropfee/internal/logger"
	"dropfee/internal/modules/settings"
	"dropfee/internal/types"
)

type SettingsHandler struct {
	settings *settings.Resolver
	logg     *logger.Logger
}

func NewSettingsHandler(resolver *settings.Resolver, logg *logger.Logger) *SettingsHandler {
	return &SettingsHandler{settings: resolver, logg: logg}
}

type peakWindowDTO struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

type settingsRequest struct {
	RestaurantID      *string          `json:"restaurantId"`
	BaseCharge        *decimal.Decimal `json:"baseCharge" validate:"required"`
	PerKmCharge       *decimal.Decimal `json:"perKmCharge" validate:"required"`
	SurgeMultiplier   *decimal.Decimal `json:"surgeMultiplier"`
	FreeDeliveryAbove *decimal.Decimal `json:"freeDeliveryAbove"`
	PeakHours         []peakWindowDTO  `json:"peakHours" validate:"dive"`
	Timezone          string           `json:"timezone"`
}

type settingsResponse struct {
	RestaurantID      *types.ID             `json:"restaurantId"`
	BaseCharge        float64               `json:"baseCharge"`
	PerKmCharge       float64               `json:"perKmCharge"`
	SurgeMultiplier   float64               `json:"surgeMultiplier"`
	FreeDeliveryAbove *float64              `json:"freeDeliveryAbove"`
	PeakHours         []settings.PeakWindow `json:"peakHours"`
	Timezone          string                `json:"timezone"`
	Version           int64                 `json:"version"`
	UpdatedAt         *time.Time            `json:"updatedAt,omitempty"`
}

type effectiveResponse struct {
	settingsResponse
	Source          string `json:"source"`
	SnapshotVersion int64  `json:"snapshotVersion"`
}

func newSettingsResponse(s settings.DeliverySettings) settingsResponse {
	peak := s.PeakHours
	if peak == nil {
		peak = []settings.PeakWindow{}
	}
	out := settingsResponse{
		RestaurantID:      s.RestaurantID,
		BaseCharge:        money(s.BaseCharge),
		PerKmCharge:       money(s.PerKmCharge),
		SurgeMultiplier:   ratio(s.SurgeMultiplier),
		FreeDeliveryAbove: moneyPtr(s.FreeDeliveryAbove),
		PeakHours:         peak,
		Timezone:          s.Timezone,
		Version:           s.Version,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func (h *SettingsHandler) List(c *gin.Context) {
	snap := h.settings.Snapshot()
	records := snap.List()
	out := make([]settingsResponse, len(records))
	for i, r := range records {
		out[i] = newSettingsResponse(r)
	}
	writeJSON(c, http.StatusOK, gin.H{"version": snap.Version(), "settings": out})
}

func (h *SettingsHandler) Upsert(c *gin.Context) {
	var req settingsRequest
	if !bindJSON(c, &req) {
		return
	}
	in := settings.Input{
		BaseCharge:        *req.BaseCharge,
		PerKmCharge:       *req.PerKmCharge,
		SurgeMultiplier:   req.SurgeMultiplier,
		FreeDeliveryAbove: req.FreeDeliveryAbove,
		Timezone:          req.Timezone,
	}
	if req.RestaurantID != nil {
		id := types.ID(strings.TrimSpace(*req.RestaurantID))
		in.RestaurantID = &id
	}
	for _, w := range req.PeakHours {
		in.PeakHours = append(in.PeakHours, settings.PeakWindow{Start: w.Start, End: w.End})
	}

	rec, err := h.settings.Upsert(c.Request.Context(), in)
	if err != nil {
		writeDomainError(c, h.logg, err)
		return
	}
	writeJSON(c, http.StatusOK, newSettingsResponse(rec))
}

// Effective shows which record a fee computation for ?restaurantId= would use.
func (h *SettingsHandler) Effective(c *gin.Context) {
	eff := h.settings.Resolve(c.Request.Context(), types.ID(c.Query("restaurantId")))
	writeJSON(c, http.StatusOK, effectiveResponse{
		settingsResponse: newSettingsResponse(eff.DeliverySettings),
		Source:           string(eff.Source),
		SnapshotVersion:  eff.SnapshotVersion,
	})
}
