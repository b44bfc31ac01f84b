// README: Admin surge-zone handlers (list/get/create/update/delete).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"dropfee/internal/logger"
	"dropfee/internal/maps"
	"dropfee/internal/modules/zone"
	"dropfee/internal/types"
)

type ZoneHandler struct {
	zones *zone.Registry
	logg  *logger.Logger
}

func NewZoneHandler(zones *zone.Registry, logg *logger.Logger) *ZoneHandler {
	return &ZoneHandler{zones: zones, logg: logg}
}

// zoneRequest takes the ring either as GeoJSON-ordered [[lng,lat],...] or as a Google
// encoded polyline.
type zoneRequest struct {
	Name           string           `json:"name" validate:"max=120"`
	Category       string           `json:"category" validate:"required"`
	Multiplier     *decimal.Decimal `json:"multiplier" validate:"required"`
	Polygon        [][]float64      `json:"polygon" validate:"omitempty,dive,len=2"`
	EncodedPolygon string           `json:"encodedPolygon"`
	ValidFrom      *time.Time       `json:"validFrom"`
	ValidTo        *time.Time       `json:"validTo"`
}

type zoneResponse struct {
	ID         types.ID     `json:"id"`
	Name       string       `json:"name"`
	Category   string       `json:"category"`
	Multiplier float64      `json:"multiplier"`
	Polygon    [][2]float64 `json:"polygon"`
	ValidFrom  *time.Time   `json:"validFrom"`
	ValidTo    *time.Time   `json:"validTo"`
	Version    int64        `json:"version"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

func newZoneResponse(z zone.Zone) zoneResponse {
	points := z.Polygon.Points()
	ring := make([][2]float64, len(points))
	for i, p := range points {
		ring[i] = [2]float64{p.Lng, p.Lat}
	}
	return zoneResponse{
		ID:         z.ID,
		Name:       z.Name,
		Category:   string(z.Category),
		Multiplier: ratio(z.Multiplier),
		Polygon:    ring,
		ValidFrom:  z.ValidFrom,
		ValidTo:    z.ValidTo,
		Version:    z.Version,
		CreatedAt:  z.CreatedAt,
		UpdatedAt:  z.UpdatedAt,
	}
}

func (h *ZoneHandler) List(c *gin.Context) {
	snap := h.zones.Snapshot()
	zones := snap.Zones()
	out := make([]zoneResponse, len(zones))
	for i, z := range zones {
		out[i] = newZoneResponse(z)
	}
	writeJSON(c, http.StatusOK, gin.H{"version": snap.Version(), "zones": out})
}

func (h *ZoneHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid zone id")
		return
	}
	z, err := h.zones.Get(types.ID(id))
	if err != nil {
		writeDomainError(c, h.logg, err)
		return
	}
	writeJSON(c, http.StatusOK, newZoneResponse(z))
}

func (h *ZoneHandler) Create(c *gin.Context) {
	cmd, ok := h.bindZone(c)
	if !ok {
		return
	}
	z, err := h.zones.Upsert(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, h.logg, err)
		return
	}
	writeJSON(c, http.StatusCreated, newZoneResponse(z))
}

func (h *ZoneHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid zone id")
		return
	}
	cmd, ok := h.bindZone(c)
	if !ok {
		return
	}
	cmd.ID = types.ID(id)
	z, err := h.zones.Upsert(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, h.logg, err)
		return
	}
	writeJSON(c, http.StatusOK, newZoneResponse(z))
}

// Delete answers 204 whether or not the zone existed.
func (h *ZoneHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid zone id")
		return
	}
	if err := h.zones.Remove(c.Request.Context(), types.ID(id)); err != nil {
		writeDomainError(c, h.logg, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ZoneHandler) bindZone(c *gin.Context) (zone.UpsertCommand, bool) {
	var req zoneRequest
	if !bindJSON(c, &req) {
		return zone.UpsertCommand{}, false
	}
	ring := make([]types.Point, 0, len(req.Polygon))
	for _, pair := range req.Polygon {
		ring = append(ring, types.Point{Lat: pair[1], Lng: pair[0]})
	}
	if len(ring) == 0 && req.EncodedPolygon != "" {
		decoded, err := maps.DecodeRing(req.EncodedPolygon)
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return zone.UpsertCommand{}, false
		}
		ring = decoded
	}
	return zone.UpsertCommand{
		Name:       req.Name,
		Category:   zone.Category(req.Category),
		Multiplier: *req.Multiplier,
		Polygon:    ring,
		ValidFrom:  req.ValidFrom,
		ValidTo:    req.ValidTo,
	}, true
}
