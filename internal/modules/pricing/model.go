// README: Fee request and the auditable fee breakdown returned for each computation.
package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"dropfee/internal/types"
)

var ErrInvalidRequest = errors.New("invalid fee request")

type SurgeSource string

const (
	SurgeNone SurgeSource = "none"
	SurgeZone SurgeSource = "zone"
	SurgePeak SurgeSource = "peak"
)

type FeeRequest struct {
	RestaurantID  types.ID
	Pickup        types.Point
	Drop          types.Point
	RequestTime   time.Time // zero: now
	OrderSubtotal decimal.Decimal
}

// FeeBreakdown is immutable once returned.
type FeeBreakdown struct {
	BaseCharge          decimal.Decimal `json:"baseCharge"`
	DistanceKm          float64         `json:"distanceKm"`
	DistanceCharge      decimal.Decimal `json:"distanceCharge"`
	ZoneMultiplier      decimal.Decimal `json:"zoneMultiplier"`
	PeakMultiplier      decimal.Decimal `json:"peakMultiplier"`
	PeakHour            bool            `json:"peakHour"`
	AppliedMultiplier   decimal.Decimal `json:"appliedMultiplier"`
	AppliedZoneID       *types.ID       `json:"appliedZoneId"`
	SurgeSource         SurgeSource     `json:"surgeSource"`
	RawCharge           decimal.Decimal `json:"rawCharge"`
	FreeDeliveryApplied bool            `json:"freeDeliveryApplied"`
	FinalCharge         decimal.Decimal `json:"finalCharge"`
	SettingsSource      string          `json:"settingsSource"`
	ZoneSnapshotVersion int64           `json:"zoneSnapshotVersion"`
	SettingsVersion     int64           `json:"settingsVersion"`
	RequestTime         time.Time       `json:"requestTime"`
}
