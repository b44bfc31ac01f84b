// README: Delivery settings model (global or per restaurant) and peak-hour windows.
package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dropfee/internal/types"
)

var ErrInvalidSettings = errors.New("invalid delivery settings")

type Source string

const (
	SourceRestaurant Source = "restaurant"
	SourceGlobal     Source = "global"
	SourceFallback   Source = "fallback"
)

// PeakWindow is a wall-clock window [Start, End) in HH:MM. End before Start wraps midnight;
// Start equal to End matches nothing.
type PeakWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type DeliverySettings struct {
	RestaurantID      *types.ID
	BaseCharge        decimal.Decimal
	PerKmCharge       decimal.Decimal
	SurgeMultiplier   decimal.Decimal
	FreeDeliveryAbove *decimal.Decimal // nil: never free
	PeakHours         []PeakWindow
	Timezone          string
	Version           int64
	UpdatedAt         time.Time
}

func (s DeliverySettings) key() string {
	return keyFor(s.RestaurantID)
}

func keyFor(restaurantID *types.ID) string {
	if restaurantID == nil {
		return ""
	}
	return string(*restaurantID)
}

// Input is an upsert by key: RestaurantID nil targets the global record.
type Input struct {
	RestaurantID      *types.ID
	BaseCharge        decimal.Decimal
	PerKmCharge       decimal.Decimal
	SurgeMultiplier   *decimal.Decimal // nil: 1.0
	FreeDeliveryAbove *decimal.Decimal
	PeakHours         []PeakWindow
	Timezone          string // empty: service default
}

// Effective is the resolved tariff for one request.
type Effective struct {
	DeliverySettings
	Source          Source
	Location        *time.Location
	SnapshotVersion int64
}

func (e Effective) IsPeakHour(t time.Time) bool {
	return IsPeakHour(e.PeakHours, e.Location, t)
}

// IsPeakHour reports whether t, read in loc, falls in any window.
func IsPeakHour(windows []PeakWindow, loc *time.Location, t time.Time) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	secs := local.Hour()*3600 + local.Minute()*60 + local.Second()
	for _, w := range windows {
		start, end, err := w.seconds()
		if err != nil || start == end {
			continue
		}
		if start < end {
			if secs >= start && secs < end {
				return true
			}
			continue
		}
		if secs >= start || secs < end {
			return true
		}
	}
	return false
}

func (w PeakWindow) seconds() (int, int, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("time %q must be HH:MM", v)
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}
