// README: Surge zone model: category, multiplier, polygon and optional validity window.
package zone

import (
	"errors"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"dropfee/internal/modules/geo"
	"dropfee/internal/types"
)

type Category string

const (
	CategoryHighDemand   Category = "high_demand"
	CategoryMediumDemand Category = "medium_demand"
	CategoryEventBased   Category = "event_based"
)

var categoryPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Valid accepts the known categories and any other snake_case token.
func (c Category) Valid() bool {
	return categoryPattern.MatchString(string(c))
}

var (
	ErrZoneNotFound = errors.New("zone not found")
	ErrInvalidZone  = errors.New("invalid zone")
)

type Zone struct {
	ID         types.ID
	Name       string
	Category   Category
	Multiplier decimal.Decimal
	Polygon    geo.Polygon
	ValidFrom  *time.Time
	ValidTo    *time.Time
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ActiveAt reports whether t lies in [ValidFrom, ValidTo). Missing bounds are open.
func (z Zone) ActiveAt(t time.Time) bool {
	if z.ValidFrom != nil && t.Before(*z.ValidFrom) {
		return false
	}
	if z.ValidTo != nil && !t.Before(*z.ValidTo) {
		return false
	}
	return true
}

// UpsertCommand creates a zone when ID is empty, otherwise replaces the zone with that ID.
type UpsertCommand struct {
	ID         types.ID
	Name       string
	Category   Category
	Multiplier decimal.Decimal
	Polygon    []types.Point
	ValidFrom  *time.Time
	ValidTo    *time.Time
}
