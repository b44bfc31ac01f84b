// README: Fee calculator composes settings, distance and surge zones into a fee breakdown.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dropfee/internal/logger"
	"dropfee/internal/metrics"
	"dropfee/internal/modules/geo"
	"dropfee/internal/modules/settings"
	"dropfee/internal/modules/zone"
	"dropfee/internal/types"
)

type ZoneSource interface {
	Snapshot() *zone.Snapshot
}

type SettingsSource interface {
	Snapshot() *settings.Snapshot
}

type Service struct {
	zones    ZoneSource
	settings SettingsSource
	metrics  *metrics.FeeMetrics
	logg     *logger.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.FeeMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logg = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(zones ZoneSource, settingsSrc SettingsSource, opts ...Option) *Service {
	s := &Service{
		zones:    zones,
		settings: settingsSrc,
		logg:     logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var one = decimal.NewFromInt(1)

// ComputeFee reads exactly one zone snapshot and one settings snapshot, so the result
// is reproducible for the same inputs and snapshot versions.
func (s *Service) ComputeFee(ctx context.Context, req FeeRequest) (FeeBreakdown, error) {
	started := time.Now()
	out, err := s.compute(ctx, req)
	if err != nil {
		s.metrics.ObserveFailure(time.Since(started))
		return FeeBreakdown{}, err
	}
	s.metrics.ObserveSuccess(string(out.SurgeSource), out.FreeDeliveryApplied, time.Since(started))
	return out, nil
}

func (s *Service) compute(ctx context.Context, req FeeRequest) (FeeBreakdown, error) {
	if err := ctx.Err(); err != nil {
		return FeeBreakdown{}, err
	}
	if err := geo.ValidatePoint(req.Pickup); err != nil {
		return FeeBreakdown{}, fmt.Errorf("pickup: %w", err)
	}
	if err := geo.ValidatePoint(req.Drop); err != nil {
		return FeeBreakdown{}, fmt.Errorf("drop: %w", err)
	}
	if req.OrderSubtotal.IsNegative() {
		return FeeBreakdown{}, fmt.Errorf("%w: orderSubtotal must be >= 0", ErrInvalidRequest)
	}
	at := req.RequestTime
	if at.IsZero() {
		at = s.now()
	}

	zoneSnap := s.zones.Snapshot()
	eff := s.settings.Snapshot().Resolve(req.RestaurantID)
	if eff.Source == settings.SourceFallback {
		s.logg.Debug(s.logg.WithField(ctx, "restaurant_id", req.RestaurantID), "pricing.fallback_tariff")
	}

	distanceKm := geo.HaversineKm(req.Pickup, req.Drop)
	distanceCharge := eff.PerKmCharge.Mul(decimal.NewFromFloat(distanceKm))

	zones, err := zoneSnap.Query(req.Drop, at)
	if err != nil {
		return FeeBreakdown{}, fmt.Errorf("drop: %w", err)
	}
	zoneMultiplier := one
	var zoneID *types.ID
	if len(zones) > 0 {
		zoneMultiplier = zones[0].Multiplier
		id := zones[0].ID
		zoneID = &id
	}

	peak := eff.IsPeakHour(at)
	peakMultiplier := one
	if peak {
		peakMultiplier = eff.SurgeMultiplier
	}

	// Surges do not stack: the stronger one applies and a tie goes to the zone.
	applied := zoneMultiplier
	source := SurgeNone
	if zoneID != nil {
		source = SurgeZone
	}
	if peakMultiplier.GreaterThan(zoneMultiplier) {
		applied = peakMultiplier
		zoneID = nil
		source = SurgeNone
		if peak && !peakMultiplier.Equal(one) {
			source = SurgePeak
		}
	}

	raw := eff.BaseCharge.Add(distanceCharge).Mul(applied)
	final := raw
	free := eff.FreeDeliveryAbove != nil && req.OrderSubtotal.GreaterThanOrEqual(*eff.FreeDeliveryAbove)
	if free {
		final = decimal.Zero
	}

	return FeeBreakdown{
		BaseCharge:          types.RoundMoney(eff.BaseCharge),
		DistanceKm:          distanceKm,
		DistanceCharge:      types.RoundMoney(distanceCharge),
		ZoneMultiplier:      zoneMultiplier,
		PeakMultiplier:      peakMultiplier,
		PeakHour:            peak,
		AppliedMultiplier:   applied,
		AppliedZoneID:       zoneID,
		SurgeSource:         source,
		RawCharge:           types.RoundMoney(raw),
		FreeDeliveryApplied: free,
		FinalCharge:         types.RoundMoney(final),
		SettingsSource:      string(eff.Source),
		ZoneSnapshotVersion: zoneSnap.Version(),
		SettingsVersion:     eff.SnapshotVersion,
		RequestTime:         at.UTC(),
	}, nil
}
