// README: Settings resolver keeps a copy-on-write snapshot of delivery settings.
package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"dropfee/internal/logger"
	"dropfee/internal/types"
)

const Topic = "settings"

type Repository interface {
	LoadAll(ctx context.Context) ([]DeliverySettings, error)
	Save(ctx context.Context, s DeliverySettings) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, version int64) error
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(r *Resolver) { r.publisher = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) { r.logg = l }
}

type Resolver struct {
	repo      Repository
	defaultTZ *time.Location
	mu        sync.Mutex
	current   atomic.Pointer[Snapshot]
	now       func() time.Time
	publisher Publisher
	logg      *logger.Logger
}

// NewResolver reads peak hours in defaultTZ when a record has no timezone of its own.
func NewResolver(repo Repository, defaultTZ *time.Location, opts ...Option) *Resolver {
	if defaultTZ == nil {
		defaultTZ = time.UTC
	}
	r := &Resolver{
		repo:      repo,
		defaultTZ: defaultTZ,
		now:       time.Now,
		logg:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(newSnapshot(0, nil, defaultTZ))
	return r
}

func (r *Resolver) Snapshot() *Snapshot {
	return r.current.Load()
}

func (r *Resolver) List() []DeliverySettings {
	return r.Snapshot().List()
}

func (r *Resolver) Resolve(ctx context.Context, restaurantID types.ID) Effective {
	eff := r.Snapshot().Resolve(restaurantID)
	if eff.Source == SourceFallback {
		r.logg.Debug(r.logg.WithField(ctx, "restaurant_id", restaurantID), "settings.fallback_tariff")
	}
	return eff
}

func (r *Resolver) Upsert(ctx context.Context, in Input) (DeliverySettings, error) {
	if err := validate(in); err != nil {
		return DeliverySettings{}, err
	}

	surge := decimal.NewFromInt(1)
	if in.SurgeMultiplier != nil {
		surge = *in.SurgeMultiplier
	}
	rec := DeliverySettings{
		RestaurantID:      in.RestaurantID,
		BaseCharge:        in.BaseCharge,
		PerKmCharge:       in.PerKmCharge,
		SurgeMultiplier:   surge,
		FreeDeliveryAbove: in.FreeDeliveryAbove,
		PeakHours:         append([]PeakWindow(nil), in.PeakHours...),
		Timezone:          strings.TrimSpace(in.Timezone),
		Version:           1,
	}
	if rec.Timezone == "" {
		rec.Timezone = r.defaultTZ.String()
	}

	r.mu.Lock()
	cur := r.current.Load()
	if existing, ok := cur.Get(in.RestaurantID); ok {
		rec.Version = existing.Version + 1
	}
	rec.UpdatedAt = r.now().UTC()

	if r.repo != nil {
		if err := r.repo.Save(ctx, rec); err != nil {
			r.mu.Unlock()
			return DeliverySettings{}, fmt.Errorf("save settings %q: %w", rec.key(), err)
		}
	}
	next := cur.with(rec)
	r.current.Store(next)
	r.mu.Unlock()

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, Topic, next.Version()); err != nil {
			r.logg.Error(ctx, "settings.publish_failed", err)
		}
	}
	return rec, nil
}

func (r *Resolver) Reload(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	// Held across the load so a concurrent Upsert is never overwritten by older rows.
	r.mu.Lock()
	records, err := r.repo.LoadAll(ctx)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("load settings: %w", err)
	}
	next := newSnapshot(r.current.Load().Version()+1, records, r.defaultTZ)
	r.current.Store(next)
	r.mu.Unlock()

	for key, tz := range next.unknownTZ {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"restaurant_key": key, "timezone": tz, "fallback": r.defaultTZ.String()}), "settings.unknown_timezone")
	}

	r.logg.Debug(r.logg.WithField(ctx, "version", next.Version()), "settings.snapshot_reloaded")
	return nil
}

func (r *Resolver) RunRefresher(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Reload(ctx); err != nil && ctx.Err() == nil {
				r.logg.Error(ctx, "settings.refresh_failed", err)
			}
		}
	}
}

// validate reports every field problem at once.
func validate(in Input) error {
	var errs error
	if in.RestaurantID != nil && strings.TrimSpace(string(*in.RestaurantID)) == "" {
		errs = multierr.Append(errs, fmt.Errorf("restaurantId must not be blank"))
	}
	if in.BaseCharge.IsNegative() {
		errs = multierr.Append(errs, fmt.Errorf("baseCharge must be >= 0"))
	}
	if in.PerKmCharge.IsNegative() {
		errs = multierr.Append(errs, fmt.Errorf("perKmCharge must be >= 0"))
	}
	if in.SurgeMultiplier != nil && in.SurgeMultiplier.IsNegative() {
		errs = multierr.Append(errs, fmt.Errorf("surgeMultiplier must be >= 0"))
	}
	if in.FreeDeliveryAbove != nil && in.FreeDeliveryAbove.IsNegative() {
		errs = multierr.Append(errs, fmt.Errorf("freeDeliveryAbove must be >= 0"))
	}
	for i, w := range in.PeakHours {
		if _, _, err := w.seconds(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("peakHours[%d]: %w", i, err))
		}
	}
	if tz := strings.TrimSpace(in.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("timezone %q is unknown", tz))
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errs)
	}
	return nil
}
