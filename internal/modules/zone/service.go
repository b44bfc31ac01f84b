// README: Zone registry publishes copy-on-write snapshots after persisting each write.
package zone

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dropfee/internal/logger"
	"dropfee/internal/modules/geo"
	"dropfee/internal/types"
)

// Topic is the change-feed topic zone writes are announced on.
const Topic = "zones"

type Repository interface {
	LoadAll(ctx context.Context) ([]Zone, error)
	Save(ctx context.Context, z Zone) error
	Delete(ctx context.Context, id types.ID) (bool, error)
}

// Publisher announces a new snapshot version to other instances.
type Publisher interface {
	Publish(ctx context.Context, topic string, version int64) error
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(newID func() types.ID) Option {
	return func(r *Registry) { r.newID = newID }
}

func WithPublisher(p Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.logg = l }
}

type Registry struct {
	repo      Repository
	mu        sync.Mutex
	current   atomic.Pointer[Snapshot]
	now       func() time.Time
	newID     func() types.ID
	publisher Publisher
	logg      *logger.Logger
}

// NewRegistry starts from an empty snapshot at version 0; call Reload to load persisted zones.
// A nil repo keeps zones in memory only.
func NewRegistry(repo Repository, opts ...Option) *Registry {
	r := &Registry{
		repo:  repo,
		now:   time.Now,
		newID: func() types.ID { return types.ID(uuid.NewString()) },
		logg:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(newSnapshot(0, nil))
	return r
}

func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

func (r *Registry) Get(id types.ID) (Zone, error) {
	z, ok := r.Snapshot().Get(id)
	if !ok {
		return Zone{}, fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}
	return z, nil
}

func (r *Registry) List() []Zone {
	return r.Snapshot().Zones()
}

func (r *Registry) Query(pt types.Point, at time.Time) ([]Zone, error) {
	return r.Snapshot().Query(pt, at)
}

func (r *Registry) Upsert(ctx context.Context, cmd UpsertCommand) (Zone, error) {
	polygon, err := validate(cmd)
	if err != nil {
		return Zone{}, err
	}

	r.mu.Lock()
	cur := r.current.Load()
	now := r.now().UTC()

	z := Zone{
		ID:         cmd.ID,
		Name:       strings.TrimSpace(cmd.Name),
		Category:   cmd.Category,
		Multiplier: cmd.Multiplier,
		Polygon:    polygon,
		ValidFrom:  utcPtr(cmd.ValidFrom),
		ValidTo:    utcPtr(cmd.ValidTo),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if cmd.ID == "" {
		z.ID = r.newID()
	} else {
		existing, ok := cur.Get(cmd.ID)
		if !ok {
			r.mu.Unlock()
			return Zone{}, fmt.Errorf("%w: %s", ErrZoneNotFound, cmd.ID)
		}
		z.CreatedAt = existing.CreatedAt
		z.Version = existing.Version + 1
	}

	if r.repo != nil {
		if err := r.repo.Save(ctx, z); err != nil {
			r.mu.Unlock()
			return Zone{}, fmt.Errorf("save zone %s: %w", z.ID, err)
		}
	}
	next := cur.withZone(z)
	r.current.Store(next)
	r.mu.Unlock()

	r.announce(ctx, next.Version())
	return z, nil
}

// Remove is idempotent: removing an unknown id succeeds and publishes nothing.
func (r *Registry) Remove(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	cur := r.current.Load()
	_, known := cur.Get(id)

	deleted := false
	if r.repo != nil {
		var err error
		deleted, err = r.repo.Delete(ctx, id)
		if err != nil {
			r.mu.Unlock()
			return fmt.Errorf("delete zone %s: %w", id, err)
		}
	}
	if !known {
		r.mu.Unlock()
		if deleted {
			r.announce(ctx, cur.Version())
		}
		return nil
	}

	next := cur.withoutZone(id)
	r.current.Store(next)
	r.mu.Unlock()

	r.announce(ctx, next.Version())
	return nil
}

// Reload replaces the snapshot with the repository contents. The write lock is held
// across the load so a write acknowledged meanwhile cannot be replaced by older rows.
func (r *Registry) Reload(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	r.mu.Lock()
	zones, err := r.repo.LoadAll(ctx)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("load zones: %w", err)
	}
	next := newSnapshot(r.current.Load().Version()+1, zones)
	r.current.Store(next)
	r.mu.Unlock()

	r.logg.Debug(r.logg.WithFields(ctx, map[string]any{"zones": next.Len(), "version": next.Version()}), "zone.snapshot_reloaded")
	return nil
}

// RunRefresher reloads on every tick until ctx is done.
func (r *Registry) RunRefresher(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Reload(ctx); err != nil && ctx.Err() == nil {
				r.logg.Error(ctx, "zone.refresh_failed", err)
			}
		}
	}
}

func (r *Registry) announce(ctx context.Context, version int64) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, Topic, version); err != nil {
		r.logg.Error(ctx, "zone.publish_failed", err)
	}
}

func validate(cmd UpsertCommand) (geo.Polygon, error) {
	if !cmd.Category.Valid() {
		return geo.Polygon{}, fmt.Errorf("%w: category %q must be a snake_case token", ErrInvalidZone, cmd.Category)
	}
	if !cmd.Multiplier.GreaterThan(decimal.Zero) {
		return geo.Polygon{}, fmt.Errorf("%w: multiplier must be greater than 0", ErrInvalidZone)
	}
	if cmd.ValidFrom != nil && cmd.ValidTo != nil && !cmd.ValidFrom.Before(*cmd.ValidTo) {
		return geo.Polygon{}, fmt.Errorf("%w: validFrom must be before validTo", ErrInvalidZone)
	}
	polygon, err := geo.NewPolygon(cmd.Polygon)
	if err != nil {
		return geo.Polygon{}, fmt.Errorf("%w: polygon: %w", ErrInvalidZone, err)
	}
	return polygon, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
