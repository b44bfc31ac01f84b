// README: Immutable settings snapshot and the restaurant -> global -> fallback resolution.
package settings

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"dropfee/internal/types"
)

type Snapshot struct {
	version  int64
	byKey    map[string]DeliverySettings
	locs     map[string]*time.Location
	fallback *time.Location
	// unknownTZ maps record keys whose timezone could not be loaded to that timezone.
	unknownTZ map[string]string
}

func newSnapshot(version int64, records []DeliverySettings, fallback *time.Location) *Snapshot {
	s := &Snapshot{
		version:  version,
		byKey:    make(map[string]DeliverySettings, len(records)),
		locs:     make(map[string]*time.Location, len(records)),
		fallback: fallback,
	}
	for _, r := range records {
		s.put(r)
	}
	return s
}

func (s *Snapshot) put(rec DeliverySettings) {
	loc := s.fallback
	if rec.Timezone != "" {
		if l, err := time.LoadLocation(rec.Timezone); err == nil {
			loc = l
		} else {
			if s.unknownTZ == nil {
				s.unknownTZ = map[string]string{}
			}
			s.unknownTZ[rec.key()] = rec.Timezone
		}
	}
	s.byKey[rec.key()] = rec
	s.locs[rec.key()] = loc
}

func (s *Snapshot) Version() int64 { return s.version }

// Resolve never fails: a missing configuration resolves to a zero tariff.
func (s *Snapshot) Resolve(restaurantID types.ID) Effective {
	if restaurantID != "" {
		if rec, ok := s.byKey[string(restaurantID)]; ok {
			return s.effective(rec, SourceRestaurant)
		}
	}
	if rec, ok := s.byKey[""]; ok {
		return s.effective(rec, SourceGlobal)
	}
	return Effective{
		DeliverySettings: DeliverySettings{
			BaseCharge:      decimal.Zero,
			PerKmCharge:     decimal.Zero,
			SurgeMultiplier: decimal.NewFromInt(1),
			Timezone:        s.fallback.String(),
		},
		Source:          SourceFallback,
		Location:        s.fallback,
		SnapshotVersion: s.version,
	}
}

func (s *Snapshot) effective(rec DeliverySettings, src Source) Effective {
	return Effective{DeliverySettings: rec, Source: src, Location: s.locs[rec.key()], SnapshotVersion: s.version}
}

// List returns the global record first, then restaurants by id.
func (s *Snapshot) List() []DeliverySettings {
	out := make([]DeliverySettings, 0, len(s.byKey))
	for _, rec := range s.byKey {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out
}

func (s *Snapshot) Get(restaurantID *types.ID) (DeliverySettings, bool) {
	rec, ok := s.byKey[keyFor(restaurantID)]
	return rec, ok
}

func (s *Snapshot) with(rec DeliverySettings) *Snapshot {
	records := make([]DeliverySettings, 0, len(s.byKey)+1)
	for k, v := range s.byKey {
		if k != rec.key() {
			records = append(records, v)
		}
	}
	return newSnapshot(s.version+1, append(records, rec), s.fallback)
}
