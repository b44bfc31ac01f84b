// README: Immutable zone snapshot; readers query it without locks.
package zone

import (
	"sort"
	"time"

	"dropfee/internal/modules/geo"
	"dropfee/internal/types"
)

// Snapshot is never mutated after construction. Zones are kept in precedence order.
type Snapshot struct {
	version int64
	zones   []Zone
	byID    map[types.ID]int
}

func newSnapshot(version int64, zones []Zone) *Snapshot {
	sorted := make([]Zone, len(zones))
	copy(sorted, zones)
	sort.SliceStable(sorted, func(i, j int) bool { return precedes(sorted[i], sorted[j]) })

	byID := make(map[types.ID]int, len(sorted))
	for i, z := range sorted {
		byID[z.ID] = i
	}
	return &Snapshot{version: version, zones: sorted, byID: byID}
}

// precedes orders by multiplier desc, then createdAt desc, then id asc.
func precedes(a, b Zone) bool {
	if c := a.Multiplier.Cmp(b.Multiplier); c != 0 {
		return c > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *Snapshot) Version() int64 { return s.version }
func (s *Snapshot) Len() int       { return len(s.zones) }

func (s *Snapshot) Get(id types.ID) (Zone, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Zone{}, false
	}
	return s.zones[i], true
}

// Zones returns every zone in precedence order.
func (s *Snapshot) Zones() []Zone {
	out := make([]Zone, len(s.zones))
	copy(out, s.zones)
	return out
}

// Query returns the zones containing pt that are active at `at`, highest precedence first.
func (s *Snapshot) Query(pt types.Point, at time.Time) ([]Zone, error) {
	if err := geo.ValidatePoint(pt); err != nil {
		return nil, err
	}
	var out []Zone
	for _, z := range s.zones {
		if !z.ActiveAt(at) || !z.Polygon.Bounds().Contains(pt) {
			continue
		}
		inside, err := geo.Contains(z.Polygon, pt)
		if err != nil {
			return nil, err
		}
		if inside {
			out = append(out, z)
		}
	}
	return out, nil
}

func (s *Snapshot) withZone(z Zone) *Snapshot {
	zones := make([]Zone, 0, len(s.zones)+1)
	for _, existing := range s.zones {
		if existing.ID != z.ID {
			zones = append(zones, existing)
		}
	}
	zones = append(zones, z)
	return newSnapshot(s.version+1, zones)
}

func (s *Snapshot) withoutZone(id types.ID) *Snapshot {
	zones := make([]Zone, 0, len(s.zones))
	for _, existing := range s.zones {
		if existing.ID != id {
			zones = append(zones, existing)
		}
	}
	return newSnapshot(s.version+1, zones)
}
