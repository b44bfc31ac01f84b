package geo

import (
	"fmt"
	"math"

	"dropfee/internal/types"
)

// eps is the tolerance in degrees (or squared degrees for cross products)
// used for boundary and collinearity tests.
const eps = 1e-12

// Polygon is a validated simple ring. Coordinates are treated as planar
// (x = lng, y = lat), which holds for city-scale zones. Rings crossing the
// antimeridian are not supported.
type Polygon struct {
	ring   []types.Point
	bounds Bounds
}

// Bounds is an axis-aligned bounding box, inclusive on every side.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func (b Bounds) Contains(p types.Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// NewPolygon normalises and validates a ring. An explicit closing vertex and
// consecutive duplicates are dropped; the result must have at least three
// distinct vertices, a non-zero area and no self-intersections.
func NewPolygon(points []types.Point) (Polygon, error) {
	ring := make([]types.Point, 0, len(points))
	for _, p := range points {
		if err := ValidatePoint(p); err != nil {
			return Polygon{}, err
		}
		if len(ring) > 0 && samePoint(ring[len(ring)-1], p) {
			continue
		}
		ring = append(ring, p)
	}
	for len(ring) > 1 && samePoint(ring[0], ring[len(ring)-1]) {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return Polygon{}, fmt.Errorf("%w: polygon needs at least 3 distinct vertices, got %d", ErrInvalidGeometry, len(ring))
	}
	if math.Abs(signedArea(ring)) <= eps {
		return Polygon{}, fmt.Errorf("%w: polygon has zero area", ErrInvalidGeometry)
	}
	if i, j, ok := findSelfIntersection(ring); ok {
		return Polygon{}, fmt.Errorf("%w: polygon edges %d and %d intersect", ErrInvalidGeometry, i, j)
	}
	return Polygon{ring: ring, bounds: boundsOf(ring)}, nil
}

// MustPolygon is NewPolygon for fixtures; it panics on invalid input.
func MustPolygon(points ...types.Point) Polygon {
	p, err := NewPolygon(points)
	if err != nil {
		panic(err)
	}
	return p
}

// Points returns a copy of the open ring.
func (p Polygon) Points() []types.Point {
	out := make([]types.Point, len(p.ring))
	copy(out, p.ring)
	return out
}

func (p Polygon) Len() int       { return len(p.ring) }
func (p Polygon) Bounds() Bounds { return p.bounds }

// Contains reports whether pt lies inside the polygon. Points on an edge or a
// vertex are inside.
func Contains(p Polygon, pt types.Point) (bool, error) {
	if len(p.ring) < 3 {
		return false, fmt.Errorf("%w: polygon has %d vertices", ErrInvalidGeometry, len(p.ring))
	}
	if err := ValidatePoint(pt); err != nil {
		return false, err
	}
	if !p.bounds.Contains(pt) {
		return false, nil
	}

	ring := p.ring
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(pt, ring[j], ring[i]) {
			return true, nil
		}
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Lat > pt.Lat) != (b.Lat > pt.Lat) {
			xCross := (b.Lng-a.Lng)*(pt.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lng
			if pt.Lng < xCross {
				inside = !inside
			}
		}
	}
	return inside, nil
}

func samePoint(a, b types.Point) bool {
	return a.Lat == b.Lat && a.Lng == b.Lng
}

func boundsOf(ring []types.Point) Bounds {
	b := Bounds{MinLat: ring[0].Lat, MaxLat: ring[0].Lat, MinLng: ring[0].Lng, MaxLng: ring[0].Lng}
	for _, p := range ring[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	return b
}

func signedArea(ring []types.Point) float64 {
	var sum float64
	n := len(ring)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		sum += a.Lng*b.Lat - b.Lng*a.Lat
	}
	return sum / 2
}

// cross is the z component of (b-a) x (c-a).
func cross(a, b, c types.Point) float64 {
	return (b.Lng-a.Lng)*(c.Lat-a.Lat) - (b.Lat-a.Lat)*(c.Lng-a.Lng)
}

func orientation(a, b, c types.Point) int {
	v := cross(a, b, c)
	switch {
	case v > eps:
		return 1
	case v < -eps:
		return -1
	default:
		return 0
	}
}

// onSegment reports whether p lies on the closed segment ab.
func onSegment(p, a, b types.Point) bool {
	if orientation(a, b, p) != 0 {
		return false
	}
	return p.Lng >= math.Min(a.Lng, b.Lng)-eps && p.Lng <= math.Max(a.Lng, b.Lng)+eps &&
		p.Lat >= math.Min(a.Lat, b.Lat)-eps && p.Lat <= math.Max(a.Lat, b.Lat)+eps
}

// segmentsTouch reports whether closed segments p1p2 and p3p4 share any point.
func segmentsTouch(p1, p2, p3, p4 types.Point) bool {
	o1 := orientation(p1, p2, p3)
	o2 := orientation(p1, p2, p4)
	o3 := orientation(p3, p4, p1)
	o4 := orientation(p3, p4, p2)

	if o1 != o2 && o3 != o4 && o1 != 0 && o2 != 0 && o3 != 0 && o4 != 0 {
		return true
	}
	return onSegment(p3, p1, p2) || onSegment(p4, p1, p2) ||
		onSegment(p1, p3, p4) || onSegment(p2, p3, p4)
}

func findSelfIntersection(ring []types.Point) (int, int, bool) {
	n := len(ring)
	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			b1, b2 := ring[j], ring[(j+1)%n]
			switch {
			case j == i+1:
				// consecutive edges share a2 == b1; they may only meet there
				if foldsBack(a1, a2, b2) {
					return i, j, true
				}
			case i == 0 && j == n-1:
				// closing edge shares a1 == b2
				if foldsBack(a2, a1, b1) {
					return i, j, true
				}
			default:
				if segmentsTouch(a1, a2, b1, b2) {
					return i, j, true
				}
			}
		}
	}
	return 0, 0, false
}

// foldsBack reports whether the edges (shared->a) and (shared->b) overlap,
// i.e. they are collinear and leave the shared vertex in the same direction.
func foldsBack(a, shared, b types.Point) bool {
	if orientation(shared, a, b) != 0 {
		return false
	}
	dot := (a.Lng-shared.Lng)*(b.Lng-shared.Lng) + (a.Lat-shared.Lat)*(b.Lat-shared.Lat)
	return dot > 0
}
