package maps

import (
	"math"
	"testing"

	"dropfee/internal/types"
)

func TestDecodeRing_KnownPolyline(t *testing.T) {
	// Reference example from the encoded polyline format documentation.
	points, err := DecodeRing("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	if err != nil {
		t.Fatalf("DecodeRing: %v", err)
	}
	want := []types.Point{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	}
	if len(points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(points))
	}
	for i := range want {
		if math.Abs(points[i].Lat-want[i].Lat) > 1e-5 || math.Abs(points[i].Lng-want[i].Lng) > 1e-5 {
			t.Errorf("point %d: want %+v, got %+v", i, want[i], points[i])
		}
	}
}

func TestEncodeRing_RoundTrip(t *testing.T) {
	ring := []types.Point{
		{Lat: 25.03301, Lng: 121.56541},
		{Lat: 25.04012, Lng: 121.56541},
		{Lat: 25.04012, Lng: 121.57733},
	}
	got, err := DecodeRing(EncodeRing(ring))
	if err != nil {
		t.Fatalf("DecodeRing: %v", err)
	}
	for i := range ring {
		if math.Abs(got[i].Lat-ring[i].Lat) > 1e-5 || math.Abs(got[i].Lng-ring[i].Lng) > 1e-5 {
			t.Errorf("point %d drifted: %+v -> %+v", i, ring[i], got[i])
		}
	}
}
