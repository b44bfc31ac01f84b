// README: Encoded polyline helpers for polygons drawn in the admin map UI.
package maps

import (
	"fmt"

	gmaps "googlemaps.github.io/maps"

	"dropfee/internal/types"
)

// DecodeRing decodes a Google encoded polyline into ring vertices.
func DecodeRing(encoded string) ([]types.Point, error) {
	latLngs, err := gmaps.DecodePolyline(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	points := make([]types.Point, len(latLngs))
	for i, ll := range latLngs {
		points[i] = types.Point{Lat: ll.Lat, Lng: ll.Lng}
	}
	return points, nil
}

// EncodeRing is the inverse of DecodeRing, at the 1e-5 degree precision of the format.
func EncodeRing(points []types.Point) string {
	path := make([]gmaps.LatLng, len(points))
	for i, p := range points {
		path[i] = gmaps.LatLng{Lat: p.Lat, Lng: p.Lng}
	}
	return gmaps.Encode(path)
}
