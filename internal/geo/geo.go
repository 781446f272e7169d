// README: Geographic helpers: great-circle distance, radius filtering and
// geohash encoding.
package geo

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"

	"github.com/unrecano/taxi24/internal/apperrors"
	"github.com/unrecano/taxi24/internal/types"
)

const earthRadiusKm = 6371.0

// GeohashPrecision is the number of characters stored for a driver cell
// (~150m x 150m).
const GeohashPrecision = 7

// DistanceKm returns the haversine great-circle distance in kilometres between
// two points specified in decimal degrees.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	a := sinLat*sinLat + math.Cos(rLat1)*math.Cos(rLat2)*sinLng*sinLng
	// rounding can push a a hair past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// Distance is DistanceKm for two points.
func Distance(a, b types.Point) float64 {
	return DistanceKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// WithinRadius returns, in input order, the items whose position lies at most
// radiusKm from ref. A radius of 0 keeps exact coincidences only.
func WithinRadius[T any](items []T, pos func(T) types.Point, ref types.Point, radiusKm float64) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if Distance(pos(it), ref) <= radiusKm {
			out = append(out, it)
		}
	}
	return out
}

// SortByDistance performs a stable insertion sort (fine for small N) on any
// slice where each element exposes a position, ordering by distance to ref.
func SortByDistance[T any](items []T, pos func(T) types.Point, ref types.Point) {
	dist := make([]float64, len(items))
	for i, it := range items {
		dist[i] = Distance(pos(it), ref)
	}
	for i := 1; i < len(items); i++ {
		key, keyDist := items[i], dist[i]
		j := i - 1
		for j >= 0 && dist[j] > keyDist {
			items[j+1], dist[j+1] = items[j], dist[j]
			j--
		}
		items[j+1], dist[j+1] = key, keyDist
	}
}

// Geohash encodes p as a base32 geohash of GeohashPrecision characters.
func Geohash(p types.Point) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, GeohashPrecision)
}

// ValidatePoint rejects NaN/Inf and out-of-range coordinates.
func ValidatePoint(p types.Point) error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("coordinates must be finite: %w", apperrors.ErrInvalidInput)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90: %w", apperrors.ErrInvalidInput)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180: %w", apperrors.ErrInvalidInput)
	}
	return nil
}

// ValidateRadius rejects negative or non-finite radii.
func ValidateRadius(radiusKm float64) error {
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm < 0 {
		return fmt.Errorf("radius must be a non-negative number of km: %w", apperrors.ErrInvalidInput)
	}
	return nil
}
