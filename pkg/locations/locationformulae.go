package locations

import "math"

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371

// haversine calculates the great-circle distance between two points.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = EarthRadiusKm
	dLat := (lat2 - lat1) * (math.Pi / 180.0)
	dLon := (lon2 - lon1) * (math.Pi / 180.0)
	lat1R := lat1 * (math.Pi / 180.0)
	lat2R := lat2 * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1R)*math.Cos(lat2R)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// Haversine returns the distance in kilometres between two positions.
func Haversine(a, b Position) float64 {
	return haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// DistanceBetween returns the great-circle distance in kilometres between two
// coordinates, read at the time of the call.
func DistanceBetween(a, b *Coordinate) (float64, error) {
	if a == nil || b == nil {
		return 0, &ArgumentError{Msg: msgArguments}
	}
	return Haversine(a.Position(), b.Position()), nil
}
