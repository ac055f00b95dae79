package locations

import (
	"fmt"
	"math"
)

const (
	msgLatitude  = "latitude must be a number between 90 and -90"
	msgLongitude = "longitude must be a number between 180 and -180"
	msgPosition  = "position must be an array of latitude,longitude"
	msgPair      = "invalid location array given, should be [latitude, longitude]"
	msgArguments = "haversine distance requires two coordinates"
)

// ValidationError reports a rejected latitude, longitude or position.
// The coordinate that produced it is left unchanged.
type ValidationError struct {
	Field string
	Value any
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Msg)
}

// ArgumentError reports a missing coordinate passed to a distance function.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string {
	return e.Msg
}

func validateLatitude(v float64) error {
	if !isFinite(v) || math.Abs(v) > 90 {
		return &ValidationError{Field: "latitude", Value: v, Msg: msgLatitude}
	}
	return nil
}

func validateLongitude(v float64) error {
	if !isFinite(v) || math.Abs(v) > 180 {
		return &ValidationError{Field: "longitude", Value: v, Msg: msgLongitude}
	}
	return nil
}

// validatePosition checks latitude before longitude.
func validatePosition(p Position) error {
	if err := validateLatitude(p.Latitude); err != nil {
		return err
	}
	return validateLongitude(p.Longitude)
}

func positionFromPair(pair []float64) (Position, error) {
	if len(pair) != 2 {
		return Position{}, &ValidationError{Field: "position", Value: pair, Msg: msgPosition}
	}
	p := Position{Latitude: pair[0], Longitude: pair[1]}
	if err := validatePosition(p); err != nil {
		return Position{}, err
	}
	return p, nil
}
