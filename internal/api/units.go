package api

import "math"

const kmPerMile = 1.609344

// UnitConverter renders stored kilometer distances in the configured display
// system. Storage and all engine math stay metric; only the API responses
// change.
type UnitConverter struct {
	imperial bool
}

// NewUnitConverter creates a converter for the given unit system. Anything
// other than "imperial" means metric.
func NewUnitConverter(system string) UnitConverter {
	return UnitConverter{imperial: system == "imperial"}
}

// Unit returns the display distance unit label.
func (u UnitConverter) Unit() string {
	if u.imperial {
		return "mi"
	}
	return "km"
}

// Distance converts a kilometer value into display units, rounded to 0.01.
func (u UnitConverter) Distance(km float64) float64 {
	v := km
	if u.imperial {
		v = km / kmPerMile
	}
	return math.Round(v*100) / 100
}

// DistancePtr converts an optional kilometer value.
func (u UnitConverter) DistancePtr(km *float64) *float64 {
	if km == nil {
		return nil
	}
	v := u.Distance(*km)
	return &v
}
