package models

import (
	"fmt"
	"math"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports whether the point is a usable WGS84 coordinate
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lng)
	}
	return nil
}

// String formats the point as "lat,lng"
func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// RoundCoordinate rounds a coordinate to 5 decimal places (~1m precision)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Place is a resolved location with a human readable name
type Place struct {
	Coords Coordinates `json:"coords"`
	Name   string      `json:"name"`
}

// ActiveTravel is the route info shown for the currently selected mode
type ActiveTravel struct {
	Mode     TravelMode `json:"mode"`
	Distance string     `json:"distance"`
	Duration string     `json:"duration"`
	Geometry string     `json:"geometry,omitempty"`
}

// HasGeometry reports whether a path overlay can be drawn
func (a ActiveTravel) HasGeometry() bool {
	return a.Geometry != ""
}
