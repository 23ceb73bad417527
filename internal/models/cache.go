package models

import "time"

// RouteCacheEntry is a cached routing provider response for one mode and point pair
type RouteCacheEntry struct {
	Mode           TravelMode  `json:"mode"`
	Origin         Coordinates `json:"origin"`
	Destination    Coordinates `json:"destination"`
	DistanceMeters float64     `json:"distance_meters"`
	DurationSecs   float64     `json:"duration_secs"`
	Geometry       string      `json:"geometry"`
	CachedAt       time.Time   `json:"cached_at"`
}
