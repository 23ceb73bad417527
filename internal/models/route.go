package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// TravelMode is one of the fixed set of ways to reach a destination
type TravelMode string

const (
	TravelModeDriving   TravelMode = "driving"
	TravelModeWalking   TravelMode = "walking"
	TravelModeBicycling TravelMode = "bicycling"
	TravelModeTransit   TravelMode = "transit"
)

var travelModes = [...]TravelMode{
	TravelModeDriving,
	TravelModeWalking,
	TravelModeBicycling,
	TravelModeTransit,
}

// NotAvailable is the display marker for a mode whose route could not be computed
const NotAvailable = "N/A"

// AllTravelModes returns every travel mode in display order
func AllTravelModes() []TravelMode {
	modes := make([]TravelMode, len(travelModes))
	copy(modes, travelModes[:])
	return modes
}

// ParseTravelMode accepts a mode name in any case ("WALKING", "walking")
func ParseTravelMode(s string) (TravelMode, error) {
	mode := TravelMode(strings.ToLower(strings.TrimSpace(s)))
	if mode.index() < 0 {
		return "", fmt.Errorf("unknown travel mode %q", s)
	}
	return mode, nil
}

// Valid reports whether m is one of the known modes
func (m TravelMode) Valid() bool {
	return m.index() >= 0
}

func (m TravelMode) index() int {
	for i, known := range travelModes {
		if m == known {
			return i
		}
	}
	return -1
}

// RouteResult is the outcome of one routing request. Unavailable results carry no
// measurements; the "N/A" text only appears when the result is rendered.
type RouteResult struct {
	Available      bool
	DistanceMeters float64
	DurationSecs   float64
	Geometry       string
}

// NewRouteResult creates an available result from provider measurements
func NewRouteResult(distanceMeters, durationSecs float64, geometry string) RouteResult {
	return RouteResult{
		Available:      true,
		DistanceMeters: distanceMeters,
		DurationSecs:   durationSecs,
		Geometry:       geometry,
	}
}

// Unavailable returns the result recorded for a failed mode
func Unavailable() RouteResult {
	return RouteResult{}
}

// DistanceKm is the distance rounded to one decimal place
func (r RouteResult) DistanceKm() float64 {
	return math.Round(r.DistanceMeters/100) / 10
}

// DurationMinutes is the duration rounded to the nearest whole minute
func (r RouteResult) DurationMinutes() int {
	return int(math.Round(r.DurationSecs / 60))
}

// DistanceText renders the distance as "12.3 km" or "N/A"
func (r RouteResult) DistanceText() string {
	if !r.Available {
		return NotAvailable
	}
	return fmt.Sprintf("%.1f km", r.DistanceKm())
}

// DurationText renders the duration as "25 min" or "N/A"
func (r RouteResult) DurationText() string {
	if !r.Available {
		return NotAvailable
	}
	return fmt.Sprintf("%d min", r.DurationMinutes())
}

type routeResultJSON struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
	Geometry string `json:"geometry,omitempty"`
}

// MarshalJSON renders the display form used by the dashboard
func (r RouteResult) MarshalJSON() ([]byte, error) {
	out := routeResultJSON{
		Distance: r.DistanceText(),
		Duration: r.DurationText(),
	}
	if r.Available {
		out.Geometry = r.Geometry
	}
	return json.Marshal(out)
}

// RouteTable holds exactly one RouteResult per travel mode. It is a value type:
// copies never share state, and a table is replaced as a whole rather than edited.
type RouteTable struct {
	results [len(travelModes)]RouteResult
}

// NewRouteTable builds a complete table; modes missing from results are Unavailable
func NewRouteTable(results map[TravelMode]RouteResult) RouteTable {
	var t RouteTable
	for i, mode := range travelModes {
		if r, ok := results[mode]; ok {
			t.results[i] = r
		}
	}
	return t
}

// Get returns the result for mode; unknown modes yield Unavailable
func (t RouteTable) Get(mode TravelMode) RouteResult {
	i := mode.index()
	if i < 0 {
		return Unavailable()
	}
	return t.results[i]
}

// Len is always the number of travel modes
func (t RouteTable) Len() int {
	return len(t.results)
}

// AvailableCount counts modes that produced a route
func (t RouteTable) AvailableCount() int {
	n := 0
	for _, r := range t.results {
		if r.Available {
			n++
		}
	}
	return n
}

// Entries returns the results keyed by mode
func (t RouteTable) Entries() map[TravelMode]RouteResult {
	out := make(map[TravelMode]RouteResult, len(t.results))
	for i, mode := range travelModes {
		out[mode] = t.results[i]
	}
	return out
}

// MarshalJSON writes the modes in display order
func (t RouteTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, mode := range travelModes {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(mode))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(t.results[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Project derives the active travel info for mode
func (t RouteTable) Project(mode TravelMode) ActiveTravel {
	r := t.Get(mode)
	active := ActiveTravel{
		Mode:     mode,
		Distance: r.DistanceText(),
		Duration: r.DurationText(),
	}
	if r.Available {
		active.Geometry = r.Geometry
	}
	return active
}
