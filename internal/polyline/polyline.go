// Package polyline implements the encoded polyline format used by OSRM route
// geometries (precision 5, latitude before longitude).
package polyline

import (
	"fmt"
	"math"
	"strings"

	"tourist-safety/internal/models"
)

const (
	precision = 1e5

	minChar      = '?'
	maxChar      = '~'
	chunkMask    = 0x1f
	continuation = 0x20

	// the 13th group starts at bit 60 and has room for only its low 4 bits
	maxShift = 60
)

// DecodeError reports malformed polyline input
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("polyline decode failed at offset %d: %s", e.Offset, e.Reason)
}

// Decode converts an encoded polyline into points. The empty string decodes to an
// empty path. Malformed input returns a *DecodeError and no points.
func Decode(encoded string) ([]models.Coordinates, error) {
	points := make([]models.Coordinates, 0, len(encoded)/4)
	var lat, lng int64

	for i := 0; i < len(encoded); {
		dLat, next, err := decodeValue(encoded, i)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, &DecodeError{Offset: next, Reason: "latitude without longitude"}
		}
		dLng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lng += dLng
		points = append(points, models.Coordinates{
			Lat: float64(lat) / precision,
			Lng: float64(lng) / precision,
		})
	}

	return points, nil
}

// decodeValue reads one signed varint starting at offset and returns it with the
// offset of the next unread byte
func decodeValue(encoded string, offset int) (int64, int, error) {
	var result uint64
	shift := uint(0)
	i := offset

	for {
		if i >= len(encoded) {
			return 0, i, &DecodeError{Offset: i, Reason: "unterminated value"}
		}
		c := encoded[i]
		if c < minChar || c > maxChar {
			return 0, i, &DecodeError{Offset: i, Reason: fmt.Sprintf("invalid character %q", c)}
		}
		b := uint64(c - minChar)
		chunk := b & chunkMask
		if shift > maxShift || (shift == maxShift && chunk>>4 != 0) {
			return 0, i, &DecodeError{Offset: i, Reason: "value overflows 64 bits"}
		}

		result |= chunk << shift
		shift += 5
		i++

		if b&continuation == 0 {
			break
		}
	}

	value := int64(result >> 1)
	if result&1 != 0 {
		value = ^value
	}
	return value, i, nil
}

// Encode converts points into an encoded polyline
func Encode(points []models.Coordinates) string {
	var sb strings.Builder
	var prevLat, prevLng int64

	for _, p := range points {
		lat := int64(math.Round(p.Lat * precision))
		lng := int64(math.Round(p.Lng * precision))

		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)

		prevLat, prevLng = lat, lng
	}

	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= continuation {
		sb.WriteByte(byte((u&chunkMask)|continuation) + minChar)
		u >>= 5
	}
	sb.WriteByte(byte(u) + minChar)
}
