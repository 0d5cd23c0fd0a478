package maps

import (
	"math"
	"strings"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DecodePolyline decodes a Google encoded polyline string into coordinates.
// Each point is stored as a pair of signed deltas (latitude first), each
// delta as a little-endian sequence of 5-bit chunks offset by 63, with the
// top bit marking continuation. Coordinates carry 5 decimal places.
func DecodePolyline(encoded string) []LatLng {
	points := make([]LatLng, 0, len(encoded)/4)
	var lat, lng int
	pos := 0
	for pos < len(encoded) {
		dlat, next, ok := decodeSigned(encoded, pos)
		if !ok {
			break
		}
		dlng, after, ok := decodeSigned(encoded, next)
		if !ok {
			break
		}
		pos = after
		lat += dlat
		lng += dlng
		points = append(points, LatLng{
			Lat: float64(lat) / 1e5,
			Lng: float64(lng) / 1e5,
		})
	}
	return points
}

func decodeSigned(s string, pos int) (int, int, bool) {
	result, shift := 0, 0
	for {
		if pos >= len(s) {
			return 0, pos, false
		}
		b := int(s[pos]) - 63
		pos++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 == 1 {
		return ^(result >> 1), pos, true
	}
	return result >> 1, pos, true
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(points []LatLng) string {
	var sb strings.Builder
	var prevLat, prevLng int
	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lng := int(math.Round(p.Lng * 1e5))
		encodeSigned(&sb, lat-prevLat)
		encodeSigned(&sb, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

func encodeSigned(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}
