// Package geo builds map search targets, resolves coordinates out of
// unstructured location references, and computes great-circle distances.
package geo

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"

	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

const searchBaseURL = "https://www.google.com/maps/search/"

// BuildSearchURL returns a stable map search URL for term centered at
// lat, lon with the given zoom level.
func BuildSearchURL(term string, lat, lon float64, zoom int) string {
	return fmt.Sprintf("%s%s/@%f,%f,%dz", searchBaseURL, url.QueryEscape(term), lat, lon, zoom)
}

var (
	centerMarkerRe = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)
	floatRe        = regexp.MustCompile(`-?\d+\.\d+`)
)

// ResolveCoordinates extracts a best-effort (lat, lon) from a location
// reference such as a place URL. The first tier looks for the canonical
// @lat,lon center marker. The second takes the first two float-looking
// substrings in order; that can pick up unrelated numeric tokens and is an
// accepted precision trade-off, not something to guard against. When
// neither tier matches, ok is false. Resolution never fails with an error.
func ResolveCoordinates(ref string) (point orb.Point, ok bool) {
	if m := centerMarkerRe.FindStringSubmatch(ref); m != nil {
		if p, parsed := parsePair(m[1], m[2]); parsed {
			return p, true
		}
	}

	floats := floatRe.FindAllString(ref, -1)
	if len(floats) >= 2 {
		if p, parsed := parsePair(floats[0], floats[1]); parsed {
			return p, true
		}
	}

	return orb.Point{}, false
}

func parsePair(latStr, lonStr string) (orb.Point, bool) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return orb.Point{}, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}

// DistanceMeters returns the haversine great-circle distance in meters
// between two latitude/longitude pairs.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Distance is DistanceMeters over orb points.
func Distance(a, b orb.Point) float64 {
	return DistanceMeters(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}
