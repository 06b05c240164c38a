package stations

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ProximityRadiusMeters is the distance under which an observation from a new
// source is attached to an already known station.
const ProximityRadiusMeters = 100.0

const earthRadiusMeters = 6371008.8

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Validate checks coordinate ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return invalid("lat", "must be within [-90, 90]")
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return invalid("lon", "must be within [-180, 180]")
	}
	return nil
}

// DistanceMeters returns the great-circle distance between two points.
func (p Point) DistanceMeters(other Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (other.Lon - p.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// GeoJSONPosition renders the point as a GeoJSON position ([lon, lat]).
func (p Point) GeoJSONPosition() json.RawMessage {
	data, _ := json.Marshal([]float64{p.Lon, p.Lat})
	return data
}

// PointFromGeoJSON reprojects a GeoJSON position ([lon, lat]) into a Point.
func PointFromGeoJSON(raw []byte) (Point, error) {
	if len(raw) == 0 {
		return Point{}, errors.New("geojson: empty position")
	}
	var position []float64
	if err := json.Unmarshal(raw, &position); err != nil {
		return Point{}, fmt.Errorf("geojson: %w", err)
	}
	if len(position) < 2 {
		return Point{}, fmt.Errorf("geojson: position has %d values", len(position))
	}
	return Point{Lat: position[1], Lon: position[0]}, nil
}

// BoundingBox is an area request given by its south-west and north-east corners.
type BoundingBox struct {
	SouthWest Point
	NorthEast Point
}

// Validate rejects out-of-range corners and a south-west corner that is not
// lower-left of the north-east corner.
func (b BoundingBox) Validate() error {
	if err := b.SouthWest.Validate(); err != nil {
		return prefixField("sw_", err)
	}
	if err := b.NorthEast.Validate(); err != nil {
		return prefixField("ne_", err)
	}
	if b.SouthWest.Lat > b.NorthEast.Lat || b.SouthWest.Lon > b.NorthEast.Lon {
		return invalid("area", "SW corner must be lower left of the NE corner")
	}
	return nil
}

// Contains reports whether the point lies inside or on the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lon >= b.SouthWest.Lon && p.Lon <= b.NorthEast.Lon
}

func prefixField(prefix string, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return &ValidationError{Field: prefix + verr.Field, Reason: verr.Reason}
	}
	return err
}
