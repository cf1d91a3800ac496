package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/locshare/locshare/pkg/core"
)

// Marker positions are projected to 3857 before they reach the tile layer,
// so the frontend never has to reproject.

// ErrInvalidCoordinates is returned when coordinates cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PositionFromString parses a string in the format "lat,lon" or
// "lat,lon,elev" into a core.Position, and returns the elevation.
func PositionFromString(coords string) (pos core.Position, elev float64, err error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Position{}, 0, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(coordsSplit[0], 64)
	if err != nil {
		return core.Position{}, 0, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(coordsSplit[1], 64)
	if err != nil {
		return core.Position{}, 0, ErrInvalidCoordinates
	}
	if len(coordsSplit) > 2 {
		elev, err = strconv.ParseFloat(coordsSplit[2], 64)
		if err != nil {
			return core.Position{}, 0, ErrInvalidCoordinates
		}
	}
	return core.Position{Lat: lat, Lon: lon}, elev, nil
}

// Point3857From4326 projects a WGS84 position to web mercator (EPSG:3857)
// and returns it as a geometry point.
func Point3857From4326(pos core.Position) (point geom.Point, err error) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(pos.Lon, pos.Lat, 0)
	point = geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
			Z:  0,
		},
	)
	return point, nil
}

// XY3857From4326 projects a WGS84 position and returns the raw mercator
// coordinates for wire payloads.
func XY3857From4326(pos core.Position) (x, y float64) {
	point, _ := Point3857From4326(pos)
	xy, _ := point.XY()
	return xy.X, xy.Y
}

// Point4326 builds a geometry point from a WGS84 position without
// reprojection, for GeoJSON output.
func Point4326(pos core.Position) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: pos.Lon, Y: pos.Lat},
		},
	)
}
