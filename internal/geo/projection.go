package geo

import (
	"fmt"
	"math"

	"github.com/wroge/wgs84"
)

const epsgLonLat = 4326

// Projector converts WGS84 longitude/latitude into metric grid
// coordinates of a single UTM zone. The zone is fixed at construction so a
// whole field shares one plane.
type Projector struct {
	code    int
	forward func(a, b, c float64) (float64, float64, float64)
	inverse func(a, b, c float64) (float64, float64, float64)
}

// UTMZone returns the EPSG code of the UTM zone containing lon/lat.
func UTMZone(lon, lat float64) (int, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || lat < -80 || lat > 84 || lon < -180 || lon > 180 {
		return 0, fmt.Errorf("geo: coordinate outside UTM coverage: %f,%f", lon, lat)
	}
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone > 60 {
		zone = 60
	}
	if lat >= 0 {
		return 32600 + zone, nil
	}
	return 32700 + zone, nil
}

// NewProjector picks the UTM zone of the reference lon/lat.
func NewProjector(refLon, refLat float64) (*Projector, error) {
	code, err := UTMZone(refLon, refLat)
	if err != nil {
		return nil, err
	}
	return NewProjectorEPSG(code), nil
}

func NewProjectorEPSG(code int) *Projector {
	epsg := wgs84.EPSG()
	return &Projector{
		code:    code,
		forward: epsg.Transform(epsgLonLat, code),
		inverse: epsg.Transform(code, epsgLonLat),
	}
}

func (p *Projector) Code() int { return p.code }

func (p *Projector) Project(lon, lat float64) Vec2 {
	e, n, _ := p.forward(lon, lat, 0)
	return Vec2{Easting: e, Northing: n}
}

func (p *Projector) Unproject(v Vec2) (lon, lat float64) {
	lon, lat, _ = p.inverse(v.Easting, v.Northing, 0)
	return lon, lat
}
