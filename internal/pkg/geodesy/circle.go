package geodesy

import "math"

// parallelEpsilon is the relative determinant magnitude below which two
// bisectors are treated as parallel.
const parallelEpsilon = 1e-9

// CenterAndRadiusFromThreePoints returns the centre and radius (metres) of the
// circle through p1, p2 and p3. The solve happens in a local planar frame
// around p2, so it is only meaningful for points a few kilometres apart.
// ok is false when the perpendicular bisectors of (p1,p2) and (p2,p3) are
// parallel, i.e. the points are collinear or coincide.
func CenterAndRadiusFromThreePoints(p1, p2, p3 Point) (center Point, radiusM float64, ok bool) {
	frame := newLocalFrame(p2)

	x1, y1 := frame.project(p1)
	x2, y2 := frame.project(p2)
	x3, y3 := frame.project(p3)

	// Bisector of (p1,p2): (x2-x1)x + (y2-y1)y = c1, likewise for (p2,p3).
	a1, b1 := x2-x1, y2-y1
	c1 := (x2*x2 - x1*x1 + y2*y2 - y1*y1) / 2
	a2, b2 := x3-x2, y3-y2
	c2 := (x3*x3 - x2*x2 + y3*y3 - y2*y2) / 2

	det := a1*b2 - a2*b1
	scale := math.Abs(a1*b2) + math.Abs(a2*b1)
	if scale == 0 || math.Abs(det) <= parallelEpsilon*scale || math.IsNaN(det) {
		return Point{}, 0, false
	}

	cx := (c1*b2 - c2*b1) / det
	cy := (a1*c2 - a2*c1) / det

	center = frame.unproject(cx, cy)
	radiusM = math.Hypot(cx-x1, cy-y1)

	return center, radiusM, true
}

// localFrame is an equirectangular projection around an origin, in metres.
type localFrame struct {
	origin Point
	cosLat float64
}

func newLocalFrame(origin Point) localFrame {
	return localFrame{origin: origin, cosLat: math.Cos(toRadians(origin.Lat))}
}

func (f localFrame) project(p Point) (x, y float64) {
	x = toRadians(p.Lon-f.origin.Lon) * f.cosLat * EarthRadiusM
	y = toRadians(p.Lat-f.origin.Lat) * EarthRadiusM
	return x, y
}

func (f localFrame) unproject(x, y float64) Point {
	lat := f.origin.Lat + toDegrees(y/EarthRadiusM)
	lon := f.origin.Lon
	if f.cosLat != 0 {
		lon += toDegrees(x / (EarthRadiusM * f.cosLat))
	}
	return Point{Lon: lon, Lat: lat}
}

// Projector maps points onto a local planar frame in metres around an origin.
// It is accurate for shapes spanning a few hundred metres.
type Projector struct {
	frame localFrame
}

// NewProjector returns a Projector centred on origin.
func NewProjector(origin Point) Projector {
	return Projector{frame: newLocalFrame(origin)}
}

// Project returns the easting and northing of p relative to the origin.
func (p Projector) Project(pt Point) (x, y float64) {
	return p.frame.project(pt)
}
