package coverage

import (
	"fmt"
	"math"
	"time"

	"github.com/diwise/integration-coverage/internal/pkg/geodesy"
	"github.com/twpayne/go-geom"
)

// minimumAreaM2 is the smallest planar area accepted for a coverage polygon.
const minimumAreaM2 = 1e-4

// CoveragePolygon is the ground covered by one section between two
// consecutive engaged samples. Ring is closed: the first and last points are
// equal.
type CoveragePolygon struct {
	Timestamp time.Time
	Ring      []geodesy.Point
}

func newCoveragePolygon(ts time.Time, current, previous LeadingEdge) CoveragePolygon {
	return CoveragePolygon{
		Timestamp: ts,
		Ring: []geodesy.Point{
			current.Left,
			current.Right,
			previous.Right,
			previous.Left,
			current.Left,
		},
	}
}

// Polygon returns the ring as a go-geom polygon in lon/lat (EPSG:4326).
func (c CoveragePolygon) Polygon() (*geom.Polygon, error) {
	coords := make([]geom.Coord, 0, len(c.Ring))
	for _, p := range c.Ring {
		coords = append(coords, geom.Coord{p.Lon, p.Lat})
	}

	polygon, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return nil, fmt.Errorf("failed to build polygon: %w", err)
	}
	polygon.SetSRID(4326)

	return polygon, nil
}

// AreaM2 returns the planar area of the ring in square metres, using a local
// projection around its first point.
func (c CoveragePolygon) AreaM2() float64 {
	if len(c.Ring) == 0 {
		return 0
	}

	return math.Abs(c.projected().Area())
}

// IsValid reports whether the ring is a closed, non-degenerate and simple
// quadrilateral.
func (c CoveragePolygon) IsValid() bool {
	if len(c.Ring) != 5 || c.Ring[0] != c.Ring[4] {
		return false
	}
	for _, p := range c.Ring {
		if !p.IsValid() {
			return false
		}
	}

	projected := c.projected()
	if projected.Empty() {
		return false
	}
	if math.Abs(projected.Area()) < minimumAreaM2 {
		return false
	}

	ring := projected.LinearRing(0).FlatCoords()
	// a quadrilateral self-intersects when either pair of opposite edges cross
	if segmentsCross(ring[0:2], ring[2:4], ring[4:6], ring[6:8]) {
		return false
	}
	if segmentsCross(ring[2:4], ring[4:6], ring[6:8], ring[8:10]) {
		return false
	}

	return true
}

func (c CoveragePolygon) projected() *geom.Polygon {
	projector := geodesy.NewProjector(c.Ring[0])

	flat := make([]float64, 0, 2*len(c.Ring))
	for _, p := range c.Ring {
		x, y := projector.Project(p)
		flat = append(flat, x, y)
	}

	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

// segmentsCross reports whether segment a1-a2 properly crosses segment b1-b2.
// Each argument is an x,y pair.
func segmentsCross(a1, a2, b1, b2 []float64) bool {
	d1 := orientation(b1, b2, a1)
	d2 := orientation(b1, b2, a2)
	d3 := orientation(a1, a2, b1)
	d4 := orientation(a1, a2, b2)

	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func orientation(p, q, r []float64) float64 {
	return (q[0]-p[0])*(r[1]-p[1]) - (q[1]-p[1])*(r[0]-p[0])
}
