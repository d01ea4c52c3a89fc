package coverage

import (
	"math"
	"testing"
	"time"

	"github.com/diwise/integration-coverage/internal/pkg/geodesy"
	"github.com/matryer/is"
)

func TestSummaryAccumulatesAreaAndLastPosition(t *testing.T) {
	is := is.New(t)

	origin := geodesy.Point{Lon: 17.30, Lat: 62.39}
	edge := func(d float64) LeadingEdge { return newLeadingEdge(geodesy.Destination(origin, d, 0), 0, 3) }
	ts := time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC)

	s := Summary{SectionID: "abc"}
	is.True(s.Empty())

	s.Add(newCoveragePolygon(ts, edge(10), edge(0)))
	s.Add(newCoveragePolygon(ts.Add(time.Second), edge(20), edge(10)))

	is.Equal(s.Polygons, 2)
	is.True(math.Abs(s.AreaM2-60) < 0.1)
	is.Equal(s.LastObserved, ts.Add(time.Second))
	is.True(geodesy.Distance(s.LastPosition, geodesy.Destination(origin, 20, 0)) < 0.01)
}
