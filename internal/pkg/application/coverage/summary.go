package coverage

import (
	"time"

	"github.com/diwise/integration-coverage/internal/pkg/geodesy"
)

// Summary accumulates the polygons emitted for one section.
type Summary struct {
	SectionID    string        `json:"sectionId"`
	Description  string        `json:"description,omitempty"`
	Polygons     int           `json:"polygons"`
	AreaM2       float64       `json:"areaM2"`
	LastPosition geodesy.Point `json:"lastPosition"`
	LastObserved time.Time     `json:"lastObserved"`
}

func (s *Summary) Add(p CoveragePolygon) {
	if len(p.Ring) == 0 {
		return
	}

	s.Polygons++
	s.AreaM2 += p.AreaM2()

	if !p.Timestamp.Before(s.LastObserved) {
		s.LastObserved = p.Timestamp
		// midpoint of the leading edge
		s.LastPosition = geodesy.Point{
			Lon: (p.Ring[0].Lon + p.Ring[1].Lon) / 2,
			Lat: (p.Ring[0].Lat + p.Ring[1].Lat) / 2,
		}
	}
}

func (s Summary) Empty() bool {
	return s.Polygons == 0
}
