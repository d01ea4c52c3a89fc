package application

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/diwise/integration-coverage/internal/pkg/application/coverage"
	"github.com/diwise/integration-coverage/internal/pkg/application/sections"
	"github.com/google/uuid"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const (
	ManifestFileName = "sections.json"
	CoverageFileName = "coverage.geojson"
)

// OperationCoverage is everything an export produced for one operation.
type OperationCoverage struct {
	OperationID string
	Description string
	Sections    []sections.SectionDefinition
	Polygons    []SectionPolygon
	Summaries   []coverage.Summary
}

// SectionPolygon is an emitted polygon with the section's channel values at
// the time it was emitted, keyed by output name.
type SectionPolygon struct {
	SectionID uuid.UUID
	Polygon   coverage.CoveragePolygon
	Values    map[string]float64
}

type Writer interface {
	Write(ctx context.Context, c OperationCoverage) error
}

type fileWriter struct {
	dir string
}

// NewFileWriter returns a Writer that stores each operation in its own
// directory below dir.
func NewFileWriter(dir string) Writer {
	return &fileWriter{dir: dir}
}

func (w *fileWriter) Write(ctx context.Context, c OperationCoverage) error {
	dir := filepath.Join(w.dir, directoryName(c.OperationID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	m, err := json.MarshalIndent(newManifest(c), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal section manifest: %w", err)
	}
	if err = os.WriteFile(filepath.Join(dir, ManifestFileName), m, 0o644); err != nil {
		return fmt.Errorf("failed to write section manifest: %w", err)
	}

	fc, err := newFeatureCollection(c)
	if err != nil {
		return err
	}

	b, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal coverage: %w", err)
	}
	if err = os.WriteFile(filepath.Join(dir, CoverageFileName), b, 0o644); err != nil {
		return fmt.Errorf("failed to write coverage: %w", err)
	}

	return nil
}

type manifestSection struct {
	sections.SectionDefinition
	Channels []sections.ScaledChannel `json:"channels"`
}

type manifest struct {
	OperationID string             `json:"operationId"`
	Description string             `json:"description,omitempty"`
	Sections    []manifestSection  `json:"sections"`
	Summaries   []coverage.Summary `json:"summaries"`
}

func newManifest(c OperationCoverage) manifest {
	m := manifest{
		OperationID: c.OperationID,
		Description: c.Description,
		Sections:    make([]manifestSection, 0, len(c.Sections)),
		Summaries:   c.Summaries,
	}

	for _, s := range c.Sections {
		m.Sections = append(m.Sections, manifestSection{
			SectionDefinition: s,
			Channels:          s.OrderedChannels(),
		})
	}

	if m.Summaries == nil {
		m.Summaries = []coverage.Summary{}
	}

	return m
}

func newFeatureCollection(c OperationCoverage) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(c.Polygons)),
	}

	for i, p := range c.Polygons {
		polygon, err := p.Polygon.Polygon()
		if err != nil {
			return nil, err
		}

		properties := map[string]interface{}{
			"section_id": p.SectionID.String(),
			"timestamp":  p.Polygon.Timestamp.UTC().Format(time.RFC3339),
		}
		for name, value := range p.Values {
			properties[name] = value
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         fmt.Sprintf("%s:%d", c.OperationID, i),
			Geometry:   polygon,
			Properties: properties,
		})
	}

	return fc, nil
}

// valueName is the output property for a channel. Multi-product channels
// keep their product suffix so that products do not overwrite each other.
func valueName(ch sections.ScaledChannel) string {
	return ch.TargetCode + strings.TrimPrefix(ch.Key, ch.Channel.Code)
}

func directoryName(operationID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, operationID)
}
