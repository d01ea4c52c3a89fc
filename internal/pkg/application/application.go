package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/diwise/integration-coverage/domain"
	"github.com/diwise/integration-coverage/internal/pkg/application/coverage"
	"github.com/diwise/integration-coverage/internal/pkg/application/sections"
	"github.com/diwise/integration-coverage/internal/pkg/geodesy"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxConcurrentStreams = 4

type Config struct {
	Topology             sections.TopologyMode
	Position             sections.PositionMode
	MaxConcurrentStreams int
}

// Publisher forwards per section coverage summaries to a downstream system.
type Publisher interface {
	Publish(ctx context.Context, operationID string, summaries []coverage.Summary) error
}

type CoverageExport interface {
	Run(ctx context.Context) error
}

type coverageExport struct {
	cfg       Config
	client    FrameworkClient
	converter sections.UnitConverter
	writer    Writer
	publisher Publisher
	metrics   *Metrics
}

// New returns an export job. publisher may be nil.
func New(cfg Config, client FrameworkClient, converter sections.UnitConverter, writer Writer, publisher Publisher, metrics *Metrics) CoverageExport {
	if cfg.MaxConcurrentStreams <= 0 {
		cfg.MaxConcurrentStreams = DefaultMaxConcurrentStreams
	}

	return &coverageExport{
		cfg:       cfg,
		client:    client,
		converter: converter,
		writer:    writer,
		publisher: publisher,
		metrics:   metrics,
	}
}

// Run exports coverage for every operation in the catalog. A failing
// operation does not stop the others; all failures are returned joined.
func (a *coverageExport) Run(ctx context.Context) error {
	var err error

	ctx, span := tracer.Start(ctx, "export-coverage")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, ctx, logger := o11y.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)

	var catalog domain.Catalog
	catalog, err = a.client.GetCatalog(ctx)
	if err != nil {
		return err
	}

	index, diagnostics := sections.NewCatalog(catalog)
	logDiagnostics(logger, diagnostics)

	resolver := sections.NewResolver(index, sections.NewTypeMappings(catalog.TypeMappings), a.converter, sections.Options{
		Topology: a.cfg.Topology,
		Position: a.cfg.Position,
	})

	var mu sync.Mutex
	errs := []error{}

	g := &errgroup.Group{}
	g.SetLimit(a.cfg.MaxConcurrentStreams)

	for _, op := range catalog.Operations {
		op := op
		g.Go(func() error {
			if opErr := a.exportOperation(ctx, resolver, op); opErr != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("operation %s: %w", op.ID, opErr))
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	err = errors.Join(errs...)
	return err
}

func (a *coverageExport) exportOperation(ctx context.Context, resolver *sections.Resolver, op domain.Operation) error {
	var err error

	ctx, span := tracer.Start(ctx, "export-operation")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	logger := logging.GetFromContext(ctx).With().Str("operation", op.ID).Logger()

	defs, diagnostics := resolver.Resolve(op)
	logDiagnostics(logger, diagnostics)
	for _, d := range diagnostics {
		if d.Kind == sections.UnitIncompatible {
			a.metrics.ChannelsDropped.Inc()
		}
	}

	if len(defs) == 0 {
		return nil
	}

	var records []domain.SpatialRecord
	records, err = a.client.GetSpatialRecords(ctx, op.ID)
	if err != nil {
		return err
	}

	var result OperationCoverage
	result, err = a.synthesize(ctx, logger, op, defs, records)
	if err != nil {
		return err
	}

	err = a.writer.Write(ctx, result)
	if err != nil {
		return err
	}

	logger.Info().Int("sections", len(defs)).Int("polygons", len(result.Polygons)).Msg("operation exported")

	if a.publisher != nil {
		err = a.publisher.Publish(ctx, op.ID, result.Summaries)
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *coverageExport) synthesize(ctx context.Context, logger zerolog.Logger, op domain.Operation, defs []sections.SectionDefinition, records []domain.SpatialRecord) (OperationCoverage, error) {
	result := OperationCoverage{
		OperationID: op.ID,
		Description: op.Description,
		Sections:    defs,
		Polygons:    []SectionPolygon{},
		Summaries:   make([]coverage.Summary, len(defs)),
	}

	synthesizers := make([]*coverage.Synthesizer, len(defs))
	for i, def := range defs {
		synthesizers[i] = coverage.NewSynthesizer(def, coverage.Options{})
		result.Summaries[i] = coverage.Summary{SectionID: def.ID.String(), Description: def.Description}
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return OperationCoverage{}, err
		}

		a.metrics.RecordsProcessed.Inc()

		if (geodesy.Point{Lon: rec.Longitude, Lat: rec.Latitude}).IsSentinel() {
			a.metrics.SentinelRecords.Inc()
			continue
		}

		for i, s := range synthesizers {
			r, err := s.Process(rec)
			if errors.Is(err, coverage.ErrOutOfOrder) {
				a.metrics.OutOfOrder.Inc()
				logger.Debug().Str("section", defs[i].Description).Time("timestamp", rec.Timestamp).Msg("dropped out of order record")
				continue
			}

			switch r.Outcome {
			case coverage.Emitted:
				a.metrics.PolygonsEmitted.Inc()
				result.Summaries[i].Add(r.Polygon)
				result.Polygons = append(result.Polygons, SectionPolygon{
					SectionID: defs[i].ID,
					Polygon:   r.Polygon,
					Values:    a.values(defs[i], rec),
				})
			case coverage.Rejected:
				a.metrics.PolygonsRejected.Inc()
			}
		}
	}

	return result, nil
}

func (a *coverageExport) values(def sections.SectionDefinition, rec domain.SpatialRecord) map[string]float64 {
	values := map[string]float64{}

	readings := def.Values(rec, a.converter)
	for i, ch := range def.OrderedChannels() {
		if readings[i].Present {
			values[valueName(ch)] = readings[i].Value
		}
	}

	return values
}

func logDiagnostics(logger zerolog.Logger, diagnostics []sections.Diagnostic) {
	for _, d := range diagnostics {
		if d.UserVisible() {
			logger.Warn().Str("kind", string(d.Kind)).Msg(d.String())
		} else {
			logger.Debug().Str("kind", string(d.Kind)).Msg(d.String())
		}
	}
}
