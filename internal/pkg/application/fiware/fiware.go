package fiware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/context-broker/pkg/ngsild/client"
	ngsierrors "github.com/diwise/context-broker/pkg/ngsild/errors"
	"github.com/diwise/context-broker/pkg/ngsild/types"
	"github.com/diwise/context-broker/pkg/ngsild/types/entities"
	. "github.com/diwise/context-broker/pkg/ngsild/types/entities/decorators"
	"github.com/diwise/context-broker/pkg/ngsild/types/properties"
	"github.com/diwise/integration-coverage/internal/pkg/application/coverage"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
)

const (
	SectionCoverageIDPrefix string = "urn:ngsi-ld:SectionCoverage:"
	SectionCoverageTypeName string = "SectionCoverage"
)

var tracer = otel.Tracer("integration-coverage/fiware")

type Publisher struct {
	cbClient client.ContextBrokerClient
}

func NewPublisher(cbClient client.ContextBrokerClient) *Publisher {
	return &Publisher{cbClient: cbClient}
}

// Publish creates or updates one entity per section that emitted coverage.
func (p *Publisher) Publish(ctx context.Context, operationID string, summaries []coverage.Summary) error {
	var err error

	ctx, span := tracer.Start(ctx, "publish-section-coverage")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	errs := []error{}
	for _, s := range summaries {
		if s.Empty() {
			continue
		}

		if sectionErr := CreateOrUpdateSectionCoverage(ctx, p.cbClient, operationID, s); sectionErr != nil {
			errs = append(errs, sectionErr)
		}
	}

	err = errors.Join(errs...)
	return err
}

func CreateOrUpdateSectionCoverage(ctx context.Context, cbClient client.ContextBrokerClient, operationID string, summary coverage.Summary) error {
	var err error

	ctx, span := tracer.Start(ctx, "create-section-coverage")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, ctx, logger := o11y.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)

	headers := map[string][]string{"Content-Type": {"application/ld+json"}}

	observedAt := summary.LastObserved.UTC().Format(time.RFC3339)

	decorators := []entities.EntityDecoratorFunc{
		entities.DefaultContext(),
		Text("refOperation", operationID),
		Location(summary.LastPosition.Lat, summary.LastPosition.Lon),
		DateTime(properties.DateObserved, observedAt),
		Number("coveredArea", summary.AreaM2, properties.UnitCode("MTK"), properties.ObservedAt(observedAt)),
		Number("polygonCount", float64(summary.Polygons), properties.ObservedAt(observedAt)),
	}

	if summary.Description != "" {
		decorators = append(decorators, Text("name", summary.Description))
	}

	var fragment types.EntityFragment
	fragment, err = entities.NewFragment(decorators...)
	if err != nil {
		err = fmt.Errorf("failed to create entity fragment: %w", err)
		return err
	}

	entityID := SectionCoverageIDPrefix + operationID + ":" + summary.SectionID

	_, err = cbClient.MergeEntity(ctx, entityID, fragment, headers)
	if err == nil {
		logger.Info().Msgf("updated entity %s", entityID)
		return nil
	}

	if !errors.Is(err, ngsierrors.ErrNotFound) {
		logger.Error().Err(err).Msg("failed to merge entity")
	}

	var entity types.Entity
	entity, err = entities.New(entityID, SectionCoverageTypeName, decorators...)
	if err != nil {
		err = fmt.Errorf("failed to create new entity: %w", err)
		return err
	}

	_, err = cbClient.CreateEntity(ctx, entity, headers)
	if err != nil {
		err = fmt.Errorf("failed to post entity to context broker: %w", err)
		return err
	}

	logger.Info().Msgf("created entity %s", entityID)

	return nil
}
