package main

import (
	"context"
	"strconv"

	"github.com/diwise/context-broker/pkg/ngsild/client"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/diwise/integration-coverage/internal/pkg/application"
	"github.com/diwise/integration-coverage/internal/pkg/application/fiware"
	"github.com/diwise/integration-coverage/internal/pkg/application/sections"
	"github.com/diwise/integration-coverage/internal/pkg/application/units"
	"github.com/diwise/integration-coverage/internal/pkg/infrastructure/router"
)

const serviceName string = "integration-coverage"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	baseUrl := env.GetVariableOrDie(logger, "FRAMEWORK_BASEURL", "framework base url")
	apiKey := env.GetVariableOrDefault(logger, "FRAMEWORK_API_KEY", "")
	positionMode := env.GetVariableOrDefault(logger, "SOURCE_POSITION_MODE", string(sections.ImplementReferencePoint))
	topologyMode := env.GetVariableOrDefault(logger, "DEVICE_TOPOLOGY_MODE", string(sections.DeviceElementHierarchy))
	outputDir := env.GetVariableOrDefault(logger, "OUTPUT_DIR", "./output")
	contextBrokerUrl := env.GetVariableOrDefault(logger, "CONTEXT_BROKER_URL", "")
	servicePort := env.GetVariableOrDefault(logger, "SERVICE_PORT", "")
	maxStreams := env.GetVariableOrDefault(logger, "MAX_CONCURRENT_STREAMS", strconv.Itoa(application.DefaultMaxConcurrentStreams))

	cfg := application.Config{
		Topology: sections.TopologyMode(topologyMode),
		Position: sections.PositionMode(positionMode),
	}

	switch cfg.Topology {
	case sections.DeviceElementHierarchy, sections.MachineImplementSection:
	default:
		logger.Fatal().Str("mode", topologyMode).Msg("unknown device topology mode")
	}

	switch cfg.Position {
	case sections.GNSSReceiver, sections.ImplementReferencePoint:
	default:
		logger.Fatal().Str("mode", positionMode).Msg("unknown source position mode")
	}

	var err error
	cfg.MaxConcurrentStreams, err = strconv.Atoi(maxStreams)
	if err != nil {
		logger.Fatal().Err(err).Msg("MAX_CONCURRENT_STREAMS must be a number")
	}

	registry := prometheus.NewRegistry()
	metrics, err := application.NewMetrics(registry)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	if servicePort != "" {
		r := router.SetupRouter(chi.NewRouter(), registry, logger)
		go func() {
			if err := r.Start(servicePort); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	var publisher application.Publisher
	if contextBrokerUrl != "" {
		publisher = fiware.NewPublisher(client.NewContextBrokerClient(contextBrokerUrl))
	}

	a := application.New(
		cfg,
		application.NewFrameworkClient(baseUrl, apiKey),
		units.New(),
		application.NewFileWriter(outputDir),
		publisher,
		metrics,
	)

	if err = a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("export finished with errors")
	}

	logger.Info().Msg("job done")
}
