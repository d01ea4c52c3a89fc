package application

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/diwise/integration-coverage/domain"
	"github.com/diwise/integration-coverage/internal/pkg/application/telemetry"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// FrameworkClient reads the device catalog and telemetry of a Framework
// data service.
type FrameworkClient interface {
	GetCatalog(ctx context.Context) (domain.Catalog, error)
	GetSpatialRecords(ctx context.Context, operationID string) ([]domain.SpatialRecord, error)
}

type frameworkClient struct {
	baseUrl     string
	accessToken string
	httpClient  http.Client
}

var tracer = otel.Tracer("integration-coverage/app")

func NewFrameworkClient(baseUrl, apiKey string) FrameworkClient {
	accessToken := ""
	if apiKey != "" {
		accessToken = fmt.Sprintf("Bearer %s", apiKey)
	}

	return &frameworkClient{
		baseUrl:     baseUrl,
		accessToken: accessToken,
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (f *frameworkClient) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-catalog")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	catalog := domain.Catalog{}

	var body []byte
	body, err = f.get(ctx, fmt.Sprintf("%s/catalog", f.baseUrl), "application/json")
	if err != nil {
		err = fmt.Errorf("failed to retrieve catalog: %w", err)
		return catalog, err
	}

	err = json.Unmarshal(body, &catalog)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal catalog: %s", err.Error())
		return domain.Catalog{}, err
	}

	return catalog, nil
}

func (f *frameworkClient) GetSpatialRecords(ctx context.Context, operationID string) ([]domain.SpatialRecord, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-spatial-records")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if operationID == "" {
		err = fmt.Errorf("cannot retrieve spatial records as operation id is empty")
		return nil, err
	}

	var body []byte
	body, err = f.get(ctx, fmt.Sprintf("%s/operations/%s/records", f.baseUrl, url.PathEscape(operationID)), "application/senml+json")
	if err != nil {
		err = fmt.Errorf("failed to retrieve spatial records: %w", err)
		return nil, err
	}

	var records []domain.SpatialRecord
	records, err = telemetry.Decode(body)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (f *frameworkClient) get(ctx context.Context, u, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s", err.Error())
	}

	req.Header.Add("Accept", accept)
	if f.accessToken != "" {
		req.Header.Add("Authorization", f.accessToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %s", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed, expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body as bytes: %s", err.Error())
	}

	return body, nil
}
