// Package atlas is the HTTP adapter for the remote geospatial query
// service hosting the HydroATLAS basin tables.
package atlas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/gaugetools/subbasins/internal/domain"
	"github.com/gaugetools/subbasins/internal/observability"
)

// Client talks to the basin query service. It supports the synchronous
// feature fetch used by client mode and the asynchronous table export used
// by drive mode.
type Client struct {
	token      string
	project    string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a basin service client. The token is sent as a Bearer
// credential on every request; project, when set, scopes requests to a
// billing project.
func NewClient(baseURL, token, project string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		project: project,
		metrics: metrics,
		logger:  logger,
	}
}

// ExportRequest names the destination of an asynchronous table export.
type ExportRequest struct {
	Description string
	Folder      string
}

// TaskHandle identifies a queued export task on the remote service.
// Completion is the service's business; this tool only records the handle.
type TaskHandle struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// FetchFeatures executes the query synchronously and returns every dataset
// feature intersecting the query region, attributes included.
//
// The whole result set is transferred in one response. Large buffers can
// exceed the service's payload limit, which surfaces here as an API error;
// drive mode is the workaround.
func (c *Client) FetchFeatures(ctx context.Context, q Query) ([]domain.Feature, error) {
	body := fetchRequest{Region: geojson.NewGeometry(q.Region)}
	u := fmt.Sprintf("%s/v1/tables/%s:computeFeatures", c.baseURL, url.PathEscape(q.Dataset))

	var fc geojson.FeatureCollection
	if err := c.doRequest(ctx, u, "fetch", body, &fc); err != nil {
		return nil, err
	}

	features := make([]domain.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		features = append(features, domain.Feature{
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}
	return features, nil
}

// StartTableExport queues an asynchronous shapefile export of the query on
// the remote service and returns immediately with the task handle.
func (c *Client) StartTableExport(ctx context.Context, q Query, req ExportRequest) (TaskHandle, error) {
	body := exportRequest{
		Region:      geojson.NewGeometry(q.Region),
		FileFormat:  "SHP",
		Description: req.Description,
		Folder:      req.Folder,
	}
	u := fmt.Sprintf("%s/v1/tables/%s:export", c.baseURL, url.PathEscape(q.Dataset))

	var handle TaskHandle
	if err := c.doRequest(ctx, u, "export", body, &handle); err != nil {
		return TaskHandle{}, err
	}
	if handle.ID == "" {
		return TaskHandle{}, fmt.Errorf("export response carried no task id")
	}
	return handle, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, op string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	if c.project != "" {
		fullURL += "?" + url.Values{"project": {c.project}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("basin service request", "op", op, "url", fullURL, "bytes", len(payload))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.QueryRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.QueryRequests.WithLabelValues(op, "error").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("basin service error: status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.QueryRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("decode %s response: %w", op, err)
	}

	c.metrics.QueryRequests.WithLabelValues(op, "success").Inc()
	return nil
}

// Request bodies for the basin service API.

type fetchRequest struct {
	Region *geojson.Geometry `json:"region"`
}

type exportRequest struct {
	Region      *geojson.Geometry `json:"region"`
	FileFormat  string            `json:"fileFormat"`
	Description string            `json:"description"`
	Folder      string            `json:"folder,omitempty"`
}
