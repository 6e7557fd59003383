package export

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaugetools/subbasins/internal/adapter/atlas"
	"github.com/gaugetools/subbasins/internal/domain"
	"github.com/gaugetools/subbasins/internal/observability"
)

type stubFetcher struct {
	features []domain.Feature
	err      error
}

func (s *stubFetcher) FetchFeatures(_ context.Context, _ atlas.Query) ([]domain.Feature, error) {
	return s.features, s.err
}

type stubStarter struct {
	handle atlas.TaskHandle
	err    error
	gotReq atlas.ExportRequest
}

func (s *stubStarter) StartTableExport(_ context.Context, _ atlas.Query, req atlas.ExportRequest) (atlas.TaskHandle, error) {
	s.gotReq = req
	return s.handle, s.err
}

func testGaugeQuery(t *testing.T) (domain.Gauge, atlas.Query) {
	t.Helper()
	g := domain.Gauge{ID: "A1", Lat: 45, Lon: -75}
	q, err := atlas.NewQuery("WWF/HydroATLAS/v1/Basins/level12", g, 10)
	require.NoError(t, err)
	return g, q
}

func TestClientExporter_WritesArchive(t *testing.T) {
	dir := t.TempDir()
	fetcher := &stubFetcher{features: []domain.Feature{
		squareBasin("7120345610", -75.1, 44.9),
	}}
	e := NewClientExporter(fetcher, dir, discardLogger(), observability.NewMetricsForTesting())

	g, q := testGaugeQuery(t)
	artifact, err := e.Export(context.Background(), g, q)
	require.NoError(t, err)

	assert.Equal(t, domain.ArtifactArchive, artifact.Kind)
	assert.Equal(t, "A1", artifact.GaugeID)
	assert.Equal(t, 1, artifact.Features)
	assert.Equal(t, filepath.Join(dir, "gauge_A1_subbasins.zip"), artifact.Path)
	assert.FileExists(t, artifact.Path)
}

func TestClientExporter_EmptyResultIsSkip(t *testing.T) {
	e := NewClientExporter(&stubFetcher{}, t.TempDir(), discardLogger(), observability.NewMetricsForTesting())

	g, q := testGaugeQuery(t)
	_, err := e.Export(context.Background(), g, q)
	require.ErrorIs(t, err, domain.ErrNoSubbasins)
}

func TestClientExporter_FetchErrorSurfaces(t *testing.T) {
	e := NewClientExporter(&stubFetcher{err: errors.New("status 413")}, t.TempDir(),
		discardLogger(), observability.NewMetricsForTesting())

	g, q := testGaugeQuery(t)
	_, err := e.Export(context.Background(), g, q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch features")
}

func TestTaskExporter_QueuesTask(t *testing.T) {
	starter := &stubStarter{handle: atlas.TaskHandle{ID: "task-42", State: "QUEUED"}}
	e := NewTaskExporter(starter, "hydro-exports", discardLogger(), observability.NewMetricsForTesting())

	g, q := testGaugeQuery(t)
	artifact, err := e.Export(context.Background(), g, q)
	require.NoError(t, err)

	assert.Equal(t, domain.ArtifactTask, artifact.Kind)
	assert.Equal(t, "task-42", artifact.TaskID)
	assert.Empty(t, artifact.Path)
	assert.Equal(t, "gauge_A1_subbasins", starter.gotReq.Description)
	assert.Equal(t, "hydro-exports", starter.gotReq.Folder)
}

func TestTaskExporter_ErrorSurfaces(t *testing.T) {
	starter := &stubStarter{err: errors.New("status 401")}
	e := NewTaskExporter(starter, "", discardLogger(), observability.NewMetricsForTesting())

	g, q := testGaugeQuery(t)
	_, err := e.Export(context.Background(), g, q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start table export")
}
