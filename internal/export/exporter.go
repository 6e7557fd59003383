package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gaugetools/subbasins/internal/adapter/atlas"
	"github.com/gaugetools/subbasins/internal/domain"
	"github.com/gaugetools/subbasins/internal/observability"
)

// FeatureFetcher is the synchronous query side of the basin service.
type FeatureFetcher interface {
	FetchFeatures(ctx context.Context, q atlas.Query) ([]domain.Feature, error)
}

// TaskStarter is the asynchronous export side of the basin service.
type TaskStarter interface {
	StartTableExport(ctx context.Context, q atlas.Query, req atlas.ExportRequest) (atlas.TaskHandle, error)
}

// ClientExporter fetches matching features into memory and writes one
// zipped shapefile archive per gauge under outDir.
type ClientExporter struct {
	fetcher FeatureFetcher
	outDir  string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClientExporter creates the synchronous local-archive exporter.
func NewClientExporter(fetcher FeatureFetcher, outDir string, logger *slog.Logger, metrics *observability.Metrics) *ClientExporter {
	return &ClientExporter{
		fetcher: fetcher,
		outDir:  outDir,
		logger:  logger,
		metrics: metrics,
	}
}

// Export fetches the features for the gauge's query and writes its archive.
// Returns domain.ErrNoSubbasins when the buffer matches nothing.
func (e *ClientExporter) Export(ctx context.Context, g domain.Gauge, q atlas.Query) (domain.Artifact, error) {
	features, err := e.fetcher.FetchFeatures(ctx, q)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("fetch features: %w", err)
	}
	if len(features) == 0 {
		return domain.Artifact{}, domain.ErrNoSubbasins
	}
	e.metrics.FeaturesFetched.Add(float64(len(features)))

	outZip := filepath.Join(e.outDir, ArchiveName(g.ID))
	if err := WriteArchive(features, outZip, LayerName(g.ID)); err != nil {
		return domain.Artifact{}, fmt.Errorf("write archive: %w", err)
	}
	e.metrics.ArchivesWritten.Inc()
	e.logger.Info("wrote gauge archive", "gauge", g.ID, "path", outZip, "features", len(features))

	return domain.Artifact{
		GaugeID:  g.ID,
		Kind:     domain.ArtifactArchive,
		Path:     outZip,
		Features: len(features),
	}, nil
}

// TaskExporter queues one remote export task per gauge and returns without
// waiting; task completion is left to the remote service.
type TaskExporter struct {
	starter TaskStarter
	folder  string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTaskExporter creates the asynchronous remote-task exporter. folder may
// be empty, in which case the service uses its root folder.
func NewTaskExporter(starter TaskStarter, folder string, logger *slog.Logger, metrics *observability.Metrics) *TaskExporter {
	return &TaskExporter{
		starter: starter,
		folder:  folder,
		logger:  logger,
		metrics: metrics,
	}
}

// Export submits the export task for the gauge's query.
func (e *TaskExporter) Export(ctx context.Context, g domain.Gauge, q atlas.Query) (domain.Artifact, error) {
	handle, err := e.starter.StartTableExport(ctx, q, atlas.ExportRequest{
		Description: LayerName(g.ID),
		Folder:      e.folder,
	})
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("start table export: %w", err)
	}
	e.metrics.ExportTasksStarted.Inc()
	e.logger.Info("queued export task", "gauge", g.ID, "task_id", handle.ID, "state", handle.State)

	return domain.Artifact{
		GaugeID: g.ID,
		Kind:    domain.ArtifactTask,
		TaskID:  handle.ID,
	}, nil
}
