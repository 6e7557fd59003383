// Command subbasins extracts HydroATLAS Level-12 sub-basins within a buffer
// around each gauge in a CSV.
//
// Client mode downloads the intersecting features and writes one zipped
// shapefile per gauge plus a combined archive; drive mode queues one remote
// export task per gauge and writes nothing locally.
//
// Usage:
//
//	subbasins -gauges-csv stations.csv -buffer-km 25 -mode client -out-dir outputs
//
// Credentials come from the environment (or a .env file): ATLAS_TOKEN is
// required, ATLAS_BASE_URL, ATLAS_PROJECT, and ATLAS_TIMEOUT are optional.
//
// Exit codes: 0 when every processed gauge succeeded, 1 on configuration or
// startup failure, 2 when the run completed with per-gauge failures, and
// 130 when a signal interrupted the run before it finished.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gaugetools/subbasins/internal/adapter/atlas"
	httpadapter "github.com/gaugetools/subbasins/internal/adapter/http"
	"github.com/gaugetools/subbasins/internal/config"
	"github.com/gaugetools/subbasins/internal/export"
	"github.com/gaugetools/subbasins/internal/gauges"
	"github.com/gaugetools/subbasins/internal/observability"
	"github.com/gaugetools/subbasins/internal/pipeline"
)

const (
	exitOK             = 0
	exitConfigError    = 1
	exitPartialFailure = 2
	exitInterrupted    = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Load and validate the input before anything touches the network.
	stations, skippedRows, err := gauges.Load(cfg.GaugesCSV, gauges.Columns{
		Lat: cfg.LatCol,
		Lon: cfg.LonCol,
		ID:  cfg.IDCol,
	}, logger)
	if err != nil {
		logger.Error("failed to load gauges", "path", cfg.GaugesCSV, "error", err)
		return exitConfigError
	}
	logger.Info("loaded gauges", "count", len(stations), "skipped_rows", skippedRows, "path", cfg.GaugesCSV)

	client := atlas.NewClient(cfg.AtlasBaseURL, cfg.AtlasToken, cfg.Project, cfg.AtlasTimeout, metrics, logger)

	var exporter pipeline.Exporter
	switch cfg.Mode {
	case config.ModeClient:
		if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
			logger.Error("failed to create output directory", "dir", cfg.OutDir, "error", err)
			return exitConfigError
		}
		exporter = export.NewClientExporter(client, cfg.OutDir, logger, metrics)
	case config.ModeDrive:
		exporter = export.NewTaskExporter(client, cfg.DriveFolder, logger, metrics)
	}

	p := pipeline.New(exporter, pipeline.Options{
		Dataset:  cfg.Dataset,
		RadiusKm: cfg.BufferKm,
		Limit:    cfg.Limit,
		Throttle: cfg.Sleep,
	}, logger, metrics, clockwork.NewRealClock())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		srv = httpadapter.NewServer(cfg.MetricsAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	result := p.Run(ctx, stations)

	if cfg.Mode == config.ModeClient {
		combined, err := export.WriteCombinedArchive(cfg.OutDir, result.ArchivePaths(), logger)
		switch {
		case err != nil:
			logger.Error("failed to write combined archive", "error", err)
			result.Failures = append(result.Failures, pipeline.GaugeFailure{GaugeID: "combined", Err: err})
		case combined == "":
			logger.Info("no per-gauge archives to combine")
		default:
			logger.Info("wrote combined archive", "path", combined, "archives", len(result.ArchivePaths()))
		}
	} else {
		logger.Info("all export tasks queued, monitor them on the remote service",
			"tasks", len(result.Artifacts))
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if result.Cancelled {
		logger.Warn("run interrupted before completion", "processed", result.Processed)
		return exitInterrupted
	}
	if len(result.Failures) > 0 {
		return exitPartialFailure
	}
	return exitOK
}
