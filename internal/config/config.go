package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ExportMode selects the export strategy for a whole run.
type ExportMode string

const (
	// ModeClient fetches features synchronously and writes local zipped
	// shapefiles.
	ModeClient ExportMode = "client"
	// ModeDrive queues asynchronous export tasks on the remote service and
	// produces no local files.
	ModeDrive ExportMode = "drive"
)

// Default column names match the Environment Canada HYDAT station list.
const (
	DefaultLatColumn = "LATITUDE"
	DefaultLonColumn = "LONGITUDE"
	DefaultIDColumn  = "STATION_NUMBER"

	// DefaultDataset is the HydroATLAS Level-12 sub-basin table.
	DefaultDataset = "WWF/HydroATLAS/v1/Basins/level12"

	defaultBufferKm     = 25.0
	defaultOutDir       = "outputs"
	defaultAtlasBaseURL = "https://basins.hydroatlas-api.org"
	defaultAtlasTimeout = 60 * time.Second
)

// Config holds all settings for one run, populated from CLI flags with
// credentials and endpoint overrides taken from the environment (a .env
// file is honored when present).
type Config struct {
	GaugesCSV string
	LatCol    string
	LonCol    string
	IDCol     string

	BufferKm    float64
	Mode        ExportMode
	OutDir      string
	DriveFolder string
	Limit       int
	Sleep       time.Duration

	Dataset string
	Project string

	AtlasBaseURL string
	AtlasToken   string
	AtlasTimeout time.Duration

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// Load parses the argument slice (excluding argv[0]) and overlays
// environment settings, returning a validated Config. Any problem here is a
// configuration error: the caller must abort before processing gauges.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load(".env")

	fs := flag.NewFlagSet("subbasins", flag.ContinueOnError)

	cfg := &Config{}
	var mode string

	fs.StringVar(&cfg.GaugesCSV, "gauges-csv", "", "path to the gauges CSV (required)")
	fs.StringVar(&cfg.LatCol, "lat-col", DefaultLatColumn, "latitude column name")
	fs.StringVar(&cfg.LonCol, "lon-col", DefaultLonColumn, "longitude column name")
	fs.StringVar(&cfg.IDCol, "id-col", DefaultIDColumn, "station id column name")
	fs.Float64Var(&cfg.BufferKm, "buffer-km", defaultBufferKm, "buffer radius in kilometers")
	fs.StringVar(&mode, "mode", string(ModeClient), "export mode: client or drive")
	fs.StringVar(&cfg.OutDir, "out-dir", defaultOutDir, "output directory (client mode)")
	fs.StringVar(&cfg.DriveFolder, "drive-folder", "", "remote folder for queued exports (drive mode)")
	fs.StringVar(&cfg.Dataset, "dataset", DefaultDataset, "basin dataset id")
	fs.StringVar(&cfg.Project, "project", "", "project id for the geospatial service (overrides ATLAS_PROJECT)")
	fs.IntVar(&cfg.Limit, "limit", 0, "process only the first N gauges (0 = all)")
	fs.DurationVar(&cfg.Sleep, "sleep", 0, "delay between gauges, e.g. 500ms")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve /metrics on this address during the run (empty = off)")
	fs.StringVar(&cfg.LogLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", envOrDefault("LOG_FORMAT", "text"), "log format: text or json")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg.Mode = ExportMode(mode)
	cfg.AtlasBaseURL = envOrDefault("ATLAS_BASE_URL", defaultAtlasBaseURL)
	cfg.AtlasToken = os.Getenv("ATLAS_TOKEN")
	if cfg.Project == "" {
		cfg.Project = os.Getenv("ATLAS_PROJECT")
	}

	timeout, err := parseAtlasTimeout()
	if err != nil {
		return nil, err
	}
	cfg.AtlasTimeout = timeout

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.GaugesCSV == "" {
		return errors.New("-gauges-csv is required")
	}
	if c.BufferKm <= 0 {
		return fmt.Errorf("-buffer-km must be positive, got %v", c.BufferKm)
	}
	switch c.Mode {
	case ModeClient:
		if c.OutDir == "" {
			return errors.New("-out-dir is required in client mode")
		}
	case ModeDrive:
		// Drive folder is optional: the remote service falls back to its
		// root folder when none is named.
	default:
		return fmt.Errorf("-mode must be %q or %q, got %q", ModeClient, ModeDrive, c.Mode)
	}
	if c.LatCol == "" || c.LonCol == "" || c.IDCol == "" {
		return errors.New("column names must not be empty")
	}
	if c.Limit < 0 {
		return fmt.Errorf("-limit must not be negative, got %d", c.Limit)
	}
	if c.Sleep < 0 {
		return fmt.Errorf("-sleep must not be negative, got %v", c.Sleep)
	}
	if c.AtlasToken == "" {
		return errors.New("ATLAS_TOKEN is required (set it in the environment or a .env file)")
	}
	return nil
}

func parseAtlasTimeout() (time.Duration, error) {
	s := envOrDefault("ATLAS_TIMEOUT", defaultAtlasTimeout.String())
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid ATLAS_TIMEOUT")
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
