package domain

import "github.com/paulmach/orb"

// Feature is one sub-basin polygon with its original dataset attributes.
// Attributes are passthrough: whatever keys the remote dataset carries are
// preserved as-is and written to the output unchanged.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]any
}

// ArtifactKind tags what an export produced.
type ArtifactKind string

const (
	// ArtifactArchive is a local zipped shapefile (client mode).
	ArtifactArchive ArtifactKind = "archive"
	// ArtifactTask is a queued remote export task (drive mode).
	ArtifactTask ArtifactKind = "task"
)

// Artifact records the outcome of exporting one gauge. Exactly one of Path
// or TaskID is set, according to Kind.
type Artifact struct {
	GaugeID  string
	Kind     ArtifactKind
	Path     string // local archive path, client mode
	TaskID   string // remote task identifier, drive mode
	Features int    // feature count, client mode only
}
