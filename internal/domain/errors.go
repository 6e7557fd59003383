package domain

import "errors"

// ErrNoSubbasins reports that a gauge's buffer intersects no dataset
// polygons. Callers treat this as a skip, not a failure.
var ErrNoSubbasins = errors.New("no sub-basins intersect the buffer")
