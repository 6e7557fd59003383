package atlas

import (
	"github.com/paulmach/orb"

	"github.com/gaugetools/subbasins/internal/domain"
)

// Query describes one intersection query against a basin dataset: select
// every record whose geometry intersects Region. Building a Query performs
// no I/O; nothing touches the network until the query is handed to the
// client.
type Query struct {
	Dataset string
	Region  orb.Polygon
}

// NewQuery builds the buffer around a gauge and the intersection filter for
// it. radiusKm must be positive.
func NewQuery(dataset string, g domain.Gauge, radiusKm float64) (Query, error) {
	region, err := domain.BufferPolygon(g.Lat, g.Lon, radiusKm)
	if err != nil {
		return Query{}, err
	}
	return Query{Dataset: dataset, Region: region}, nil
}
