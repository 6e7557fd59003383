// Package gauges loads gauge stations from CSV station inventories.
package gauges

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gaugetools/subbasins/internal/domain"
)

// Columns names the three required CSV columns. Matching is exact after
// whitespace trimming.
type Columns struct {
	Lat string
	Lon string
	ID  string
}

// Load reads the CSV at path and returns its gauges in file order, plus the
// number of rows skipped.
//
// A missing required column is a configuration error and fails the whole
// load before anything else happens. A row that cannot be parsed (bad field
// count, unparsable or out-of-range coordinate, empty id) is a data error:
// it is logged at WARN, counted, and skipped, and the load continues.
func Load(path string, cols Columns, logger *slog.Logger) ([]domain.Gauge, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open gauges csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	// Field-count mismatches are handled per row below.
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}

	idx, err := columnIndexes(header, cols)
	if err != nil {
		return nil, 0, err
	}

	var gauges []domain.Gauge
	skipped := 0
	for row := 2; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping malformed csv row", "row", row, "error", err)
			skipped++
			continue
		}

		g, err := parseGauge(record, idx)
		if err != nil {
			logger.Warn("skipping unparsable gauge row", "row", row, "error", err)
			skipped++
			continue
		}
		gauges = append(gauges, g)
	}

	return gauges, skipped, nil
}

// colIndexes maps the required column names onto header positions.
type colIndexes struct {
	lat, lon, id int
}

func columnIndexes(header []string, cols Columns) (colIndexes, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff") // UTF-8 BOM
		}
		pos[strings.TrimSpace(h)] = i
	}

	idx := colIndexes{}
	var missing []string
	var ok bool
	if idx.lat, ok = pos[cols.Lat]; !ok {
		missing = append(missing, cols.Lat)
	}
	if idx.lon, ok = pos[cols.Lon]; !ok {
		missing = append(missing, cols.Lon)
	}
	if idx.id, ok = pos[cols.ID]; !ok {
		missing = append(missing, cols.ID)
	}
	if len(missing) > 0 {
		return colIndexes{}, fmt.Errorf("csv is missing required column(s) %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseGauge(record []string, idx colIndexes) (domain.Gauge, error) {
	need := max(idx.lat, idx.lon, idx.id) + 1
	if len(record) < need {
		return domain.Gauge{}, fmt.Errorf("row has %d fields, need at least %d", len(record), need)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(record[idx.lat]), 64)
	if err != nil {
		return domain.Gauge{}, fmt.Errorf("bad latitude %q: %w", record[idx.lat], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[idx.lon]), 64)
	if err != nil {
		return domain.Gauge{}, fmt.Errorf("bad longitude %q: %w", record[idx.lon], err)
	}

	g := domain.Gauge{
		ID:  strings.TrimSpace(record[idx.id]),
		Lat: lat,
		Lon: lon,
	}
	if err := g.Validate(); err != nil {
		return domain.Gauge{}, err
	}
	return g, nil
}
