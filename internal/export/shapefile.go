// Package export turns fetched sub-basin features into export artifacts:
// zipped shapefile archives in client mode, queued remote tasks in drive
// mode, and the combined archive packaged at the end of a client-mode run.
package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"unicode/utf8"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/gaugetools/subbasins/internal/domain"
)

// WGS-84 well-known text, written as the .prj sidecar so GIS tools pick up
// the coordinate reference system (EPSG:4326).
const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// DBF limits: field names are capped at 10 bytes, values at 254.
const (
	dbfNameLimit  = 10
	dbfValueLimit = 254
)

// ArchiveName returns the per-gauge archive filename for a station id.
func ArchiveName(gaugeID string) string {
	return fmt.Sprintf("gauge_%s_subbasins.zip", gaugeID)
}

// LayerName returns the shapefile layer name for a station id, which is
// also the archive name without its extension.
func LayerName(gaugeID string) string {
	return fmt.Sprintf("gauge_%s_subbasins", gaugeID)
}

// WriteArchive writes the features as an ESRI shapefile set (.shp, .shx,
// .dbf, .prj) named layer, zipped into outZip. The shapefile set is built
// in a temporary directory next to outZip and removed afterwards.
//
// Dataset attributes are passthrough, so every property is written as a
// string DBF field; names are truncated to the DBF 10-byte limit.
func WriteArchive(features []domain.Feature, outZip, layer string) error {
	if len(features) == 0 {
		return domain.ErrNoSubbasins
	}

	tmpDir, err := os.MkdirTemp(filepath.Dir(outZip), layer+"-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := writeShapefileSet(features, tmpDir, layer); err != nil {
		return err
	}
	if err := zipDirectory(tmpDir, outZip); err != nil {
		return fmt.Errorf("zip shapefile set: %w", err)
	}
	return nil
}

func writeShapefileSet(features []domain.Feature, dir, layer string) error {
	w, err := shp.Create(filepath.Join(dir, layer+".shp"), shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}

	keys := propertyKeys(features)
	fields := make([]shp.Field, len(keys))
	for i, k := range keys {
		fields[i] = shp.StringField(truncate(k, dbfNameLimit), dbfValueLimit)
	}
	w.SetFields(fields)

	for row, f := range features {
		poly, err := toShpPolygon(f.Geometry)
		if err != nil {
			w.Close()
			return fmt.Errorf("feature %d: %w", row, err)
		}
		w.Write(poly)
		for col, k := range keys {
			if err := w.WriteAttribute(row, col, attributeString(f.Properties[k])); err != nil {
				w.Close()
				return fmt.Errorf("write attribute %s for feature %d: %w", k, row, err)
			}
		}
	}
	w.Close()

	prj := filepath.Join(dir, layer+".prj")
	if err := os.WriteFile(prj, []byte(wgs84WKT), 0o644); err != nil {
		return fmt.Errorf("write prj: %w", err)
	}
	return nil
}

// propertyKeys returns the sorted union of attribute names across features,
// so every row writes the same columns.
func propertyKeys(features []domain.Feature) []string {
	seen := map[string]struct{}{}
	for _, f := range features {
		for k := range f.Properties {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toShpPolygon flattens a Polygon or MultiPolygon into shapefile parts.
func toShpPolygon(g orb.Geometry) (*shp.Polygon, error) {
	var rings [][]shp.Point
	appendRing := func(r orb.Ring) {
		pts := make([]shp.Point, len(r))
		for i, p := range r {
			pts[i] = shp.Point{X: p[0], Y: p[1]}
		}
		rings = append(rings, pts)
	}

	switch geom := g.(type) {
	case orb.Polygon:
		for _, r := range geom {
			appendRing(r)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			for _, r := range poly {
				appendRing(r)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
	if len(rings) == 0 {
		return nil, fmt.Errorf("geometry has no rings")
	}

	return (*shp.Polygon)(shp.NewPolyLine(rings)), nil
}

// attributeString renders an opaque dataset attribute for the DBF. Numbers
// keep their shortest decimal form; anything structured falls back to JSON.
func attributeString(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprintf("%v", val)
		} else {
			s = string(b)
		}
	}
	return truncate(s, dbfValueLimit)
}

// truncate cuts s to at most n bytes, backing off to the nearest rune
// boundary so a multi-byte character is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// zipDirectory deflates every regular file under dir into outZip, with
// archive entries named relative to dir.
func zipDirectory(dir, outZip string) error {
	out, err := os.Create(outZip)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		zw.Close()
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
