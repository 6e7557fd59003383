package export

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaugetools/subbasins/internal/domain"
)

func squareBasin(id string, minLon, minLat float64) domain.Feature {
	return domain.Feature{
		Geometry: orb.Polygon{{
			{minLon, minLat}, {minLon + 0.1, minLat},
			{minLon + 0.1, minLat + 0.1}, {minLon, minLat + 0.1},
			{minLon, minLat},
		}},
		Properties: map[string]any{
			"HYBAS_ID": id,
			"UP_AREA":  132.5,
		},
	}
}

func TestArchiveNaming(t *testing.T) {
	assert.Equal(t, "gauge_A1_subbasins.zip", ArchiveName("A1"))
	assert.Equal(t, "gauge_A1_subbasins", LayerName("A1"))
}

func TestWriteArchive_ProducesShapefileSet(t *testing.T) {
	dir := t.TempDir()
	outZip := filepath.Join(dir, ArchiveName("A1"))

	features := []domain.Feature{
		squareBasin("7120345610", -75.2, 44.9),
		squareBasin("7120345620", -75.1, 44.9),
	}
	require.NoError(t, WriteArchive(features, outZip, LayerName("A1")))

	names := zipEntryNames(t, outZip)
	assert.Equal(t, []string{
		"gauge_A1_subbasins.dbf",
		"gauge_A1_subbasins.prj",
		"gauge_A1_subbasins.shp",
		"gauge_A1_subbasins.shx",
	}, names)

	// Staging directory must be gone.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(outZip), entries[0].Name())
}

func TestWriteArchive_RoundTripsGeometryAndAttributes(t *testing.T) {
	dir := t.TempDir()
	outZip := filepath.Join(dir, ArchiveName("B2"))

	features := []domain.Feature{
		squareBasin("7120345610", -76.2, 45.9),
		squareBasin("7120345620", -76.1, 45.9),
	}
	require.NoError(t, WriteArchive(features, outZip, LayerName("B2")))

	shpPath := extractZip(t, outZip, filepath.Join(dir, "extracted"))
	r, err := shp.Open(filepath.Join(shpPath, "gauge_B2_subbasins.shp"))
	require.NoError(t, err)
	defer r.Close()

	fields := r.Fields()
	require.Len(t, fields, 2) // HYBAS_ID, UP_AREA

	rows := 0
	for r.Next() {
		_, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		require.True(t, ok)
		assert.NotEmpty(t, poly.Points)
		rows++
	}
	assert.Equal(t, 2, rows)

	assert.Equal(t, "7120345610", dbfValue(r, 0, 0))
	assert.Equal(t, "132.5", dbfValue(r, 0, 1))
	assert.Equal(t, "7120345620", dbfValue(r, 1, 0))
}

func TestWriteArchive_EmptyFeatures(t *testing.T) {
	outZip := filepath.Join(t.TempDir(), ArchiveName("A1"))
	err := WriteArchive(nil, outZip, LayerName("A1"))
	require.ErrorIs(t, err, domain.ErrNoSubbasins)
	assert.NoFileExists(t, outZip)
}

func TestWriteArchive_MultiPolygon(t *testing.T) {
	dir := t.TempDir()
	outZip := filepath.Join(dir, ArchiveName("C3"))

	mp := domain.Feature{
		Geometry: orb.MultiPolygon{
			{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
			{{{2, 2}, {3, 2}, {3, 3}, {2, 3}, {2, 2}}},
		},
		Properties: map[string]any{"HYBAS_ID": "x"},
	}
	require.NoError(t, WriteArchive([]domain.Feature{mp}, outZip, LayerName("C3")))

	shpPath := extractZip(t, outZip, filepath.Join(dir, "extracted"))
	r, err := shp.Open(filepath.Join(shpPath, "gauge_C3_subbasins.shp"))
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.Next())
	_, shape := r.Shape()
	poly, ok := shape.(*shp.Polygon)
	require.True(t, ok)
	assert.Equal(t, int32(2), poly.NumParts)
}

func TestWriteArchive_RejectsNonAreaGeometry(t *testing.T) {
	outZip := filepath.Join(t.TempDir(), ArchiveName("D4"))
	bad := domain.Feature{Geometry: orb.Point{1, 2}}

	err := WriteArchive([]domain.Feature{bad}, outZip, LayerName("D4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported geometry")
}

// A write failure while staging the shapefile set must surface as an
// error, never as a quietly corrupt archive.
func TestWriteArchive_SurfacesFilesystemErrors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	outZip := filepath.Join(blocker, ArchiveName("A1"))
	err := WriteArchive([]domain.Feature{squareBasin("7120345610", -75.2, 44.9)}, outZip, LayerName("A1"))

	require.Error(t, err)
	assert.NoFileExists(t, outZip)
}

func TestAttributeString(t *testing.T) {
	assert.Equal(t, "", attributeString(nil))
	assert.Equal(t, "hello", attributeString("hello"))
	assert.Equal(t, "132.5", attributeString(132.5))
	assert.Equal(t, "7120345610", attributeString("7120345610"))
	assert.Equal(t, "true", attributeString(true))
	assert.Equal(t, `{"a":1}`, attributeString(map[string]any{"a": 1}))
}

func TestAttributeString_TruncatesOnRuneBoundary(t *testing.T) {
	// 100 three-byte runes is 300 bytes; the 254-byte cap lands mid-rune
	// and must back off to 252 bytes rather than emit a torn character.
	long := strings.Repeat("日", 100)
	got := attributeString(long)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("日", 84), got)

	// Plain ASCII still cuts exactly at the cap.
	ascii := attributeString(strings.Repeat("a", 300))
	assert.Len(t, ascii, 254)
}

// --- helpers ---

// dbfValue reads one DBF attribute, stripping the record padding.
func dbfValue(r *shp.Reader, row, field int) string {
	return strings.Trim(r.ReadAttribute(row, field), "\x00 ")
}

func zipEntryNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func extractZip(t *testing.T, path, dest string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dest, 0o755))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		out, err := os.Create(filepath.Join(dest, filepath.Base(f.Name)))
		require.NoError(t, err)
		_, err = io.Copy(out, rc)
		require.NoError(t, err)
		require.NoError(t, out.Close())
		require.NoError(t, rc.Close())
	}
	return dest
}
