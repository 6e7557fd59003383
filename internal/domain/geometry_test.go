package domain

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPolygon_VerticesAtRadius(t *testing.T) {
	const radiusKm = 25.0
	center := orb.Point{-75.0, 45.0}

	poly, err := BufferPolygon(center[1], center[0], radiusKm)
	require.NoError(t, err)
	require.Len(t, poly, 1)

	ring := poly[0]
	require.Len(t, ring, bufferSegments+1)

	for i, p := range ring {
		distKm := geo.DistanceHaversine(center, p) / 1000
		// Spherical vs haversine agree well within 0.5% at this scale.
		assert.InDeltaf(t, radiusKm, distKm, radiusKm*0.005, "vertex %d", i)
	}
}

func TestBufferPolygon_RingClosedAndContainsCenter(t *testing.T) {
	poly, err := BufferPolygon(46.0, -76.0, 10)
	require.NoError(t, err)

	ring := poly[0]
	assert.Equal(t, ring[0], ring[len(ring)-1])
	assert.True(t, planar.PolygonContains(poly, orb.Point{-76.0, 46.0}))
}

func TestBufferPolygon_RejectsNonPositiveRadius(t *testing.T) {
	for _, radius := range []float64{0, -1, -25} {
		_, err := BufferPolygon(45.0, -75.0, radius)
		require.Errorf(t, err, "radius %v", radius)
		assert.Contains(t, err.Error(), "positive")
	}
}

func TestBufferPolygon_NormalizesAntimeridian(t *testing.T) {
	poly, err := BufferPolygon(0, 179.9, 50)
	require.NoError(t, err)

	for _, p := range poly[0] {
		assert.GreaterOrEqual(t, p[0], -180.0)
		assert.Less(t, p[0], 180.0)
	}
}

func TestGaugeValidate(t *testing.T) {
	tests := []struct {
		name    string
		gauge   Gauge
		wantErr string
	}{
		{name: "valid", gauge: Gauge{ID: "02KF005", Lat: 45.47, Lon: -75.7}},
		{name: "empty id", gauge: Gauge{Lat: 45, Lon: -75}, wantErr: "empty id"},
		{name: "latitude out of range", gauge: Gauge{ID: "A1", Lat: 91, Lon: 0}, wantErr: "latitude"},
		{name: "longitude out of range", gauge: Gauge{ID: "A1", Lat: 0, Lon: -181}, wantErr: "longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.gauge.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
