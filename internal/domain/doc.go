// Package domain models hydrometric gauge stations and the sub-basin
// features extracted around them.
//
// # Data Source
//
// Gauge locations come from tabular station inventories such as the
// Environment Canada HYDAT station list. Only three columns matter to this
// tool: station identifier, latitude, and longitude. Everything else in
// the input file is ignored. Coordinates are WGS-84 decimal degrees.
//
// Sub-basins are Level-12 polygons from the WWF HydroATLAS dataset
// (https://www.hydrosheds.org/hydroatlas), selected by intersection with a
// circular buffer around each gauge. Every attribute the dataset carries on
// a polygon is opaque to this tool and is written through to the output
// unchanged.
//
// # Buffers
//
// A buffer is a circular region of a given radius in kilometers centered on
// a gauge. It is approximated by a 64-vertex polygon built with spherical
// destination-point math on a mean Earth radius of 6371.0088 km, which keeps
// the vertex error well under the positional accuracy of typical gauge
// coordinates. The exterior ring is wound counterclockwise per the GeoJSON
// convention. See [BufferPolygon].
package domain
