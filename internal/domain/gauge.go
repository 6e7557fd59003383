package domain

import "fmt"

// Gauge is a monitoring station read from one row of the input file.
// Immutable once constructed.
type Gauge struct {
	ID  string
	Lat float64
	Lon float64
}

// Validate checks that the gauge has an identifier and in-range coordinates.
func (g Gauge) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("gauge has empty id")
	}
	if g.Lat < -90 || g.Lat > 90 {
		return fmt.Errorf("gauge %s: latitude %v out of range [-90, 90]", g.ID, g.Lat)
	}
	if g.Lon < -180 || g.Lon > 180 {
		return fmt.Errorf("gauge %s: longitude %v out of range [-180, 180]", g.ID, g.Lon)
	}
	return nil
}
