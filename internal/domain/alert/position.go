package alert

import "strconv"

// Position is a single geographic fix attached to an alert.
type Position struct {
	// Latitude in decimal degrees.
	Latitude float64
	// Longitude in decimal degrees.
	Longitude float64
}

// Clone returns a copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}

	cloned := *p

	return &cloned
}

// MapLink renders a Google Maps search URL pointing at the position.
func (p Position) MapLink() string {
	return "https://www.google.com/maps/search/?api=1&query=" +
		formatCoordinate(p.Latitude) + "," + formatCoordinate(p.Longitude)
}

// formatCoordinate renders a coordinate without trailing zeros.
func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
