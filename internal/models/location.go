package models

// Location represents a geocoded place: the coordinates of the best match
// and the name the geocoding service gave it.
type Location struct {
	Latitude    float64 // Latitude of the geographical point.
	Longitude   float64 // Longitude of the geographical point.
	DisplayName string  // DisplayName is the human readable name, empty when the service omits it.
}
