package domain

// Immutable device position (latitude, longitude) taken when a record is created.
type Geolocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
