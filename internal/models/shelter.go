package models

// Shelter is a verified shelter location. The consensus engine never mutates
// shelters; they are served as-is to clients.
type Shelter struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Address   string  `json:"address"`
	Capacity  int     `json:"capacity"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
