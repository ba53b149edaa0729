package models

// PresentUpdate is the PUT body for /api/present.
type PresentUpdate struct {
	Present *bool `json:"present"`
}

// ChargeUpdate is the PUT body for /api/charge.
type ChargeUpdate struct {
	Enabled *bool `json:"enabled"`
}
