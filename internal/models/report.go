package models

import (
	"fmt"
	"time"
)

// Report is a single user-submitted sighting of a possible aerial threat.
// Reports are immutable once created and belong to exactly one Target.
type Report struct {
	ID                string     `json:"id"`
	TargetID          string     `json:"target_id,omitempty"`
	ReporterID        string     `json:"reporter_id"`
	TrustAtSubmission float64    `json:"trust_at_submission"`
	Type              TargetType `json:"target_type"`
	Latitude          float64    `json:"latitude"`
	Longitude         float64    `json:"longitude"`
	Description       string     `json:"description,omitempty"`
	SubmittedAt       time.Time  `json:"submitted_at"`
}

// TargetType classifies the kind of aerial threat being reported.
type TargetType string

const (
	TypeDrone      TargetType = "drone"
	TypeRocket     TargetType = "rocket"
	TypePlane      TargetType = "plane"
	TypeHelicopter TargetType = "helicopter"
	TypeExplosion  TargetType = "explosion"
	TypeOther      TargetType = "other"
)

// TargetTypes lists every recognized threat type.
var TargetTypes = []TargetType{
	TypeDrone,
	TypeRocket,
	TypePlane,
	TypeHelicopter,
	TypeExplosion,
	TypeOther,
}

// Valid reports whether t names a recognized threat type.
func (t TargetType) Valid() bool {
	switch t {
	case TypeDrone, TypeRocket, TypePlane, TypeHelicopter, TypeExplosion, TypeOther:
		return true
	}
	return false
}

// Validate checks the report's coordinates and type. It does not check the
// reporter; identity resolution happens separately.
func (r *Report) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("unknown target type %q", r.Type)
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		return fmt.Errorf("latitude %.4f out of range [-90, 90]", r.Latitude)
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return fmt.Errorf("longitude %.4f out of range [-180, 180]", r.Longitude)
	}
	return nil
}
