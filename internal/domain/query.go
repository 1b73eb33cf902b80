package domain

import (
	"errors"
	"time"
)

// ErrInvalidQuery is returned when a screening query fails upfront validation.
// It is the only hard failure mode of the screening engine; per-source
// failures are reported through SourceOutcome instead.
var ErrInvalidQuery = errors.New("invalid screening query")

// EntityType classifies the kind of entity being screened.
type EntityType string

const (
	EntityIndividual EntityType = "INDIVIDUAL"
	EntityCorporate  EntityType = "CORPORATE"
	EntityVessel     EntityType = "VESSEL"
	EntityAircraft   EntityType = "AIRCRAFT"
)

// ValidEntityType reports whether t is one of the known entity types.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityIndividual, EntityCorporate, EntityVessel, EntityAircraft:
		return true
	}
	return false
}

// EntityQuery is the immutable input to a screening call.
// Created once per call and read-only thereafter.
type EntityQuery struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Address     string     `json:"address,omitempty"`
	Country     string     `json:"country,omitempty"`
	DateOfBirth string     `json:"dateOfBirth,omitempty"`
	Nationality string     `json:"nationality,omitempty"`
}

// ScreeningRequest is the API request payload for POST /screen.
type ScreeningRequest struct {
	Name        string         `json:"name"`
	Type        EntityType     `json:"type"`
	Address     string         `json:"address,omitempty"`
	Country     string         `json:"country,omitempty"`
	DateOfBirth string         `json:"dateOfBirth,omitempty"`
	Nationality string         `json:"nationality,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ToQuery converts a request to an EntityQuery domain object.
func (r *ScreeningRequest) ToQuery() *EntityQuery {
	return &EntityQuery{
		Name:        r.Name,
		Type:        r.Type,
		Address:     r.Address,
		Country:     r.Country,
		DateOfBirth: r.DateOfBirth,
		Nationality: r.Nationality,
	}
}

// ScreeningRecord is a persisted screening call: the query, the result and
// when it happened. Stored with tenant isolation for audit retrieval.
type ScreeningRecord struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenantId"`
	Query     EntityQuery      `json:"query"`
	Result    *ScreeningResult `json:"result"`
	CreatedAt time.Time        `json:"createdAt"`
}
