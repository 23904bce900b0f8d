// Package unit manages units inside buildings: lifecycle, owner and
// tenant assignment, listings and the per-building occupancy summary.
package unit

import (
	"errors"

	"edifica.org/internal/auth"
)

// Type classifies a unit.
type Type string

const (
	TypeApartment Type = "APARTMENT"
	TypeParking   Type = "PARKING"
	TypeStorage   Type = "STORAGE"
)

// Types lists every valid unit type.
var Types = []Type{TypeApartment, TypeParking, TypeStorage}

func (t Type) Valid() bool {
	switch t {
	case TypeApartment, TypeParking, TypeStorage:
		return true
	}
	return false
}

// Unit is a sellable or rentable space within a building. OwnerID and
// TenantID are nil while unassigned.
type Unit struct {
	ID         int64   `json:"id"`
	BuildingID int64   `json:"building_id"`
	Number     string  `json:"number"`
	Type       Type    `json:"type"`
	Area       float64 `json:"area"`
	OwnerID    *int64  `json:"owner_id,omitempty"`
	TenantID   *int64  `json:"tenant_id,omitempty"`
	Active     bool    `json:"active"`
	auth.AuditInfo
}

// Summary aggregates one building's units.
type Summary struct {
	BuildingID int64          `json:"building_id"`
	Total      int64          `json:"total"`
	ByType     map[Type]int64 `json:"by_type"`
	Occupied   int64          `json:"occupied"`
	TotalArea  float64        `json:"total_area"`
}

var (
	ErrNotFound     = errors.New("unit: not found")
	ErrNumberTaken  = errors.New("unit: number already in use in this building")
	ErrInvalidInput = errors.New("unit: invalid input")
)

// ListFilter narrows a per-building unit listing.
type ListFilter struct {
	Number   string
	Type     Type
	HasOwner *bool
	Offset   int
	Limit    int
}

// Page is one window of a listing plus the unwindowed total.
type Page struct {
	Items []Unit `json:"items"`
	Total int64  `json:"total"`
}
