// Package building manages the building portfolio: creation, lookup,
// paged listing and the public basic-info projection. Every mutating or
// privileged operation is gated by the auth policy engine.
package building

import (
	"errors"

	"edifica.org/internal/auth"
)

// Building is a managed property with its unit count and optional
// responsible manager.
type Building struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	Description string `json:"description,omitempty"`
	TotalUnits  int    `json:"total_units"`
	AdminUserID *int64 `json:"admin_user_id,omitempty"`
	auth.AuditInfo
}

// BasicInfo is the unauthenticated public projection of a building.
type BasicInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	TotalUnits int    `json:"total_units"`
}

func (b *Building) BasicInfo() BasicInfo {
	return BasicInfo{ID: b.ID, Name: b.Name, Address: b.Address, TotalUnits: b.TotalUnits}
}

var (
	ErrNotFound     = errors.New("building: not found")
	ErrNameTaken    = errors.New("building: name already in use")
	ErrInvalidInput = errors.New("building: invalid input")
)

// SortField names a column the listing may be ordered by.
type SortField string

const (
	SortByName      SortField = "name"
	SortByCreatedAt SortField = "created_at"
	SortByTotal     SortField = "total_units"
)

func (f SortField) valid() bool {
	switch f {
	case SortByName, SortByCreatedAt, SortByTotal:
		return true
	}
	return false
}

// ListFilter narrows and orders a building listing.
type ListFilter struct {
	Name    string
	Address string
	Sort    SortField
	Desc    bool
	Offset  int
	Limit   int
}

// Page is one window of a listing plus the unwindowed total.
type Page struct {
	Items []Building `json:"items"`
	Total int64      `json:"total"`
}

