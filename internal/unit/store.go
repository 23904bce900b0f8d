package unit

import "context"

// Store is the persistence contract for units. Implementations map their
// backend errors onto the package sentinels.
type Store interface {
	Create(ctx context.Context, u *Unit) error
	FindByID(ctx context.Context, id int64) (*Unit, error)
	ListByBuilding(ctx context.Context, buildingID int64, f ListFilter) (Page, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Unit, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]Unit, error)
	Update(ctx context.Context, u *Unit) error
	Delete(ctx context.Context, id int64) error
	ExistsNumber(ctx context.Context, buildingID int64, number string, excludeID int64) (bool, error)
	Summarize(ctx context.Context, buildingID int64) (Summary, error)
}
