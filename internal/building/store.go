package building

import "context"

// Store is the persistence contract for buildings. Implementations map
// their backend errors onto the package sentinels.
type Store interface {
	Create(ctx context.Context, b *Building) error
	FindByID(ctx context.Context, id int64) (*Building, error)
	List(ctx context.Context, f ListFilter) (Page, error)
	ListByManager(ctx context.Context, managerID int64) ([]Building, error)
	Update(ctx context.Context, b *Building) error
	Delete(ctx context.Context, id int64) error
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
}
