package unit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"edifica.org/internal/auth"
	"edifica.org/internal/building"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// IdentityLookup fetches identities for assignment validation. Satisfied
// by auth.IdentityStore.
type IdentityLookup interface {
	FindByID(ctx context.Context, id int64) (*auth.Identity, error)
}

// BuildingLookup confirms a building exists before a unit is created in
// it. Satisfied by building.Store.
type BuildingLookup interface {
	FindByID(ctx context.Context, id int64) (*building.Building, error)
}

// Service applies access policy, assignment validity and business rules
// over a Store.
type Service struct {
	store      Store
	buildings  BuildingLookup
	identities IdentityLookup
}

func NewService(store Store, buildings BuildingLookup, identities IdentityLookup) *Service {
	return &Service{store: store, buildings: buildings, identities: identities}
}

// CreateParams carries the fields of a unit creation request.
type CreateParams struct {
	BuildingID int64
	Number     string
	Type       Type
	Area       float64
	OwnerID    *int64
	TenantID   *int64
}

func (s *Service) Create(ctx context.Context, p auth.Principal, params CreateParams) (*Unit, error) {
	if err := auth.Authorize(p, auth.ActionUnitCreate, auth.ResourceContext{BuildingID: &params.BuildingID}).Err(); err != nil {
		return nil, err
	}
	u := &Unit{
		BuildingID: params.BuildingID,
		Number:     strings.TrimSpace(params.Number),
		Type:       params.Type,
		Area:       params.Area,
		OwnerID:    params.OwnerID,
		TenantID:   params.TenantID,
		Active:     true,
	}
	if err := s.validate(u); err != nil {
		return nil, err
	}
	if _, err := s.buildings.FindByID(ctx, u.BuildingID); err != nil {
		if errors.Is(err, building.ErrNotFound) {
			return nil, fmt.Errorf("%w: building %d does not exist", ErrInvalidInput, u.BuildingID)
		}
		return nil, err
	}
	taken, err := s.store.ExistsNumber(ctx, u.BuildingID, u.Number, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNumberTaken
	}
	if u.OwnerID != nil {
		if err := s.checkAssignment(ctx, *u.OwnerID, auth.ValidateOwnerAssignment); err != nil {
			return nil, err
		}
	}
	if u.TenantID != nil {
		if err := s.checkAssignment(ctx, *u.TenantID, auth.ValidateTenantAssignment); err != nil {
			return nil, err
		}
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (*Unit, error) {
	if err := auth.Authorize(p, auth.ActionUnitRead, auth.ResourceContext{}).Err(); err != nil {
		return nil, err
	}
	return s.store.FindByID(ctx, id)
}

func (s *Service) ListByBuilding(ctx context.Context, p auth.Principal, buildingID int64, f ListFilter) (Page, error) {
	if err := auth.Authorize(p, auth.ActionUnitList, auth.ResourceContext{BuildingID: &buildingID}).Err(); err != nil {
		return Page{}, err
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Type != "" && !f.Type.Valid() {
		return Page{}, fmt.Errorf("%w: unknown unit type %q", ErrInvalidInput, f.Type)
	}
	return s.store.ListByBuilding(ctx, buildingID, f)
}

// ListByOwner is admin/board territory, except that an owner may list
// their own units.
func (s *Service) ListByOwner(ctx context.Context, p auth.Principal, ownerID int64) ([]Unit, error) {
	if err := auth.Authorize(p, auth.ActionUnitListByOwner, auth.ResourceContext{OwnerID: &ownerID}).Err(); err != nil {
		return nil, err
	}
	return s.store.ListByOwner(ctx, ownerID)
}

// ListByTenant mirrors ListByOwner for tenants.
func (s *Service) ListByTenant(ctx context.Context, p auth.Principal, tenantID int64) ([]Unit, error) {
	if err := auth.Authorize(p, auth.ActionUnitListByTenant, auth.ResourceContext{TenantID: &tenantID}).Err(); err != nil {
		return nil, err
	}
	return s.store.ListByTenant(ctx, tenantID)
}

// ListMine returns the units tied to the calling principal by their role:
// owned units for owners, occupied units for tenants.
func (s *Service) ListMine(ctx context.Context, p auth.Principal) ([]Unit, error) {
	if err := auth.Authorize(p, auth.ActionUnitListMine, auth.ResourceContext{}).Err(); err != nil {
		return nil, err
	}
	if p.Role == auth.RoleOwner {
		return s.store.ListByOwner(ctx, p.ID)
	}
	return s.store.ListByTenant(ctx, p.ID)
}

// UpdateParams carries the mutable fields of a unit. Nil pointers leave
// the stored value untouched. Ownership changes go through the dedicated
// assign/remove operations.
type UpdateParams struct {
	Number *string
	Type   *Type
	Area   *float64
	Active *bool
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, params UpdateParams) (*Unit, error) {
	if err := auth.Authorize(p, auth.ActionUnitUpdate, auth.ResourceContext{}).Err(); err != nil {
		return nil, err
	}
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Number != nil {
		number := strings.TrimSpace(*params.Number)
		if number != u.Number {
			taken, err := s.store.ExistsNumber(ctx, u.BuildingID, number, u.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrNumberTaken
			}
		}
		u.Number = number
	}
	if params.Type != nil {
		u.Type = *params.Type
	}
	if params.Area != nil {
		u.Area = *params.Area
	}
	if params.Active != nil {
		u.Active = *params.Active
	}
	if err := s.validate(u); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.ActionUnitDelete, auth.ResourceContext{}).Err(); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) AssignOwner(ctx context.Context, p auth.Principal, unitID, ownerID int64) (*Unit, error) {
	return s.assign(ctx, p, auth.ActionUnitAssignOwner, unitID, func(u *Unit) error {
		if err := s.checkAssignment(ctx, ownerID, auth.ValidateOwnerAssignment); err != nil {
			return err
		}
		u.OwnerID = &ownerID
		return nil
	})
}

func (s *Service) AssignTenant(ctx context.Context, p auth.Principal, unitID, tenantID int64) (*Unit, error) {
	return s.assign(ctx, p, auth.ActionUnitAssignTenant, unitID, func(u *Unit) error {
		if err := s.checkAssignment(ctx, tenantID, auth.ValidateTenantAssignment); err != nil {
			return err
		}
		u.TenantID = &tenantID
		return nil
	})
}

func (s *Service) RemoveOwner(ctx context.Context, p auth.Principal, unitID int64) (*Unit, error) {
	return s.assign(ctx, p, auth.ActionUnitRemoveOwner, unitID, func(u *Unit) error {
		u.OwnerID = nil
		return nil
	})
}

func (s *Service) RemoveTenant(ctx context.Context, p auth.Principal, unitID int64) (*Unit, error) {
	return s.assign(ctx, p, auth.ActionUnitRemoveTenant, unitID, func(u *Unit) error {
		u.TenantID = nil
		return nil
	})
}

func (s *Service) assign(ctx context.Context, p auth.Principal, action auth.Action, unitID int64, mutate func(*Unit) error) (*Unit, error) {
	if err := auth.Authorize(p, action, auth.ResourceContext{}).Err(); err != nil {
		return nil, err
	}
	u, err := s.store.FindByID(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if err := mutate(u); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// BuildingSummary aggregates unit counts, occupancy and area for one
// building.
func (s *Service) BuildingSummary(ctx context.Context, p auth.Principal, buildingID int64) (Summary, error) {
	if err := auth.Authorize(p, auth.ActionUnitSummary, auth.ResourceContext{BuildingID: &buildingID}).Err(); err != nil {
		return Summary{}, err
	}
	if _, err := s.buildings.FindByID(ctx, buildingID); err != nil {
		return Summary{}, err
	}
	return s.store.Summarize(ctx, buildingID)
}

// CheckNumber reports whether a number is already used in the building.
func (s *Service) CheckNumber(ctx context.Context, p auth.Principal, buildingID int64, number string) (bool, error) {
	if err := auth.Authorize(p, auth.ActionUnitCheckNumber, auth.ResourceContext{BuildingID: &buildingID}).Err(); err != nil {
		return false, err
	}
	return s.store.ExistsNumber(ctx, buildingID, strings.TrimSpace(number), 0)
}

func (s *Service) validate(u *Unit) error {
	if u.BuildingID <= 0 {
		return fmt.Errorf("%w: building id is required", ErrInvalidInput)
	}
	if u.Number == "" {
		return fmt.Errorf("%w: number is required", ErrInvalidInput)
	}
	if !u.Type.Valid() {
		return fmt.Errorf("%w: unknown unit type %q", ErrInvalidInput, u.Type)
	}
	if u.Area < 0 {
		return fmt.Errorf("%w: area cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (s *Service) checkAssignment(ctx context.Context, id int64, validate func(*auth.Identity) error) error {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return fmt.Errorf("%w: identity %d does not exist", auth.ErrInvalidAssignment, id)
		}
		return err
	}
	return validate(identity)
}
