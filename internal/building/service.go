package building

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"edifica.org/internal/auth"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// IdentityLookup fetches identities for manager validation. Satisfied by
// auth.IdentityStore.
type IdentityLookup interface {
	FindByID(ctx context.Context, id int64) (*auth.Identity, error)
}

// Service applies access policy and business rules over a Store.
type Service struct {
	store      Store
	identities IdentityLookup
}

func NewService(store Store, identities IdentityLookup) *Service {
	return &Service{store: store, identities: identities}
}

// CreateParams carries the fields of a building creation request.
type CreateParams struct {
	Name        string
	Address     string
	Description string
	TotalUnits  int
	AdminUserID *int64
}

func (s *Service) Create(ctx context.Context, p auth.Principal, params CreateParams) (*Building, error) {
	if err := auth.Authorize(p, auth.ActionBuildingCreate, auth.ResourceContext{}).Err(); err != nil {
		return nil, err
	}
	b := &Building{
		Name:        strings.TrimSpace(params.Name),
		Address:     strings.TrimSpace(params.Address),
		Description: strings.TrimSpace(params.Description),
		TotalUnits:  params.TotalUnits,
		AdminUserID: params.AdminUserID,
	}
	if err := s.validate(b); err != nil {
		return nil, err
	}
	taken, err := s.store.ExistsByName(ctx, b.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNameTaken
	}
	if b.AdminUserID != nil {
		if err := s.checkManager(ctx, *b.AdminUserID); err != nil {
			return nil, err
		}
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (*Building, error) {
	if err := auth.Authorize(p, auth.ActionBuildingRead, auth.ResourceContext{}).Err(); err != nil {
		return nil, err
	}
	return s.store.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, p auth.Principal, f ListFilter) (Page, error) {
	if err := auth.Authorize(p, auth.ActionBuildingList, auth.ResourceContext{}).Err(); err != nil {
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
	if f.Sort == "" {
		f.Sort = SortByName
	}
	if !f.Sort.valid() {
		return Page{}, fmt.Errorf("%w: cannot sort by %q", ErrInvalidInput, f.Sort)
	}
	return s.store.List(ctx, f)
}

// ListMine returns the buildings managed by the calling principal.
func (s *Service) ListMine(ctx context.Context, p auth.Principal) ([]Building, error) {
	if err := auth.Authorize(p, auth.ActionBuildingListMine, auth.ResourceContext{}).Err(); err != nil {
		return nil, err
	}
	return s.store.ListByManager(ctx, p.ID)
}

// UpdateParams carries the mutable fields of a building. Nil pointers
// leave the stored value untouched.
type UpdateParams struct {
	Name        *string
	Address     *string
	Description *string
	TotalUnits  *int
	AdminUserID *int64
	ClearAdmin  bool
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, params UpdateParams) (*Building, error) {
	if err := auth.Authorize(p, auth.ActionBuildingUpdate, auth.ResourceContext{}).Err(); err != nil {
		return nil, err
	}
	b, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name != b.Name {
			taken, err := s.store.ExistsByName(ctx, name, b.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrNameTaken
			}
		}
		b.Name = name
	}
	if params.Address != nil {
		b.Address = strings.TrimSpace(*params.Address)
	}
	if params.Description != nil {
		b.Description = strings.TrimSpace(*params.Description)
	}
	if params.TotalUnits != nil {
		b.TotalUnits = *params.TotalUnits
	}
	switch {
	case params.ClearAdmin:
		b.AdminUserID = nil
	case params.AdminUserID != nil:
		if err := s.checkManager(ctx, *params.AdminUserID); err != nil {
			return nil, err
		}
		b.AdminUserID = params.AdminUserID
	}
	if err := s.validate(b); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.ActionBuildingDelete, auth.ResourceContext{}).Err(); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// CheckName reports whether a name is already in use.
func (s *Service) CheckName(ctx context.Context, p auth.Principal, name string) (bool, error) {
	if err := auth.Authorize(p, auth.ActionBuildingCheckName, auth.ResourceContext{}).Err(); err != nil {
		return false, err
	}
	return s.store.ExistsByName(ctx, strings.TrimSpace(name), 0)
}

// PublicBasicInfo serves the unauthenticated projection. No policy check.
func (s *Service) PublicBasicInfo(ctx context.Context, id int64) (BasicInfo, error) {
	b, err := s.store.FindByID(ctx, id)
	if err != nil {
		return BasicInfo{}, err
	}
	return b.BasicInfo(), nil
}

func (s *Service) validate(b *Building) error {
	if b.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if b.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if b.TotalUnits < 0 {
		return fmt.Errorf("%w: total units cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (s *Service) checkManager(ctx context.Context, id int64) error {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return fmt.Errorf("%w: manager %d does not exist", auth.ErrInvalidAssignment, id)
		}
		return err
	}
	return auth.ValidateBuildingManager(identity)
}
