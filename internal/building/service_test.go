package building

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"edifica.org/internal/auth"
)

type memStore struct {
	mu        sync.Mutex
	nextID    int64
	buildings map[int64]*Building
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, buildings: make(map[int64]*Building)}
}

func (m *memStore) Create(_ context.Context, b *Building) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.nextID
	m.nextID++
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.buildings[b.ID] = &cp
	return nil
}

func (m *memStore) FindByID(_ context.Context, id int64) (*Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buildings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *memStore) List(_ context.Context, f ListFilter) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Building
	for _, b := range m.buildings {
		if f.Name != "" && !strings.Contains(strings.ToLower(b.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.Address != "" && !strings.Contains(strings.ToLower(b.Address), strings.ToLower(f.Address)) {
			continue
		}
		all = append(all, *b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := int64(len(all))
	if f.Offset < len(all) {
		all = all[f.Offset:]
	} else {
		all = nil
	}
	if len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return Page{Items: all, Total: total}, nil
}

func (m *memStore) ListByManager(_ context.Context, managerID int64) ([]Building, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Building
	for _, b := range m.buildings {
		if b.AdminUserID != nil && *b.AdminUserID == managerID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, b *Building) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buildings[b.ID]; !ok {
		return ErrNotFound
	}
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	m.buildings[b.ID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buildings[id]; !ok {
		return ErrNotFound
	}
	delete(m.buildings, id)
	return nil
}

func (m *memStore) ExistsByName(_ context.Context, name string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.buildings {
		if b.Name == name && b.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type memIdentities map[int64]*auth.Identity

func (m memIdentities) FindByID(_ context.Context, id int64) (*auth.Identity, error) {
	if identity, ok := m[id]; ok {
		return identity, nil
	}
	return nil, auth.ErrNotFound
}

var (
	admin  = auth.Principal{ID: 1, Role: auth.RoleAdmin}
	board  = auth.Principal{ID: 2, Role: auth.RoleBoardMember}
	tenant = auth.Principal{ID: 3, Role: auth.RoleTenant}
)

func newTestService(identities memIdentities) (*Service, *memStore) {
	store := newMemStore()
	if identities == nil {
		identities = memIdentities{}
	}
	return NewService(store, identities), store
}

func TestCreateRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(nil)
	params := CreateParams{Name: "Fir Court", Address: "1 Fir St", TotalUnits: 12}

	if _, err := svc.Create(context.Background(), board, params); !errors.Is(err, auth.ErrInsufficientRole) {
		t.Fatalf("board Create = %v, want ErrInsufficientRole", err)
	}
	b, err := svc.Create(context.Background(), admin, params)
	if err != nil {
		t.Fatalf("admin Create: %v", err)
	}
	if b.ID == 0 {
		t.Fatal("expected an assigned id")
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	svc, _ := newTestService(nil)
	params := CreateParams{Name: "Fir Court", Address: "1 Fir St"}
	if _, err := svc.Create(context.Background(), admin, params); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), admin, params); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("duplicate Create = %v, want ErrNameTaken", err)
	}
}

func TestCreateValidatesManager(t *testing.T) {
	identities := memIdentities{
		2: {ID: 2, Role: auth.RoleBoardMember, Active: true},
		3: {ID: 3, Role: auth.RoleTenant, Active: true},
	}
	svc, _ := newTestService(identities)

	managerID := int64(2)
	if _, err := svc.Create(context.Background(), admin, CreateParams{
		Name: "Fir Court", Address: "1 Fir St", AdminUserID: &managerID,
	}); err != nil {
		t.Fatalf("Create with board manager: %v", err)
	}

	tenantID := int64(3)
	if _, err := svc.Create(context.Background(), admin, CreateParams{
		Name: "Oak Court", Address: "2 Oak St", AdminUserID: &tenantID,
	}); !errors.Is(err, auth.ErrInvalidAssignment) {
		t.Fatalf("Create with tenant manager = %v, want ErrInvalidAssignment", err)
	}

	missing := int64(99)
	if _, err := svc.Create(context.Background(), admin, CreateParams{
		Name: "Elm Court", Address: "3 Elm St", AdminUserID: &missing,
	}); !errors.Is(err, auth.ErrInvalidAssignment) {
		t.Fatalf("Create with missing manager = %v, want ErrInvalidAssignment", err)
	}
}

func TestListAccessAndPaging(t *testing.T) {
	svc, _ := newTestService(nil)
	for _, name := range []string{"Alder", "Birch", "Cedar"} {
		if _, err := svc.Create(context.Background(), admin, CreateParams{Name: name, Address: name + " St"}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	if _, err := svc.List(context.Background(), tenant, ListFilter{}); !errors.Is(err, auth.ErrInsufficientRole) {
		t.Fatalf("tenant List = %v, want ErrInsufficientRole", err)
	}

	page, err := svc.List(context.Background(), admin, ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 {
		t.Fatalf("page = total %d, %d items; want total 3, 2 items", page.Total, len(page.Items))
	}

	if _, err := svc.List(context.Background(), admin, ListFilter{Sort: SortField("password_hash")}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("List with bad sort = %v, want ErrInvalidInput", err)
	}
}

func TestListMine(t *testing.T) {
	identities := memIdentities{2: {ID: 2, Role: auth.RoleBoardMember, Active: true}}
	svc, _ := newTestService(identities)

	managerID := int64(2)
	if _, err := svc.Create(context.Background(), admin, CreateParams{Name: "Fir Court", Address: "1 Fir St", AdminUserID: &managerID}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), admin, CreateParams{Name: "Oak Court", Address: "2 Oak St"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mine, err := svc.ListMine(context.Background(), board)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "Fir Court" {
		t.Fatalf("unexpected ListMine result: %+v", mine)
	}

	if _, err := svc.ListMine(context.Background(), tenant); !errors.Is(err, auth.ErrInsufficientRole) {
		t.Fatalf("tenant ListMine = %v, want ErrInsufficientRole", err)
	}
}

func TestUpdateNameUniquenessExcludesSelf(t *testing.T) {
	svc, _ := newTestService(nil)
	b, err := svc.Create(context.Background(), admin, CreateParams{Name: "Fir Court", Address: "1 Fir St"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), admin, CreateParams{Name: "Oak Court", Address: "2 Oak St"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Re-saving the same name is fine.
	same := "Fir Court"
	if _, err := svc.Update(context.Background(), board, b.ID, UpdateParams{Name: &same}); err != nil {
		t.Fatalf("Update with own name: %v", err)
	}

	clash := "Oak Court"
	if _, err := svc.Update(context.Background(), board, b.ID, UpdateParams{Name: &clash}); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("Update to taken name = %v, want ErrNameTaken", err)
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(nil)
	b, err := svc.Create(context.Background(), admin, CreateParams{Name: "Fir Court", Address: "1 Fir St"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(context.Background(), board, b.ID); !errors.Is(err, auth.ErrInsufficientRole) {
		t.Fatalf("board Delete = %v, want ErrInsufficientRole", err)
	}
	if err := svc.Delete(context.Background(), admin, b.ID); err != nil {
		t.Fatalf("admin Delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), admin, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestPublicBasicInfoNeedsNoPrincipal(t *testing.T) {
	svc, _ := newTestService(nil)
	b, err := svc.Create(context.Background(), admin, CreateParams{Name: "Fir Court", Address: "1 Fir St", Description: "internal note", TotalUnits: 12})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	info, err := svc.PublicBasicInfo(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("PublicBasicInfo: %v", err)
	}
	if info.Name != "Fir Court" || info.TotalUnits != 12 {
		t.Fatalf("unexpected basic info: %+v", info)
	}
}

func TestBuildingJSONKeepsFlatTimestamps(t *testing.T) {
	b := Building{ID: 1, Name: "Fir Court", Address: "1 Fir St"}
	b.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.UpdatedAt = b.CreatedAt
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := out["created_at"]; !ok {
		t.Fatalf("created_at not at top level: %s", data)
	}
	if _, ok := out["updated_at"]; !ok {
		t.Fatalf("updated_at not at top level: %s", data)
	}
}
