package pg

import (
	"context"
	"database/sql"
	"fmt"

	"edifica.org/internal/building"
)

type buildingStore struct {
	db *sql.DB
}

const buildingCols = `id, name, address, description, total_units, admin_user_id, created_at, updated_at`

func scanBuilding(scan func(dest ...any) error) (building.Building, error) {
	var b building.Building
	err := scan(&b.ID, &b.Name, &b.Address, &b.Description, &b.TotalUnits,
		&b.AdminUserID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *buildingStore) Create(ctx context.Context, b *building.Building) error {
	err := s.db.QueryRowContext(ctx, `
		insert into buildings(name, address, description, total_units, admin_user_id)
		values ($1,$2,$3,$4,$5)
		returning id, created_at, updated_at
	`, b.Name, b.Address, b.Description, b.TotalUnits, b.AdminUserID,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return building.ErrNameTaken
		}
		return mapErr(err, building.ErrNotFound)
	}
	return nil
}

func (s *buildingStore) FindByID(ctx context.Context, id int64) (*building.Building, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+buildingCols+` from buildings where id=$1`, id)
	b, err := scanBuilding(row.Scan)
	if err != nil {
		return nil, mapErr(err, building.ErrNotFound)
	}
	return &b, nil
}

// sortColumns whitelists ORDER BY targets; the sort field never reaches
// the SQL text unvalidated.
var sortColumns = map[building.SortField]string{
	building.SortByName:      "name",
	building.SortByCreatedAt: "created_at",
	building.SortByTotal:     "total_units",
}

func (s *buildingStore) List(ctx context.Context, f building.ListFilter) (building.Page, error) {
	col, ok := sortColumns[f.Sort]
	if !ok {
		col = "name"
	}
	dir := "asc"
	if f.Desc {
		dir = "desc"
	}

	where := ` where ($1 = '' or name ilike '%' || $1 || '%')
		and ($2 = '' or address ilike '%' || $2 || '%')`

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from buildings`+where, f.Name, f.Address).Scan(&total); err != nil {
		return building.Page{}, mapErr(err, building.ErrNotFound)
	}

	query := fmt.Sprintf(`select %s from buildings%s order by %s %s limit $3 offset $4`,
		buildingCols, where, col, dir)
	rows, err := s.db.QueryContext(ctx, query, f.Name, f.Address, f.Limit, f.Offset)
	if err != nil {
		return building.Page{}, mapErr(err, building.ErrNotFound)
	}
	defer rows.Close()

	var items []building.Building
	for rows.Next() {
		b, err := scanBuilding(rows.Scan)
		if err != nil {
			return building.Page{}, mapErr(err, building.ErrNotFound)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return building.Page{}, mapErr(err, building.ErrNotFound)
	}
	return building.Page{Items: items, Total: total}, nil
}

func (s *buildingStore) ListByManager(ctx context.Context, managerID int64) ([]building.Building, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+buildingCols+` from buildings where admin_user_id=$1 order by name`, managerID)
	if err != nil {
		return nil, mapErr(err, building.ErrNotFound)
	}
	defer rows.Close()

	var out []building.Building
	for rows.Next() {
		b, err := scanBuilding(rows.Scan)
		if err != nil {
			return nil, mapErr(err, building.ErrNotFound)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, building.ErrNotFound)
	}
	return out, nil
}

func (s *buildingStore) Update(ctx context.Context, b *building.Building) error {
	err := s.db.QueryRowContext(ctx, `
		update buildings
		set name=$2, address=$3, description=$4, total_units=$5, admin_user_id=$6, updated_at=now()
		where id=$1
		returning updated_at
	`, b.ID, b.Name, b.Address, b.Description, b.TotalUnits, b.AdminUserID).Scan(&b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return building.ErrNameTaken
		}
		return mapErr(err, building.ErrNotFound)
	}
	return nil
}

func (s *buildingStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from buildings where id=$1`, id)
	if err != nil {
		return mapErr(err, building.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return building.ErrNotFound
	}
	return nil
}

func (s *buildingStore) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from buildings where name=$1 and id <> $2)`,
		name, excludeID).Scan(&exists)
	if err != nil {
		return false, mapErr(err, building.ErrNotFound)
	}
	return exists, nil
}
