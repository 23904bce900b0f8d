package pg

import (
	"context"
	"database/sql"

	"edifica.org/internal/unit"
)

type unitStore struct {
	db *sql.DB
}

const unitCols = `id, building_id, number, type, area, owner_id, tenant_id, active, created_at, updated_at`

func scanUnit(scan func(dest ...any) error) (unit.Unit, error) {
	var u unit.Unit
	err := scan(&u.ID, &u.BuildingID, &u.Number, &u.Type, &u.Area,
		&u.OwnerID, &u.TenantID, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *unitStore) Create(ctx context.Context, u *unit.Unit) error {
	err := s.db.QueryRowContext(ctx, `
		insert into units(building_id, number, type, area, owner_id, tenant_id, active)
		values ($1,$2,$3,$4,$5,$6,$7)
		returning id, created_at, updated_at
	`, u.BuildingID, u.Number, u.Type, u.Area, u.OwnerID, u.TenantID, u.Active,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return unit.ErrNumberTaken
		}
		return mapErr(err, unit.ErrNotFound)
	}
	return nil
}

func (s *unitStore) FindByID(ctx context.Context, id int64) (*unit.Unit, error) {
	row := s.db.QueryRowContext(ctx, `select `+unitCols+` from units where id=$1`, id)
	u, err := scanUnit(row.Scan)
	if err != nil {
		return nil, mapErr(err, unit.ErrNotFound)
	}
	return &u, nil
}

func (s *unitStore) ListByBuilding(ctx context.Context, buildingID int64, f unit.ListFilter) (unit.Page, error) {
	where := ` where building_id=$1
		and ($2 = '' or number ilike '%' || $2 || '%')
		and ($3 = '' or type = $3)
		and ($4::boolean is null or (owner_id is not null) = $4)`

	var hasOwner sql.NullBool
	if f.HasOwner != nil {
		hasOwner = sql.NullBool{Bool: *f.HasOwner, Valid: true}
	}

	var total int64
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from units`+where,
		buildingID, f.Number, string(f.Type), hasOwner).Scan(&total); err != nil {
		return unit.Page{}, mapErr(err, unit.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`select `+unitCols+` from units`+where+` order by number limit $5 offset $6`,
		buildingID, f.Number, string(f.Type), hasOwner, f.Limit, f.Offset)
	if err != nil {
		return unit.Page{}, mapErr(err, unit.ErrNotFound)
	}
	defer rows.Close()

	var items []unit.Unit
	for rows.Next() {
		u, err := scanUnit(rows.Scan)
		if err != nil {
			return unit.Page{}, mapErr(err, unit.ErrNotFound)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return unit.Page{}, mapErr(err, unit.ErrNotFound)
	}
	return unit.Page{Items: items, Total: total}, nil
}

func (s *unitStore) ListByOwner(ctx context.Context, ownerID int64) ([]unit.Unit, error) {
	return s.listBy(ctx, `owner_id`, ownerID)
}

func (s *unitStore) ListByTenant(ctx context.Context, tenantID int64) ([]unit.Unit, error) {
	return s.listBy(ctx, `tenant_id`, tenantID)
}

func (s *unitStore) listBy(ctx context.Context, col string, id int64) ([]unit.Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+unitCols+` from units where `+col+`=$1 order by building_id, number`, id)
	if err != nil {
		return nil, mapErr(err, unit.ErrNotFound)
	}
	defer rows.Close()

	var out []unit.Unit
	for rows.Next() {
		u, err := scanUnit(rows.Scan)
		if err != nil {
			return nil, mapErr(err, unit.ErrNotFound)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, unit.ErrNotFound)
	}
	return out, nil
}

func (s *unitStore) Update(ctx context.Context, u *unit.Unit) error {
	err := s.db.QueryRowContext(ctx, `
		update units
		set number=$2, type=$3, area=$4, owner_id=$5, tenant_id=$6, active=$7, updated_at=now()
		where id=$1
		returning updated_at
	`, u.ID, u.Number, u.Type, u.Area, u.OwnerID, u.TenantID, u.Active).Scan(&u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return unit.ErrNumberTaken
		}
		return mapErr(err, unit.ErrNotFound)
	}
	return nil
}

func (s *unitStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from units where id=$1`, id)
	if err != nil {
		return mapErr(err, unit.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return unit.ErrNotFound
	}
	return nil
}

func (s *unitStore) ExistsNumber(ctx context.Context, buildingID int64, number string, excludeID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from units where building_id=$1 and number=$2 and id <> $3)`,
		buildingID, number, excludeID).Scan(&exists)
	if err != nil {
		return false, mapErr(err, unit.ErrNotFound)
	}
	return exists, nil
}

func (s *unitStore) Summarize(ctx context.Context, buildingID int64) (unit.Summary, error) {
	sum := unit.Summary{BuildingID: buildingID, ByType: make(map[unit.Type]int64)}

	err := s.db.QueryRowContext(ctx, `
		select count(*),
		       count(*) filter (where owner_id is not null or tenant_id is not null),
		       coalesce(sum(area), 0)
		from units where building_id=$1
	`, buildingID).Scan(&sum.Total, &sum.Occupied, &sum.TotalArea)
	if err != nil {
		return unit.Summary{}, mapErr(err, unit.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`select type, count(*) from units where building_id=$1 group by type`, buildingID)
	if err != nil {
		return unit.Summary{}, mapErr(err, unit.ErrNotFound)
	}
	defer rows.Close()
	for rows.Next() {
		var t unit.Type
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return unit.Summary{}, mapErr(err, unit.ErrNotFound)
		}
		sum.ByType[t] = n
	}
	if err := rows.Err(); err != nil {
		return unit.Summary{}, mapErr(err, unit.ErrNotFound)
	}
	return sum, nil
}
