package equipment

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinicops/internal/platform/db"
)

const (
	equipmentColumns = "id, department_id, name, is_active, is_deleted, created_at, updated_at"
	detailColumns    = "id, equipment_id, serial_number, make, model, is_active, created_at, updated_at"
	parameterColumns = "id, equipment_id, name, config, is_active, is_deleted, created_at, updated_at"
)

// updateByID applies a partial update and reports ErrNotFound when no row
// matched.
func updateByID(ctx context.Context, pool *pgxpool.Pool, table string, id uuid.UUID, set map[string]interface{}) error {
	query, args, err := db.SQL.Update(table).
		SetMap(set).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s update: %w", table, err)
	}
	tag, err := db.Conn(ctx, pool).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// -- Equipment Repository --

type equipmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewEquipmentRepo(pool *pgxpool.Pool) EquipmentRepository {
	return &equipmentRepoPG{pool: pool}
}

func (r *equipmentRepoPG) Create(ctx context.Context, eq *Equipment) error {
	eq.ID = uuid.New()
	query, args, err := db.SQL.Insert("equipment").
		Columns("id", "department_id", "name", "is_active", "is_deleted").
		Values(eq.ID, eq.DepartmentID, eq.Name, eq.IsActive, eq.IsDeleted).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build equipment insert: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&eq.CreatedAt, &eq.UpdatedAt)
}

func (r *equipmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Equipment, error) {
	query, args, err := db.SQL.Select(equipmentColumns).From("equipment").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build equipment select: %w", err)
	}
	return scanEquipment(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *equipmentRepoPG) ListByDepartment(ctx context.Context, departmentID uuid.UUID, limit, offset int) ([]*Equipment, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := sq.Eq{"department_id": departmentID, "is_deleted": false}

	countQuery, countArgs, err := db.SQL.Select("COUNT(*)").From("equipment").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build equipment count: %w", err)
	}
	var total int
	if err := conn.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.SQL.Select(equipmentColumns).From("equipment").Where(where).
		OrderBy("name", "id").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build equipment list: %w", err)
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Equipment
	for rows.Next() {
		eq, err := scanEquipment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, eq)
	}
	return out, total, rows.Err()
}

func (r *equipmentRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return updateByID(ctx, r.pool, "equipment", id, map[string]interface{}{"is_active": active})
}

func (r *equipmentRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return updateByID(ctx, r.pool, "equipment", id, map[string]interface{}{"is_active": false, "is_deleted": true})
}

func (r *equipmentRepoPG) DepartmentExists(ctx context.Context, departmentID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM department WHERE id = $1)`, departmentID).Scan(&exists)
	return exists, err
}

func scanEquipment(row pgx.Row) (*Equipment, error) {
	var eq Equipment
	err := row.Scan(&eq.ID, &eq.DepartmentID, &eq.Name, &eq.IsActive, &eq.IsDeleted, &eq.CreatedAt, &eq.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &eq, nil
}

// -- Detail Repository --

type detailRepoPG struct {
	pool *pgxpool.Pool
}

func NewDetailRepo(pool *pgxpool.Pool) DetailRepository {
	return &detailRepoPG{pool: pool}
}

func (r *detailRepoPG) Create(ctx context.Context, d *Detail) error {
	d.ID = uuid.New()
	query, args, err := db.SQL.Insert("equipment_detail").
		Columns("id", "equipment_id", "serial_number", "make", "model", "is_active").
		Values(d.ID, d.EquipmentID, d.SerialNumber, d.Make, d.Model, d.IsActive).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build equipment_detail insert: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *detailRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Detail, error) {
	query, args, err := db.SQL.Select(detailColumns).From("equipment_detail").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build equipment_detail select: %w", err)
	}
	return scanDetail(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *detailRepoPG) ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*Detail, error) {
	query, args, err := db.SQL.Select(detailColumns).From("equipment_detail").
		Where(sq.Eq{"equipment_id": equipmentID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build equipment_detail list: %w", err)
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *detailRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return updateByID(ctx, r.pool, "equipment_detail", id, map[string]interface{}{"is_active": active})
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	err := row.Scan(&d.ID, &d.EquipmentID, &d.SerialNumber, &d.Make, &d.Model, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &d, nil
}

// -- Parameter Repository --

type parameterRepoPG struct {
	pool *pgxpool.Pool
}

func NewParameterRepo(pool *pgxpool.Pool) ParameterRepository {
	return &parameterRepoPG{pool: pool}
}

func (r *parameterRepoPG) Create(ctx context.Context, p *Parameter) error {
	p.ID = uuid.New()
	if p.Config == nil {
		p.Config = map[string]interface{}{}
	}
	query, args, err := db.SQL.Insert("parameter").
		Columns("id", "equipment_id", "name", "config", "is_active", "is_deleted").
		Values(p.ID, p.EquipmentID, p.Name, p.Config, p.IsActive, p.IsDeleted).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build parameter insert: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *parameterRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Parameter, error) {
	query, args, err := db.SQL.Select(parameterColumns).From("parameter").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build parameter select: %w", err)
	}
	return scanParameter(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *parameterRepoPG) ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*Parameter, error) {
	query, args, err := db.SQL.Select(parameterColumns).From("parameter").
		Where(sq.Eq{"equipment_id": equipmentID, "is_deleted": false}).
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build parameter list: %w", err)
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Parameter
	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *parameterRepoPG) UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]interface{}) error {
	return updateByID(ctx, r.pool, "parameter", id, map[string]interface{}{"config": config})
}

func (r *parameterRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return updateByID(ctx, r.pool, "parameter", id, map[string]interface{}{"is_active": active})
}

func (r *parameterRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return updateByID(ctx, r.pool, "parameter", id, map[string]interface{}{"is_active": false, "is_deleted": true})
}

func scanParameter(row pgx.Row) (*Parameter, error) {
	var p Parameter
	err := row.Scan(&p.ID, &p.EquipmentID, &p.Name, &p.Config, &p.IsActive, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &p, nil
}
