package clinic

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
	clinicColumns     = "id, name, address, phone, email, is_active, created_at, updated_at"
	departmentColumns = "id, clinic_id, name, is_active, created_at, updated_at"
)

// -- Clinic Repository --

type clinicRepoPG struct {
	pool *pgxpool.Pool
}

func NewClinicRepo(pool *pgxpool.Pool) ClinicRepository {
	return &clinicRepoPG{pool: pool}
}

func (r *clinicRepoPG) Create(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	query, args, err := db.SQL.Insert("clinic").
		Columns("id", "name", "address", "phone", "email", "is_active").
		Values(c.ID, c.Name, c.Address, c.Phone, c.Email, c.IsActive).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build clinic insert: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *clinicRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	query, args, err := db.SQL.Select(clinicColumns).From("clinic").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build clinic select: %w", err)
	}
	return scanClinic(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *clinicRepoPG) List(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM clinic`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.SQL.Select(clinicColumns).From("clinic").
		OrderBy("name").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build clinic list: %w", err)
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &c, nil
}

// -- Department Repository --

type deptRepoPG struct {
	pool *pgxpool.Pool
}

func NewDepartmentRepo(pool *pgxpool.Pool) DepartmentRepository {
	return &deptRepoPG{pool: pool}
}

func (r *deptRepoPG) Create(ctx context.Context, d *Department) error {
	d.ID = uuid.New()
	query, args, err := db.SQL.Insert("department").
		Columns("id", "clinic_id", "name", "is_active").
		Values(d.ID, d.ClinicID, d.Name, d.IsActive).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build department insert: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *deptRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Department, error) {
	query, args, err := db.SQL.Select(departmentColumns).From("department").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build department select: %w", err)
	}
	return scanDepartment(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *deptRepoPG) ListByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Department, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := sq.Eq{"clinic_id": clinicID}

	countQuery, countArgs, err := db.SQL.Select("COUNT(*)").From("department").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build department count: %w", err)
	}
	var total int
	if err := conn.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.SQL.Select(departmentColumns).From("department").Where(where).
		OrderBy("name").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build department list: %w", err)
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *deptRepoPG) Rename(ctx context.Context, id uuid.UUID, name string) error {
	return r.update(ctx, id, map[string]interface{}{"name": name})
}

func (r *deptRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.update(ctx, id, map[string]interface{}{"is_active": active})
}

func (r *deptRepoPG) update(ctx context.Context, id uuid.UUID, set map[string]interface{}) error {
	query, args, err := db.SQL.Update("department").
		SetMap(set).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build department update: %w", err)
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	if err := row.Scan(&d.ID, &d.ClinicID, &d.Name, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, db.NotFound(err)
	}
	return &d, nil
}
