package staff

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinicops/internal/platform/db"
)

const employeeColumns = "id, user_id, name, email, phone, department_id, is_active, created_at, updated_at"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Create(ctx context.Context, e *Employee) error {
	e.ID = uuid.New()
	query, args, err := db.SQL.Insert("employee").
		Columns("id", "user_id", "name", "email", "phone", "department_id", "is_active").
		Values(e.ID, e.UserID, e.Name, e.Email, e.Phone, e.DepartmentID, e.IsActive).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build employee insert: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Employee, error) {
	return r.getBy(ctx, sq.Eq{"id": id})
}

func (r *repoPG) GetByUserID(ctx context.Context, userID string) (*Employee, error) {
	return r.getBy(ctx, sq.Eq{"user_id": userID})
}

func (r *repoPG) getBy(ctx context.Context, where sq.Eq) (*Employee, error) {
	query, args, err := db.SQL.Select(employeeColumns).From("employee").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build employee select: %w", err)
	}
	return scanEmployee(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
}

func (r *repoPG) List(ctx context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Employee, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := sq.And{}
	if departmentID != nil {
		where = append(where, sq.Eq{"department_id": *departmentID})
	}

	countQuery, countArgs, err := db.SQL.Select("COUNT(*)").From("employee").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build employee count: %w", err)
	}
	var total int
	if err := conn.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.SQL.Select(employeeColumns).From("employee").Where(where).
		OrderBy("name").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build employee list: %w", err)
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func scanEmployee(row pgx.Row) (*Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.Email, &e.Phone, &e.DepartmentID,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &e, nil
}
