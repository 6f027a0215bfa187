package event

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinicops/internal/platform/db"
)

const (
	detailColumns    = "d.id, d.equipment_id, d.serial_number, d.make, d.model, d.is_active"
	parameterColumns = "p.id, p.equipment_id, p.name, p.config, p.is_active"
	employeeColumns  = "id, name, email, phone, is_active"
	scheduleColumns  = "s.type, s.from_time, s.to_time, s.one_time_date::text, s.start_date::text, s.end_date::text, s.months, s.days, s.recurring_duration"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns the PostgreSQL Store. Writes inside InTx share one
// read-committed transaction.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	query, args, err := db.SQL.Select("id, clinic_id, name, is_active").From("department").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build department select: %w", err)
	}
	var d Department
	err = db.Conn(ctx, s.pool).QueryRow(ctx, query, args...).Scan(&d.ID, &d.ClinicID, &d.Name, &d.IsActive)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &d, nil
}

func (s *pgStore) FindEquipmentDetails(ctx context.Context, ids []uuid.UUID, departmentID uuid.UUID, activeOnly bool) ([]EquipmentDetail, error) {
	q := db.SQL.Select(detailColumns).
		From("equipment_detail d").
		Join("equipment e ON e.id = d.equipment_id").
		Where(sq.Eq{"d.id": ids, "e.department_id": departmentID})
	if activeOnly {
		q = q.Where(sq.Eq{"d.is_active": true})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build equipment_detail lookup: %w", err)
	}
	return queryDetails(ctx, db.Conn(ctx, s.pool), query, args)
}

func (s *pgStore) FindEquipment(ctx context.Context, ids []uuid.UUID, activeOnly, notDeleted bool) ([]Equipment, error) {
	where := sq.Eq{"id": ids}
	if activeOnly {
		where["is_active"] = true
	}
	if notDeleted {
		where["is_deleted"] = false
	}
	query, args, err := db.SQL.Select("id, department_id, name, is_active, is_deleted").
		From("equipment").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build equipment lookup: %w", err)
	}
	rows, err := db.Conn(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		var eq Equipment
		if err := rows.Scan(&eq.ID, &eq.DepartmentID, &eq.Name, &eq.IsActive, &eq.IsDeleted); err != nil {
			return nil, err
		}
		out = append(out, eq)
	}
	return out, rows.Err()
}

func (s *pgStore) FindParameters(ctx context.Context, ids []uuid.UUID, activeOnly bool) ([]Parameter, error) {
	q := db.SQL.Select(parameterColumns).From("parameter p").Where(sq.Eq{"p.id": ids})
	if activeOnly {
		q = q.Where(sq.Eq{"p.is_active": true})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build parameter lookup: %w", err)
	}
	return queryParameters(ctx, db.Conn(ctx, s.pool), query, args)
}

func (s *pgStore) GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error) {
	return getEmployee(ctx, db.Conn(ctx, s.pool), id)
}

func (s *pgStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.InTx(ctx, s.pool, func(ctx context.Context) error {
		return fn(ctx, &pgTx{pool: s.pool})
	})
}

func (s *pgStore) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	conn := db.Conn(ctx, s.pool)

	query, args, err := db.SQL.Select("e.id, e.department_id, e.assignee_id, e.name, e.description, e.created_at, " + scheduleColumns).
		From("event e").
		Join("event_schedule s ON s.event_id = e.id").
		Where(sq.Eq{"e.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event select: %w", err)
	}
	var ev Event
	sc := &ev.Schedule
	err = conn.QueryRow(ctx, query, args...).Scan(
		&ev.ID, &ev.DepartmentID, &ev.AssigneeID, &ev.Name, &ev.Description, &ev.CreatedAt,
		&sc.Type, &sc.FromTime, &sc.ToTime, &sc.OneTimeDate, &sc.StartDate, &sc.EndDate,
		&sc.Months, &sc.Days, &sc.RecurringDuration,
	)
	if err != nil {
		return nil, db.NotFound(err)
	}

	if ev.Assignee, err = getEmployee(ctx, conn, ev.AssigneeID); err != nil {
		return nil, fmt.Errorf("load assignee: %w", err)
	}

	query, args, err = db.SQL.Select(detailColumns).
		From("equipment_detail d").
		Join("event_equipment l ON l.equipment_detail_id = d.id").
		Where(sq.Eq{"l.event_id": id}).
		OrderBy("d.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event details select: %w", err)
	}
	if ev.EquipmentDetails, err = queryDetails(ctx, conn, query, args); err != nil {
		return nil, err
	}

	query, args, err = db.SQL.Select(parameterColumns).
		From("parameter p").
		Join("event_parameter l ON l.parameter_id = p.id").
		Where(sq.Eq{"l.event_id": id}).
		OrderBy("p.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event parameters select: %w", err)
	}
	if ev.Parameters, err = queryParameters(ctx, conn, query, args); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *pgStore) ListEvents(ctx context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Summary, int, error) {
	conn := db.Conn(ctx, s.pool)
	where := sq.And{}
	if departmentID != nil {
		where = append(where, sq.Eq{"e.department_id": *departmentID})
	}

	countQuery, countArgs, err := db.SQL.Select("COUNT(*)").From("event e").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build event count: %w", err)
	}
	var total int
	if err := conn.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := db.SQL.Select(
		"e.id", "e.department_id", "e.assignee_id", "COALESCE(emp.name, '')",
		"e.name", "e.description", "COALESCE(s.type, '')",
		"(SELECT COUNT(*) FROM event_equipment l WHERE l.event_id = e.id)",
		"(SELECT COUNT(*) FROM event_parameter l WHERE l.event_id = e.id)",
		"e.created_at",
	).
		From("event e").
		LeftJoin("event_schedule s ON s.event_id = e.id").
		LeftJoin("employee emp ON emp.id = e.assignee_id").
		Where(where).
		OrderBy("e.created_at DESC", "e.id")
	if limit > 0 {
		q = q.Limit(uint64(limit)).Offset(uint64(offset))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build event list: %w", err)
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.DepartmentID, &sm.AssigneeID, &sm.AssigneeName,
			&sm.Name, &sm.Description, &sm.ScheduleType,
			&sm.EquipmentCount, &sm.ParameterCount, &sm.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &sm)
	}
	return out, total, rows.Err()
}

// -- Transaction --

type pgTx struct {
	pool *pgxpool.Pool
}

func (t *pgTx) GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error) {
	return getEmployee(ctx, db.Conn(ctx, t.pool), id)
}

func (t *pgTx) InsertEvent(ctx context.Context, e *Event) error {
	query, args, err := db.SQL.Insert("event").
		Columns("id", "department_id", "assignee_id", "name", "description").
		Values(e.ID, e.DepartmentID, e.AssigneeID, e.Name, e.Description).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build event insert: %w", err)
	}
	return db.Conn(ctx, t.pool).QueryRow(ctx, query, args...).Scan(&e.CreatedAt)
}

func (t *pgTx) InsertSchedule(ctx context.Context, eventID uuid.UUID, s *Schedule) error {
	months := s.Months
	if months == nil {
		months = []int32{}
	}
	days := s.Days
	if days == nil {
		days = []string{}
	}
	query, args, err := db.SQL.Insert("event_schedule").
		Columns("id", "event_id", "type", "from_time", "to_time", "one_time_date",
			"start_date", "end_date", "months", "days", "recurring_duration").
		Values(uuid.New(), eventID, s.Type, text(s.FromTime), text(s.ToTime), text(s.OneTimeDate),
			text(s.StartDate), text(s.EndDate), months, days, integer(s.RecurringDuration)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build event_schedule insert: %w", err)
	}
	_, err = db.Conn(ctx, t.pool).Exec(ctx, query, args...)
	return err
}

func (t *pgTx) InsertEquipmentLink(ctx context.Context, eventID, equipmentDetailID uuid.UUID) error {
	return t.insertLink(ctx, "event_equipment", "equipment_detail_id", eventID, equipmentDetailID)
}

func (t *pgTx) InsertParameterLink(ctx context.Context, eventID, parameterID uuid.UUID) error {
	return t.insertLink(ctx, "event_parameter", "parameter_id", eventID, parameterID)
}

func (t *pgTx) insertLink(ctx context.Context, table, column string, eventID, id uuid.UUID) error {
	query, args, err := db.SQL.Insert(table).
		Columns("event_id", column).
		Values(eventID, id).
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s insert: %w", table, err)
	}
	_, err = db.Conn(ctx, t.pool).Exec(ctx, query, args...)
	return err
}

// -- Helpers --

func getEmployee(ctx context.Context, conn db.Queryable, id uuid.UUID) (*Employee, error) {
	query, args, err := db.SQL.Select(employeeColumns).From("employee").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build employee select: %w", err)
	}
	var e Employee
	if err := conn.QueryRow(ctx, query, args...).Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.IsActive); err != nil {
		return nil, db.NotFound(err)
	}
	return &e, nil
}

func queryDetails(ctx context.Context, conn db.Queryable, query string, args []interface{}) ([]EquipmentDetail, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (EquipmentDetail, error) {
		var d EquipmentDetail
		err := row.Scan(&d.ID, &d.EquipmentID, &d.SerialNumber, &d.Make, &d.Model, &d.IsActive)
		return d, err
	})
}

func queryParameters(ctx context.Context, conn db.Queryable, query string, args []interface{}) ([]Parameter, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Parameter, error) {
		var p Parameter
		err := row.Scan(&p.ID, &p.EquipmentID, &p.Name, &p.Config, &p.IsActive)
		return p, err
	})
}

// text and integer unwrap nullable fields into plain values so pgx encodes
// them against the column type.
func text(s null.String) interface{} {
	if !s.Valid {
		return nil
	}
	return s.String
}

func integer(i null.Int) interface{} {
	if !i.Valid {
		return nil
	}
	return i.Int
}
