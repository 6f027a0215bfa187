package pipeline

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinicops/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Create(ctx context.Context, p *Pipeline) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.pool)
		p.ID = uuid.New()
		query, args, err := db.SQL.Insert("pipeline").
			Columns("id", "name", "is_active", "is_deleted").
			Values(p.ID, p.Name, p.IsActive, p.IsDeleted).
			Suffix("RETURNING created_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build pipeline insert: %w", err)
		}
		if err := conn.QueryRow(ctx, query, args...).Scan(&p.CreatedAt); err != nil {
			return err
		}

		if len(p.Stages) == 0 {
			return nil
		}
		ins := db.SQL.Insert("pipeline_stage").Columns("id", "pipeline_id", "name", "position", "is_active")
		for i := range p.Stages {
			s := &p.Stages[i]
			s.ID = uuid.New()
			s.PipelineID = p.ID
			ins = ins.Values(s.ID, s.PipelineID, s.Name, s.Position, s.IsActive)
		}
		query, args, err = ins.ToSql()
		if err != nil {
			return fmt.Errorf("build pipeline_stage insert: %w", err)
		}
		_, err = conn.Exec(ctx, query, args...)
		return err
	})
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Pipeline, error) {
	conn := db.Conn(ctx, r.pool)

	query, args, err := db.SQL.Select("id, name, is_active, is_deleted, created_at").
		From("pipeline").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pipeline select: %w", err)
	}
	var p Pipeline
	if err := conn.QueryRow(ctx, query, args...).Scan(&p.ID, &p.Name, &p.IsActive, &p.IsDeleted, &p.CreatedAt); err != nil {
		return nil, db.NotFound(err)
	}

	query, args, err = db.SQL.Select("id, pipeline_id, name, position, is_active").
		From("pipeline_stage").Where(sq.Eq{"pipeline_id": id}).OrderBy("position").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pipeline_stage select: %w", err)
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	p.Stages, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Stage, error) {
		s := Stage{Fields: []Field{}, Rules: []Rule{}}
		err := row.Scan(&s.ID, &s.PipelineID, &s.Name, &s.Position, &s.IsActive)
		return s, err
	})
	if err != nil {
		return nil, err
	}
	if len(p.Stages) == 0 {
		return &p, nil
	}

	byID := make(map[uuid.UUID]*Stage, len(p.Stages))
	stageIDs := make([]uuid.UUID, 0, len(p.Stages))
	for i := range p.Stages {
		byID[p.Stages[i].ID] = &p.Stages[i]
		stageIDs = append(stageIDs, p.Stages[i].ID)
	}

	query, args, err = db.SQL.Select("id, stage_id, name, field_type, is_required").
		From("stage_field").Where(sq.Eq{"stage_id": stageIDs}).OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stage_field select: %w", err)
	}
	rows, err = conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	fields, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Field, error) {
		var f Field
		err := row.Scan(&f.ID, &f.StageID, &f.Name, &f.Type, &f.Required)
		return f, err
	})
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		byID[f.StageID].Fields = append(byID[f.StageID].Fields, f)
	}

	query, args, err = db.SQL.Select("id, stage_id, field_name, operator, value").
		From("stage_rule").Where(sq.Eq{"stage_id": stageIDs}).OrderBy("field_name", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stage_rule select: %w", err)
	}
	rows, err = conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Rule, error) {
		var rl Rule
		err := row.Scan(&rl.ID, &rl.StageID, &rl.FieldName, &rl.Operator, &rl.Value)
		return rl, err
	})
	if err != nil {
		return nil, err
	}
	for _, rl := range rules {
		byID[rl.StageID].Rules = append(byID[rl.StageID].Rules, rl)
	}
	return &p, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Pipeline, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := sq.Eq{"is_deleted": false}

	countQuery, countArgs, err := db.SQL.Select("COUNT(*)").From("pipeline").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build pipeline count: %w", err)
	}
	var total int
	if err := conn.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := db.SQL.Select("id, name, is_active, is_deleted, created_at").
		From("pipeline").Where(where).
		OrderBy("name", "id").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build pipeline list: %w", err)
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Pipeline, error) {
		p := &Pipeline{Stages: []Stage{}}
		err := row.Scan(&p.ID, &p.Name, &p.IsActive, &p.IsDeleted, &p.CreatedAt)
		return p, err
	})
	return out, total, err
}

func (r *repoPG) AddField(ctx context.Context, f *Field) error {
	f.ID = uuid.New()
	query, args, err := db.SQL.Insert("stage_field").
		Columns("id", "stage_id", "name", "field_type", "is_required").
		Values(f.ID, f.StageID, f.Name, string(f.Type), f.Required).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stage_field insert: %w", err)
	}
	_, err = db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	return err
}

func (r *repoPG) AddRule(ctx context.Context, rl *Rule) error {
	rl.ID = uuid.New()
	query, args, err := db.SQL.Insert("stage_rule").
		Columns("id", "stage_id", "field_name", "operator", "value").
		Values(rl.ID, rl.StageID, rl.FieldName, string(rl.Operator), rl.Value).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stage_rule insert: %w", err)
	}
	_, err = db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query, args, err := db.SQL.Update("pipeline").
		Set("is_deleted", true).
		Set("is_active", false).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build pipeline delete: %w", err)
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
