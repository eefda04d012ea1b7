package rules

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/zdbackup/internal/dbx"
	"github.com/dmitrijs2005/zdbackup/internal/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpsertView(ctx context.Context, v *models.View) error {
	return r.exec(ctx,
		`INSERT INTO views (id, title, description, active, position, default_view, restriction_json,
		                    execution_json, conditions_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title, description = excluded.description, active = excluded.active,
		   position = excluded.position, default_view = excluded.default_view,
		   restriction_json = excluded.restriction_json, execution_json = excluded.execution_json,
		   conditions_json = excluded.conditions_json, created_at = excluded.created_at,
		   updated_at = excluded.updated_at`,
		v.ID, v.Title, dbx.Null(v.Description), v.Active, dbx.Null(v.Position), v.Default,
		models.JSONText(v.Restriction, "null"), models.JSONText(v.Execution, "null"),
		models.JSONText(v.Conditions, "null"), v.CreatedAt, v.UpdatedAt)
}

func (r *SQLRepository) UpsertTrigger(ctx context.Context, t *models.Trigger) error {
	return r.exec(ctx,
		`INSERT INTO triggers (id, title, description, active, position, category_id, raw_title, default_trigger,
		                       conditions_json, actions_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title, description = excluded.description, active = excluded.active,
		   position = excluded.position, category_id = excluded.category_id, raw_title = excluded.raw_title,
		   default_trigger = excluded.default_trigger, conditions_json = excluded.conditions_json,
		   actions_json = excluded.actions_json, created_at = excluded.created_at,
		   updated_at = excluded.updated_at`,
		t.ID, t.Title, dbx.Null(t.Description), t.Active, dbx.Null(t.Position), t.CategoryID.Nullable(),
		dbx.Null(t.RawTitle), t.Default, models.JSONText(t.Conditions, "{}"), models.JSONText(t.Actions, "[]"),
		t.CreatedAt, t.UpdatedAt)
}

func (r *SQLRepository) UpsertTriggerCategory(ctx context.Context, c *models.TriggerCategory) error {
	return r.exec(ctx,
		`INSERT INTO trigger_categories (id, name, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, position = excluded.position,
		   created_at = excluded.created_at, updated_at = excluded.updated_at`,
		string(c.ID), c.Name, dbx.Null(c.Position), c.CreatedAt, c.UpdatedAt)
}

func (r *SQLRepository) UpsertMacro(ctx context.Context, m *models.Macro) error {
	return r.exec(ctx,
		`INSERT INTO macros (id, title, description, active, position, default_macro, restriction_json,
		                     actions_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title, description = excluded.description, active = excluded.active,
		   position = excluded.position, default_macro = excluded.default_macro,
		   restriction_json = excluded.restriction_json, actions_json = excluded.actions_json,
		   created_at = excluded.created_at, updated_at = excluded.updated_at`,
		m.ID, m.Title, dbx.Null(m.Description), m.Active, dbx.Null(m.Position), m.Default,
		models.JSONText(m.Restriction, "null"), models.JSONText(m.Actions, "[]"), m.CreatedAt, m.UpdatedAt)
}
