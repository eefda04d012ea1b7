package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/zdbackup/internal/common"
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

func (r *SQLRepository) Upsert(ctx context.Context, u *models.User) error {
	query :=
		`INSERT INTO users (id, name, email, role, role_type, active, suspended, organization_id, phone, locale,
		                    time_zone, created_at, updated_at, last_login_at, tags_json, user_fields_json, photo_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, email = excluded.email, role = excluded.role, role_type = excluded.role_type,
		   active = excluded.active, suspended = excluded.suspended, organization_id = excluded.organization_id,
		   phone = excluded.phone, locale = excluded.locale, time_zone = excluded.time_zone,
		   created_at = excluded.created_at, updated_at = excluded.updated_at, last_login_at = excluded.last_login_at,
		   tags_json = excluded.tags_json, user_fields_json = excluded.user_fields_json, photo_json = excluded.photo_json`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		u.ID, u.Name, dbx.Null(u.Email), u.Role, dbx.Null(u.RoleType),
		u.Active, u.Suspended, dbx.Null(u.OrganizationID),
		dbx.Null(u.Phone), dbx.Null(u.Locale), dbx.Null(u.TimeZone),
		u.CreatedAt, u.UpdatedAt, u.LastLoginAt,
		models.JSONText(u.Tags, "[]"), models.JSONText(u.UserFields, "{}"), models.JSONText(u.Photo, "{}"))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, name, email, role, active, suspended, organization_id, updated_at FROM users
		 WHERE id = ?`

	u := &models.User{}
	var (
		name, role sql.NullString
		email      sql.NullString
		orgID      sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), id).
		Scan(&u.ID, &name, &email, &role, &u.Active, &u.Suspended, &orgID, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.Name, u.Role = name.String, role.String
	if email.Valid {
		u.Email = &email.String
	}
	if orgID.Valid {
		u.OrganizationID = &orgID.Int64
	}
	return u, nil
}
