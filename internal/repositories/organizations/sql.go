package organizations

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

func (r *SQLRepository) Upsert(ctx context.Context, o *models.Organization) error {
	query :=
		`INSERT INTO organizations (id, name, external_id, group_id, details, notes, shared_tickets, shared_comments,
		                            domain_names_json, tags_json, organization_fields_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, external_id = excluded.external_id, group_id = excluded.group_id,
		   details = excluded.details, notes = excluded.notes, shared_tickets = excluded.shared_tickets,
		   shared_comments = excluded.shared_comments, domain_names_json = excluded.domain_names_json,
		   tags_json = excluded.tags_json, organization_fields_json = excluded.organization_fields_json,
		   created_at = excluded.created_at, updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		o.ID, o.Name, dbx.Null(o.ExternalID), dbx.Null(o.GroupID),
		dbx.Null(o.Details), dbx.Null(o.Notes), o.SharedTickets, o.SharedComments,
		models.JSONText(o.DomainNames, "[]"), models.JSONText(o.Tags, "[]"),
		models.JSONText(o.OrganizationFields, "{}"), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
