package tickets

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

func (r *SQLRepository) Upsert(ctx context.Context, t *models.Ticket) error {
	query :=
		`INSERT INTO tickets (id, subject, description, status, priority, type, requester_id, assignee_id,
		                      organization_id, created_at, updated_at, due_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   subject = excluded.subject, description = excluded.description, status = excluded.status,
		   priority = excluded.priority, type = excluded.type, requester_id = excluded.requester_id,
		   assignee_id = excluded.assignee_id, organization_id = excluded.organization_id,
		   created_at = excluded.created_at, updated_at = excluded.updated_at, due_at = excluded.due_at`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		t.ID, dbx.Null(t.Subject), dbx.Null(t.Description), t.Status, dbx.Null(t.Priority), dbx.Null(t.Type),
		dbx.Null(t.RequesterID), dbx.Null(t.AssigneeID), dbx.Null(t.OrganizationID),
		t.CreatedAt, t.UpdatedAt, t.DueAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpsertComment(ctx context.Context, c *models.Comment) error {
	query :=
		`INSERT INTO ticket_comments (id, ticket_id, author_id, public, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   ticket_id = excluded.ticket_id, author_id = excluded.author_id, public = excluded.public,
		   body = excluded.body, created_at = excluded.created_at, updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		c.ID, c.TicketID, dbx.Null(c.AuthorID), c.Public, dbx.Null(c.Body),
		c.CreatedAt, c.ObservedAt())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) UpsertAttachment(ctx context.Context, a *models.Attachment) error {
	query :=
		`INSERT INTO attachments (id, ticket_id, comment_id, file_name, content_url, local_path, content_type,
		                          size, thumbnails_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   ticket_id = excluded.ticket_id, comment_id = excluded.comment_id, file_name = excluded.file_name,
		   content_url = excluded.content_url, local_path = excluded.local_path,
		   content_type = excluded.content_type, size = excluded.size,
		   thumbnails_json = excluded.thumbnails_json, created_at = excluded.created_at`

	var commentID any
	if a.CommentID != 0 {
		commentID = a.CommentID
	}

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		a.ID, a.TicketID, commentID, a.FileName, a.ContentURL, dbx.Null(a.LocalPath),
		dbx.Null(a.ContentType), dbx.Null(a.Size), models.JSONText(a.Thumbnails, "[]"), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id int64) (*models.Ticket, error) {
	query :=
		`SELECT id, subject, status, requester_id, updated_at FROM tickets
		 WHERE id = ?`

	t := &models.Ticket{}
	var (
		subject, status sql.NullString
		requester       sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), id).
		Scan(&t.ID, &subject, &status, &requester, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	t.Status = status.String
	if subject.Valid {
		t.Subject = &subject.String
	}
	if requester.Valid {
		t.RequesterID = &requester.Int64
	}
	return t, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	for _, q := range []string{
		`DELETE FROM attachments WHERE ticket_id = ?`,
		`DELETE FROM ticket_comments WHERE ticket_id = ?`,
		`DELETE FROM tickets WHERE id = ?`,
	} {
		if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(q), id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}
