package snapshots

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

func (r *SQLRepository) Upsert(ctx context.Context, s models.Snapshot) error {
	query :=
		`INSERT INTO raw_snapshots (resource, entity_id, updated_at, payload_json)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (resource, entity_id) DO UPDATE SET
		   updated_at = excluded.updated_at,
		   payload_json = excluded.payload_json`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		string(s.Resource), s.EntityID, s.UpdatedAt, models.JSONText(s.Payload, "{}"))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, resource models.Resource, entityID string) (*models.Snapshot, error) {
	query :=
		`SELECT updated_at, payload_json FROM raw_snapshots
		 WHERE resource = ? AND entity_id = ?`

	s := &models.Snapshot{Resource: resource, EntityID: entityID}
	var payload string
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), string(resource), entityID).
		Scan(&s.UpdatedAt, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.Payload = []byte(payload)
	return s, nil
}

func (r *SQLRepository) DeleteTicket(ctx context.Context, ticketID int64) error {
	queries := []struct {
		q    string
		args []any
	}{
		{`DELETE FROM raw_snapshots
		  WHERE resource = ? AND entity_id IN (SELECT CAST(id AS VARCHAR(64)) FROM attachments WHERE ticket_id = ?)`,
			[]any{string(models.ResourceAttachments), ticketID}},
		{`DELETE FROM raw_snapshots
		  WHERE resource = ? AND entity_id IN (SELECT CAST(id AS VARCHAR(64)) FROM ticket_comments WHERE ticket_id = ?)`,
			[]any{string(models.ResourceComments), ticketID}},
		{`DELETE FROM raw_snapshots WHERE resource = ? AND entity_id = ?`,
			[]any{string(models.ResourceTickets), fmt.Sprint(ticketID)}},
	}

	for _, q := range queries {
		if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(q.q), q.args...); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}
