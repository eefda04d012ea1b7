package checkpoints

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

func (r *SQLRepository) Get(ctx context.Context, resource models.Resource) (*models.Checkpoint, error) {
	query :=
		`SELECT resource, kind, cursor_token, updated_at FROM sync_state
		 WHERE resource = ?`

	var (
		cp   models.Checkpoint
		ts   models.Timestamp
		res  string
		kind string
	)
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), string(resource)).
		Scan(&res, &kind, &cp.Token, &ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	cp.Resource = models.Resource(res)
	cp.Kind = models.CheckpointKind(kind)
	cp.UpdatedAt = ts.Time
	return &cp, nil
}

func (r *SQLRepository) Put(ctx context.Context, cp *models.Checkpoint) error {
	query :=
		`INSERT INTO sync_state (resource, kind, cursor_token, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (resource) DO UPDATE SET
		   kind = excluded.kind,
		   cursor_token = excluded.cursor_token,
		   updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		string(cp.Resource), string(cp.Kind), cp.Token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
