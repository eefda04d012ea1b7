package snapshots

import (
	"context"

	"github.com/dmitrijs2005/zdbackup/internal/models"
)

type Repository interface {
	Upsert(ctx context.Context, s models.Snapshot) error
	Get(ctx context.Context, resource models.Resource, entityID string) (*models.Snapshot, error)
	// DeleteTicket removes the raw rows of a ticket, its comments and its
	// attachments. It must run before the typed rows are deleted.
	DeleteTicket(ctx context.Context, ticketID int64) error
}
