package tickets

import (
	"context"

	"github.com/dmitrijs2005/zdbackup/internal/models"
)

// Repository stores tickets together with their comments and attachments.
type Repository interface {
	Upsert(ctx context.Context, t *models.Ticket) error
	UpsertComment(ctx context.Context, c *models.Comment) error
	UpsertAttachment(ctx context.Context, a *models.Attachment) error
	Get(ctx context.Context, id int64) (*models.Ticket, error)
	// Delete removes the ticket and every comment and attachment row that
	// references it. A missing ticket is not an error.
	Delete(ctx context.Context, id int64) error
}
