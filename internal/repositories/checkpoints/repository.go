package checkpoints

import (
	"context"

	"github.com/dmitrijs2005/zdbackup/internal/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when the resource has never advanced.
	Get(ctx context.Context, resource models.Resource) (*models.Checkpoint, error)
	Put(ctx context.Context, cp *models.Checkpoint) error
}
