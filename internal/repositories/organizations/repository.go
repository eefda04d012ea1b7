package organizations

import (
	"context"

	"github.com/dmitrijs2005/zdbackup/internal/models"
)

type Repository interface {
	Upsert(ctx context.Context, o *models.Organization) error
}
