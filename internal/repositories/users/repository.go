package users

import (
	"context"

	"github.com/dmitrijs2005/zdbackup/internal/models"
)

type Repository interface {
	Upsert(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id int64) (*models.User, error)
}
