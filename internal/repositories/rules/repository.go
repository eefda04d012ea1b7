// Package rules stores the configuration snapshot resources: views,
// triggers, trigger categories and macros.
package rules

import (
	"context"

	"github.com/dmitrijs2005/zdbackup/internal/models"
)

type Repository interface {
	UpsertView(ctx context.Context, v *models.View) error
	UpsertTrigger(ctx context.Context, t *models.Trigger) error
	UpsertTriggerCategory(ctx context.Context, c *models.TriggerCategory) error
	UpsertMacro(ctx context.Context, m *models.Macro) error
}
