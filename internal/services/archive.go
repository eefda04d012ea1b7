// Package services holds the persistence-facing use cases of the sync
// engine. ArchiveService pairs every typed upsert with its raw snapshot and
// owns the checkpoint semantics.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/zdbackup/internal/common"
	"github.com/dmitrijs2005/zdbackup/internal/dbx"
	"github.com/dmitrijs2005/zdbackup/internal/models"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/repomanager"
)

type ArchiveService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewArchiveService(db *sql.DB, repomanager repomanager.RepositoryManager) *ArchiveService {
	return &ArchiveService{db: db, repomanager: repomanager}
}

// upsert runs write and the raw snapshot upsert of e in one transaction.
func (s *ArchiveService) upsert(ctx context.Context, e models.Entity, write func(ctx context.Context, tx dbx.DBTX) error) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := write(ctx, tx); err != nil {
			return err
		}
		return s.repomanager.Snapshots(tx).Upsert(ctx, models.SnapshotOf(e))
	})
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", e.Resource(), e.EntityID(), err)
	}
	return nil
}

func (s *ArchiveService) UpsertUser(ctx context.Context, u *models.User) error {
	return s.upsert(ctx, u, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).Upsert(ctx, u)
	})
}

func (s *ArchiveService) UpsertOrganization(ctx context.Context, o *models.Organization) error {
	return s.upsert(ctx, o, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Organizations(tx).Upsert(ctx, o)
	})
}

func (s *ArchiveService) UpsertTicket(ctx context.Context, t *models.Ticket) error {
	return s.upsert(ctx, t, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Tickets(tx).Upsert(ctx, t)
	})
}

func (s *ArchiveService) UpsertComment(ctx context.Context, c *models.Comment) error {
	return s.upsert(ctx, c, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Tickets(tx).UpsertComment(ctx, c)
	})
}

func (s *ArchiveService) UpsertAttachment(ctx context.Context, a *models.Attachment) error {
	return s.upsert(ctx, a, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Tickets(tx).UpsertAttachment(ctx, a)
	})
}

func (s *ArchiveService) UpsertView(ctx context.Context, v *models.View) error {
	return s.upsert(ctx, v, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Rules(tx).UpsertView(ctx, v)
	})
}

func (s *ArchiveService) UpsertTrigger(ctx context.Context, t *models.Trigger) error {
	return s.upsert(ctx, t, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Rules(tx).UpsertTrigger(ctx, t)
	})
}

func (s *ArchiveService) UpsertTriggerCategory(ctx context.Context, c *models.TriggerCategory) error {
	return s.upsert(ctx, c, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Rules(tx).UpsertTriggerCategory(ctx, c)
	})
}

func (s *ArchiveService) UpsertMacro(ctx context.Context, m *models.Macro) error {
	return s.upsert(ctx, m, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Rules(tx).UpsertMacro(ctx, m)
	})
}

// DeleteTicketCascade removes a ticket, its comments, its attachments and
// all of their raw snapshots. Deleting an unknown ticket is a no-op.
func (s *ArchiveService) DeleteTicketCascade(ctx context.Context, ticketID int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Snapshots(tx).DeleteTicket(ctx, ticketID); err != nil {
			return err
		}
		return s.repomanager.Tickets(tx).Delete(ctx, ticketID)
	})
	if err != nil {
		return fmt.Errorf("delete ticket %d: %w", ticketID, err)
	}
	return nil
}

// checkpoint loads the checkpoint of resource and verifies its kind.
// A missing checkpoint yields (nil, nil).
func checkpoint(ctx context.Context, db dbx.DBTX, rm repomanager.RepositoryManager, resource models.Resource, kind models.CheckpointKind) (*models.Checkpoint, error) {
	cp, err := rm.Checkpoints(db).Get(ctx, resource)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if cp.Kind != kind {
		return nil, fmt.Errorf("%s holds a %s, want %s: %w", resource, cp.Kind, kind, common.ErrCheckpointKind)
	}
	return cp, nil
}

// Cursor returns the stored cursor token of resource. ok is false when the
// resource has never advanced.
func (s *ArchiveService) Cursor(ctx context.Context, resource models.Resource) (string, bool, error) {
	cp, err := checkpoint(ctx, s.db, s.repomanager, resource, models.KindCursor)
	if err != nil || cp == nil {
		return "", false, err
	}
	return cp.Token, true, nil
}

// SetCursor overwrites the cursor of resource with token.
func (s *ArchiveService) SetCursor(ctx context.Context, resource models.Resource, token string) error {
	if token == "" {
		return nil
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := checkpoint(ctx, tx, s.repomanager, resource, models.KindCursor); err != nil {
			return err
		}
		return s.repomanager.Checkpoints(tx).Put(ctx, &models.Checkpoint{
			Resource: resource,
			Kind:     models.KindCursor,
			Token:    token,
		})
	})
}

// Watermark returns the stored epoch watermark of resource.
func (s *ArchiveService) Watermark(ctx context.Context, resource models.Resource) (int64, bool, error) {
	cp, err := checkpoint(ctx, s.db, s.repomanager, resource, models.KindWatermark)
	if err != nil || cp == nil {
		return 0, false, err
	}
	v, err := strconv.ParseInt(cp.Token, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s watermark %q: %w", resource, cp.Token, common.ErrCheckpointKind)
	}
	return v, true, nil
}

// SetWatermark raises the watermark of resource to epoch. A value lower than
// the stored one is ignored.
func (s *ArchiveService) SetWatermark(ctx context.Context, resource models.Resource, epoch int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cp, err := checkpoint(ctx, tx, s.repomanager, resource, models.KindWatermark)
		if err != nil {
			return err
		}
		if cp != nil {
			if cur, err := strconv.ParseInt(cp.Token, 10, 64); err == nil && cur >= epoch {
				return nil
			}
		}
		return s.repomanager.Checkpoints(tx).Put(ctx, &models.Checkpoint{
			Resource: resource,
			Kind:     models.KindWatermark,
			Token:    strconv.FormatInt(epoch, 10),
		})
	})
}
