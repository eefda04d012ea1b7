package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/zdbackup/internal/dbx"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/checkpoints"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/organizations"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/rules"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/snapshots"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/tickets"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/users"
)

type RepositoryManager interface {
	Dialect() dbx.Dialect
	RunMigrations(context.Context, *sql.DB) error
	Checkpoints(db dbx.DBTX) checkpoints.Repository
	Snapshots(db dbx.DBTX) snapshots.Repository
	Users(db dbx.DBTX) users.Repository
	Organizations(db dbx.DBTX) organizations.Repository
	Tickets(db dbx.DBTX) tickets.Repository
	Rules(db dbx.DBTX) rules.Repository
}
