// Package repomanager provides the SQL RepositoryManager, wiring together
// repository constructors and database migrations (via goose) for the
// configured dialect.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/zdbackup/internal/dbx"
	"github.com/dmitrijs2005/zdbackup/internal/logging"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/checkpoints"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/migrations"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/organizations"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/rules"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/snapshots"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/tickets"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/users"
	"github.com/pressly/goose/v3"
)

// SQLRepositoryManager vends repository implementations bound to one
// dialect and exposes a schema migration hook.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
	logger  logging.Logger
}

func (m *SQLRepositoryManager) Dialect() dbx.Dialect { return m.dialect }

// Checkpoints returns a checkpoints.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Checkpoints(db dbx.DBTX) checkpoints.Repository {
	return checkpoints.NewSQLRepository(db, m.dialect)
}

// Snapshots returns a snapshots.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Snapshots(db dbx.DBTX) snapshots.Repository {
	return snapshots.NewSQLRepository(db, m.dialect)
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db, m.dialect)
}

// Organizations returns an organizations.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Organizations(db dbx.DBTX) organizations.Repository {
	return organizations.NewSQLRepository(db, m.dialect)
}

// Tickets returns a tickets.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Tickets(db dbx.DBTX) tickets.Repository {
	return tickets.NewSQLRepository(db, m.dialect)
}

// Rules returns a rules.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Rules(db dbx.DBTX) rules.Repository {
	return rules.NewSQLRepository(db, m.dialect)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations points goose at the embedded migrations of the manager's
// dialect and applies every pending one.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{ctx: ctx, log: m.logger})
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, string(m.dialect)); err != nil {
		return err
	}
	return nil
}

// NewSQLRepositoryManager constructs a RepositoryManager for dialect.
func NewSQLRepositoryManager(dialect dbx.Dialect, logger logging.Logger) (RepositoryManager, error) {
	switch dialect {
	case dbx.Postgres, dbx.SQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &SQLRepositoryManager{dialect: dialect, logger: logger}, nil
}

// gooseLogger routes goose output through the structured logger.
type gooseLogger struct {
	ctx context.Context
	log logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Info(g.ctx, "migration", "detail", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Error(g.ctx, "migration failed", "detail", strings.TrimSpace(fmt.Sprintf(format, v...)))
}
