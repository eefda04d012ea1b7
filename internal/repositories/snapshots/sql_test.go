package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/zdbackup/internal/common"
	"github.com/dmitrijs2005/zdbackup/internal/dbx"
	"github.com/dmitrijs2005/zdbackup/internal/models"
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLRepository(db, dbx.Postgres), mock, db
}

func TestUpsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+raw_snapshots\s*\(resource,\s*entity_id,\s*updated_at,\s*payload_json\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(resource,\s*entity_id\)\s*DO\s+UPDATE\s+SET`
	mock.ExpectExec(q).
		WithArgs("users", "7", sqlmock.AnyArg(), `{"id":7,"extra":true}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), models.Snapshot{
		Resource:  models.ResourceUsers,
		EntityID:  "7",
		UpdatedAt: models.At(time.Now()),
		Payload:   json.RawMessage(`{"id":7,"extra":true}`),
	})
	if err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsert_EmptyPayloadStoredAsObject(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO raw_snapshots`).
		WithArgs("views", "1", nil, "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), models.Snapshot{Resource: models.ResourceViews, EntityID: "1"}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO raw_snapshots`).WillReturnError(errors.New("boom"))

	err := repo.Upsert(context.Background(), models.Snapshot{Resource: models.ResourceUsers, EntityID: "1"})
	if err == nil || !regexp.MustCompile(`db error: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT updated_at, payload_json FROM raw_snapshots`).
		WithArgs("tickets", "42").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), models.ResourceTickets, "42")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestDeleteTicket_RemovesChildrenFirst(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)DELETE FROM raw_snapshots\s+WHERE resource = \$1 AND entity_id IN \(SELECT .* FROM attachments WHERE ticket_id = \$2\)`).
		WithArgs("attachments", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`(?s)DELETE FROM raw_snapshots\s+WHERE resource = \$1 AND entity_id IN \(SELECT .* FROM ticket_comments WHERE ticket_id = \$2\)`).
		WithArgs("comments", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM raw_snapshots WHERE resource = \$1 AND entity_id = \$2`).
		WithArgs("tickets", "42").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.DeleteTicket(context.Background(), 42); err != nil {
		t.Fatalf("DeleteTicket error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteTicket_StopsOnError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM raw_snapshots`).WillReturnError(errors.New("locked"))

	err := repo.DeleteTicket(context.Background(), 1)
	if err == nil || !regexp.MustCompile(`db error: .*locked`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
