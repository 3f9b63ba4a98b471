package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihub-dev/clearance-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUpdateStatusIfPendingAppliesGuardedWrite(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewClearanceRequestRepository(db)

	reviewedAt := time.Now().UTC()
	mock.ExpectExec(`UPDATE clearance_requests`).
		WithArgs("req-1", models.StatusApproved, "off-1", reviewedAt, nil, reviewedAt, models.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.UpdateStatusIfPending(context.Background(), "req-1", models.StatusApproved, "off-1", nil, reviewedAt)
	require.NoError(t, err)
	assert.True(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusIfPendingReportsZeroRows(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewClearanceRequestRepository(db)

	reviewedAt := time.Now().UTC()
	reason := "Outstanding fines"
	mock.ExpectExec(`UPDATE clearance_requests`).
		WithArgs("req-1", models.StatusRejected, "off-1", reviewedAt, &reason, reviewedAt, models.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.UpdateStatusIfPending(context.Background(), "req-1", models.StatusRejected, "off-1", &reason, reviewedAt)
	require.NoError(t, err)
	assert.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsRequestIDCollision(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewClearanceRequestRepository(db)

	mock.ExpectExec(`INSERT INTO clearance_requests`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "clearance_requests_request_id_key"})

	err := repo.Create(context.Background(), &models.ClearanceRequest{
		RequestID: "CLR-AAAA1111",
		StudentID: "stu-1",
		Type:      "library",
	})
	assert.ErrorIs(t, err, ErrRequestIDTaken)
}

func TestCreateMapsOpenRequestCollision(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewClearanceRequestRepository(db)

	mock.ExpectExec(`INSERT INTO clearance_requests`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "clearance_requests_one_open_per_type"})

	err := repo.Create(context.Background(), &models.ClearanceRequest{
		RequestID: "CLR-BBBB2222",
		StudentID: "stu-1",
		Type:      "library",
	})
	assert.ErrorIs(t, err, ErrOpenRequestExists)
}

func TestFindOpenRequestReturnsNoRows(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewClearanceRequestRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM clearance_requests WHERE student_id`).
		WithArgs("stu-1", "library", models.StatusPending).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindOpenRequest(context.Background(), "stu-1", "library")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestExistsRequestID(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewClearanceRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM clearance_requests WHERE request_id = $1 LIMIT 1`)).
		WithArgs("CLR-AAAA1111").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsRequestID(context.Background(), "CLR-AAAA1111")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM clearance_requests WHERE request_id = $1 LIMIT 1`)).
		WithArgs("CLR-BBBB2222").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsRequestID(context.Background(), "CLR-BBBB2222")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByStudentOrdersNewestFirst(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewClearanceRequestRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "request_id", "student_id", "type", "clearance_type_id", "status", "rejection_reason", "reviewed_by", "reviewed_at", "payload", "created_at", "updated_at"}).
		AddRow("req-2", "CLR-BBBB2222", "stu-1", "library", "type-1", models.StatusPending, nil, nil, nil, nil, now, now).
		AddRow("req-1", "CLR-AAAA1111", "stu-1", "library", "type-1", models.StatusRejected, "Outstanding fines", "off-1", now.Add(-time.Hour), nil, now.Add(-2*time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery(`SELECT .+ FROM clearance_requests WHERE student_id = \$1 ORDER BY created_at DESC`).
		WithArgs("stu-1").
		WillReturnRows(rows)

	requests, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "req-2", requests[0].ID)
	assert.Equal(t, models.StatusRejected, requests[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
