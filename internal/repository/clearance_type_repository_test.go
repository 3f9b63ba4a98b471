package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTypeRepoMock(t *testing.T) (*ClearanceTypeRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewClearanceTypeRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestTypeListExcludesInactiveByDefault(t *testing.T) {
	repo, mock := newTypeRepoMock(t)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "display_name", "faculty_based", "target_level", "active", "requirements", "created_at", "updated_at"}).
		AddRow("type-1", "library", "Library Clearance", false, "", true, []byte(`[]`), now, now)
	mock.ExpectQuery(`SELECT .+ FROM clearance_types WHERE active = TRUE ORDER BY name ASC`).WillReturnRows(rows)

	types, err := repo.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "library", types[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTypeFindBySlugReturnsNoRows(t *testing.T) {
	repo, mock := newTypeRepoMock(t)
	mock.ExpectQuery(`SELECT .+ FROM clearance_types WHERE name = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindBySlug(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTypeSetActiveTogglesFlag(t *testing.T) {
	repo, mock := newTypeRepoMock(t)
	mock.ExpectExec(`UPDATE clearance_types SET active = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs("type-1", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetActive(context.Background(), "type-1", false)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
